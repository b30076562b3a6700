package main

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"taskflow/internal/seed"
	"taskflow/internal/service"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load sample categories and tasks into the configured store",
		RunE:  runSeed,
	}
	cmd.Flags().StringP("file", "f", "", "YAML fixture to load instead of the built-in sample data")
	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	fx, err := seed.Default()
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		fx, err = seed.LoadFile(path)
	}
	if err != nil {
		return err
	}

	res, err := seed.Apply(ctx, fx,
		service.NewTaskService(st.tasks, logger),
		service.NewCategoryService(st.categories, logger),
		time.Now())
	if err != nil {
		return err
	}
	logger.WithFields(log.Fields{
		"categories": res.Categories,
		"tasks":      res.Tasks,
		"skipped":    res.Skipped,
	}).Info("seed complete")
	return nil
}
