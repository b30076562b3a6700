package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"taskflow/internal/api"
	"taskflow/internal/bot"
	"taskflow/internal/service"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the Telegram bot and scheduled jobs",
		RunE:  runServe,
	}
	cmd.Flags().Bool("no-bot", false, "Do not start the Telegram bot even if a token is configured")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	taskSvc := service.NewTaskService(st.tasks, logger)
	categorySvc := service.NewCategoryService(st.categories, logger)
	summarySvc := service.NewSummaryService(taskSvc)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.Register(e, api.Services{Tasks: taskSvc, Categories: categorySvc, Location: time.Local}, logger)

	scheduler := service.NewSchedulerService(time.Local, logger)
	if cfg.CountSyncInterval > 0 {
		if _, err := scheduler.ScheduleInterval(cfg.CountSyncInterval, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			tasks, err := taskSvc.List(jobCtx)
			if err != nil {
				logger.WithError(err).Warn("count sync: list tasks")
				return
			}
			categorySvc.SyncTaskCounts(jobCtx, tasks)
		}); err != nil {
			return err
		}
	}

	noBot, _ := cmd.Flags().GetBool("no-bot")
	errs := make(chan error, 2)
	if cfg.TelegramToken != "" && !noBot {
		telegramBot, err := bot.New(cfg.TelegramToken, taskSvc, categorySvc, summarySvc, bot.Options{
			AllowedChatID: cfg.AllowedChatID,
			SearchDelay:   cfg.SearchDebounce,
			Location:      time.Local,
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		if _, err := scheduler.ScheduleDaily(cfg.ReportTime, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := telegramBot.SendDailyReport(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.WithError(err).Warn("daily report")
			}
		}); err != nil {
			return err
		}
		go func() { errs <- telegramBot.Start(ctx) }()
	} else {
		logger.Info("telegram bot disabled")
	}

	scheduler.Start()
	defer scheduler.Stop()

	go func() {
		logger.WithField("addr", cfg.ListenAddr).Info("http server listening")
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-errs:
		if err != nil {
			logger.WithError(err).Error("component stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := e.Shutdown(shutdownCtx); serr != nil {
		log.WithError(serr).Warn("http shutdown")
	}
	logger.Info("shutdown complete")
	return err
}
