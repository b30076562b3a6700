// Package seed loads demo categories and tasks from a YAML fixture.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"taskflow/internal/service"
)

//go:embed default.yaml
var defaultFixture []byte

// Fixture is the YAML document shape.
type Fixture struct {
	Categories []Category `yaml:"categories"`
	Tasks      []Task     `yaml:"tasks"`
}

type Category struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

// Task due dates are relative so demo data never goes stale.
type Task struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	Priority    string `yaml:"priority"`
	DueInDays   *int   `yaml:"due_in_days"`
	Completed   bool   `yaml:"completed"`
}

// Result counts what Apply created.
type Result struct {
	Categories int
	Tasks      int
	Skipped    int
}

func Default() (Fixture, error) {
	return Parse(defaultFixture)
}

func LoadFile(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Fixture, error) {
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return Fixture{}, fmt.Errorf("decode fixture: %w", err)
	}
	return fx, nil
}

// Apply creates the fixture through the services so validation applies.
// Categories whose name already exists and tasks already present with the
// same title and category are skipped.
func Apply(ctx context.Context, fx Fixture, tasks *service.TaskService, categories *service.CategoryService, now time.Time) (Result, error) {
	var res Result

	existingCats, err := categories.List(ctx)
	if err != nil {
		return res, err
	}
	known := make(map[string]bool, len(existingCats))
	for _, c := range existingCats {
		known[c.Name] = true
	}
	for _, c := range fx.Categories {
		if known[c.Name] {
			res.Skipped++
			continue
		}
		if _, err := categories.Create(ctx, service.CategoryInput{Name: c.Name, Color: c.Color}); err != nil {
			return res, fmt.Errorf("seed category %q: %w", c.Name, err)
		}
		known[c.Name] = true
		res.Categories++
	}

	existingTasks, err := tasks.List(ctx)
	if err != nil {
		return res, err
	}
	present := make(map[[2]string]bool, len(existingTasks))
	for _, t := range existingTasks {
		present[[2]string{t.Title, t.Category}] = true
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, t := range fx.Tasks {
		if present[[2]string{t.Title, t.Category}] {
			res.Skipped++
			continue
		}
		input := service.TaskInput{Title: t.Title, Description: t.Description, Category: t.Category, Priority: t.Priority}
		if t.DueInDays != nil {
			due := today.AddDate(0, 0, *t.DueInDays)
			input.DueDate = &due
		}
		created, err := tasks.Create(ctx, input)
		if err != nil {
			return res, fmt.Errorf("seed task %q: %w", t.Title, err)
		}
		if t.Completed {
			if _, err := tasks.ToggleComplete(ctx, created.ID); err != nil {
				return res, fmt.Errorf("seed task %q: %w", t.Title, err)
			}
		}
		res.Tasks++
	}

	all, err := tasks.List(ctx)
	if err != nil {
		return res, err
	}
	categories.SyncTaskCounts(ctx, all)
	log.WithFields(log.Fields{"categories": res.Categories, "tasks": res.Tasks, "skipped": res.Skipped}).Info("seed applied")
	return res, nil
}
