// Package board keeps the per-client task list state: the cached snapshot,
// the active filters, the debounced search box and the bulk selection.
package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"taskflow/internal/debounce"
	"taskflow/internal/filter"
	"taskflow/internal/model"
	"taskflow/internal/selection"
	"taskflow/internal/service"
)

// DefaultSearchDelay is how long the search box must be quiet before filtering.
const DefaultSearchDelay = 300 * time.Millisecond

// Level classifies a transient notification.
type Level int

const (
	LevelSuccess Level = iota
	LevelInfo
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelInfo:
		return "info"
	default:
		return "error"
	}
}

// Notifier receives short user-facing messages after an action.
type Notifier interface {
	Notify(level Level, msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level Level, msg string)

func (f NotifierFunc) Notify(level Level, msg string) { f(level, msg) }

// Options configures a Board. Zero values pick defaults.
type Options struct {
	SearchDelay time.Duration
	Notifier    Notifier
	Logger      log.FieldLogger
	// Dispatch runs best-effort background work such as count syncing.
	Dispatch func(func())
	// OnSettle is called with the new view after a debounced query applies.
	OnSettle func(View)
}

// View is the derived state rendered by a front-end.
type View struct {
	Tasks      []model.Task
	Categories []model.Category
	Criteria   filter.Criteria
	RawQuery   string
	Counts     filter.Counts
	Selection  selection.Summary
	Selected   []uint
	Empty      *filter.EmptyState
	Error      string
}

// Board is safe for concurrent use; the debounce timer fires on its own goroutine.
type Board struct {
	tasks      *service.TaskService
	categories *service.CategoryService
	notifier   Notifier
	log        log.FieldLogger
	dispatch   func(func())
	onSettle   func(View)

	mu        sync.Mutex
	all       []model.Task
	cats      []model.Category
	criteria  filter.Criteria
	rawQuery  string
	selection *selection.Manager
	loadErr   string

	search *debounce.Debouncer[string]
}

func New(tasks *service.TaskService, categories *service.CategoryService, opts Options) *Board {
	b := &Board{
		tasks:      tasks,
		categories: categories,
		notifier:   opts.Notifier,
		log:        opts.Logger,
		dispatch:   opts.Dispatch,
		onSettle:   opts.OnSettle,
		criteria:   filter.Criteria{Status: filter.StatusAll},
		selection:  selection.New(),
	}
	if b.notifier == nil {
		b.notifier = NotifierFunc(func(Level, string) {})
	}
	if b.log == nil {
		b.log = log.StandardLogger()
	}
	if b.dispatch == nil {
		b.dispatch = func(f func()) { go f() }
	}
	delay := opts.SearchDelay
	if delay <= 0 {
		delay = DefaultSearchDelay
	}
	b.search = debounce.New(delay, b.applyQuery)
	return b
}

// Close cancels a pending search.
func (b *Board) Close() {
	b.search.Stop()
}

// Load replaces the snapshot with the stored tasks and categories.
func (b *Board) Load(ctx context.Context) error {
	tasks, err := b.tasks.List(ctx)
	if err != nil {
		b.mu.Lock()
		b.loadErr = "Failed to load tasks. Please try again."
		b.mu.Unlock()
		b.log.WithError(err).Error("load tasks")
		return err
	}
	categories, cerr := b.categories.List(ctx)
	if cerr != nil {
		b.log.WithError(cerr).Error("load categories")
	}

	b.mu.Lock()
	b.all = tasks
	if cerr == nil {
		b.cats = categories
	}
	b.loadErr = ""
	b.selection.Retain(b.visibleLocked())
	snapshot := b.snapshotLocked()
	b.mu.Unlock()

	b.syncCounts(ctx, snapshot)
	return nil
}

func (b *Board) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewLocked()
}

func (b *Board) viewLocked() View {
	visible := b.visibleLocked()
	v := View{
		Tasks:      visible,
		Categories: append([]model.Category(nil), b.cats...),
		Criteria:   b.criteria,
		RawQuery:   b.rawQuery,
		Counts:     filter.Count(b.all, b.cats),
		Selection:  b.selection.Summarize(visible),
		Selected:   b.selection.IDs(),
		Error:      b.loadErr,
	}
	if len(visible) == 0 {
		empty := b.criteria.EmptyState()
		v.Empty = &empty
	}
	return v
}

func (b *Board) visibleLocked() []model.Task {
	return filter.Visible(b.all, b.criteria)
}

func (b *Board) visibleHasLocked(id uint) bool {
	for _, task := range b.all {
		if task.ID == id {
			return b.criteria.Match(task)
		}
	}
	return false
}

// Task returns the cached task with id.
func (b *Board) Task(id uint) (model.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, task := range b.all {
		if task.ID == id {
			return task, true
		}
	}
	return model.Task{}, false
}

// SetCategory filters by category name; an empty name clears the filter.
func (b *Board) SetCategory(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.criteria.Category = strings.TrimSpace(name)
	b.selection.Retain(b.visibleLocked())
}

func (b *Board) SetStatus(status filter.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.criteria.Status = status
	b.selection.Retain(b.visibleLocked())
}

// TypeQuery records raw search input and schedules the filter once input settles.
func (b *Board) TypeQuery(raw string) {
	b.mu.Lock()
	b.rawQuery = raw
	b.mu.Unlock()
	b.search.Trigger(raw)
}

// SetQuery applies a query immediately, dropping any pending keystrokes.
func (b *Board) SetQuery(q string) {
	b.search.Stop()
	b.mu.Lock()
	b.rawQuery = q
	b.criteria.Query = q
	b.selection.Retain(b.visibleLocked())
	b.mu.Unlock()
}

// FlushQuery applies pending search input now.
func (b *Board) FlushQuery() {
	b.search.Flush()
}

func (b *Board) applyQuery(q string) {
	b.mu.Lock()
	b.criteria.Query = q
	b.selection.Retain(b.visibleLocked())
	view := b.viewLocked()
	b.mu.Unlock()
	if b.onSettle != nil {
		b.onSettle(view)
	}
}

// Add creates a task. Validation errors are returned without a notification.
func (b *Board) Add(ctx context.Context, input service.TaskInput) (*model.Task, error) {
	task, err := b.tasks.Create(ctx, input)
	if err != nil {
		return nil, b.fail("Failed to save task", err)
	}
	b.mu.Lock()
	b.all = append(b.all, *task)
	snapshot := b.snapshotLocked()
	b.mu.Unlock()

	b.syncCounts(ctx, snapshot)
	b.notifier.Notify(LevelSuccess, "New task created!")
	return task, nil
}

func (b *Board) Edit(ctx context.Context, id uint, patch service.TaskPatch) (*model.Task, error) {
	task, err := b.tasks.Update(ctx, id, patch)
	if err != nil {
		return nil, b.fail("Failed to save task", err)
	}
	snapshot := b.replace(*task)
	b.syncCounts(ctx, snapshot)
	b.notifier.Notify(LevelSuccess, "Task updated successfully!")
	return task, nil
}

func (b *Board) Toggle(ctx context.Context, id uint) (*model.Task, error) {
	task, err := b.tasks.ToggleComplete(ctx, id)
	if err != nil {
		return nil, b.fail("Failed to update task", err)
	}
	b.replace(*task)
	switch {
	case task.Completed && task.Priority == model.PriorityHigh:
		b.notifier.Notify(LevelSuccess, "🎉 High priority task completed! Excellent work!")
	case task.Completed:
		b.notifier.Notify(LevelSuccess, "✅ Task completed successfully!")
	default:
		b.notifier.Notify(LevelInfo, "Task marked as incomplete")
	}
	return task, nil
}

// Delete removes a task. Callers confirm with the user first.
func (b *Board) Delete(ctx context.Context, id uint) error {
	removed, err := b.tasks.Delete(ctx, id)
	if err != nil {
		return b.fail("Failed to delete task", err)
	}
	snapshot := b.remove(id)
	b.syncCounts(ctx, snapshot)
	if !removed {
		b.notifier.Notify(LevelError, "Task not found")
		return fmt.Errorf("delete task %d: %w", id, model.ErrNotFound)
	}
	b.notifier.Notify(LevelSuccess, "Task deleted successfully")
	return nil
}

// Select adds id to the selection if it is in the visible list.
func (b *Board) Select(id uint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.visibleHasLocked(id) {
		b.selection.Select(id)
	}
}

func (b *Board) Deselect(id uint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selection.Deselect(id)
}

// ToggleSelect flips id and reports whether it is now selected. Ids outside
// the visible list are never selected.
func (b *Board) ToggleSelect(id uint) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.visibleHasLocked(id) {
		b.selection.Deselect(id)
		return false
	}
	return b.selection.Toggle(id)
}

// SelectAll selects every visible task.
func (b *Board) SelectAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selection.SelectAll(b.visibleLocked())
}

func (b *Board) ClearSelection() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selection.Clear()
}

// BulkComplete completes the selected open tasks. With nothing open selected it
// does nothing and keeps the selection.
func (b *Board) BulkComplete(ctx context.Context) (int, error) {
	b.mu.Lock()
	ids := b.selection.ActiveIDs(b.visibleLocked())
	b.mu.Unlock()
	if len(ids) == 0 {
		return 0, nil
	}
	defer b.ClearSelection()

	changed, err := b.tasks.BulkComplete(ctx, ids)
	for _, task := range changed {
		b.replace(task)
	}
	if err != nil {
		return len(changed), b.fail("Failed to complete tasks", err)
	}
	b.notifier.Notify(LevelSuccess, fmt.Sprintf("%s completed", plural(len(changed), "task")))
	return len(changed), nil
}

// BulkDelete removes every selected visible task.
func (b *Board) BulkDelete(ctx context.Context) (int, error) {
	b.mu.Lock()
	ids := idsOf(b.selection.Selected(b.visibleLocked()))
	b.mu.Unlock()
	return b.bulkDelete(ctx, ids)
}

// BulkDeleteCompleted removes the selected tasks that are already completed.
func (b *Board) BulkDeleteCompleted(ctx context.Context) (int, error) {
	b.mu.Lock()
	ids := b.selection.CompletedIDs(b.visibleLocked())
	b.mu.Unlock()
	return b.bulkDelete(ctx, ids)
}

func (b *Board) bulkDelete(ctx context.Context, ids []uint) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	defer b.ClearSelection()

	deleted, err := b.tasks.BulkDelete(ctx, ids)
	if err != nil {
		// Some ids may be gone already; resync rather than guess.
		if lerr := b.Load(ctx); lerr != nil {
			b.log.WithError(lerr).Warn("reload after failed bulk delete")
		}
		return deleted, b.fail("Failed to delete tasks", err)
	}
	var snapshot []model.Task
	for _, id := range ids {
		snapshot = b.remove(id)
	}
	b.syncCounts(ctx, snapshot)
	b.notifier.Notify(LevelSuccess, fmt.Sprintf("%s deleted", plural(deleted, "task")))
	return deleted, nil
}

// BulkSetPriority sets priority on every selected visible task.
func (b *Board) BulkSetPriority(ctx context.Context, priority model.Priority) (int, error) {
	b.mu.Lock()
	ids := idsOf(b.selection.Selected(b.visibleLocked()))
	b.mu.Unlock()
	if len(ids) == 0 {
		return 0, nil
	}
	defer b.ClearSelection()

	changed, err := b.tasks.BulkUpdatePriority(ctx, ids, string(priority))
	for _, task := range changed {
		b.replace(task)
	}
	if err != nil {
		return len(changed), b.fail("Failed to update priority", err)
	}
	b.notifier.Notify(LevelSuccess, fmt.Sprintf("Priority set to %s for %s", priority, plural(len(changed), "task")))
	return len(changed), nil
}

// fail logs err and notifies the user unless it is a validation error,
// which the caller shows next to the offending field instead.
func (b *Board) fail(msg string, err error) error {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return err
	}
	b.log.WithError(err).Error(strings.ToLower(msg))
	b.notifier.Notify(LevelError, msg)
	return err
}

func (b *Board) replace(task model.Task) []model.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.all {
		if b.all[i].ID == task.ID {
			b.all[i] = task
			return b.snapshotLocked()
		}
	}
	b.all = append(b.all, task)
	return b.snapshotLocked()
}

func (b *Board) remove(id uint) []model.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Task, 0, len(b.all))
	for _, task := range b.all {
		if task.ID != id {
			out = append(out, task)
		}
	}
	b.all = out
	b.selection.Deselect(id)
	return b.snapshotLocked()
}

func (b *Board) snapshotLocked() []model.Task {
	return append([]model.Task(nil), b.all...)
}

// syncCounts pushes category counts in the background; failures are only logged.
func (b *Board) syncCounts(ctx context.Context, snapshot []model.Task) {
	if b.categories == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	b.dispatch(func() { b.categories.SyncTaskCounts(bg, snapshot) })
}

func idsOf(tasks []model.Task) []uint {
	out := make([]uint, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.ID)
	}
	return out
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
