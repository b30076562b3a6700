package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"taskflow/internal/model"
)

// DueState classifies a task's due date relative to a day.
type DueState int

const (
	DueNone DueState = iota
	DueOverdue
	DueToday
	DueTomorrow
	DueLater
)

// ClassifyDue compares due dates by calendar day in now's location.
// Completed tasks are never overdue.
func ClassifyDue(task model.Task, now time.Time) DueState {
	if task.DueDate == nil {
		return DueNone
	}
	due := dayStart(task.DueDate.In(now.Location()))
	today := dayStart(now)
	switch {
	case due.Equal(today):
		return DueToday
	case due.Equal(today.AddDate(0, 0, 1)):
		return DueTomorrow
	case due.Before(today):
		if task.Completed {
			return DueLater
		}
		return DueOverdue
	default:
		return DueLater
	}
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SummaryService builds human-readable summaries for daily notifications.
type SummaryService struct {
	tasks *TaskService
}

func NewSummaryService(tasks *TaskService) *SummaryService {
	return &SummaryService{tasks: tasks}
}

func (s *SummaryService) DailySummary(ctx context.Context, now time.Time) (string, error) {
	tasks, err := s.tasks.List(ctx)
	if err != nil {
		return "", err
	}

	groups := map[DueState][]model.Task{}
	for _, task := range tasks {
		if task.Completed {
			continue
		}
		state := ClassifyDue(task, now)
		groups[state] = append(groups[state], task)
	}
	for _, list := range groups {
		sortByDue(list)
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily summary</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n", now.Format("Mon, Jan 2 2006")))

	sections := []struct {
		state DueState
		title string
	}{
		{DueOverdue, "⚠️ <b>Overdue</b>"},
		{DueToday, "🔥 <b>Due today</b>"},
		{DueTomorrow, "⏳ <b>Due tomorrow</b>"},
		{DueLater, "📆 <b>Upcoming</b>"},
		{DueNone, "🗂 <b>No due date</b>"},
	}
	open := 0
	for _, section := range sections {
		list := groups[section.state]
		if len(list) == 0 {
			continue
		}
		open += len(list)
		builder.WriteString("\n" + section.title + "\n")
		for _, task := range list {
			builder.WriteString(FormatTaskLine(task, now))
		}
	}
	if open == 0 {
		builder.WriteString("\n— no open tasks, enjoy the day\n")
	}

	return strings.TrimSpace(builder.String()), nil
}

// FormatTaskLine renders one task as an HTML line for chat messages.
func FormatTaskLine(task model.Task, now time.Time) string {
	var sb strings.Builder

	check := "⬜"
	if task.Completed {
		check = "✅"
	}
	sb.WriteString(fmt.Sprintf("%s <b>#%d</b> %s %s", check, task.ID, priorityIcon(task.Priority), html.EscapeString(strings.TrimSpace(task.Title))))
	if name := strings.TrimSpace(task.Category); name != "" {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(name)))
	}
	if task.DueDate != nil {
		sb.WriteString(" · " + dueLabel(task, now))
	}
	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(strings.TrimSpace(task.Description))))
	}
	sb.WriteByte('\n')
	return sb.String()
}

func dueLabel(task model.Task, now time.Time) string {
	switch ClassifyDue(task, now) {
	case DueOverdue:
		return fmt.Sprintf("⏰ %s <b>overdue</b>", task.DueDate.In(now.Location()).Format("Jan 2"))
	case DueToday:
		return "⏰ today"
	case DueTomorrow:
		return "⏰ tomorrow"
	default:
		return "⏰ " + task.DueDate.In(now.Location()).Format("Jan 2")
	}
}

func priorityIcon(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "🔴"
	case model.PriorityLow:
		return "🟢"
	default:
		return "🟡"
	}
}

func sortByDue(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		switch {
		case tasks[i].DueDate == nil && tasks[j].DueDate == nil:
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		case tasks[i].DueDate == nil:
			return false
		case tasks[j].DueDate == nil:
			return true
		default:
			return tasks[i].DueDate.Before(*tasks[j].DueDate)
		}
	})
}
