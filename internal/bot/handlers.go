package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"taskflow/internal/board"
	"taskflow/internal/filter"
	"taskflow/internal/model"
	"taskflow/internal/service"
)

const (
	cbTogglePrefix = "toggle:"
	cbSelectPrefix = "select:"
	cbDeletePrefix = "delete:"
)

const helpText = "ℹ️ <b>TaskFlow</b>\n" +
	"• /newtask: add a task step by step\n" +
	"• /tasks: show the current list\n" +
	"• /filter all|active|completed: filter by status\n" +
	"• /category [name]: filter by category, no name clears it\n" +
	"• /search [text]: search titles and descriptions; without text every message is a query\n" +
	"• /toggle &lt;id&gt;: mark a task done or not done\n" +
	"• /delete &lt;id&gt;: delete a task\n" +
	"• /select &lt;id&gt; [id...]: toggle selection, /selectall, /clear\n" +
	"• /bulk complete|delete|deletecompleted|priority &lt;low|medium|high&gt;\n" +
	"• /categories, /newcategory &lt;name&gt; [#color]\n" +
	"• /report: today's summary\n" +
	"• /cancel: stop the current input"

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	if !b.allowed(chatID) {
		b.log.WithField("chat_id", chatID).Debug("ignoring message from foreign chat")
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		return b.cancelAll(chatID)
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		b.log.WithFields(log.Fields{"chat_id": chatID, "command": msg.Command(), "args": msg.CommandArguments()}).Info("command")
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(chatID); ok {
		return b.handleConfirmationResponse(ctx, chatID, msg.Text, pending)
	}

	if state := b.getConversation(chatID); state != nil {
		return b.handleConversation(ctx, chatID, state, msg.Text)
	}

	if b.isSearching(chatID) {
		bd, err := b.boardFor(ctx, chatID)
		if err != nil {
			return b.sendText(chatID, loadFailedText)
		}
		bd.TypeQuery(strings.TrimSpace(msg.Text))
		return nil
	}

	return b.sendText(chatID, "I did not get that. Use /newtask to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.sendText(chatID, helpText)
	case "report":
		return b.handleReport(ctx, chatID)
	case "newtask":
		return b.startNewTaskConversation(ctx, chatID)
	case "tasks":
		return b.handleListTasks(ctx, chatID)
	case "filter":
		return b.handleFilter(ctx, chatID, args)
	case "category":
		return b.handleCategoryFilter(ctx, chatID, args)
	case "search":
		return b.handleSearch(ctx, chatID, args)
	case "toggle":
		return b.handleToggle(ctx, chatID, args)
	case "delete":
		return b.handleDelete(ctx, chatID, args)
	case "select":
		return b.handleSelect(ctx, chatID, args)
	case "selectall":
		return b.withBoard(ctx, chatID, func(bd *board.Board) error {
			bd.SelectAll()
			return b.sendSelection(chatID, bd.View())
		})
	case "clear":
		return b.withBoard(ctx, chatID, func(bd *board.Board) error {
			bd.ClearSelection()
			return b.sendSelection(chatID, bd.View())
		})
	case "bulk":
		return b.handleBulk(ctx, chatID, args)
	case "categories":
		return b.handleCategories(ctx, chatID)
	case "newcategory":
		return b.handleNewCategory(ctx, chatID, args)
	case "cancel":
		return b.cancelAll(chatID)
	default:
		return b.sendText(chatID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := "there"
	if msg.From != nil && strings.TrimSpace(msg.From.FirstName) != "" {
		name = strings.TrimSpace(msg.From.FirstName)
	}
	text := fmt.Sprintf("👋 Hi, %s!\n<b>I keep your tasks organized.</b>\n\n%s", escape(name), helpText)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) cancelAll(chatID int64) error {
	b.clearConversation(chatID)
	b.clearConfirmation(chatID)
	if b.isSearching(chatID) {
		b.setSearching(chatID, false)
		b.mu.Lock()
		bd := b.boards[chatID]
		b.mu.Unlock()
		if bd != nil {
			bd.SetQuery("")
		}
	}
	return b.sendText(chatID, "⏪ Cancelled.")
}

func (b *Bot) handleReport(ctx context.Context, chatID int64) error {
	text, err := b.summary.DailySummary(ctx, b.now().In(b.opts.Location))
	if err != nil {
		b.log.WithError(err).Error("build summary")
		return b.sendText(chatID, "❌ Could not build the report. Please try again.")
	}
	return b.sendText(chatID, text)
}

// withBoard runs fn against the chat's board, reporting load failures.
func (b *Bot) withBoard(ctx context.Context, chatID int64, fn func(*board.Board) error) error {
	bd, err := b.boardFor(ctx, chatID)
	if err != nil {
		return b.sendText(chatID, loadFailedText)
	}
	return fn(bd)
}

func (b *Bot) handleListTasks(ctx context.Context, chatID int64) error {
	bd, err := b.boardFor(ctx, chatID)
	if err == nil {
		err = bd.Load(ctx)
	}
	if err != nil {
		return b.sendText(chatID, loadFailedText)
	}
	return b.sendView(chatID, bd.View())
}

func (b *Bot) handleFilter(ctx context.Context, chatID int64, args string) error {
	status, err := filter.ParseStatus(args)
	if err != nil {
		return b.sendText(chatID, "Use /filter all, /filter active or /filter completed.")
	}
	return b.withBoard(ctx, chatID, func(bd *board.Board) error {
		bd.SetStatus(status)
		return b.sendView(chatID, bd.View())
	})
}

func (b *Bot) handleCategoryFilter(ctx context.Context, chatID int64, args string) error {
	return b.withBoard(ctx, chatID, func(bd *board.Board) error {
		bd.SetCategory(args)
		return b.sendView(chatID, bd.View())
	})
}

func (b *Bot) handleSearch(ctx context.Context, chatID int64, args string) error {
	return b.withBoard(ctx, chatID, func(bd *board.Board) error {
		if args != "" {
			b.setSearching(chatID, false)
			bd.SetQuery(args)
			return b.sendView(chatID, bd.View())
		}
		b.setSearching(chatID, true)
		return b.sendWithReplyMarkup(chatID, "🔎 Type to search. Results follow once you pause. /cancel stops searching.", cancelKeyboard())
	})
}

func (b *Bot) handleToggle(ctx context.Context, chatID int64, args string) error {
	id, err := parseID(args)
	if err != nil {
		return b.sendText(chatID, "Give the task id: /toggle 12")
	}
	return b.toggleAndRefresh(ctx, chatID, id)
}

func (b *Bot) toggleAndRefresh(ctx context.Context, chatID int64, id uint) error {
	return b.withBoard(ctx, chatID, func(bd *board.Board) error {
		if _, err := bd.Toggle(ctx, id); err != nil {
			return nil
		}
		return b.sendView(chatID, bd.View())
	})
}

func (b *Bot) handleDelete(ctx context.Context, chatID int64, args string) error {
	id, err := parseID(args)
	if err != nil {
		return b.sendText(chatID, "Give the task id: /delete 12")
	}
	return b.askDeleteConfirmation(ctx, chatID, id)
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, chatID int64, id uint) error {
	task, err := b.tasks.Get(ctx, id)
	if err != nil {
		if service.IsNotFound(err) {
			return b.sendText(chatID, "Task not found.")
		}
		return b.sendText(chatID, "❌ Failed to load task")
	}
	b.setConfirmation(chatID, confirmationRequest{taskID: task.ID, action: actionDelete})
	text := fmt.Sprintf("Delete task \"%s\" (#%d)? This cannot be undone.", escape(strings.TrimSpace(task.Title)), task.ID)
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) handleSelect(ctx context.Context, chatID int64, args string) error {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return b.sendText(chatID, "Give one or more task ids: /select 3 5 8")
	}
	ids := make([]uint, 0, len(fields))
	for _, f := range fields {
		id, err := parseID(f)
		if err != nil {
			return b.sendText(chatID, fmt.Sprintf("%q is not a task id.", escape(f)))
		}
		ids = append(ids, id)
	}
	return b.withBoard(ctx, chatID, func(bd *board.Board) error {
		for _, id := range ids {
			bd.ToggleSelect(id)
		}
		return b.sendSelection(chatID, bd.View())
	})
}

func (b *Bot) handleBulk(ctx context.Context, chatID int64, args string) error {
	fields := strings.Fields(strings.ToLower(args))
	if len(fields) == 0 {
		return b.sendText(chatID, "Use /bulk complete, /bulk delete, /bulk deletecompleted or /bulk priority high.")
	}
	return b.withBoard(ctx, chatID, func(bd *board.Board) error {
		view := bd.View()
		if view.Selection.Count == 0 {
			return b.sendText(chatID, "Nothing selected. Use /select or /selectall first.")
		}
		switch fields[0] {
		case "complete":
			if view.Selection.ActiveCount == 0 {
				return b.sendText(chatID, "Every selected task is already completed.")
			}
			if _, err := bd.BulkComplete(ctx); err != nil {
				return nil
			}
			return b.sendView(chatID, bd.View())
		case "delete":
			b.setConfirmation(chatID, confirmationRequest{action: actionBulkDelete})
			return b.sendWithReplyMarkup(chatID, fmt.Sprintf("Delete %s? This cannot be undone.", plural(view.Selection.Count, "selected task")), confirmKeyboard())
		case "deletecompleted":
			if view.Selection.CompletedCount == 0 {
				return b.sendText(chatID, "No completed tasks in the selection.")
			}
			b.setConfirmation(chatID, confirmationRequest{action: actionBulkDeleteCompleted})
			return b.sendWithReplyMarkup(chatID, fmt.Sprintf("Delete %s? This cannot be undone.", plural(view.Selection.CompletedCount, "completed task")), confirmKeyboard())
		case "priority":
			if len(fields) < 2 {
				return b.sendText(chatID, "Give the priority: /bulk priority high")
			}
			p, err := model.ParsePriority(fields[1])
			if err != nil {
				return b.sendText(chatID, "Priority must be low, medium or high.")
			}
			if _, err := bd.BulkSetPriority(ctx, p); err != nil {
				return nil
			}
			return b.sendView(chatID, bd.View())
		default:
			return b.sendText(chatID, "Unknown bulk action. Use complete, delete, deletecompleted or priority.")
		}
	})
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, chatID int64, text string, req confirmationRequest) error {
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(chatID)
		return b.withBoard(ctx, chatID, func(bd *board.Board) error {
			var err error
			switch req.action {
			case actionDelete:
				err = bd.Delete(ctx, req.taskID)
			case actionBulkDelete:
				_, err = bd.BulkDelete(ctx)
			case actionBulkDeleteCompleted:
				_, err = bd.BulkDeleteCompleted(ctx)
			}
			if err != nil {
				return nil
			}
			return b.sendView(chatID, bd.View())
		})
	case isCancelInput(text):
		b.clearConfirmation(chatID)
		return b.sendText(chatID, "Nothing was deleted.")
	default:
		return b.sendWithReplyMarkup(chatID, "Confirm or cancel the deletion.", confirmKeyboard())
	}
}

func (b *Bot) handleCategories(ctx context.Context, chatID int64) error {
	categories, err := b.categories.List(ctx)
	if err != nil {
		b.log.WithError(err).Error("list categories")
		return b.sendText(chatID, "❌ Failed to load categories")
	}
	if len(categories) == 0 {
		return b.sendText(chatID, "No categories yet. Add one with /newcategory Work")
	}
	var builder strings.Builder
	builder.WriteString("📂 <b>Categories</b>\n")
	for _, c := range categories {
		builder.WriteString(fmt.Sprintf("• %s <code>%s</code> · %s\n", escape(c.Name), escape(c.Color), plural(c.TaskCount, "task")))
	}
	return b.sendText(chatID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleNewCategory(ctx context.Context, chatID int64, args string) error {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return b.sendText(chatID, "Give the category name: /newcategory Work #3B82F6")
	}
	input := service.CategoryInput{Name: args}
	if last := fields[len(fields)-1]; len(fields) > 1 && strings.HasPrefix(last, "#") {
		input.Name = strings.Join(fields[:len(fields)-1], " ")
		input.Color = last
	}
	category, err := b.categories.Create(ctx, input)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return b.sendText(chatID, validationText(verr))
		}
		b.log.WithError(err).Error("create category")
		return b.sendText(chatID, "❌ Failed to save category")
	}
	b.reloadBoard(ctx, chatID)
	return b.sendText(chatID, fmt.Sprintf("✅ Category <b>%s</b> created.", escape(category.Name)))
}

// reloadBoard refreshes an already open board so new categories show up.
func (b *Bot) reloadBoard(ctx context.Context, chatID int64) {
	b.mu.Lock()
	bd := b.boards[chatID]
	b.mu.Unlock()
	if bd == nil {
		return
	}
	if err := bd.Load(ctx); err != nil {
		b.log.WithError(err).Warn("reload board")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.WithError(err).Debug("callback ack")
	}
	chatID := cb.Message.Chat.ID
	if !b.allowed(chatID) {
		return nil
	}

	data := cb.Data
	switch {
	case strings.HasPrefix(data, cbTogglePrefix):
		id, err := parseID(strings.TrimPrefix(data, cbTogglePrefix))
		if err != nil {
			return nil
		}
		return b.toggleAndRefresh(ctx, chatID, id)
	case strings.HasPrefix(data, cbSelectPrefix):
		id, err := parseID(strings.TrimPrefix(data, cbSelectPrefix))
		if err != nil {
			return nil
		}
		return b.withBoard(ctx, chatID, func(bd *board.Board) error {
			bd.ToggleSelect(id)
			return b.sendSelection(chatID, bd.View())
		})
	case strings.HasPrefix(data, cbDeletePrefix):
		id, err := parseID(strings.TrimPrefix(data, cbDeletePrefix))
		if err != nil {
			return nil
		}
		return b.askDeleteConfirmation(ctx, chatID, id)
	default:
		return nil
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(ctx, msg.Chat.ID)
	case strings.ToLower(menuLabelTasks):
		return true, b.handleListTasks(ctx, msg.Chat.ID)
	case strings.ToLower(menuLabelCategories):
		return true, b.handleCategories(ctx, msg.Chat.ID)
	case strings.ToLower(menuLabelHelp):
		return true, b.sendText(msg.Chat.ID, helpText)
	default:
		return false, nil
	}
}

func parseID(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil || value == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(value), nil
}
