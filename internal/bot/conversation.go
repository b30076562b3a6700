package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskflow/internal/model"
	"taskflow/internal/service"
)

func (b *Bot) startNewTaskConversation(ctx context.Context, chatID int64) error {
	b.clearConfirmation(chatID)
	b.log.WithField("chat_id", chatID).Info("start new task conversation")
	b.setConversation(chatID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(chatID, "🆕 New task.\n<b>Step 1:</b> what should it be called?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, chatID int64, state *conversationState, raw string) error {
	text := strings.TrimSpace(raw)
	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(chatID, "Task title is required", cancelKeyboard())
		}
		state.input.Title = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(chatID, "✏️ Add a short description (or Skip).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) {
			state.input.Description = text
		}
		state.stage = stageCategory
		return b.askCategory(ctx, chatID)
	case stageCategory:
		if text == "" || isSkipInput(text) {
			return b.askCategoryAgain(ctx, chatID)
		}
		state.input.Category = text
		state.stage = stagePriority
		return b.sendWithReplyMarkup(chatID, "🎯 Priority? (Skip keeps medium)", priorityKeyboard())
	case stagePriority:
		if !isSkipInput(text) {
			p, err := model.ParsePriority(stripPriorityIcon(text))
			if err != nil {
				return b.sendWithReplyMarkup(chatID, "Pick low, medium or high.", priorityKeyboard())
			}
			state.input.Priority = string(p)
		}
		state.stage = stageDueDate
		return b.sendWithReplyMarkup(chatID, "⏰ Due date as <code>2026-05-30</code> (or Skip).", skipKeyboard())
	case stageDueDate:
		if !isSkipInput(text) {
			due, err := model.ParseDueDate(text, b.opts.Location)
			if err != nil {
				return b.sendWithReplyMarkup(chatID, "I can't read that date. Use <code>2026-05-30</code> or Skip.", skipKeyboard())
			}
			state.input.DueDate = due
		}
		err := b.finishTaskCreation(ctx, chatID, state.input)
		b.clearConversation(chatID)
		return err
	default:
		b.clearConversation(chatID)
		return b.sendText(chatID, "Input was reset. Start again with /newtask.")
	}
}

func (b *Bot) askCategory(ctx context.Context, chatID int64) error {
	names, err := b.categoryNames(ctx)
	if err != nil {
		return b.sendText(chatID, "❌ Failed to load categories")
	}
	if len(names) == 0 {
		return b.sendWithReplyMarkup(chatID, "🏷 Type a category name.", cancelKeyboard())
	}
	return b.sendWithReplyMarkup(chatID, "🏷 Pick a category or type one.", categoryKeyboard(names))
}

func (b *Bot) askCategoryAgain(ctx context.Context, chatID int64) error {
	names, err := b.categoryNames(ctx)
	if err != nil || len(names) == 0 {
		return b.sendWithReplyMarkup(chatID, "Please select a category", cancelKeyboard())
	}
	return b.sendWithReplyMarkup(chatID, "Please select a category", categoryKeyboard(names))
}

func (b *Bot) categoryNames(ctx context.Context) ([]string, error) {
	categories, err := b.categories.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	return names, nil
}

func (b *Bot) finishTaskCreation(ctx context.Context, chatID int64, input service.TaskInput) error {
	bd, err := b.boardFor(ctx, chatID)
	if err != nil {
		return b.sendText(chatID, loadFailedText)
	}
	task, err := bd.Add(ctx, input)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return b.sendText(chatID, validationText(verr))
		}
		return nil
	}

	b.log.WithField("task_id", task.ID).Info("task created")

	var summary strings.Builder
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", task.ID))
	summary.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(task.Title)))
	summary.WriteString(fmt.Sprintf("• <b>Category:</b> %s\n", escape(task.Category)))
	summary.WriteString(fmt.Sprintf("• <b>Priority:</b> %s\n", task.Priority))
	if task.DueDate != nil {
		summary.WriteString(fmt.Sprintf("• <b>Due:</b> %s\n", task.DueDate.Format(model.DueDateLayout)))
	}
	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(summary.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	if _, err := b.api.Send(msg); err != nil {
		return err
	}
	return b.sendView(chatID, bd.View())
}
