package bot

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskflow/internal/board"
	"taskflow/internal/filter"
	"taskflow/internal/selection"
	"taskflow/internal/service"
)

// Telegram caps inline keyboards at 100 buttons; three per task.
const maxListed = 30

const loadFailedText = "❌ Failed to load tasks. Please try again."

func (b *Bot) sendView(chatID int64, view board.View) error {
	text, markup := renderView(view, b.now().In(b.opts.Location))
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = *markup
	} else {
		msg.ReplyMarkup = mainMenuKeyboard()
	}
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendSelection(chatID int64, view board.View) error {
	return b.sendText(chatID, selectionText(view.Selection))
}

func renderView(view board.View, now time.Time) (string, *tgbotapi.InlineKeyboardMarkup) {
	var builder strings.Builder
	builder.WriteString("📋 <b>Tasks</b>")
	if desc := criteriaText(view.Criteria); desc != "" {
		builder.WriteString(" · " + desc)
	}
	builder.WriteString(fmt.Sprintf("\nAll %d · Active %d · Completed %d\n\n",
		view.Counts.All, view.Counts.Active, view.Counts.Completed))

	if view.Error != "" {
		builder.WriteString("❌ " + escape(view.Error))
		return strings.TrimSpace(builder.String()), nil
	}
	if view.Empty != nil {
		builder.WriteString(fmt.Sprintf("<b>%s</b>\n%s", escape(view.Empty.Title), escape(view.Empty.Description)))
		return strings.TrimSpace(builder.String()), nil
	}

	selected := make(map[uint]bool, len(view.Selected))
	for _, id := range view.Selected {
		selected[id] = true
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for i, task := range view.Tasks {
		if i == maxListed {
			builder.WriteString(fmt.Sprintf("\n…and %d more. Narrow the list with /filter, /category or /search.\n", len(view.Tasks)-maxListed))
			break
		}
		if selected[task.ID] {
			builder.WriteString("☑️ ")
		}
		builder.WriteString(service.FormatTaskLine(task, now))

		toggle := fmt.Sprintf("✅ #%d · %s", task.ID, shortTitle(task.Title, 20))
		if task.Completed {
			toggle = fmt.Sprintf("↩️ #%d · %s", task.ID, shortTitle(task.Title, 20))
		}
		mark := "⬜"
		if selected[task.ID] {
			mark = "☑️"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(toggle, fmt.Sprintf("%s%d", cbTogglePrefix, task.ID)),
			tgbotapi.NewInlineKeyboardButtonData(mark, fmt.Sprintf("%s%d", cbSelectPrefix, task.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%d", cbDeletePrefix, task.ID)),
		))
	}
	if view.Selection.Count > 0 {
		builder.WriteString("\n" + selectionText(view.Selection))
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return strings.TrimSpace(builder.String()), &markup
}

func criteriaText(c filter.Criteria) string {
	var parts []string
	if c.Status != "" && c.Status != filter.StatusAll {
		parts = append(parts, string(c.Status))
	}
	if c.Category != "" {
		parts = append(parts, "🏷 "+escape(c.Category))
	}
	if c.Query != "" {
		parts = append(parts, fmt.Sprintf("🔎 “%s”", escape(c.Query)))
	}
	return strings.Join(parts, " · ")
}

func selectionText(s selection.Summary) string {
	if s.Count == 0 {
		return "No tasks selected."
	}
	text := fmt.Sprintf("☑️ %d of %d selected", s.Count, s.Total)
	if s.AllSelected {
		text += " (all)"
	}
	return text + fmt.Sprintf(": %d active, %d completed. Use /bulk to act on them.", s.ActiveCount, s.CompletedCount)
}

func validationText(verr *service.ValidationError) string {
	fields := make([]string, 0, len(verr.Fields))
	for field := range verr.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	var builder strings.Builder
	builder.WriteString("⚠️ Please fix:")
	for _, field := range fields {
		builder.WriteString("\n• " + escape(verr.Fields[field]))
	}
	return builder.String()
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func escape(s string) string {
	return html.EscapeString(s)
}
