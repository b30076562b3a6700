package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/model"
	"taskflow/internal/service"
	"taskflow/internal/testutil"
)

const ownerChat int64 = 1001

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Text)
	}
	return out
}

func (f *fakeSender) last() tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return tgbotapi.MessageConfig{}
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeSender) contains(sub string) bool {
	for _, text := range f.texts() {
		if strings.Contains(text, sub) {
			return true
		}
	}
	return false
}

type fixture struct {
	bot   *Bot
	api   *fakeSender
	tasks *testutil.TaskStore
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tasks := testutil.NewTaskStore(
		model.Task{ID: 1, Title: "Write report", Category: "Work", Priority: model.PriorityHigh, CreatedAt: created},
		model.Task{ID: 2, Title: "Buy milk", Category: "Errands", Priority: model.PriorityLow, CreatedAt: created},
	)
	categories := testutil.NewCategoryStore(
		model.Category{ID: 1, Name: "Work", Color: model.DefaultCategoryColor},
		model.Category{ID: 2, Name: "Errands", Color: "#10B981"},
	)
	taskSvc := service.NewTaskService(tasks, logger)
	api := &fakeSender{}
	opts.Logger = logger
	opts.Location = time.UTC
	opts.Dispatch = func(f func()) { f() }
	if opts.SearchDelay == 0 {
		opts.SearchDelay = 10 * time.Millisecond
	}
	b := newBot(api, taskSvc, service.NewCategoryService(categories, logger), service.NewSummaryService(taskSvc), opts)
	b.now = func() time.Time { return time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC) }
	t.Cleanup(b.closeBoards)
	return &fixture{bot: b, api: api, tasks: tasks}
}

func chat(id int64) *tgbotapi.Chat {
	return &tgbotapi.Chat{ID: id, Type: "private"}
}

func (f *fixture) say(chatID int64, text string) {
	msg := &tgbotapi.Message{Chat: chat(chatID), From: &tgbotapi.User{ID: chatID, FirstName: "Ann"}, Text: text}
	if strings.HasPrefix(text, "/") {
		cmd := strings.Fields(text)[0]
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	f.bot.handleUpdate(context.Background(), tgbotapi.Update{Message: msg})
}

func (f *fixture) task(id uint) *model.Task {
	task, err := f.tasks.FindByID(context.Background(), id)
	if err != nil {
		return nil
	}
	return task
}

func TestStartGreets(t *testing.T) {
	f := newFixture(t, Options{})
	f.say(ownerChat, "/start")
	assert.Contains(t, f.api.last().Text, "Hi, Ann!")
	assert.Contains(t, f.api.last().Text, "/newtask")
}

func TestNewTaskConversation(t *testing.T) {
	f := newFixture(t, Options{})
	f.say(ownerChat, "/newtask")
	f.say(ownerChat, "Call plumber")
	f.say(ownerChat, btnSkip)
	f.say(ownerChat, "Errands")
	f.say(ownerChat, "🔴 high")
	f.say(ownerChat, "2026-05-10")

	task := f.task(3)
	require.NotNil(t, task)
	assert.Equal(t, "Call plumber", task.Title)
	assert.Empty(t, task.Description)
	assert.Equal(t, "Errands", task.Category)
	assert.Equal(t, model.PriorityHigh, task.Priority)
	require.NotNil(t, task.DueDate)
	assert.Equal(t, "2026-05-10", task.DueDate.Format(model.DueDateLayout))

	assert.True(t, f.api.contains("New task created!"))
	assert.Contains(t, f.api.last().Text, "Call plumber")
	assert.Nil(t, f.bot.getConversation(ownerChat))
}

func TestNewTaskRequiresTitleAndCategory(t *testing.T) {
	f := newFixture(t, Options{})
	f.say(ownerChat, "/newtask")
	f.say(ownerChat, "   ")
	assert.Equal(t, "Task title is required", f.api.last().Text)

	f.say(ownerChat, "Stretch")
	f.say(ownerChat, "skip")
	f.say(ownerChat, "skip")
	assert.Equal(t, "Please select a category", f.api.last().Text)
	assert.Equal(t, stageCategory, f.bot.getConversation(ownerChat).stage)

	f.say(ownerChat, btnCancelDialog)
	assert.Nil(t, f.bot.getConversation(ownerChat))
	assert.Len(t, f.tasks.Tasks, 2)
}

func TestBadDueDateReprompts(t *testing.T) {
	f := newFixture(t, Options{})
	for _, text := range []string{"/newtask", "Plan trip", "-", "Work", "skip", "next week"} {
		f.say(ownerChat, text)
	}
	assert.Contains(t, f.api.last().Text, "can't read that date")
	assert.Equal(t, stageDueDate, f.bot.getConversation(ownerChat).stage)
}

func TestToggleCommand(t *testing.T) {
	f := newFixture(t, Options{})
	f.say(ownerChat, "/toggle 1")
	assert.True(t, f.task(1).Completed)
	assert.True(t, f.api.contains("High priority task completed"))

	f.say(ownerChat, "/toggle 1")
	assert.False(t, f.task(1).Completed)
	assert.Nil(t, f.task(1).CompletedAt)

	f.say(ownerChat, "/toggle abc")
	assert.Contains(t, f.api.last().Text, "/toggle 12")
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	f := newFixture(t, Options{})
	f.say(ownerChat, "/delete 2")
	assert.Contains(t, f.api.last().Text, "Delete task \"Buy milk\"")
	f.say(ownerChat, "no")
	assert.NotNil(t, f.task(2))
	assert.Equal(t, "Nothing was deleted.", f.api.last().Text)

	f.say(ownerChat, "/delete 2")
	f.say(ownerChat, btnConfirm)
	assert.Nil(t, f.task(2))
	assert.True(t, f.api.contains("Task deleted successfully"))

	f.say(ownerChat, "/delete 2")
	assert.Equal(t, "Task not found.", f.api.last().Text)
}

func TestBulkFlow(t *testing.T) {
	f := newFixture(t, Options{})
	f.say(ownerChat, "/bulk complete")
	assert.Contains(t, f.api.last().Text, "Nothing selected")

	f.say(ownerChat, "/select 1 2")
	assert.Contains(t, f.api.last().Text, "2 of 2 selected")

	f.say(ownerChat, "/bulk priority medium")
	assert.Equal(t, model.PriorityMedium, f.task(1).Priority)
	assert.Equal(t, model.PriorityMedium, f.task(2).Priority)

	f.say(ownerChat, "/selectall")
	f.say(ownerChat, "/bulk complete")
	assert.True(t, f.task(1).Completed)
	assert.True(t, f.task(2).Completed)
	assert.True(t, f.api.contains("2 tasks completed"))

	f.say(ownerChat, "/selectall")
	f.say(ownerChat, "/bulk deletecompleted")
	assert.Contains(t, f.api.last().Text, "Delete 2 completed tasks?")
	f.say(ownerChat, "yes")
	assert.Empty(t, f.tasks.Tasks)
}

func TestFiltersAndCategoryCommand(t *testing.T) {
	f := newFixture(t, Options{})
	f.say(ownerChat, "/category Work")
	text := f.api.last().Text
	assert.Contains(t, text, "Write report")
	assert.NotContains(t, text, "Buy milk")

	f.say(ownerChat, "/filter completed")
	assert.Contains(t, f.api.last().Text, "No tasks in Work")

	f.say(ownerChat, "/category")
	assert.Contains(t, f.api.last().Text, "No completed tasks yet")

	f.say(ownerChat, "/filter someday")
	assert.Contains(t, f.api.last().Text, "/filter all")
}

func TestSearchModeDebounces(t *testing.T) {
	f := newFixture(t, Options{SearchDelay: 20 * time.Millisecond})
	f.say(ownerChat, "/search")
	assert.Contains(t, f.api.last().Text, "Type to search")

	f.say(ownerChat, "mi")
	f.say(ownerChat, "milk")
	require.Eventually(t, func() bool {
		text := f.api.last().Text
		return strings.Contains(text, "Buy milk") && !strings.Contains(text, "Write report")
	}, time.Second, 5*time.Millisecond)

	f.say(ownerChat, "/cancel")
	assert.False(t, f.bot.isSearching(ownerChat))
}

func TestSearchWithArgument(t *testing.T) {
	f := newFixture(t, Options{})
	f.say(ownerChat, "/search REPORT")
	text := f.api.last().Text
	assert.Contains(t, text, "Write report")
	assert.NotContains(t, text, "Buy milk")
}

func TestCallbackToggle(t *testing.T) {
	f := newFixture(t, Options{})
	f.bot.handleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		Data:    cbTogglePrefix + "2",
		Message: &tgbotapi.Message{Chat: chat(ownerChat)},
	}})
	assert.Equal(t, 1, f.api.requests)
	assert.True(t, f.task(2).Completed)
}

func TestForeignChatIgnored(t *testing.T) {
	f := newFixture(t, Options{AllowedChatID: ownerChat})
	f.say(42, "/tasks")
	assert.Empty(t, f.api.texts())
	f.say(ownerChat, "/tasks")
	assert.NotEmpty(t, f.api.texts())
}

func TestCategoriesCommands(t *testing.T) {
	f := newFixture(t, Options{})
	f.say(ownerChat, "/newcategory Deep Work #F59E0B")
	assert.Contains(t, f.api.last().Text, "Deep Work")

	f.say(ownerChat, "/newcategory Work")
	assert.Contains(t, f.api.last().Text, "Category name already exists")

	f.say(ownerChat, "/categories")
	text := f.api.last().Text
	assert.Contains(t, text, "Deep Work")
	assert.Contains(t, text, "#F59E0B")
}

func TestSendDailyReport(t *testing.T) {
	f := newFixture(t, Options{AllowedChatID: ownerChat})
	require.NoError(t, f.bot.SendDailyReport(context.Background()))
	msg := f.api.last()
	assert.Equal(t, ownerChat, msg.ChatID)
	assert.Contains(t, msg.Text, "Daily summary")
	assert.Contains(t, msg.Text, "Write report")
}

func TestSendDailyReportWithoutRecipients(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.bot.SendDailyReport(context.Background()))
	assert.Empty(t, f.api.texts())
}

func TestRenderViewButtons(t *testing.T) {
	f := newFixture(t, Options{})
	f.say(ownerChat, "/select 2")
	f.say(ownerChat, "/tasks")
	msg := f.api.last()
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 2)
	row := markup.InlineKeyboard[1]
	require.Len(t, row, 3)
	assert.Equal(t, "toggle:2", *row[0].CallbackData)
	assert.Equal(t, "☑️", row[1].Text)
	assert.Equal(t, "delete:2", *row[2].CallbackData)
	assert.Contains(t, msg.Text, "1 of 2 selected")
}

func TestFailedFirstLoadIsRetried(t *testing.T) {
	f := newFixture(t, Options{})
	f.tasks.Err = errors.New("store offline")
	f.say(ownerChat, "/category Work")
	assert.Equal(t, loadFailedText, f.api.last().Text)
	assert.Empty(t, f.bot.knownChats())

	f.tasks.Err = nil
	f.say(ownerChat, "/category Work")
	text := f.api.last().Text
	assert.Contains(t, text, "Write report")
	assert.NotContains(t, text, "No tasks")
	assert.Equal(t, []int64{ownerChat}, f.bot.knownChats())
}
