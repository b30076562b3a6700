package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"taskflow/internal/board"
	"taskflow/internal/service"
)

// sender is the slice of the Telegram API the bot talks through.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDescription
	stageCategory
	stagePriority
	stageDueDate
)

type conversationState struct {
	stage conversationStage
	input service.TaskInput
}

type confirmationAction int

const (
	actionDelete confirmationAction = iota
	actionBulkDelete
	actionBulkDeleteCompleted
)

type confirmationRequest struct {
	taskID uint
	action confirmationAction
}

// Options tunes the bot. Zero values pick defaults.
type Options struct {
	// AllowedChatID restricts the bot to one chat when non-zero.
	AllowedChatID int64
	SearchDelay   time.Duration
	Location      *time.Location
	Logger        log.FieldLogger
	// Dispatch runs board background work; defaults to a goroutine.
	Dispatch func(func())
}

// Bot aggregates Telegram API with services. Each chat gets its own board.
type Bot struct {
	api        sender
	poller     *tgbotapi.BotAPI
	tasks      *service.TaskService
	categories *service.CategoryService
	summary    *service.SummaryService
	opts       Options
	log        log.FieldLogger
	now        func() time.Time

	mu            sync.Mutex
	boards        map[int64]*board.Board
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	searching     map[int64]bool
}

func New(token string, tasks *service.TaskService, categories *service.CategoryService, summary *service.SummaryService, opts Options) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	b := newBot(api, tasks, categories, summary, opts)
	b.poller = api
	b.log.WithField("account", api.Self.UserName).Info("bot authorized")
	return b, nil
}

func newBot(api sender, tasks *service.TaskService, categories *service.CategoryService, summary *service.SummaryService, opts Options) *Bot {
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Bot{
		api:           api,
		tasks:         tasks,
		categories:    categories,
		summary:       summary,
		opts:          opts,
		log:           opts.Logger,
		now:           time.Now,
		boards:        make(map[int64]*board.Board),
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
		searching:     make(map[int64]bool),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.poller == nil {
		return fmt.Errorf("bot has no telegram connection")
	}
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.poller.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.poller.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	b.closeBoards()
	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			b.log.WithError(err).Warn("handle callback")
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.log.WithError(err).Warn("handle message")
		}
	}
}

func (b *Bot) allowed(chatID int64) bool {
	return b.opts.AllowedChatID == 0 || b.opts.AllowedChatID == chatID
}

// boardFor returns the chat's board, loading it on first use. A board whose
// first load fails is dropped so the next call retries.
func (b *Bot) boardFor(ctx context.Context, chatID int64) (*board.Board, error) {
	b.mu.Lock()
	bd, ok := b.boards[chatID]
	b.mu.Unlock()
	if ok {
		return bd, nil
	}

	bd = board.New(b.tasks, b.categories, board.Options{
		SearchDelay: b.opts.SearchDelay,
		Logger:      b.log.WithField("chat_id", chatID),
		Dispatch:    b.opts.Dispatch,
		Notifier:    board.NotifierFunc(func(level board.Level, msg string) { b.notify(chatID, level, msg) }),
		OnSettle:    func(view board.View) { b.onSearchSettled(chatID, view) },
	})
	if err := bd.Load(ctx); err != nil {
		bd.Close()
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.boards[chatID]; ok {
		bd.Close()
		return existing, nil
	}
	b.boards[chatID] = bd
	return bd, nil
}

func (b *Bot) closeBoards() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, bd := range b.boards {
		bd.Close()
	}
}

func (b *Bot) knownChats() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	chats := make([]int64, 0, len(b.boards))
	for id := range b.boards {
		chats = append(chats, id)
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i] < chats[j] })
	return chats
}

func (b *Bot) notify(chatID int64, level board.Level, msg string) {
	icon := "❌ "
	switch level {
	case board.LevelSuccess:
		if strings.ContainsAny(msg, "✅🎉") {
			icon = ""
		} else {
			icon = "✅ "
		}
	case board.LevelInfo:
		icon = "ℹ️ "
	}
	if err := b.sendText(chatID, icon+escape(msg)); err != nil {
		b.log.WithError(err).WithField("chat_id", chatID).Warn("send notification")
	}
}

func (b *Bot) onSearchSettled(chatID int64, view board.View) {
	if !b.isSearching(chatID) {
		return
	}
	if err := b.sendView(chatID, view); err != nil {
		b.log.WithError(err).WithField("chat_id", chatID).Warn("send search results")
	}
}

// SendDailyReport sends the summary to the owner chat, or to every chat seen
// since start when no owner is configured.
func (b *Bot) SendDailyReport(ctx context.Context) error {
	recipients := b.knownChats()
	if b.opts.AllowedChatID != 0 {
		recipients = []int64{b.opts.AllowedChatID}
	}
	if len(recipients) == 0 {
		return nil
	}
	text, err := b.summary.DailySummary(ctx, b.now().In(b.opts.Location))
	if err != nil {
		return err
	}
	for _, chatID := range recipients {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := b.sendText(chatID, text); err != nil {
			b.log.WithError(err).WithField("chat_id", chatID).Warn("send summary")
		}
	}
	return nil
}

func (b *Bot) getConfirmation(chatID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[chatID]
	return req, ok
}

func (b *Bot) setConfirmation(chatID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[chatID] = req
}

func (b *Bot) clearConfirmation(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, chatID)
}

func (b *Bot) setConversation(chatID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[chatID] = state
}

func (b *Bot) getConversation(chatID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[chatID]
}

func (b *Bot) clearConversation(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, chatID)
}

func (b *Bot) setSearching(chatID int64, on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if on {
		b.searching[chatID] = true
		return
	}
	delete(b.searching, chatID)
}

func (b *Bot) isSearching(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.searching[chatID]
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}
