package handlers

import (
	"context"
	"log/slog"
	"sync"

	"telegram-ai-diary/internal/llm"
	"telegram-ai-diary/internal/messages"
	"telegram-ai-diary/internal/models"
	"telegram-ai-diary/internal/reminders"
	"telegram-ai-diary/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot is the part of *tgbotapi.BotAPI the handlers use.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Scheduler replaces the pending reminders of a chat.
type Scheduler interface {
	Replace(chatID int64, tasks []models.Task) ([]reminders.Reminder, error)
}

type Handler struct {
	Bot       Bot
	DB        storage.Store
	LLM       llm.Generator
	Reminders Scheduler
	Texts     messages.Texts
	Log       *slog.Logger

	locks  chatLocks
	queues chatQueues
}

func NewHandler(bot Bot, db storage.Store, gen llm.Generator, texts messages.Texts, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Bot:   bot,
		DB:    db,
		LLM:   gen,
		Texts: texts,
		Log:   logger.With("component", "handlers"),
	}
}

// Wait blocks until every dispatched update has been handled.
func (h *Handler) Wait() {
	h.queues.wg.Wait()
}

// generate never fails: any error is logged and replaced by the fallback text.
func (h *Handler) generate(ctx context.Context, chatID int64, prompt string) string {
	text, err := h.LLM.Generate(ctx, prompt)
	if err != nil {
		h.Log.Error("generation failed", "chat_id", chatID, "error", err)
		return h.Texts.Fallback
	}
	return text
}

// chatLocks serialises every read-modify-write of one chat.
type chatLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func (l *chatLocks) lock(chatID int64) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[int64]*sync.Mutex)
	}
	m, ok := l.locks[chatID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[chatID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// chatQueues runs jobs of one chat in arrival order and jobs of different
// chats in parallel. A chat's goroutine exits once its queue is empty.
type chatQueues struct {
	mu      sync.Mutex
	pending map[int64][]func()
	wg      sync.WaitGroup
}

func (q *chatQueues) enqueue(chatID int64, job func()) {
	q.mu.Lock()
	if q.pending == nil {
		q.pending = make(map[int64][]func())
	}
	jobs, running := q.pending[chatID]
	q.pending[chatID] = append(jobs, job)
	if !running {
		q.wg.Add(1)
	}
	q.mu.Unlock()

	if !running {
		go q.drain(chatID)
	}
}

func (q *chatQueues) drain(chatID int64) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		jobs := q.pending[chatID]
		if len(jobs) == 0 {
			delete(q.pending, chatID)
			q.mu.Unlock()
			return
		}
		job := jobs[0]
		q.pending[chatID] = jobs[1:]
		q.mu.Unlock()

		job()
	}
}
