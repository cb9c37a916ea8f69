package handlers

import (
	"context"

	"telegram-ai-diary/internal/messages"
	"telegram-ai-diary/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// --- morning / evening messages ----------

// SendMorning greets every known chat with a generated message and asks
// for the day's plan.
func (h *Handler) SendMorning(ctx context.Context) {
	h.eachChat(ctx, "morning", func(chatID int64) {
		motivation := h.generate(ctx, chatID, h.Texts.Prompts.Morning)
		if !h.setMode(ctx, chatID, models.EventMorningPrompt) {
			return
		}
		h.sendLong(chatID, messages.Render(h.Texts.Morning, motivation))
	})
}

// SendEvening asks every known chat how the day went.
func (h *Handler) SendEvening(ctx context.Context) {
	h.eachChat(ctx, "evening", func(chatID int64) {
		if !h.setMode(ctx, chatID, models.EventEveningPrompt) {
			return
		}
		h.send(chatID, h.Texts.Evening)
	})
}

// eachChat runs fn for every stored chat, holding that chat's lock.
func (h *Handler) eachChat(ctx context.Context, routine string, fn func(chatID int64)) {
	ids, err := h.DB.ChatIDs(ctx)
	if err != nil {
		h.Log.Error("list chats", "routine", routine, "error", err)
		return
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			h.Log.Warn("routine interrupted", "routine", routine, "error", ctx.Err())
			return
		}
		unlock := h.locks.lock(id)
		fn(id)
		unlock()
	}
}

func (h *Handler) setMode(ctx context.Context, chatID int64, ev models.Event) bool {
	_, err := h.DB.Update(ctx, chatID, func(r *models.ChatRecord) error {
		return r.Apply(ev)
	})
	if err != nil {
		h.Log.Error("set mode", "chat_id", chatID, "event", ev.String(), "error", err)
		return false
	}
	return true
}

// Notify delivers a reminder. The text is split like any other long reply.
func (h *Handler) Notify(chatID int64, text string) error {
	for _, part := range messages.Chunk(text, messages.MaxMessageLen) {
		if _, err := h.Bot.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			return err
		}
	}
	return nil
}

// sendLong sends text in chunks of at most MaxMessageLen characters.
// Delivery failures are logged and the remaining chunks dropped.
func (h *Handler) sendLong(chatID int64, text string) {
	if err := h.Notify(chatID, text); err != nil {
		h.Log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) send(chatID int64, text string) {
	if _, err := h.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		h.Log.Error("send message", "chat_id", chatID, "error", err)
	}
}
