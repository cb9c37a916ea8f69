package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Dispatch queues an update on its chat's queue and returns immediately.
func (h *Handler) Dispatch(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	h.queues.enqueue(msg.Chat.ID, func() { h.HandleMessage(ctx, msg) })
}

// HandleMessage routes /start to HandleStart and plain text to HandleText.
// Other commands and non-text messages are ignored.
func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch {
	case msg.IsCommand():
		if msg.Command() == "start" {
			h.HandleStart(ctx, chatID)
			return
		}
		h.Log.Debug("unknown command ignored", "chat_id", chatID, "command", msg.Command())
	case msg.Text != "":
		h.HandleText(ctx, chatID, msg.Text)
	}
}
