package handlers

import (
	"context"

	"telegram-ai-diary/internal/models"
)

// ---------------- /start --------------------
func (h *Handler) HandleStart(ctx context.Context, chatID int64) {
	unlock := h.locks.lock(chatID)
	defer unlock()

	// no-op update: creates the record with defaults, keeps an existing one as is
	if _, err := h.DB.Update(ctx, chatID, func(*models.ChatRecord) error { return nil }); err != nil {
		h.Log.Error("ensure chat record", "chat_id", chatID, "error", err)
	}
	h.send(chatID, h.Texts.Greeting)
}
