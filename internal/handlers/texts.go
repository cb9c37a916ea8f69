package handlers

import (
	"context"
	"errors"

	"telegram-ai-diary/internal/messages"
	"telegram-ai-diary/internal/models"
)

// HandleText answers a plain text message according to the chat's mode.
func (h *Handler) HandleText(ctx context.Context, chatID int64, text string) {
	unlock := h.locks.lock(chatID)
	defer unlock()

	rec, err := h.DB.Get(ctx, chatID)
	if err != nil {
		h.Log.Error("load chat", "chat_id", chatID, "error", err)
		return
	}
	mode := models.ModeNone
	if rec != nil {
		mode = rec.Mode
	}
	log := h.Log.With("chat_id", chatID, "mode", mode.String())

	switch mode {
	case models.ModePlan:
		advice := h.generate(ctx, chatID, messages.Render(h.Texts.Prompts.Plan, text))
		_, err = h.DB.Update(ctx, chatID, func(r *models.ChatRecord) error {
			r.AppendDiary(models.DiaryPlan, text)
			return r.Apply(models.EventPlanSubmitted)
		})
		if err != nil {
			log.Error("save plan", "error", err)
			return
		}
		h.sendLong(chatID, messages.Render(h.Texts.PlanAccepted, advice))

	case models.ModeSchedule:
		tasks, err := models.ParseSchedule(text)
		if err != nil {
			var lineErr *models.ScheduleLineError
			line := text
			if errors.As(err, &lineErr) {
				line = lineErr.Line
			}
			log.Info("schedule rejected", "error", err)
			h.send(chatID, messages.Render(h.Texts.ScheduleLineError, line))
			return
		}
		_, err = h.DB.Update(ctx, chatID, func(r *models.ChatRecord) error {
			r.Tasks = tasks
			return r.Apply(models.EventScheduleAccepted)
		})
		if err != nil {
			log.Error("save schedule", "error", err)
			return
		}
		if h.Reminders != nil {
			if _, err := h.Reminders.Replace(chatID, tasks); err != nil {
				log.Error("schedule reminders", "error", err)
			}
		}
		h.send(chatID, h.Texts.ScheduleAccepted)

	case models.ModeReflect:
		reply := h.generate(ctx, chatID, messages.Render(h.Texts.Prompts.Reflection, text))
		_, err = h.DB.Update(ctx, chatID, func(r *models.ChatRecord) error {
			r.AppendDiary(models.DiaryReflection, text)
			return r.Apply(models.EventReflectionSubmitted)
		})
		if err != nil {
			log.Error("save reflection", "error", err)
			return
		}
		h.sendLong(chatID, messages.Render(h.Texts.ReflectionReply, reply))

	default:
		// free chat, the record is only created
		if _, err := h.DB.Update(ctx, chatID, func(r *models.ChatRecord) error {
			return r.Apply(models.EventFreeText)
		}); err != nil {
			log.Error("ensure chat record", "error", err)
		}
		h.sendLong(chatID, h.generate(ctx, chatID, messages.Render(h.Texts.Prompts.Chat, text)))
	}
}
