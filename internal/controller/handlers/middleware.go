package handlers

import (
	"context"

	"github.com/Freeeeeet/classroom_bot/internal/model"
	"github.com/Freeeeeet/classroom_bot/internal/notify"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// requireFaculty проверяет что чат привязан к преподавателю
// Возвращает преподавателя и true если OK, nil и false если нет
func (h *Handlers) requireFaculty(ctx context.Context, s notify.MessageSender, update *models.Update) (*model.Faculty, bool) {
	if update.Message == nil {
		return nil, false
	}

	chatID := update.Message.Chat.ID
	faculty, err := h.faculty.GetFacultyByTelegramChat(ctx, chatID)
	if err != nil {
		h.logger.Error("Failed to get faculty", zap.Int64("chat_id", chatID), zap.Error(err))
		h.sendError(ctx, s, chatID, "❌ Произошла ошибка. Попробуйте позже.")
		return nil, false
	}

	if faculty == nil {
		h.sendError(ctx, s, chatID, "❌ Чат не привязан к преподавателю.\n\nОтправьте /start <код привязки>")
		return nil, false
	}

	return faculty, true
}
