package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/classroom_bot/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// MessageSender часть API бота, нужная для отправки (*bot.Bot подходит)
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// FacultyLookup поиск преподавателя для получения чата
type FacultyLookup interface {
	GetFaculty(ctx context.Context, id int64) (*model.Faculty, error)
}

// TelegramSink доставляет события преподавателю в привязанный чат
type TelegramSink struct {
	sender  MessageSender
	faculty FacultyLookup
}

func NewTelegramSink(sender MessageSender, faculty FacultyLookup) *TelegramSink {
	return &TelegramSink{sender: sender, faculty: faculty}
}

func (s *TelegramSink) Name() string {
	return "telegram"
}

func (s *TelegramSink) Publish(ctx context.Context, _ string, event model.LiveSessionEvent) error {
	// ACTIVE приходит каждый такт, в чат шлём только смену фазы
	if event.Status == model.LiveActive {
		return nil
	}

	faculty, err := s.faculty.GetFaculty(ctx, event.FacultyID)
	if err != nil {
		return fmt.Errorf("get faculty: %w", err)
	}
	// Чат не привязан - доставлять некуда, это не ошибка
	if faculty == nil || faculty.TelegramChatID == nil {
		return nil
	}

	_, err = s.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: *faculty.TelegramChatID,
		Text:   FormatEvent(event),
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// FormatEvent текст уведомления для преподавателя
func FormatEvent(event model.LiveSessionEvent) string {
	var b strings.Builder

	switch event.Status {
	case model.LiveUpcoming:
		b.WriteString("⏰ Скоро занятие")
	case model.LiveStarted:
		b.WriteString("🔔 Занятие начинается")
	case model.LiveActive:
		b.WriteString("📖 Идёт занятие")
	case model.LiveEnded:
		b.WriteString("🏁 Занятие заканчивается, не забудьте отметить посещаемость")
	case model.LiveCompleted:
		b.WriteString("✅ Посещаемость сохранена")
	default:
		b.WriteString(string(event.Status))
	}

	fmt.Fprintf(&b, "\n\n🕐 %s", model.FormatTimeRange(event.StartTime, event.EndTime))
	if event.SectionName != "" {
		fmt.Fprintf(&b, "\n👥 Группа: %s", event.SectionName)
	}
	if event.Room != "" {
		fmt.Fprintf(&b, "\n🚪 Аудитория: %s", event.Room)
	}
	if event.MinutesRemaining != nil {
		fmt.Fprintf(&b, "\n⏳ Осталось: %d мин", *event.MinutesRemaining)
	}
	if event.AttendancePercentage != nil {
		fmt.Fprintf(&b, "\n📊 Присутствовало: %.1f%%", *event.AttendancePercentage)
	}

	return b.String()
}
