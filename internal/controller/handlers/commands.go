package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Freeeeeet/classroom_bot/internal/model"
	"github.com/Freeeeeet/classroom_bot/internal/notify"
	"github.com/Freeeeeet/classroom_bot/internal/repository"
	"github.com/Freeeeeet/classroom_bot/internal/tracker"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const helpText = "📚 Справка по командам:\n\n" +
	"/start <код> - Привязать чат к преподавателю\n" +
	"/today - Занятия на сегодня\n" +
	"/pending - Занятия без отмеченной посещаемости\n" +
	"/live - Идущие сейчас занятия\n" +
	"/help - Показать эту справку\n\n" +
	"Уведомления о начале и конце занятий приходят в этот чат автоматически."

// HandleStart обрабатывает команду /start и /start <код привязки>
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.start(ctx, b, update)
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.help(ctx, b, update)
}

// HandleToday обрабатывает команду /today
func (h *Handlers) HandleToday(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.today(ctx, b, update)
}

// HandlePending обрабатывает команду /pending
func (h *Handlers) HandlePending(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.pendingAttendance(ctx, b, update)
}

// HandleLive обрабатывает команду /live
func (h *Handlers) HandleLive(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.liveSessions(ctx, b, update)
}

func (h *Handlers) start(ctx context.Context, s notify.MessageSender, update *models.Update) {
	if update.Message == nil {
		return
	}

	chatID := update.Message.Chat.ID
	code := strings.TrimSpace(strings.TrimPrefix(update.Message.Text, "/start"))

	if code == "" {
		faculty, err := h.faculty.GetFacultyByTelegramChat(ctx, chatID)
		if err != nil {
			h.logger.Error("Failed to get faculty", zap.Int64("chat_id", chatID), zap.Error(err))
			h.sendError(ctx, s, chatID, "❌ Произошла ошибка. Попробуйте позже.")
			return
		}
		if faculty == nil {
			h.sendMessage(ctx, s, chatID,
				"👋 Привет!\n\n"+
					"Этот бот присылает уведомления о ваших занятиях и напоминает отметить посещаемость.\n\n"+
					"Чтобы привязать чат, отправьте /start <код привязки> из личного кабинета.")
			return
		}
		h.sendMessage(ctx, s, chatID, fmt.Sprintf("👋 %s, чат уже привязан.\n\n%s", faculty.Name, helpText))
		return
	}

	faculty, err := h.faculty.LinkTelegramChat(ctx, code, chatID)
	if errors.Is(err, repository.ErrAlreadyExists) {
		h.sendError(ctx, s, chatID, "❌ Этот чат уже привязан к другому преподавателю.")
		return
	}
	if err != nil {
		h.logger.Error("Failed to link telegram chat", zap.Int64("chat_id", chatID), zap.Error(err))
		h.sendError(ctx, s, chatID, "❌ Произошла ошибка при привязке. Попробуйте позже.")
		return
	}
	if faculty == nil {
		h.sendError(ctx, s, chatID, "❌ Код привязки не найден или уже использован.")
		return
	}

	h.logger.Info("Telegram chat linked",
		zap.Int64("faculty_id", faculty.ID),
		zap.Int64("chat_id", chatID))

	h.sendMessage(ctx, s, chatID, fmt.Sprintf("✅ %s, чат привязан!\n\n%s", faculty.Name, helpText))
}

func (h *Handlers) help(ctx context.Context, s notify.MessageSender, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendMessage(ctx, s, update.Message.Chat.ID, helpText)
}

func (h *Handlers) today(ctx context.Context, s notify.MessageSender, update *models.Update) {
	faculty, ok := h.requireFaculty(ctx, s, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	slots, err := h.schedule.FindByFaculty(ctx, faculty.ID)
	if err != nil {
		h.logger.Error("Failed to get faculty schedule", zap.Int64("faculty_id", faculty.ID), zap.Error(err))
		h.sendError(ctx, s, chatID, "❌ Не удалось загрузить расписание.")
		return
	}

	now := h.clock.Now()
	var todays []*model.TimeSlot
	for _, slot := range slots {
		if slot.IsBreak || slot.DayOfWeek != now.Weekday() {
			continue
		}
		todays = append(todays, slot)
	}

	if len(todays) == 0 {
		h.sendMessage(ctx, s, chatID, "📭 Сегодня занятий нет.")
		return
	}

	sortByStart(todays)
	header := fmt.Sprintf("🗓 %s, %s: %d %s",
		weekdayName(now.Weekday()),
		now.Format("02.01.2006"),
		len(todays),
		pluralizeLessons(len(todays)))
	h.sendMessage(ctx, s, chatID, formatSlots(header, todays))
}

func (h *Handlers) pendingAttendance(ctx context.Context, s notify.MessageSender, update *models.Update) {
	faculty, ok := h.requireFaculty(ctx, s, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	slots, err := h.pending.PendingAttendance(ctx, h.clock.Now())
	if err != nil {
		h.logger.Error("Failed to get pending attendance", zap.Int64("faculty_id", faculty.ID), zap.Error(err))
		h.sendError(ctx, s, chatID, "❌ Не удалось получить список занятий.")
		return
	}

	var mine []*model.TimeSlot
	for _, slot := range slots {
		if slot.HasFaculty() && *slot.InchargeFacultyID == faculty.ID {
			mine = append(mine, slot)
		}
	}

	if len(mine) == 0 {
		h.sendMessage(ctx, s, chatID, "✅ Вся посещаемость за сегодня отмечена.")
		return
	}

	sortByStart(mine)
	header := fmt.Sprintf("📝 Не отмечена посещаемость: %d %s", len(mine), pluralizeLessons(len(mine)))
	h.sendMessage(ctx, s, chatID, formatSlots(header, mine))
}

func (h *Handlers) liveSessions(ctx context.Context, s notify.MessageSender, update *models.Update) {
	faculty, ok := h.requireFaculty(ctx, s, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	var mine []tracker.ActiveSession
	for _, session := range h.live.Snapshot() {
		if session.FacultyID == faculty.ID {
			mine = append(mine, session)
		}
	}

	if len(mine) == 0 {
		h.sendMessage(ctx, s, chatID, "😴 Сейчас занятий нет.")
		return
	}

	now := h.clock.Now()
	var b strings.Builder
	b.WriteString("📖 Идут занятия:\n")
	for _, session := range mine {
		fmt.Fprintf(&b, "\n🕐 %s", model.FormatTimeRange(session.StartTime, session.EndTime))
		if session.SectionName != "" {
			fmt.Fprintf(&b, " • 👥 %s", session.SectionName)
		}
		if session.Room != "" {
			fmt.Fprintf(&b, " • 🚪 %s", session.Room)
		}
		left := int(session.EndsAt.Sub(now).Minutes())
		if left < 0 {
			left = 0
		}
		fmt.Fprintf(&b, "\n⏳ Осталось: %d мин", left)
	}
	h.sendMessage(ctx, s, chatID, b.String())
}

// sortByStart строки "HH:MM[:SS]" сравниваются лексикографически
func sortByStart(slots []*model.TimeSlot) {
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].StartTime < slots[j].StartTime
	})
}
