package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/classroom_bot/internal/model"
)

var weekdayNames = map[time.Weekday]string{
	time.Sunday:    "Воскресенье",
	time.Monday:    "Понедельник",
	time.Tuesday:   "Вторник",
	time.Wednesday: "Среда",
	time.Thursday:  "Четверг",
	time.Friday:    "Пятница",
	time.Saturday:  "Суббота",
}

// weekdayName возвращает название дня недели на русском
func weekdayName(day time.Weekday) string {
	return weekdayNames[day]
}

// pluralizeLessons возвращает правильное склонение слова "занятие"
func pluralizeLessons(count int) string {
	if count%10 == 1 && count%100 != 11 {
		return "занятие"
	}
	if count%10 >= 2 && count%10 <= 4 && (count%100 < 10 || count%100 >= 20) {
		return "занятия"
	}
	return "занятий"
}

// formatSlot строка расписания: время, группа, аудитория
func formatSlot(slot *model.TimeSlot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🕐 %s", model.FormatTimeRange(slot.StartTime, slot.EndTime))
	if name := slot.SectionName(); name != "" {
		fmt.Fprintf(&b, " • 👥 %s", name)
	}
	if room := slot.RoomName(); room != "" {
		fmt.Fprintf(&b, " • 🚪 %s", room)
	}
	return b.String()
}

func formatSlots(header string, slots []*model.TimeSlot) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	for _, slot := range slots {
		b.WriteString("\n")
		b.WriteString(formatSlot(slot))
	}
	return b.String()
}
