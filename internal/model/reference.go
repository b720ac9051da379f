package model

// Room аудитория
type Room struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// Section учебная группа
type Section struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Strength int    `json:"strength"` // количество студентов
}

// Faculty преподаватель
type Faculty struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	TelegramChatID *int64 `json:"telegram_chat_id,omitempty"` // nil - Telegram не привязан
}
