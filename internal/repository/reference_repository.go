package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/classroom_bot/internal/model"
	"github.com/Freeeeeet/classroom_bot/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReferenceRepository справочники: аудитории, группы, преподаватели.
// CRUD справочников живёт в другом сервисе, здесь только чтение.
type ReferenceRepository struct {
	*base.Repository
}

func NewReferenceRepository(pool *pgxpool.Pool) *ReferenceRepository {
	return &ReferenceRepository{Repository: base.NewRepository(pool)}
}

// GetRoom получает аудиторию по ID
func (r *ReferenceRepository) GetRoom(ctx context.Context, id int64) (*model.Room, error) {
	var room model.Room
	err := r.Pool().QueryRow(ctx, `SELECT id, name, capacity FROM rooms WHERE id = $1`, id).
		Scan(&room.ID, &room.Name, &room.Capacity)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get room by id: %w", err)
	}
	return &room, nil
}

// GetSection получает группу по ID
func (r *ReferenceRepository) GetSection(ctx context.Context, id int64) (*model.Section, error) {
	var section model.Section
	err := r.Pool().QueryRow(ctx, `SELECT id, name, strength FROM sections WHERE id = $1`, id).
		Scan(&section.ID, &section.Name, &section.Strength)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get section by id: %w", err)
	}
	return &section, nil
}

// GetFaculty получает преподавателя по ID
func (r *ReferenceRepository) GetFaculty(ctx context.Context, id int64) (*model.Faculty, error) {
	var faculty model.Faculty
	err := r.Pool().QueryRow(ctx, `SELECT id, name, telegram_chat_id FROM faculty WHERE id = $1`, id).
		Scan(&faculty.ID, &faculty.Name, &faculty.TelegramChatID)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get faculty by id: %w", err)
	}
	return &faculty, nil
}

// GetFacultyByTelegramChat получает преподавателя по привязанному чату
func (r *ReferenceRepository) GetFacultyByTelegramChat(ctx context.Context, chatID int64) (*model.Faculty, error) {
	var faculty model.Faculty
	err := r.Pool().QueryRow(ctx, `SELECT id, name, telegram_chat_id FROM faculty WHERE telegram_chat_id = $1`, chatID).
		Scan(&faculty.ID, &faculty.Name, &faculty.TelegramChatID)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get faculty by telegram chat: %w", err)
	}
	return &faculty, nil
}

// LinkTelegramChat привязывает чат к преподавателю по коду приглашения
func (r *ReferenceRepository) LinkTelegramChat(ctx context.Context, linkCode string, chatID int64) (*model.Faculty, error) {
	query := `
		UPDATE faculty
		SET telegram_chat_id = $1, telegram_link_code = NULL
		WHERE telegram_link_code = $2
		RETURNING id, name, telegram_chat_id
	`

	var faculty model.Faculty
	err := r.Pool().QueryRow(ctx, query, chatID, linkCode).Scan(&faculty.ID, &faculty.Name, &faculty.TelegramChatID)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		if base.IsUniqueViolation(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("link telegram chat: %w", err)
	}
	return &faculty, nil
}
