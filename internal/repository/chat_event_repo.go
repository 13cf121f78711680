package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-chat-api/internal/models"
)

// ChatEventRepository persists the domain event log.
type ChatEventRepository interface {
	Append(ctx context.Context, name string, payload []byte, recordedAt time.Time) error
	ListRecent(ctx context.Context, name string, limit int) ([]models.ChatEvent, error)
}

type chatEventRepository struct {
	db *gorm.DB
}

// NewChatEventRepository constructs the event log repository.
func NewChatEventRepository(db *gorm.DB) ChatEventRepository {
	return &chatEventRepository{db: db}
}

func (r *chatEventRepository) Append(ctx context.Context, name string, payload []byte, recordedAt time.Time) error {
	entry := models.ChatEvent{
		Name:       name,
		Payload:    datatypes.JSON(payload),
		RecordedAt: recordedAt,
	}
	return r.db.WithContext(ctx).Create(&entry).Error
}

// ListRecent returns the newest events first, optionally narrowed to one name.
func (r *chatEventRepository) ListRecent(ctx context.Context, name string, limit int) ([]models.ChatEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := r.db.WithContext(ctx).Model(&models.ChatEvent{})
	if name != "" {
		query = query.Where("name = ?", name)
	}

	var events []models.ChatEvent
	if err := query.Order("recorded_at DESC").Order("id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
