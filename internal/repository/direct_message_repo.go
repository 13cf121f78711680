package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-chat-api/internal/models"
)

// DirectMessageRepository persists one-to-one messages.
type DirectMessageRepository interface {
	Create(ctx context.Context, message *models.DirectMessage) error
	FindPopulated(ctx context.Context, id string) (models.DirectMessage, error)
	DeleteByID(ctx context.Context, id string) error
	ListConversation(ctx context.Context, userID, peerID string, before time.Time, limit int) ([]models.DirectMessage, error)
	ListContacts(ctx context.Context, userID string) ([]Contact, error)
}

// Contact is a user the caller has exchanged direct messages with.
type Contact struct {
	User          models.User
	LastMessageAt time.Time
}

type directMessageRepository struct {
	db *gorm.DB
}

// NewDirectMessageRepository constructs a direct message repository backed by GORM.
func NewDirectMessageRepository(db *gorm.DB) DirectMessageRepository {
	return &directMessageRepository{db: db}
}

func (r *directMessageRepository) Create(ctx context.Context, message *models.DirectMessage) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(message).Error
}

func (r *directMessageRepository) FindPopulated(ctx context.Context, id string) (models.DirectMessage, error) {
	var message models.DirectMessage
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Receiver").
		First(&message, "id = ?", id).Error
	if err != nil {
		return models.DirectMessage{}, err
	}
	return message, nil
}

// DeleteByID hard-deletes a message. A missing row is reported as gorm.ErrRecordNotFound.
func (r *directMessageRepository) DeleteByID(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.DirectMessage{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *directMessageRepository) ListConversation(ctx context.Context, userID, peerID string, before time.Time, limit int) ([]models.DirectMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Receiver").
		Where("((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))", userID, peerID, peerID, userID)
	if !before.IsZero() {
		query = query.Where("sent_at < ?", before)
	}

	var messages []models.DirectMessage
	if err := query.Order("sent_at DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}

	// Reverse to chronological order ascending for clients.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// ListContacts returns every peer the user has messaged or been messaged by,
// most recent conversation first.
func (r *directMessageRepository) ListContacts(ctx context.Context, userID string) ([]Contact, error) {
	var rows []struct {
		SenderID   string
		ReceiverID string
		SentAt     time.Time
	}
	err := r.db.WithContext(ctx).
		Model(&models.DirectMessage{}).
		Select("sender_id", "receiver_id", "sent_at").
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("sent_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	order := make([]string, 0)
	latest := make(map[string]time.Time)
	for _, row := range rows {
		peerID := row.SenderID
		if peerID == userID {
			peerID = row.ReceiverID
		}
		if _, seen := latest[peerID]; seen {
			continue
		}
		latest[peerID] = row.SentAt
		order = append(order, peerID)
	}
	if len(order) == 0 {
		return []Contact{}, nil
	}

	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", order).Find(&users).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}

	contacts := make([]Contact, 0, len(order))
	for _, peerID := range order {
		user, ok := byID[peerID]
		if !ok {
			continue
		}
		contacts = append(contacts, Contact{User: user, LastMessageAt: latest[peerID]})
	}
	return contacts, nil
}
