package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-chat-api/internal/models"
)

// ChannelMessageRepository persists channel messages and each channel's
// ordered message list.
type ChannelMessageRepository interface {
	Create(ctx context.Context, message *models.ChannelMessage) error
	FindPopulated(ctx context.Context, id string) (models.ChannelMessage, error)
	DeleteByID(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) (bool, error)
	FindInChannel(ctx context.Context, channelID, messageID string) (models.ChannelMessage, error)
	DeleteFromChannel(ctx context.Context, channelID, messageID string) error
	AppendToChannel(ctx context.Context, channelID, messageID string) error
	ListByChannel(ctx context.Context, channelID string, limit int) ([]models.ChannelMessage, error)
}

type channelMessageRepository struct {
	db *gorm.DB
}

// NewChannelMessageRepository constructs a channel message repository backed by GORM.
func NewChannelMessageRepository(db *gorm.DB) ChannelMessageRepository {
	return &channelMessageRepository{db: db}
}

func (r *channelMessageRepository) Create(ctx context.Context, message *models.ChannelMessage) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(message).Error
}

func (r *channelMessageRepository) FindPopulated(ctx context.Context, id string) (models.ChannelMessage, error) {
	var message models.ChannelMessage
	if err := r.db.WithContext(ctx).Preload("Sender").First(&message, "id = ?", id).Error; err != nil {
		return models.ChannelMessage{}, err
	}
	return message, nil
}

// DeleteByID hard-deletes a message. A missing row is reported as gorm.ErrRecordNotFound.
func (r *channelMessageRepository) DeleteByID(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.ChannelMessage{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SoftDelete turns a message into a tombstone. It reports false without
// touching the row when the message is already deleted, and
// gorm.ErrRecordNotFound when it does not exist.
func (r *channelMessageRepository) SoftDelete(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ChannelMessage{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]interface{}{
			"is_deleted":   true,
			"content":      "",
			"file_url":     "",
			"message_type": "",
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ChannelMessage{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, gorm.ErrRecordNotFound
	}
	return false, nil
}

// AppendToChannel adds the message to the end of the channel's list. An
// unknown channel is reported as gorm.ErrRecordNotFound.
func (r *channelMessageRepository) AppendToChannel(ctx context.Context, channelID, messageID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Channel{}).Where("id = ?", channelID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}

		ref := models.ChannelMessageRef{ChannelID: channelID, MessageID: messageID}
		if err := tx.Create(&ref).Error; err != nil {
			return err
		}
		return tx.Model(&models.Channel{}).Where("id = ?", channelID).UpdateColumn("updated_at", time.Now().UTC()).Error
	})
}

// FindInChannel loads a message only if it is listed in the given channel.
// Anything else is reported as gorm.ErrRecordNotFound.
func (r *channelMessageRepository) FindInChannel(ctx context.Context, channelID, messageID string) (models.ChannelMessage, error) {
	var message models.ChannelMessage
	err := r.db.WithContext(ctx).
		Select("channel_messages.*").
		Joins("JOIN channel_message_refs ON channel_message_refs.message_id = channel_messages.id").
		Where("channel_message_refs.channel_id = ? AND channel_message_refs.message_id = ?", channelID, messageID).
		First(&message).Error
	if err != nil {
		return models.ChannelMessage{}, err
	}
	return message, nil
}

// DeleteFromChannel pulls the message from the channel list and hard-deletes
// it in one transaction. A message not listed in the channel is reported as
// gorm.ErrRecordNotFound and nothing changes.
func (r *channelMessageRepository) DeleteFromChannel(ctx context.Context, channelID, messageID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("channel_id = ? AND message_id = ?", channelID, messageID).Delete(&models.ChannelMessageRef{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Delete(&models.ChannelMessage{}, "id = ?", messageID).Error
	})
}

func (r *channelMessageRepository) ListByChannel(ctx context.Context, channelID string, limit int) ([]models.ChannelMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var messages []models.ChannelMessage
	err := r.db.WithContext(ctx).
		Select("channel_messages.*").
		Preload("Sender").
		Joins("JOIN channel_message_refs ON channel_message_refs.message_id = channel_messages.id").
		Where("channel_message_refs.channel_id = ?", channelID).
		Order("channel_message_refs.id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
