package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-chat-api/internal/models"
)

// ChannelRepository persists channels and their member sets.
type ChannelRepository interface {
	Create(ctx context.Context, channel *models.Channel, memberIDs []string) error
	HandleExists(ctx context.Context, handle string) (bool, error)
	FindByID(ctx context.Context, id string) (models.Channel, error)
	FindWithMembersAndAdmin(ctx context.Context, id string) (models.Channel, error)
	ListForUser(ctx context.Context, userID string) ([]models.Channel, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) error
	Delete(ctx context.Context, id string) (models.Channel, error)
	AddMembers(ctx context.Context, id string, userIDs []string) ([]string, error)
	RemoveMember(ctx context.Context, id, userID string) (bool, error)
}

type channelRepository struct {
	db *gorm.DB
}

// NewChannelRepository constructs a channel repository backed by GORM.
func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &channelRepository{db: db}
}

func (r *channelRepository) Create(ctx context.Context, channel *models.Channel, memberIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(channel).Error; err != nil {
			return err
		}
		return insertMembers(tx, channel.ID, memberIDs)
	})
}

func (r *channelRepository) HandleExists(ctx context.Context, handle string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Channel{}).Where("handle = ?", handle).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *channelRepository) FindByID(ctx context.Context, id string) (models.Channel, error) {
	var channel models.Channel
	if err := r.db.WithContext(ctx).Preload("Admin").First(&channel, "id = ?", id).Error; err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}

func (r *channelRepository) FindWithMembersAndAdmin(ctx context.Context, id string) (models.Channel, error) {
	var channel models.Channel
	err := r.db.WithContext(ctx).
		Preload("Admin").
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Members.User").
		First(&channel, "id = ?", id).Error
	if err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}

func (r *channelRepository) ListForUser(ctx context.Context, userID string) ([]models.Channel, error) {
	memberOf := r.db.Model(&models.ChannelMember{}).Select("channel_id").Where("user_id = ?", userID)

	var channels []models.Channel
	err := r.db.WithContext(ctx).
		Preload("Admin").
		Where("admin_id = ? OR id IN (?)", userID, memberOf).
		Order("updated_at DESC").
		Find(&channels).Error
	if err != nil {
		return nil, err
	}
	return channels, nil
}

func (r *channelRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Channel{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the channel together with its member set and message list,
// returning the channel as it was (members loaded) so callers can notify.
func (r *channelRepository) Delete(ctx context.Context, id string) (models.Channel, error) {
	var deleted models.Channel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Members").First(&deleted, "id = ?", id).Error; err != nil {
			return err
		}

		messageIDs := tx.Model(&models.ChannelMessageRef{}).Select("message_id").Where("channel_id = ?", id)
		if err := tx.Where("id IN (?)", messageIDs).Delete(&models.ChannelMessage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("channel_id = ?", id).Delete(&models.ChannelMessageRef{}).Error; err != nil {
			return err
		}
		if err := tx.Where("channel_id = ?", id).Delete(&models.ChannelMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Channel{}, "id = ?", id).Error
	})
	if err != nil {
		return models.Channel{}, err
	}
	return deleted, nil
}

// AddMembers inserts users into the member set and returns the ids that were
// not already members.
func (r *channelRepository) AddMembers(ctx context.Context, id string, userIDs []string) ([]string, error) {
	var added []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Channel{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}

		var existing []string
		if err := tx.Model(&models.ChannelMember{}).
			Where("channel_id = ? AND user_id IN ?", id, userIDs).
			Pluck("user_id", &existing).Error; err != nil {
			return err
		}

		present := make(map[string]struct{}, len(existing))
		for _, userID := range existing {
			present[userID] = struct{}{}
		}
		for _, userID := range userIDs {
			if _, ok := present[userID]; ok {
				continue
			}
			present[userID] = struct{}{}
			added = append(added, userID)
		}

		if err := insertMembers(tx, id, added); err != nil {
			return err
		}
		return tx.Model(&models.Channel{}).Where("id = ?", id).UpdateColumn("updated_at", time.Now().UTC()).Error
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// RemoveMember pulls a user from the member set, reporting whether they were a member.
func (r *channelRepository) RemoveMember(ctx context.Context, id, userID string) (bool, error) {
	result := r.db.WithContext(ctx).Where("channel_id = ? AND user_id = ?", id, userID).Delete(&models.ChannelMember{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func insertMembers(tx *gorm.DB, channelID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}

	members := make([]models.ChannelMember, 0, len(userIDs))
	for _, userID := range userIDs {
		members = append(members, models.ChannelMember{ChannelID: channelID, UserID: userID})
	}
	return tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error
}
