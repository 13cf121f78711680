package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-chat-api/internal/models"
)

// UserRepository persists chat profiles and resolves display fields.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	Exists(ctx context.Context, username, email string) (bool, error)
	Search(ctx context.Context, query, excludeID string, limit int) ([]models.User, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) (models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a user repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Exists reports whether a user already holds the username or email.
func (r *userRepository) Exists(ctx context.Context, username, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("LOWER(username) = ? OR LOWER(email) = ?", strings.ToLower(username), strings.ToLower(email)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) Search(ctx context.Context, query, excludeID string, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	builder := r.db.WithContext(ctx).Model(&models.User{})
	if excludeID != "" {
		builder = builder.Where("id <> ?", excludeID)
	}
	if term := strings.ToLower(strings.TrimSpace(query)); term != "" {
		like := "%" + term + "%"
		builder = builder.Where("(LOWER(username) LIKE ? OR LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?)", like, like, like)
	}

	var users []models.User
	if err := builder.Order("username ASC").Limit(limit).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Update applies column updates and returns the stored profile. A missing row
// is reported as gorm.ErrRecordNotFound.
func (r *userRepository) Update(ctx context.Context, id string, updates map[string]interface{}) (models.User, error) {
	if len(updates) > 0 {
		result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return models.User{}, result.Error
		}
		if result.RowsAffected == 0 {
			return models.User{}, gorm.ErrRecordNotFound
		}
	}
	return r.FindByID(ctx, id)
}
