package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a chat participant profile.
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Username     string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	FullName     string    `gorm:"size:128;not null" json:"fullName"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	ProfileImage *string   `gorm:"size:512" json:"profileImage"`
	Bio          string    `gorm:"type:text;default:bio" json:"bio"`
	Color        int       `gorm:"not null;default:0" json:"color"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when the caller did not supply one.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
