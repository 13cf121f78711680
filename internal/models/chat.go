package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message types accepted for direct and channel messages.
const (
	MessageTypeText = "text"
	MessageTypeFile = "file"
)

// DirectMessage is a one-to-one message. Deletion is permanent.
type DirectMessage struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	SenderID    string    `gorm:"size:36;index;not null" json:"senderId"`
	ReceiverID  string    `gorm:"size:36;index;not null" json:"receiverId"`
	Sender      User      `gorm:"foreignKey:SenderID" json:"sender"`
	Receiver    User      `gorm:"foreignKey:ReceiverID" json:"receiver"`
	MessageType string    `gorm:"size:16;not null" json:"messageType"`
	Content     string    `gorm:"type:text" json:"content,omitempty"`
	FileURL     string    `gorm:"size:1024" json:"fileURL,omitempty"`
	Timestamp   time.Time `gorm:"column:sent_at;index" json:"timestamp"`
	IsRead      bool      `gorm:"not null;default:false" json:"isRead"`
}

// BeforeCreate assigns identifiers and the send timestamp.
func (m *DirectMessage) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return nil
}

// ChannelMessage is a message posted into a channel. Once IsDeleted is set the
// record is a tombstone and never changes again.
type ChannelMessage struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	SenderID    string    `gorm:"size:36;index;not null" json:"senderId"`
	Sender      User      `gorm:"foreignKey:SenderID" json:"sender"`
	MessageType string    `gorm:"size:16" json:"messageType,omitempty"`
	Content     string    `gorm:"type:text" json:"content,omitempty"`
	FileURL     string    `gorm:"size:1024" json:"fileURL,omitempty"`
	Timestamp   time.Time `gorm:"column:sent_at;index" json:"timestamp"`
	IsDeleted   bool      `gorm:"not null;default:false" json:"isDeleted"`
}

// BeforeCreate assigns identifiers and the send timestamp.
func (m *ChannelMessage) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return nil
}

// Channel is a multi-member conversation owned by a single admin. The admin
// may or may not also be listed in Members.
type Channel struct {
	ID           string          `gorm:"primaryKey;size:36" json:"id"`
	Name         string          `gorm:"size:128;not null" json:"name"`
	Handle       string          `gorm:"size:64;uniqueIndex;not null" json:"handle"`
	AdminID      string          `gorm:"size:36;index;not null" json:"adminId"`
	Admin        User            `gorm:"foreignKey:AdminID" json:"admin"`
	Bio          string          `gorm:"type:text;default:bio" json:"bio"`
	ProfileImage *string         `gorm:"size:512" json:"profileImage"`
	Color        int             `gorm:"not null;default:0" json:"color"`
	Members      []ChannelMember `gorm:"foreignKey:ChannelID;constraint:OnDelete:CASCADE" json:"members,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// BeforeCreate assigns a UUID when the caller did not supply one.
func (c *Channel) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// MemberIDs returns the user ids of the loaded member set.
func (c Channel) MemberIDs() []string {
	ids := make([]string, 0, len(c.Members))
	for _, member := range c.Members {
		ids = append(ids, member.UserID)
	}
	return ids
}

// ChannelMember links a user into a channel's member set.
type ChannelMember struct {
	ChannelID string    `gorm:"primaryKey;size:36" json:"channelId"`
	UserID    string    `gorm:"primaryKey;size:36;index" json:"userId"`
	User      User      `gorm:"foreignKey:UserID" json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChannelMessageRef is one entry of a channel's ordered message list.
// Insertion order (ID) is the display order.
type ChannelMessageRef struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChannelID string    `gorm:"size:36;index;not null" json:"channelId"`
	MessageID string    `gorm:"size:36;uniqueIndex;not null" json:"messageId"`
	CreatedAt time.Time `json:"createdAt"`
}
