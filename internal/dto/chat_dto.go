package dto

import (
	"time"

	"github.com/noah-isme/gema-chat-api/internal/models"
)

// UserSummary carries the display fields attached to delivered messages.
type UserSummary struct {
	ID           string  `json:"id"`
	Username     string  `json:"username"`
	FullName     string  `json:"fullName"`
	Color        int     `json:"color"`
	ProfileImage *string `json:"profileImage"`
}

// NewUserSummary converts a user model into its display fields.
func NewUserSummary(user models.User) UserSummary {
	return UserSummary{
		ID:           user.ID,
		Username:     user.Username,
		FullName:     user.FullName,
		Color:        user.Color,
		ProfileImage: user.ProfileImage,
	}
}

// DirectMessageSendRequest is the payload of the send-direct-message event.
type DirectMessageSendRequest struct {
	Sender      string `json:"sender" validate:"required,max=36"`
	Receiver    string `json:"receiver" validate:"required,max=36"`
	MessageType string `json:"messageType" validate:"required,oneof=text file"`
	Content     string `json:"content" validate:"required_if=MessageType text,excluded_if=MessageType file,max=4000"`
	FileURL     string `json:"fileURL" validate:"required_if=MessageType file,excluded_if=MessageType text,max=1024"`
}

// DirectMessageDeleteRequest is the payload of the delete-direct-message event.
type DirectMessageDeleteRequest struct {
	MessageID  string `json:"messageId"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}

// DirectMessageResponse is a direct message with both parties populated.
type DirectMessageResponse struct {
	ID          string      `json:"id"`
	Sender      UserSummary `json:"sender"`
	Receiver    UserSummary `json:"receiver"`
	MessageType string      `json:"messageType"`
	Content     string      `json:"content,omitempty"`
	FileURL     string      `json:"fileURL,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	IsRead      bool        `json:"isRead"`
}

// NewDirectMessageResponse converts a populated model into a DTO.
func NewDirectMessageResponse(message models.DirectMessage) DirectMessageResponse {
	return DirectMessageResponse{
		ID:          message.ID,
		Sender:      NewUserSummary(message.Sender),
		Receiver:    NewUserSummary(message.Receiver),
		MessageType: message.MessageType,
		Content:     message.Content,
		FileURL:     message.FileURL,
		Timestamp:   message.Timestamp,
		IsRead:      message.IsRead,
	}
}

// NewDirectMessageResponseSlice converts a slice of models into DTOs.
func NewDirectMessageResponseSlice(messages []models.DirectMessage) []DirectMessageResponse {
	out := make([]DirectMessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewDirectMessageResponse(message))
	}
	return out
}

// DirectMessageDeletedEvent notifies both parties that a direct message is gone.
type DirectMessageDeletedEvent struct {
	MessageID string `json:"messageId"`
}

// ContactResponse is a direct message peer with the time of the latest exchange.
type ContactResponse struct {
	UserSummary
	LastMessageAt time.Time `json:"lastMessageTime"`
}

// NewContactResponse converts a peer and its latest message time into a DTO.
func NewContactResponse(user models.User, lastMessageAt time.Time) ContactResponse {
	return ContactResponse{UserSummary: NewUserSummary(user), LastMessageAt: lastMessageAt}
}

// ChannelMessageSendRequest is the payload of the send-channel-message event.
type ChannelMessageSendRequest struct {
	ChannelID   string `json:"channelId" validate:"required,max=36"`
	Sender      string `json:"sender" validate:"required,max=36"`
	MessageType string `json:"messageType" validate:"required,oneof=text file"`
	Content     string `json:"content" validate:"required_if=MessageType text,excluded_if=MessageType file,max=4000"`
	FileURL     string `json:"fileURL" validate:"required_if=MessageType file,excluded_if=MessageType text,max=1024"`
}

// ChannelMessageDeleteRequest is the payload of both channel delete events.
type ChannelMessageDeleteRequest struct {
	ChannelID        string `json:"channelId"`
	ChannelMessageID string `json:"channelMessageId"`
}

// ChannelMessageResponse is a channel message with its sender populated and
// the channel id stamped for client-side routing. Redacted tombstones omit
// content, file and type.
type ChannelMessageResponse struct {
	ID          string      `json:"id"`
	ChannelID   string      `json:"channelId,omitempty"`
	Sender      UserSummary `json:"sender"`
	MessageType string      `json:"messageType,omitempty"`
	Content     string      `json:"content,omitempty"`
	FileURL     string      `json:"fileURL,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	IsDeleted   bool        `json:"isDeleted"`
}

// NewChannelMessageResponse converts a populated model into a DTO.
func NewChannelMessageResponse(message models.ChannelMessage, channelID string) ChannelMessageResponse {
	response := ChannelMessageResponse{
		ID:        message.ID,
		ChannelID: channelID,
		Sender:    NewUserSummary(message.Sender),
		Timestamp: message.Timestamp,
		IsDeleted: message.IsDeleted,
	}
	if message.IsDeleted {
		return response
	}
	response.MessageType = message.MessageType
	response.Content = message.Content
	response.FileURL = message.FileURL
	return response
}

// NewChannelMessageResponseSlice converts channel history, redacting tombstones.
func NewChannelMessageResponseSlice(messages []models.ChannelMessage, channelID string) []ChannelMessageResponse {
	out := make([]ChannelMessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewChannelMessageResponse(message, channelID))
	}
	return out
}

// ChannelMessageDeletedEvent notifies channel parties that a message was removed.
type ChannelMessageDeletedEvent struct {
	ChannelMessageID string `json:"channelMessageId"`
}

// ChannelRefEvent carries only a channel id (membership and deletion events).
type ChannelRefEvent struct {
	ChannelID string `json:"channelId"`
}

// EventErrorResponse reports a failed inbound event back to its originating connection.
type EventErrorResponse struct {
	Event         string `json:"event"`
	CorrelationID string `json:"correlationId,omitempty"`
	Message       string `json:"message"`
}
