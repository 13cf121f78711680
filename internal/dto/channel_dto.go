package dto

import (
	"time"

	"github.com/noah-isme/gema-chat-api/internal/models"
)

// ChannelCreateRequest describes the payload to create a channel.
type ChannelCreateRequest struct {
	Name    string   `json:"name" validate:"required,min=1,max=128"`
	Members []string `json:"members" validate:"required,min=1,dive,required,max=36"`
}

// ChannelAddMembersRequest lists users to add to a channel.
type ChannelAddMembersRequest struct {
	Members []string `json:"members" validate:"required,min=1,dive,required,max=36"`
}

// ChannelUpdateRequest updates the public profile of a channel.
type ChannelUpdateRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=128"`
	Bio    *string `json:"bio" validate:"omitempty,max=1000"`
	Color  *int    `json:"color" validate:"omitempty,min=0,max=16"`
	Handle *string `json:"handle" validate:"omitempty,min=3,max=64,alphanum"`
}

// ChannelResponse is the channel profile sent to clients, without members or messages.
type ChannelResponse struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Handle       string      `json:"handle"`
	Admin        UserSummary `json:"admin"`
	Bio          string      `json:"bio"`
	ProfileImage *string     `json:"profileImage"`
	Color        int         `json:"color"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// NewChannelResponse converts a channel with its admin preloaded into a DTO.
func NewChannelResponse(channel models.Channel) ChannelResponse {
	return ChannelResponse{
		ID:           channel.ID,
		Name:         channel.Name,
		Handle:       channel.Handle,
		Admin:        NewUserSummary(channel.Admin),
		Bio:          channel.Bio,
		ProfileImage: channel.ProfileImage,
		Color:        channel.Color,
		CreatedAt:    channel.CreatedAt,
		UpdatedAt:    channel.UpdatedAt,
	}
}

// NewChannelResponseSlice converts channels into DTOs.
func NewChannelResponseSlice(channels []models.Channel) []ChannelResponse {
	out := make([]ChannelResponse, 0, len(channels))
	for _, channel := range channels {
		out = append(out, NewChannelResponse(channel))
	}
	return out
}

// ChannelMembersResponse lists the populated member set of a channel.
type ChannelMembersResponse struct {
	ChannelID string        `json:"channelId"`
	Members   []UserSummary `json:"members"`
}

// NewChannelMembersResponse converts a channel with members preloaded.
func NewChannelMembersResponse(channel models.Channel) ChannelMembersResponse {
	members := make([]UserSummary, 0, len(channel.Members))
	for _, member := range channel.Members {
		members = append(members, NewUserSummary(member.User))
	}
	return ChannelMembersResponse{ChannelID: channel.ID, Members: members}
}

// UserCreateRequest registers a chat profile.
type UserCreateRequest struct {
	Username     string  `json:"username" validate:"required,min=3,max=64,alphanum"`
	FullName     string  `json:"fullName" validate:"required,min=1,max=128"`
	Email        string  `json:"email" validate:"required,email,max=255"`
	ProfileImage *string `json:"profileImage" validate:"omitempty,url,max=512"`
	Bio          string  `json:"bio" validate:"omitempty,max=1000"`
	Color        int     `json:"color" validate:"min=0,max=16"`
}

// UserUpdateRequest edits the caller's own profile. Nil fields are left as they are.
type UserUpdateRequest struct {
	FullName *string `json:"fullName" validate:"omitempty,min=1,max=128"`
	Bio      *string `json:"bio" validate:"omitempty,max=1000"`
	Color    *int    `json:"color" validate:"omitempty,min=0,max=16"`
}

// UserResponse is a full profile returned by the user endpoints.
type UserResponse struct {
	UserSummary
	Email     string    `json:"email"`
	Bio       string    `json:"bio"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewUserResponse converts a user model into a DTO.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		UserSummary: NewUserSummary(user),
		Email:       user.Email,
		Bio:         user.Bio,
		CreatedAt:   user.CreatedAt,
	}
}

// NewUserResponseSlice converts users into DTOs.
func NewUserResponseSlice(users []models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, NewUserResponse(user))
	}
	return out
}

// PresenceResponse is the current online-user snapshot.
type PresenceResponse struct {
	Online []string `json:"online"`
	Count  int      `json:"count"`
}
