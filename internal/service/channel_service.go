package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-chat-api/internal/dto"
	"github.com/noah-isme/gema-chat-api/internal/models"
	"github.com/noah-isme/gema-chat-api/internal/realtime"
	"github.com/noah-isme/gema-chat-api/internal/repository"
)

const (
	handleBaseLength   = 10
	handleSuffixLength = 6
	handleMaxAttempts  = 8
)

// ChannelService manages channels and notifies affected users of membership changes.
type ChannelService interface {
	Create(ctx context.Context, adminID string, payload dto.ChannelCreateRequest) (dto.ChannelResponse, error)
	List(ctx context.Context, userID string) ([]dto.ChannelResponse, error)
	Members(ctx context.Context, channelID string) (dto.ChannelMembersResponse, error)
	AddMembers(ctx context.Context, actorID, channelID string, payload dto.ChannelAddMembersRequest) ([]string, error)
	RemoveMember(ctx context.Context, actorID, channelID, memberID string) error
	Leave(ctx context.Context, userID, channelID string) error
	UpdateProfile(ctx context.Context, actorID, channelID string, payload dto.ChannelUpdateRequest) (dto.ChannelResponse, error)
	Delete(ctx context.Context, actorID, channelID string) error
}

type channelService struct {
	channels  repository.ChannelRepository
	users     repository.UserRepository
	notifier  EventNotifier
	journal   realtime.Journal
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewChannelService constructs the channel membership dispatcher.
func NewChannelService(channels repository.ChannelRepository, users repository.UserRepository, notifier EventNotifier, journal realtime.Journal, validate *validator.Validate, logger zerolog.Logger) ChannelService {
	if journal == nil {
		journal = realtime.NopJournal{}
	}
	return &channelService{
		channels:  channels,
		users:     users,
		notifier:  notifier,
		journal:   journal,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "channel_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-chat-api/internal/service/channel"),
	}
}

func (s *channelService) Create(ctx context.Context, adminID string, payload dto.ChannelCreateRequest) (dto.ChannelResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ChannelResponse{}, err
	}

	name := strings.TrimSpace(s.sanitizer.Sanitize(payload.Name))
	if name == "" {
		return dto.ChannelResponse{}, ErrEmptyChannelName
	}

	ctx, span := s.tracer.Start(ctx, "channel.create", trace.WithAttributes(
		attribute.String("chat.admin_id", adminID),
		attribute.Int("chat.members", len(payload.Members)),
	))
	defer span.End()

	memberIDs := uniqueIDs(payload.Members)
	if err := s.ensureUsersExist(ctx, append([]string{adminID}, memberIDs...)); err != nil {
		return dto.ChannelResponse{}, err
	}

	handle, err := s.generateHandle(ctx, name)
	if err != nil {
		recordFailure(span, "channel.create", err)
		return dto.ChannelResponse{}, err
	}

	channel := models.Channel{
		Name:    name,
		Handle:  handle,
		AdminID: adminID,
		Bio:     "bio",
	}
	if err := s.channels.Create(ctx, &channel, memberIDs); err != nil {
		recordFailure(span, "channel.create", err)
		return dto.ChannelResponse{}, fmt.Errorf("persist channel: %w", err)
	}

	created, err := s.channels.FindWithMembersAndAdmin(ctx, channel.ID)
	if err != nil {
		recordFailure(span, "channel.create", err)
		return dto.ChannelResponse{}, fmt.Errorf("load channel: %w", err)
	}

	response := dto.NewChannelResponse(created)
	s.notifier.NotifyParties(created.MemberIDs(), realtime.EventChannelCreated, response)
	s.journal.Record(ctx, realtime.JournalChannelCreated, response)

	s.logger.Info().Str("channel_id", created.ID).Str("admin_id", adminID).Str("handle", handle).Msg("channel created")

	return response, nil
}

func (s *channelService) List(ctx context.Context, userID string) ([]dto.ChannelResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingEventField
	}
	channels, err := s.channels.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dto.NewChannelResponseSlice(channels), nil
}

func (s *channelService) Members(ctx context.Context, channelID string) (dto.ChannelMembersResponse, error) {
	channel, err := s.channels.FindWithMembersAndAdmin(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChannelMembersResponse{}, ErrChannelNotFound
		}
		return dto.ChannelMembersResponse{}, err
	}
	return dto.NewChannelMembersResponse(channel), nil
}

func (s *channelService) AddMembers(ctx context.Context, actorID, channelID string, payload dto.ChannelAddMembersRequest) ([]string, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "channel.add_members", trace.WithAttributes(
		attribute.String("chat.channel_id", channelID),
	))
	defer span.End()

	if _, err := s.requireAdmin(ctx, actorID, channelID); err != nil {
		return nil, err
	}

	memberIDs := uniqueIDs(payload.Members)
	if err := s.ensureUsersExist(ctx, memberIDs); err != nil {
		return nil, err
	}

	added, err := s.channels.AddMembers(ctx, channelID, memberIDs)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		recordFailure(span, "channel.add_members", err)
		return nil, fmt.Errorf("add channel members: %w", err)
	}
	if added == nil {
		added = []string{}
	}

	event := dto.ChannelRefEvent{ChannelID: channelID}
	s.notifier.NotifyParties(added, realtime.EventMemberAdded, event)
	if len(added) > 0 {
		s.journal.Record(ctx, realtime.JournalMembersAdded, map[string]interface{}{"channelId": channelID, "members": added})
	}

	return added, nil
}

func (s *channelService) RemoveMember(ctx context.Context, actorID, channelID, memberID string) error {
	if strings.TrimSpace(memberID) == "" {
		return ErrMissingEventField
	}

	ctx, span := s.tracer.Start(ctx, "channel.remove_member", trace.WithAttributes(
		attribute.String("chat.channel_id", channelID),
		attribute.String("chat.member_id", memberID),
	))
	defer span.End()

	if _, err := s.requireAdmin(ctx, actorID, channelID); err != nil {
		return err
	}

	removed, err := s.channels.RemoveMember(ctx, channelID, memberID)
	if err != nil {
		recordFailure(span, "channel.remove_member", err)
		return fmt.Errorf("remove channel member: %w", err)
	}
	if !removed {
		return nil
	}

	remaining, err := s.channels.FindWithMembersAndAdmin(ctx, channelID)
	if err != nil {
		recordFailure(span, "channel.remove_member", err)
		return fmt.Errorf("load channel: %w", err)
	}

	event := dto.ChannelRefEvent{ChannelID: channelID}
	s.notifier.NotifyUser(memberID, realtime.EventMemberRemoved, event)
	s.notifier.NotifyParties(remaining.MemberIDs(), realtime.EventLeaveChannel, event)
	s.journal.Record(ctx, realtime.JournalMemberRemoved, map[string]string{"channelId": channelID, "memberId": memberID})

	return nil
}

func (s *channelService) Leave(ctx context.Context, userID, channelID string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(channelID) == "" {
		return ErrMissingEventField
	}

	ctx, span := s.tracer.Start(ctx, "channel.leave", trace.WithAttributes(
		attribute.String("chat.channel_id", channelID),
		attribute.String("chat.user_id", userID),
	))
	defer span.End()

	removed, err := s.channels.RemoveMember(ctx, channelID, userID)
	if err != nil {
		recordFailure(span, "channel.leave", err)
		return fmt.Errorf("leave channel: %w", err)
	}
	if !removed {
		return nil
	}

	remaining, err := s.channels.FindWithMembersAndAdmin(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChannelNotFound
		}
		recordFailure(span, "channel.leave", err)
		return fmt.Errorf("load channel: %w", err)
	}

	event := dto.ChannelRefEvent{ChannelID: channelID}
	s.notifier.NotifyParties(realtime.InterestedParties(remaining.AdminID, remaining.MemberIDs()), realtime.EventLeaveChannel, event)
	s.journal.Record(ctx, realtime.JournalMemberLeft, map[string]string{"channelId": channelID, "userId": userID})

	return nil
}

func (s *channelService) UpdateProfile(ctx context.Context, actorID, channelID string, payload dto.ChannelUpdateRequest) (dto.ChannelResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ChannelResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "channel.update", trace.WithAttributes(
		attribute.String("chat.channel_id", channelID),
	))
	defer span.End()

	current, err := s.requireAdmin(ctx, actorID, channelID)
	if err != nil {
		return dto.ChannelResponse{}, err
	}

	updates := make(map[string]interface{})
	if payload.Name != nil {
		name := strings.TrimSpace(s.sanitizer.Sanitize(*payload.Name))
		if name == "" {
			return dto.ChannelResponse{}, ErrEmptyChannelName
		}
		updates["name"] = name
	}
	if payload.Bio != nil {
		updates["bio"] = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Bio))
	}
	if payload.Color != nil {
		updates["color"] = *payload.Color
	}
	if payload.Handle != nil {
		handle := strings.ToLower(strings.TrimSpace(*payload.Handle))
		if handle != current.Handle {
			exists, err := s.channels.HandleExists(ctx, handle)
			if err != nil {
				recordFailure(span, "channel.update", err)
				return dto.ChannelResponse{}, err
			}
			if exists {
				return dto.ChannelResponse{}, ErrHandleTaken
			}
			updates["handle"] = handle
		}
	}

	if len(updates) > 0 {
		if err := s.channels.Update(ctx, channelID, updates); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.ChannelResponse{}, ErrChannelNotFound
			}
			recordFailure(span, "channel.update", err)
			return dto.ChannelResponse{}, fmt.Errorf("update channel: %w", err)
		}
	}

	updated, err := s.channels.FindWithMembersAndAdmin(ctx, channelID)
	if err != nil {
		recordFailure(span, "channel.update", err)
		return dto.ChannelResponse{}, fmt.Errorf("load channel: %w", err)
	}

	response := dto.NewChannelResponse(updated)
	s.notifier.NotifyParties(updated.MemberIDs(), realtime.EventChannelUpdated, response)
	s.journal.Record(ctx, realtime.JournalChannelUpdated, response)

	return response, nil
}

func (s *channelService) Delete(ctx context.Context, actorID, channelID string) error {
	ctx, span := s.tracer.Start(ctx, "channel.delete", trace.WithAttributes(
		attribute.String("chat.channel_id", channelID),
	))
	defer span.End()

	if _, err := s.requireAdmin(ctx, actorID, channelID); err != nil {
		return err
	}

	deleted, err := s.channels.Delete(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChannelNotFound
		}
		recordFailure(span, "channel.delete", err)
		return fmt.Errorf("delete channel: %w", err)
	}

	event := dto.ChannelRefEvent{ChannelID: channelID}
	s.notifier.NotifyParties(deleted.MemberIDs(), realtime.EventChannelDeleted, event)
	s.journal.Record(ctx, realtime.JournalChannelDeleted, event)

	s.logger.Info().Str("channel_id", channelID).Str("admin_id", actorID).Msg("channel deleted")

	return nil
}

func (s *channelService) requireAdmin(ctx context.Context, actorID, channelID string) (models.Channel, error) {
	if strings.TrimSpace(channelID) == "" {
		return models.Channel{}, ErrMissingEventField
	}
	channel, err := s.channels.FindByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Channel{}, ErrChannelNotFound
		}
		return models.Channel{}, err
	}
	if channel.AdminID != actorID {
		return models.Channel{}, ErrNotChannelAdmin
	}
	return channel, nil
}

func (s *channelService) ensureUsersExist(ctx context.Context, ids []string) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return ErrUnknownUser
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(users) != len(ids) {
		return ErrUnknownUser
	}
	return nil
}

func (s *channelService) generateHandle(ctx context.Context, name string) (string, error) {
	base := handleBase(name)
	candidate := base
	for attempt := 0; attempt < handleMaxAttempts; attempt++ {
		exists, err := s.channels.HandleExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:handleSuffixLength]
		candidate = base + suffix
	}
	return "", ErrHandleTaken
}

// handleBase lowercases the name, strips whitespace and keeps the first ten runes.
func handleBase(name string) string {
	var builder strings.Builder
	count := 0
	for _, r := range strings.ToLower(name) {
		if unicode.IsSpace(r) {
			continue
		}
		if count == handleBaseLength {
			break
		}
		builder.WriteRune(r)
		count++
	}
	if builder.Len() == 0 {
		return "channel"
	}
	return builder.String()
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
