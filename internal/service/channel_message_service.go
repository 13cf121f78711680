package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
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

// ChannelMessageService persists channel messages and fans them out to the
// channel's members and admin.
type ChannelMessageService interface {
	Send(ctx context.Context, payload dto.ChannelMessageSendRequest) (dto.ChannelMessageResponse, error)
	DeleteOwn(ctx context.Context, actorID string, payload dto.ChannelMessageDeleteRequest) error
	DeleteByAdmin(ctx context.Context, actorID string, payload dto.ChannelMessageDeleteRequest) error
	History(ctx context.Context, channelID string, limit int) ([]dto.ChannelMessageResponse, error)
}

type channelMessageService struct {
	messages  repository.ChannelMessageRepository
	channels  repository.ChannelRepository
	notifier  EventNotifier
	journal   realtime.Journal
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewChannelMessageService constructs the channel message dispatcher.
func NewChannelMessageService(messages repository.ChannelMessageRepository, channels repository.ChannelRepository, notifier EventNotifier, journal realtime.Journal, validate *validator.Validate, logger zerolog.Logger) ChannelMessageService {
	if journal == nil {
		journal = realtime.NopJournal{}
	}
	return &channelMessageService{
		messages:  messages,
		channels:  channels,
		notifier:  notifier,
		journal:   journal,
		validator: validate,
		sanitizer: newMessagePolicy(),
		logger:    logger.With().Str("component", "channel_message_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-chat-api/internal/service/channel_message"),
	}
}

func (s *channelMessageService) Send(ctx context.Context, payload dto.ChannelMessageSendRequest) (dto.ChannelMessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ChannelMessageResponse{}, err
	}

	content, err := sanitizeContent(s.sanitizer, payload.MessageType, payload.Content)
	if err != nil {
		return dto.ChannelMessageResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "channel_message.send", trace.WithAttributes(
		attribute.String("chat.channel_id", payload.ChannelID),
		attribute.String("chat.sender_id", payload.Sender),
	))
	defer span.End()

	message := models.ChannelMessage{
		SenderID:    payload.Sender,
		MessageType: payload.MessageType,
		Content:     content,
		FileURL:     strings.TrimSpace(payload.FileURL),
	}
	if err := s.messages.Create(ctx, &message); err != nil {
		recordFailure(span, "channel_message.send", err)
		return dto.ChannelMessageResponse{}, fmt.Errorf("persist channel message: %w", err)
	}

	if err := s.messages.AppendToChannel(ctx, payload.ChannelID, message.ID); err != nil {
		if delErr := s.messages.DeleteByID(ctx, message.ID); delErr != nil {
			s.logger.Warn().Err(delErr).Str("message_id", message.ID).Msg("failed to discard orphaned channel message")
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChannelMessageResponse{}, ErrChannelNotFound
		}
		recordFailure(span, "channel_message.send", err)
		return dto.ChannelMessageResponse{}, fmt.Errorf("append channel message: %w", err)
	}

	populated, err := s.messages.FindPopulated(ctx, message.ID)
	if err != nil {
		recordFailure(span, "channel_message.send", err)
		return dto.ChannelMessageResponse{}, fmt.Errorf("load channel message: %w", err)
	}

	channel, err := s.loadChannel(ctx, payload.ChannelID)
	if err != nil {
		recordFailure(span, "channel_message.send", err)
		return dto.ChannelMessageResponse{}, err
	}

	response := dto.NewChannelMessageResponse(populated, channel.ID)
	delivered := s.notifier.NotifyParties(realtime.InterestedParties(channel.AdminID, channel.MemberIDs()), realtime.EventReceiveChannelMessage, response)
	s.journal.Record(ctx, realtime.JournalChannelMessageSent, response)

	s.logger.Debug().
		Str("channel_id", channel.ID).
		Str("message_id", message.ID).
		Int("delivered", delivered).
		Msg("channel message dispatched")

	return response, nil
}

// DeleteOwn hard-deletes a message listed in the channel. Only its sender may
// delete it; a message not listed in the channel is a silent no-op.
func (s *channelMessageService) DeleteOwn(ctx context.Context, actorID string, payload dto.ChannelMessageDeleteRequest) error {
	if err := requireChannelMessageRef(payload); err != nil {
		return err
	}

	ctx, span := s.tracer.Start(ctx, "channel_message.delete", trace.WithAttributes(
		attribute.String("chat.channel_id", payload.ChannelID),
		attribute.String("chat.message_id", payload.ChannelMessageID),
		attribute.String("chat.actor_id", actorID),
	))
	defer span.End()

	message, err := s.messages.FindInChannel(ctx, payload.ChannelID, payload.ChannelMessageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		recordFailure(span, "channel_message.delete", err)
		return fmt.Errorf("load channel message: %w", err)
	}
	if message.SenderID != actorID {
		return ErrSenderMismatch
	}

	if err := s.messages.DeleteFromChannel(ctx, payload.ChannelID, payload.ChannelMessageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		recordFailure(span, "channel_message.delete", err)
		return fmt.Errorf("delete channel message: %w", err)
	}

	channel, err := s.loadChannel(ctx, payload.ChannelID)
	if err != nil {
		if errors.Is(err, ErrChannelNotFound) {
			return nil
		}
		recordFailure(span, "channel_message.delete", err)
		return err
	}

	event := dto.ChannelMessageDeletedEvent{ChannelMessageID: payload.ChannelMessageID}
	s.notifier.NotifyParties(realtime.InterestedParties(channel.AdminID, channel.MemberIDs()), realtime.EventChannelMessageDeleted, event)
	s.journal.Record(ctx, realtime.JournalChannelMessageDeleted, payload)

	return nil
}

// DeleteByAdmin redacts a message listed in the channel. Only the channel
// admin may redact; unknown channels and messages are silent no-ops.
func (s *channelMessageService) DeleteByAdmin(ctx context.Context, actorID string, payload dto.ChannelMessageDeleteRequest) error {
	if err := requireChannelMessageRef(payload); err != nil {
		return err
	}

	ctx, span := s.tracer.Start(ctx, "channel_message.redact", trace.WithAttributes(
		attribute.String("chat.channel_id", payload.ChannelID),
		attribute.String("chat.message_id", payload.ChannelMessageID),
		attribute.String("chat.actor_id", actorID),
	))
	defer span.End()

	channel, err := s.loadChannel(ctx, payload.ChannelID)
	if err != nil {
		if errors.Is(err, ErrChannelNotFound) {
			return nil
		}
		recordFailure(span, "channel_message.redact", err)
		return err
	}
	if channel.AdminID != actorID {
		return ErrNotChannelAdmin
	}

	if _, err := s.messages.FindInChannel(ctx, channel.ID, payload.ChannelMessageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		recordFailure(span, "channel_message.redact", err)
		return fmt.Errorf("load channel message: %w", err)
	}

	changed, err := s.messages.SoftDelete(ctx, payload.ChannelMessageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		recordFailure(span, "channel_message.redact", err)
		return fmt.Errorf("redact channel message: %w", err)
	}
	if !changed {
		return nil
	}

	redacted, err := s.messages.FindPopulated(ctx, payload.ChannelMessageID)
	if err != nil {
		recordFailure(span, "channel_message.redact", err)
		return fmt.Errorf("load redacted message: %w", err)
	}

	response := dto.NewChannelMessageResponse(redacted, channel.ID)
	s.notifier.NotifyParties(realtime.InterestedParties(channel.AdminID, channel.MemberIDs()), realtime.EventChannelMessageDeletedByAdmin, response)
	s.journal.Record(ctx, realtime.JournalChannelMessageRedacted, response)

	return nil
}

func (s *channelMessageService) History(ctx context.Context, channelID string, limit int) ([]dto.ChannelMessageResponse, error) {
	if strings.TrimSpace(channelID) == "" {
		return nil, ErrMissingEventField
	}
	if _, err := s.channels.FindByID(ctx, channelID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}

	messages, err := s.messages.ListByChannel(ctx, channelID, limit)
	if err != nil {
		return nil, err
	}
	return dto.NewChannelMessageResponseSlice(messages, channelID), nil
}

func (s *channelMessageService) loadChannel(ctx context.Context, channelID string) (models.Channel, error) {
	channel, err := s.channels.FindWithMembersAndAdmin(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Channel{}, ErrChannelNotFound
		}
		return models.Channel{}, fmt.Errorf("load channel: %w", err)
	}
	return channel, nil
}

func requireChannelMessageRef(payload dto.ChannelMessageDeleteRequest) error {
	if strings.TrimSpace(payload.ChannelID) == "" || strings.TrimSpace(payload.ChannelMessageID) == "" {
		return ErrMissingEventField
	}
	return nil
}
