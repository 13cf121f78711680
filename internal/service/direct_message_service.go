package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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

// DirectMessageService persists one-to-one messages and delivers them to
// whichever party is online.
type DirectMessageService interface {
	Send(ctx context.Context, payload dto.DirectMessageSendRequest) (dto.DirectMessageResponse, error)
	Delete(ctx context.Context, payload dto.DirectMessageDeleteRequest) error
	Conversation(ctx context.Context, userID, peerID string, before time.Time, limit int) ([]dto.DirectMessageResponse, error)
	Contacts(ctx context.Context, userID string) ([]dto.ContactResponse, error)
}

type directMessageService struct {
	messages  repository.DirectMessageRepository
	notifier  EventNotifier
	journal   realtime.Journal
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewDirectMessageService constructs the direct message dispatcher.
func NewDirectMessageService(messages repository.DirectMessageRepository, notifier EventNotifier, journal realtime.Journal, validate *validator.Validate, logger zerolog.Logger) DirectMessageService {
	if journal == nil {
		journal = realtime.NopJournal{}
	}
	return &directMessageService{
		messages:  messages,
		notifier:  notifier,
		journal:   journal,
		validator: validate,
		sanitizer: newMessagePolicy(),
		logger:    logger.With().Str("component", "direct_message_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-chat-api/internal/service/direct_message"),
	}
}

func (s *directMessageService) Send(ctx context.Context, payload dto.DirectMessageSendRequest) (dto.DirectMessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.DirectMessageResponse{}, err
	}

	content, err := sanitizeContent(s.sanitizer, payload.MessageType, payload.Content)
	if err != nil {
		return dto.DirectMessageResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "direct_message.send", trace.WithAttributes(
		attribute.String("chat.sender_id", payload.Sender),
		attribute.String("chat.receiver_id", payload.Receiver),
	))
	defer span.End()

	message := models.DirectMessage{
		SenderID:    payload.Sender,
		ReceiverID:  payload.Receiver,
		MessageType: payload.MessageType,
		Content:     content,
		FileURL:     strings.TrimSpace(payload.FileURL),
	}
	if err := s.messages.Create(ctx, &message); err != nil {
		recordFailure(span, "direct_message.send", err)
		return dto.DirectMessageResponse{}, fmt.Errorf("persist direct message: %w", err)
	}

	populated, err := s.messages.FindPopulated(ctx, message.ID)
	if err != nil {
		recordFailure(span, "direct_message.send", err)
		return dto.DirectMessageResponse{}, fmt.Errorf("load direct message: %w", err)
	}

	response := dto.NewDirectMessageResponse(populated)

	// Receiver and sender are resolved independently, so a message to
	// oneself reaches the same connection twice.
	delivered := s.notifier.NotifyEach([]string{message.ReceiverID, message.SenderID}, realtime.EventReceiveMessage, response)
	s.journal.Record(ctx, realtime.JournalDirectMessageSent, response)

	s.logger.Debug().
		Str("message_id", message.ID).
		Str("sender_id", message.SenderID).
		Str("receiver_id", message.ReceiverID).
		Int("delivered", delivered).
		Msg("direct message dispatched")

	return response, nil
}

// Delete removes a message when the payload names its actual sender and
// receiver. Unknown ids are a silent no-op.
func (s *directMessageService) Delete(ctx context.Context, payload dto.DirectMessageDeleteRequest) error {
	if strings.TrimSpace(payload.MessageID) == "" || strings.TrimSpace(payload.SenderID) == "" || strings.TrimSpace(payload.ReceiverID) == "" {
		return ErrMissingEventField
	}

	ctx, span := s.tracer.Start(ctx, "direct_message.delete", trace.WithAttributes(
		attribute.String("chat.message_id", payload.MessageID),
	))
	defer span.End()

	stored, err := s.messages.FindPopulated(ctx, payload.MessageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Debug().Str("message_id", payload.MessageID).Msg("direct message already gone")
			return nil
		}
		recordFailure(span, "direct_message.delete", err)
		return fmt.Errorf("load direct message: %w", err)
	}
	if stored.SenderID != payload.SenderID || stored.ReceiverID != payload.ReceiverID {
		return ErrSenderMismatch
	}

	if err := s.messages.DeleteByID(ctx, payload.MessageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		recordFailure(span, "direct_message.delete", err)
		return fmt.Errorf("delete direct message: %w", err)
	}

	event := dto.DirectMessageDeletedEvent{MessageID: payload.MessageID}
	s.notifier.NotifyEach([]string{payload.SenderID, payload.ReceiverID}, realtime.EventDirectMessageDeleted, event)
	s.journal.Record(ctx, realtime.JournalDirectMessageDeleted, payload)

	return nil
}

func (s *directMessageService) Conversation(ctx context.Context, userID, peerID string, before time.Time, limit int) ([]dto.DirectMessageResponse, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(peerID) == "" {
		return nil, ErrMissingEventField
	}

	messages, err := s.messages.ListConversation(ctx, userID, peerID, before, limit)
	if err != nil {
		return nil, err
	}
	return dto.NewDirectMessageResponseSlice(messages), nil
}

func (s *directMessageService) Contacts(ctx context.Context, userID string) ([]dto.ContactResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingEventField
	}

	contacts, err := s.messages.ListContacts(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]dto.ContactResponse, 0, len(contacts))
	for _, contact := range contacts {
		out = append(out, dto.NewContactResponse(contact.User, contact.LastMessageAt))
	}
	return out, nil
}

func newMessagePolicy() *bluemonday.Policy {
	return bluemonday.StrictPolicy()
}

func sanitizeContent(policy *bluemonday.Policy, messageType, content string) (string, error) {
	if messageType != models.MessageTypeText {
		return strings.TrimSpace(content), nil
	}
	sanitized := strings.TrimSpace(policy.Sanitize(content))
	if sanitized == "" {
		return "", ErrEmptyContent
	}
	return sanitized, nil
}
