package service

import (
	"errors"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-chat-api/internal/observability"
)

var (
	// ErrMissingEventField indicates an inbound event lacked a required identifier.
	ErrMissingEventField = errors.New("required event field missing")
	// ErrChannelNotFound indicates the target channel does not exist.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrNotChannelAdmin indicates a non-admin attempted an admin-only channel operation.
	ErrNotChannelAdmin = errors.New("only the channel admin may perform this operation")
	// ErrHandleTaken indicates the requested channel handle is already in use.
	ErrHandleTaken = errors.New("channel handle already taken")
	// ErrUnknownUser indicates a referenced user does not exist.
	ErrUnknownUser = errors.New("user not found")
	// ErrSenderMismatch indicates the payload sender differs from the connected user.
	ErrSenderMismatch = errors.New("sender does not match connected user")
	// ErrEmptyContent indicates text content became empty after sanitization.
	ErrEmptyContent = errors.New("message content empty after sanitization")
	// ErrEmptyChannelName indicates a channel name became empty after sanitization.
	ErrEmptyChannelName = errors.New("channel name empty after sanitization")
)

// EventNotifier resolves users to live connections and emits events to them.
type EventNotifier interface {
	NotifyUser(userID, event string, payload interface{}) bool
	NotifyEach(userIDs []string, event string, payload interface{}) int
	NotifyParties(userIDs []string, event string, payload interface{}) int
}

func recordFailure(span trace.Span, operation string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	observability.ChatDispatchFailures().WithLabelValues(operation).Inc()
}
