package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-chat-api/internal/dto"
	"github.com/noah-isme/gema-chat-api/internal/middleware"
	"github.com/noah-isme/gema-chat-api/internal/realtime"
	"github.com/noah-isme/gema-chat-api/internal/service"
)

// CloseUnauthorized is the close code sent when the handshake carries no usable user id.
const CloseUnauthorized = 4001

var errMissingPayload = errors.New("event payload missing")

// SocketHandler upgrades websocket connections and routes inbound events to
// the message dispatchers.
type SocketHandler struct {
	hub             *realtime.Hub
	registry        *realtime.Registry
	directMessages  service.DirectMessageService
	channelMessages service.ChannelMessageService
	logger          zerolog.Logger
}

// NewSocketHandler creates a socket handler instance.
func NewSocketHandler(hub *realtime.Hub, registry *realtime.Registry, directMessages service.DirectMessageService, channelMessages service.ChannelMessageService, logger zerolog.Logger) *SocketHandler {
	return &SocketHandler{
		hub:             hub,
		registry:        registry,
		directMessages:  directMessages,
		channelMessages: channelMessages,
		logger:          logger.With().Str("component", "socket_handler").Logger(),
	}
}

// Register binds the websocket route under the provided router group.
func (h *SocketHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("request_ctx", withRequestContext(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *SocketHandler) handleConnection(conn *websocket.Conn) {
	userID, err := handshakeUserID(conn)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(CloseUnauthorized, err.Error()))
		_ = conn.Close()
		return
	}

	correlation, _ := conn.Locals("correlation_id").(string)
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	h.hub.Serve(conn, realtime.Session{
		UserID:        userID,
		CorrelationID: correlation,
		Context:       baseCtx,
	}, h)
}

// Connected binds the handshake user to the new connection.
func (h *SocketHandler) Connected(client *realtime.Client) {
	h.registry.Bind(client.UserID(), client.ID())
	h.logger.Info().Str("user_id", client.UserID()).Str("connection_id", client.ID()).Msg("socket connected")
}

// Disconnected drops the binding if it still points at this connection.
func (h *SocketHandler) Disconnected(client *realtime.Client) {
	if _, removed := h.registry.Unbind(client.ID()); !removed {
		h.logger.Debug().Str("connection_id", client.ID()).Msg("superseded socket disconnected")
		return
	}
	h.logger.Info().Str("user_id", client.UserID()).Str("connection_id", client.ID()).Msg("socket disconnected")
}

// Handle dispatches one inbound event. Failures are reported back to the
// originating connection as event-error.
func (h *SocketHandler) Handle(ctx context.Context, client *realtime.Client, message realtime.InboundEnvelope) {
	correlation := strings.TrimSpace(message.CorrelationID)
	if correlation == "" {
		correlation = client.CorrelationID()
	}
	ctx = middleware.ContextWithCorrelation(ctx, correlation)

	var err error
	switch message.Event {
	case realtime.EventSendDirectMessage:
		err = h.sendDirectMessage(ctx, client, message.Data)
	case realtime.EventDeleteDirectMessage:
		err = h.deleteDirectMessage(ctx, client, message.Data)
	case realtime.EventSendChannelMessage:
		err = h.sendChannelMessage(ctx, client, message.Data)
	case realtime.EventDeleteChannelMessage:
		err = h.deleteChannelMessage(ctx, client, message.Data, h.channelMessages.DeleteOwn)
	case realtime.EventDeleteChannelMessageByAdmin:
		err = h.deleteChannelMessage(ctx, client, message.Data, h.channelMessages.DeleteByAdmin)
	default:
		h.logger.Debug().Str("event", message.Event).Str("connection_id", client.ID()).Msg("ignoring unknown socket event")
		return
	}

	if err != nil {
		h.reportFailure(client, message.Event, correlation, err)
	}
}

func (h *SocketHandler) sendDirectMessage(ctx context.Context, client *realtime.Client, raw json.RawMessage) error {
	var payload dto.DirectMessageSendRequest
	if err := decodePayload(raw, &payload); err != nil {
		return err
	}
	if err := bindSender(&payload.Sender, client.UserID()); err != nil {
		return err
	}
	_, err := h.directMessages.Send(ctx, payload)
	return err
}

func (h *SocketHandler) deleteDirectMessage(ctx context.Context, client *realtime.Client, raw json.RawMessage) error {
	var payload dto.DirectMessageDeleteRequest
	if err := decodePayload(raw, &payload); err != nil {
		return err
	}
	if err := bindSender(&payload.SenderID, client.UserID()); err != nil {
		return err
	}
	return h.directMessages.Delete(ctx, payload)
}

func (h *SocketHandler) sendChannelMessage(ctx context.Context, client *realtime.Client, raw json.RawMessage) error {
	var payload dto.ChannelMessageSendRequest
	if err := decodePayload(raw, &payload); err != nil {
		return err
	}
	if err := bindSender(&payload.Sender, client.UserID()); err != nil {
		return err
	}
	_, err := h.channelMessages.Send(ctx, payload)
	return err
}

func (h *SocketHandler) deleteChannelMessage(ctx context.Context, client *realtime.Client, raw json.RawMessage, remove func(context.Context, string, dto.ChannelMessageDeleteRequest) error) error {
	var payload dto.ChannelMessageDeleteRequest
	if err := decodePayload(raw, &payload); err != nil {
		return err
	}
	return remove(ctx, client.UserID(), payload)
}

func (h *SocketHandler) reportFailure(client *realtime.Client, event, correlation string, err error) {
	message := err.Error()
	if errorStatus(err) >= fiber.StatusInternalServerError {
		h.logger.Error().Err(err).Str("event", event).Str("correlation_id", correlation).Msg("socket event failed")
		message = "internal error"
	} else {
		h.logger.Warn().Err(err).Str("event", event).Str("correlation_id", correlation).Msg("socket event rejected")
	}

	client.Send(realtime.EventError, dto.EventErrorResponse{
		Event:         event,
		CorrelationID: correlation,
		Message:       message,
	})
}

func decodePayload(raw json.RawMessage, target interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: %v", service.ErrMissingEventField, errMissingPayload)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: %v", service.ErrMissingEventField, err)
	}
	return nil
}

// bindSender fills an empty sender from the session and rejects spoofed ones.
func bindSender(sender *string, sessionUserID string) error {
	trimmed := strings.TrimSpace(*sender)
	if trimmed == "" {
		*sender = sessionUserID
		return nil
	}
	if trimmed != sessionUserID {
		return service.ErrSenderMismatch
	}
	*sender = trimmed
	return nil
}

func handshakeUserID(conn *websocket.Conn) (string, error) {
	queryUserID := strings.TrimSpace(conn.Query("userId"))
	tokenUserID, _ := conn.Locals("user_id").(string)
	tokenUserID = strings.TrimSpace(tokenUserID)

	switch {
	case tokenUserID != "" && queryUserID != "" && tokenUserID != queryUserID:
		return "", errors.New("user id does not match token")
	case tokenUserID != "":
		return tokenUserID, nil
	case queryUserID != "":
		return queryUserID, nil
	default:
		return "", errors.New("user id missing")
	}
}
