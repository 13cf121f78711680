package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-chat-api/internal/config"
	"github.com/noah-isme/gema-chat-api/internal/database"
	"github.com/noah-isme/gema-chat-api/internal/handler"
	"github.com/noah-isme/gema-chat-api/internal/middleware"
	"github.com/noah-isme/gema-chat-api/internal/models"
	"github.com/noah-isme/gema-chat-api/internal/realtime"
	"github.com/noah-isme/gema-chat-api/internal/repository"
	"github.com/noah-isme/gema-chat-api/internal/router"
	"github.com/noah-isme/gema-chat-api/internal/service"
)

const socketSecret = "socket-secret"

type socketStack struct {
	db       *gorm.DB
	registry *realtime.Registry
	channels repository.ChannelRepository
	wsURL    string
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newSocketStack(t *testing.T) *socketStack {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	logger := zerolog.Nop()
	validate := validator.New()

	registry := realtime.NewRegistry()
	hub := realtime.NewHub(realtime.HubOptions{}, logger)
	realtime.NewPresenceBroadcaster(hub, nil, logger).Attach(registry)
	notifier := realtime.NewNotifier(registry, hub, logger)

	channels := repository.NewChannelRepository(db)
	directMessages := service.NewDirectMessageService(repository.NewDirectMessageRepository(db), notifier, nil, validate, logger)
	channelMessages := service.NewChannelMessageService(repository.NewChannelMessageRepository(db), channels, notifier, nil, validate, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{})
	router.Register(app, config.Config{AppName: "chat-test"}, router.Dependencies{
		SocketHandler: handler.NewSocketHandler(hub, registry, directMessages, channelMessages, logger),
		SocketAuth:    middleware.JWTOptional(socketSecret),
	})

	baseURL, shutdown := startFiberServer(t, app)
	t.Cleanup(func() {
		hub.Shutdown()
		shutdown()
	})

	return &socketStack{
		db:       db,
		registry: registry,
		channels: channels,
		wsURL:    strings.Replace(baseURL, "http://", "ws://", 1) + "/api/v1/socket/ws",
	}
}

func startFiberServer(t *testing.T, app *fiber.App) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	shutdown := func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}

	return "http://" + listener.Addr().String(), shutdown
}

func (s *socketStack) seedUser(t *testing.T, username string) models.User {
	t.Helper()
	user := models.User{Username: username, FullName: username + " Doe", Email: username + "@example.com", Color: 5}
	require.NoError(t, s.db.Create(&user).Error)
	return user
}

func (s *socketStack) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(s.wsURL+"?"+query, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *socketStack) waitOnline(t *testing.T, userIDs ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, id := range userIDs {
			if _, ok := s.registry.Lookup(id); !ok {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

// readUntil skips frames until one with the wanted event satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, event string, match func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if f.Event == event && (match == nil || match(f.Data)) {
			return f.Data
		}
	}
}

func onlineSetIs(expected ...string) func(json.RawMessage) bool {
	return func(raw json.RawMessage) bool {
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil || len(ids) != len(expected) {
			return false
		}
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			seen[id] = true
		}
		for _, id := range expected {
			if !seen[id] {
				return false
			}
		}
		return true
	}
}

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)
	schema, err := jsonschema.NewCompiler().Compile("file://" + path)
	require.NoError(t, err)
	return schema
}

func requireSchema(t *testing.T, schema *jsonschema.Schema, raw json.RawMessage) {
	t.Helper()
	var payload interface{}
	require.NoError(t, json.Unmarshal(raw, &payload))
	require.NoError(t, schema.Validate(payload))
}

func signSocketToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(socketSecret))
	require.NoError(t, err)
	return signed
}

func TestSocketDirectMessageRoundTrip(t *testing.T) {
	stack := newSocketStack(t)
	alice := stack.seedUser(t, "alice")
	bob := stack.seedUser(t, "bob")

	onlineSchema := compileSchema(t, "online_users.schema.json")
	messageSchema := compileSchema(t, "receive_message.schema.json")

	aliceConn := stack.dial(t, "userId="+alice.ID)
	requireSchema(t, onlineSchema, readUntil(t, aliceConn, realtime.EventOnlineUsers, onlineSetIs(alice.ID)))

	bobConn := stack.dial(t, "token="+signSocketToken(t, bob.ID))
	readUntil(t, aliceConn, realtime.EventOnlineUsers, onlineSetIs(alice.ID, bob.ID))
	stack.waitOnline(t, alice.ID, bob.ID)

	require.NoError(t, aliceConn.WriteJSON(map[string]interface{}{
		"event": realtime.EventSendDirectMessage,
		"data": map[string]string{
			"receiver":    bob.ID,
			"messageType": "text",
			"content":     "<b>hi</b> bob",
		},
	}))

	received := readUntil(t, bobConn, realtime.EventReceiveMessage, nil)
	requireSchema(t, messageSchema, received)

	var message struct {
		ID       string `json:"id"`
		Content  string `json:"content"`
		Sender   struct{ ID string } `json:"sender"`
		Receiver struct{ ID string } `json:"receiver"`
	}
	require.NoError(t, json.Unmarshal(received, &message))
	require.Equal(t, "hi bob", message.Content)
	require.Equal(t, alice.ID, message.Sender.ID)
	require.Equal(t, bob.ID, message.Receiver.ID)

	echoed := readUntil(t, aliceConn, realtime.EventReceiveMessage, nil)
	requireSchema(t, messageSchema, echoed)

	require.NoError(t, aliceConn.WriteJSON(map[string]interface{}{
		"event": realtime.EventDeleteDirectMessage,
		"data": map[string]string{
			"messageId":  message.ID,
			"receiverId": bob.ID,
		},
	}))

	deleted := readUntil(t, bobConn, realtime.EventDirectMessageDeleted, nil)
	require.JSONEq(t, fmt.Sprintf(`{"messageId":%q}`, message.ID), string(deleted))

	var count int64
	require.NoError(t, stack.db.Model(&models.DirectMessage{}).Count(&count).Error)
	require.Zero(t, count)

	require.NoError(t, bobConn.Close())
	readUntil(t, aliceConn, realtime.EventOnlineUsers, onlineSetIs(alice.ID))
}

func TestSocketChannelMessageFanOut(t *testing.T) {
	stack := newSocketStack(t)
	admin := stack.seedUser(t, "admin")
	member := stack.seedUser(t, "member")

	channel := models.Channel{Name: "General", Handle: "general", AdminID: admin.ID}
	require.NoError(t, stack.channels.Create(context.Background(), &channel, []string{admin.ID, member.ID}))

	channelSchema := compileSchema(t, "channel_message.schema.json")

	adminConn := stack.dial(t, "userId="+admin.ID)
	memberConn := stack.dial(t, "userId="+member.ID)
	stack.waitOnline(t, admin.ID, member.ID)

	require.NoError(t, memberConn.WriteJSON(map[string]interface{}{
		"event": realtime.EventSendChannelMessage,
		"data": map[string]string{
			"channelId":   channel.ID,
			"messageType": "text",
			"content":     "hello channel",
		},
	}))

	forAdmin := readUntil(t, adminConn, realtime.EventReceiveChannelMessage, nil)
	forMember := readUntil(t, memberConn, realtime.EventReceiveChannelMessage, nil)
	requireSchema(t, channelSchema, forAdmin)
	requireSchema(t, channelSchema, forMember)

	var message struct {
		ID        string `json:"id"`
		ChannelID string `json:"channelId"`
	}
	require.NoError(t, json.Unmarshal(forAdmin, &message))
	require.Equal(t, channel.ID, message.ChannelID)

	require.NoError(t, adminConn.WriteJSON(map[string]interface{}{
		"event": realtime.EventDeleteChannelMessageByAdmin,
		"data": map[string]string{
			"channelId":        channel.ID,
			"channelMessageId": message.ID,
		},
	}))

	redacted := readUntil(t, memberConn, realtime.EventChannelMessageDeletedByAdmin, nil)
	requireSchema(t, channelSchema, redacted)

	var tombstone map[string]interface{}
	require.NoError(t, json.Unmarshal(redacted, &tombstone))
	require.Equal(t, true, tombstone["isDeleted"])
	require.NotContains(t, tombstone, "content")
}

func TestSocketRejectsSpoofedSender(t *testing.T) {
	stack := newSocketStack(t)
	alice := stack.seedUser(t, "alice")
	bob := stack.seedUser(t, "bob")

	aliceConn := stack.dial(t, "userId="+alice.ID)
	stack.waitOnline(t, alice.ID)

	require.NoError(t, aliceConn.WriteJSON(map[string]interface{}{
		"event":         realtime.EventSendDirectMessage,
		"correlationId": "c-1",
		"data": map[string]string{
			"sender":      bob.ID,
			"receiver":    alice.ID,
			"messageType": "text",
			"content":     "pretending",
		},
	}))

	raw := readUntil(t, aliceConn, realtime.EventError, nil)
	requireSchema(t, compileSchema(t, "event_error.schema.json"), raw)

	var failure struct {
		Event         string `json:"event"`
		CorrelationID string `json:"correlationId"`
		Message       string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(raw, &failure))
	require.Equal(t, realtime.EventSendDirectMessage, failure.Event)
	require.Equal(t, "c-1", failure.CorrelationID)
	require.Equal(t, service.ErrSenderMismatch.Error(), failure.Message)

	var count int64
	require.NoError(t, stack.db.Model(&models.DirectMessage{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestSocketOutsiderCannotDelete(t *testing.T) {
	stack := newSocketStack(t)
	alice := stack.seedUser(t, "alice")
	bob := stack.seedUser(t, "bob")
	mallory := stack.seedUser(t, "mallory")

	channel := models.Channel{Name: "General", Handle: "general", AdminID: alice.ID}
	require.NoError(t, stack.channels.Create(context.Background(), &channel, []string{alice.ID, bob.ID}))

	channelMessage := models.ChannelMessage{SenderID: bob.ID, MessageType: models.MessageTypeText, Content: "mine"}
	require.NoError(t, stack.db.Create(&channelMessage).Error)
	require.NoError(t, stack.db.Create(&models.ChannelMessageRef{ChannelID: channel.ID, MessageID: channelMessage.ID}).Error)

	directMessage := models.DirectMessage{SenderID: alice.ID, ReceiverID: bob.ID, MessageType: models.MessageTypeText, Content: "private"}
	require.NoError(t, stack.db.Create(&directMessage).Error)

	malloryConn := stack.dial(t, "userId="+mallory.ID)
	stack.waitOnline(t, mallory.ID)

	attempts := []struct {
		event   string
		data    map[string]string
		failure error
	}{
		{
			event:   realtime.EventDeleteDirectMessage,
			data:    map[string]string{"messageId": directMessage.ID, "senderId": alice.ID, "receiverId": bob.ID},
			failure: service.ErrSenderMismatch,
		},
		{
			event:   realtime.EventDeleteDirectMessage,
			data:    map[string]string{"messageId": directMessage.ID, "receiverId": bob.ID},
			failure: service.ErrSenderMismatch,
		},
		{
			event:   realtime.EventDeleteChannelMessage,
			data:    map[string]string{"channelId": channel.ID, "channelMessageId": channelMessage.ID},
			failure: service.ErrSenderMismatch,
		},
		{
			event:   realtime.EventDeleteChannelMessageByAdmin,
			data:    map[string]string{"channelId": channel.ID, "channelMessageId": channelMessage.ID},
			failure: service.ErrNotChannelAdmin,
		},
	}

	for _, attempt := range attempts {
		require.NoError(t, malloryConn.WriteJSON(map[string]interface{}{"event": attempt.event, "data": attempt.data}))

		var failure struct {
			Event   string `json:"event"`
			Message string `json:"message"`
		}
		require.NoError(t, json.Unmarshal(readUntil(t, malloryConn, realtime.EventError, nil), &failure))
		require.Equal(t, attempt.event, failure.Event)
		require.Equal(t, attempt.failure.Error(), failure.Message)
	}

	var stored models.ChannelMessage
	require.NoError(t, stack.db.First(&stored, "id = ?", channelMessage.ID).Error)
	require.False(t, stored.IsDeleted)
	require.Equal(t, "mine", stored.Content)

	var remaining int64
	require.NoError(t, stack.db.Model(&models.DirectMessage{}).Count(&remaining).Error)
	require.Equal(t, int64(1), remaining)
}

func TestSocketMissingPayloadReportsError(t *testing.T) {
	stack := newSocketStack(t)
	alice := stack.seedUser(t, "alice")

	aliceConn := stack.dial(t, "userId="+alice.ID)
	stack.waitOnline(t, alice.ID)

	require.NoError(t, aliceConn.WriteJSON(map[string]interface{}{
		"event": realtime.EventDeleteChannelMessage,
		"data":  map[string]string{"channelId": "c1"},
	}))

	raw := readUntil(t, aliceConn, realtime.EventError, nil)
	require.Contains(t, string(raw), realtime.EventDeleteChannelMessage)
}

func TestSocketClosesWithoutUserID(t *testing.T) {
	stack := newSocketStack(t)

	conn := stack.dial(t, "")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, _, err := conn.ReadMessage()
	require.Error(t, err)

	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	require.Equal(t, handler.CloseUnauthorized, closeErr.Code)
	require.Zero(t, stack.registry.Len())
}

func TestSocketRejectsQueryUserThatDisagreesWithToken(t *testing.T) {
	stack := newSocketStack(t)
	alice := stack.seedUser(t, "alice")
	bob := stack.seedUser(t, "bob")

	conn := stack.dial(t, "userId="+bob.ID+"&token="+signSocketToken(t, alice.ID))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	require.Equal(t, handler.CloseUnauthorized, closeErr.Code)
}

func TestSocketRouteRequiresUpgrade(t *testing.T) {
	stack := newSocketStack(t)
	httpURL := strings.Replace(stack.wsURL, "ws://", "http://", 1)

	resp, err := http.Get(httpURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}
