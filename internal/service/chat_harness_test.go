package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-chat-api/internal/database"
	"github.com/noah-isme/gema-chat-api/internal/models"
	"github.com/noah-isme/gema-chat-api/internal/realtime"
	"github.com/noah-isme/gema-chat-api/internal/repository"
)

type sentEvent struct {
	ConnectionID string
	Event        string
	Payload      interface{}
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []sentEvent
}

func (r *recordingEmitter) Emit(connectionID, event string, payload interface{}) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sentEvent{ConnectionID: connectionID, Event: event, Payload: payload})
	return true
}

func (r *recordingEmitter) Broadcast(string, interface{}) {}

func (r *recordingEmitter) named(event string) []sentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentEvent
	for _, e := range r.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingEmitter) connections(event string) []string {
	var out []string
	for _, e := range r.named(event) {
		out = append(out, e.ConnectionID)
	}
	return out
}

func (r *recordingEmitter) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type recordingJournal struct {
	mu    sync.Mutex
	names []string
}

func (j *recordingJournal) Record(_ context.Context, name string, _ interface{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.names = append(j.names, name)
}

type chatHarness struct {
	db       *gorm.DB
	registry *realtime.Registry
	emitter  *recordingEmitter
	journal  *recordingJournal
	notifier *realtime.Notifier
	validate *validator.Validate

	users           repository.UserRepository
	directMessages  repository.DirectMessageRepository
	channels        repository.ChannelRepository
	channelMessages repository.ChannelMessageRepository
}

func newChatHarness(t *testing.T) *chatHarness {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	registry := realtime.NewRegistry()
	emitter := &recordingEmitter{}

	return &chatHarness{
		db:              db,
		registry:        registry,
		emitter:         emitter,
		journal:         &recordingJournal{},
		notifier:        realtime.NewNotifier(registry, emitter, zerolog.Nop()),
		validate:        validator.New(),
		users:           repository.NewUserRepository(db),
		directMessages:  repository.NewDirectMessageRepository(db),
		channels:        repository.NewChannelRepository(db),
		channelMessages: repository.NewChannelMessageRepository(db),
	}
}

func (h *chatHarness) seedUser(t *testing.T, username string) models.User {
	t.Helper()
	user := models.User{Username: username, FullName: username + " Doe", Email: username + "@example.com", Color: 3}
	require.NoError(t, h.db.Create(&user).Error)
	return user
}

// online binds the user to a connection id derived from the username.
func (h *chatHarness) online(user models.User) string {
	connectionID := "conn-" + user.Username
	h.registry.Bind(user.ID, connectionID)
	return connectionID
}

func (h *chatHarness) directMessageService() DirectMessageService {
	return NewDirectMessageService(h.directMessages, h.notifier, h.journal, h.validate, zerolog.Nop())
}

func (h *chatHarness) channelMessageService() ChannelMessageService {
	return NewChannelMessageService(h.channelMessages, h.channels, h.notifier, h.journal, h.validate, zerolog.Nop())
}

func (h *chatHarness) channelService() ChannelService {
	return NewChannelService(h.channels, h.users, h.notifier, h.journal, h.validate, zerolog.Nop())
}
