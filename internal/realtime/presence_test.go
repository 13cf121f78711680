package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

func TestPresenceBroadcastOnEveryChange(t *testing.T) {
	registry := NewRegistry()
	emitter := newRecordingEmitter()
	NewPresenceBroadcaster(emitter, nil, zerolog.Nop()).Attach(registry)

	registry.Bind("alice", "c1")
	registry.Bind("bob", "c2")
	registry.Unbind("c1")
	registry.Unbind("c1")

	require.Len(t, emitter.broadcasts, 3)
	for _, b := range emitter.broadcasts {
		require.Equal(t, EventOnlineUsers, b.Event)
	}
	require.Equal(t, []string{"alice"}, emitter.broadcasts[0].Payload)
	require.Equal(t, []string{"alice", "bob"}, emitter.broadcasts[1].Payload)
	require.Equal(t, []string{"bob"}, emitter.broadcasts[2].Payload)
}

func TestPresencePublishNilSendsEmptyList(t *testing.T) {
	emitter := newRecordingEmitter()
	NewPresenceBroadcaster(emitter, nil, zerolog.Nop()).Publish(nil)

	require.Len(t, emitter.broadcasts, 1)
	require.Equal(t, []string{}, emitter.broadcasts[0].Payload)
}

func TestPresenceMirrorsToRedis(t *testing.T) {
	server, client := newTestRedis(t)
	store := NewRedisPresenceStore(client, "test")
	require.Equal(t, "test:presence", store.Key())

	registry := NewRegistry()
	broadcaster := NewPresenceBroadcaster(newRecordingEmitter(), store, zerolog.Nop()).Attach(registry)
	t.Cleanup(broadcaster.Close)

	registry.Bind("bob", "c2")
	registry.Bind("alice", "c1")

	require.Eventually(t, func() bool {
		members, err := store.Load(context.Background())
		return err == nil && len(members) == 2 && members[0] == "alice" && members[1] == "bob"
	}, 2*time.Second, 10*time.Millisecond)

	registry.Unbind("c1")
	registry.Unbind("c2")

	require.Eventually(t, func() bool {
		return !server.Exists("test:presence")
	}, 2*time.Second, 10*time.Millisecond)

	members, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, members)
}

// gatedStore blocks every Save until release is closed.
type gatedStore struct {
	release chan struct{}

	mu    sync.Mutex
	saved [][]string
}

func (s *gatedStore) Save(ctx context.Context, userIDs []string) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, userIDs)
	return nil
}

func (s *gatedStore) Load(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return nil, nil
	}
	return s.saved[len(s.saved)-1], nil
}

func (s *gatedStore) saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func TestPresenceSlowStoreDoesNotBlockRegistry(t *testing.T) {
	store := &gatedStore{release: make(chan struct{})}
	emitter := newRecordingEmitter()
	registry := NewRegistry()
	broadcaster := NewPresenceBroadcaster(emitter, store, zerolog.Nop()).Attach(registry)

	bound := make(chan struct{})
	go func() {
		registry.Bind("alice", "c1")
		registry.Bind("bob", "c2")
		registry.Bind("carol", "c3")
		close(bound)
	}()

	select {
	case <-bound:
	case <-time.After(time.Second):
		t.Fatal("registry updates waited on the presence store")
	}
	require.Len(t, emitter.broadcasts, 3)
	require.Zero(t, store.saves())

	close(store.release)
	broadcaster.Close()

	require.LessOrEqual(t, store.saves(), 2)
	latest, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob", "carol"}, latest)
}

func TestPresenceCloseIsIdempotent(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewRedisPresenceStore(client, "idle")

	broadcaster := NewPresenceBroadcaster(newRecordingEmitter(), store, zerolog.Nop())
	broadcaster.Publish([]string{"alice"})
	broadcaster.Close()
	broadcaster.Close()

	members, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, members)

	broadcaster.Publish([]string{"alice", "bob"})
	NewPresenceBroadcaster(newRecordingEmitter(), nil, zerolog.Nop()).Close()
}

type failingStore struct{}

func (failingStore) Save(context.Context, []string) error   { return errors.New("unavailable") }
func (failingStore) Load(context.Context) ([]string, error) { return nil, errors.New("unavailable") }

func TestPresenceMirrorFailureStillBroadcasts(t *testing.T) {
	emitter := newRecordingEmitter()
	broadcaster := NewPresenceBroadcaster(emitter, failingStore{}, zerolog.Nop())
	broadcaster.Publish([]string{"alice"})
	broadcaster.Close()

	require.Len(t, emitter.broadcasts, 1)
}
