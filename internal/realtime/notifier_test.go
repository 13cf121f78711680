package realtime

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type emission struct {
	ConnectionID string
	Event        string
	Payload      interface{}
}

type recordingEmitter struct {
	mu         sync.Mutex
	emissions  []emission
	broadcasts []emission
	offline    map[string]bool
}

func newRecordingEmitter() *recordingEmitter {
	return &recordingEmitter{offline: map[string]bool{}}
}

func (r *recordingEmitter) Emit(connectionID, event string, payload interface{}) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offline[connectionID] {
		return false
	}
	r.emissions = append(r.emissions, emission{ConnectionID: connectionID, Event: event, Payload: payload})
	return true
}

func (r *recordingEmitter) Broadcast(event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, emission{Event: event, Payload: payload})
}

func (r *recordingEmitter) connections() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.emissions))
	for _, e := range r.emissions {
		ids = append(ids, e.ConnectionID)
	}
	return ids
}

func TestNotifyPartiesEmitsOncePerConnection(t *testing.T) {
	registry := NewRegistry()
	registry.Bind("admin", "c-admin")
	registry.Bind("bob", "c-bob")
	registry.Bind("carol", "c-carol")

	emitter := newRecordingEmitter()
	notifier := NewNotifier(registry, emitter, zerolog.Nop())

	parties := InterestedParties("admin", []string{"admin", "bob", "carol"})
	delivered := notifier.NotifyParties(parties, EventReceiveChannelMessage, "hello")

	require.Equal(t, 3, delivered)
	require.ElementsMatch(t, []string{"c-admin", "c-bob", "c-carol"}, emitter.connections())
}

func TestNotifyPartiesSkipsOfflineUsers(t *testing.T) {
	registry := NewRegistry()
	registry.Bind("alice", "c-alice")

	emitter := newRecordingEmitter()
	notifier := NewNotifier(registry, emitter, zerolog.Nop())

	delivered := notifier.NotifyParties([]string{"alice", "bob", "", "alice"}, EventChannelUpdated, nil)
	require.Equal(t, 1, delivered)
	require.Equal(t, []string{"c-alice"}, emitter.connections())
}

func TestNotifyPartiesCountsOnlyAcceptedFrames(t *testing.T) {
	registry := NewRegistry()
	registry.Bind("alice", "c-alice")
	registry.Bind("bob", "c-bob")

	emitter := newRecordingEmitter()
	emitter.offline["c-bob"] = true
	notifier := NewNotifier(registry, emitter, zerolog.Nop())

	require.Equal(t, 1, notifier.NotifyParties([]string{"alice", "bob"}, EventChannelDeleted, nil))
}

func TestNotifyEachRepeatsForDuplicateUsers(t *testing.T) {
	registry := NewRegistry()
	registry.Bind("alice", "c-alice")

	emitter := newRecordingEmitter()
	notifier := NewNotifier(registry, emitter, zerolog.Nop())

	delivered := notifier.NotifyEach([]string{"alice", "alice"}, EventReceiveMessage, "self")
	require.Equal(t, 2, delivered)
	require.Equal(t, []string{"c-alice", "c-alice"}, emitter.connections())
}

func TestNotifyUserOffline(t *testing.T) {
	notifier := NewNotifier(NewRegistry(), newRecordingEmitter(), zerolog.Nop())
	require.False(t, notifier.NotifyUser("nobody", EventMemberRemoved, nil))
}

func TestInterestedPartiesAppendsAdminOnce(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, InterestedParties("a", []string{"a", "b", "a"}))
	require.Equal(t, []string{"b", "c", "a"}, InterestedParties("a", []string{"b", "c"}))
	require.Equal(t, []string{"b"}, InterestedParties("", []string{"b", ""}))
}
