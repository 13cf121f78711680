package realtime

import (
	"sort"
	"sync"
)

// ChangeListener receives the online-user snapshot after every registry change.
type ChangeListener func(userIDs []string)

// Registry binds logical users to their single live connection id.
// A newer binding for the same user replaces the previous one; the replaced
// connection id is forgotten and can no longer unbind anything.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]string
	byConn map[string]string

	// notifyMu keeps listener calls in the same order as the mutations.
	notifyMu  sync.Mutex
	listeners []ChangeListener
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]string),
		byConn: make(map[string]string),
	}
}

// OnChange registers a listener invoked with the current snapshot after each
// bind and each effective unbind.
func (r *Registry) OnChange(listener ChangeListener) {
	if listener == nil {
		return
	}
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

// Bind unconditionally maps userID to connectionID.
func (r *Registry) Bind(userID, connectionID string) {
	if userID == "" || connectionID == "" {
		return
	}

	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	if previous, ok := r.byUser[userID]; ok {
		delete(r.byConn, previous)
	}
	if owner, ok := r.byConn[connectionID]; ok && owner != userID {
		delete(r.byUser, owner)
	}
	r.byUser[userID] = connectionID
	r.byConn[connectionID] = userID
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snapshot)
}

// Unbind removes the binding whose value is connectionID. It returns the user
// that was bound, or false when no binding matched.
func (r *Registry) Unbind(connectionID string) (string, bool) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	userID, ok := r.byConn[connectionID]
	if !ok {
		r.mu.Unlock()
		return "", false
	}
	delete(r.byConn, connectionID)
	delete(r.byUser, userID)
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snapshot)
	return userID, true
}

// Lookup returns the live connection id of a user.
func (r *Registry) Lookup(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connectionID, ok := r.byUser[userID]
	return connectionID, ok
}

// UserIDs returns the sorted set of currently bound users.
func (r *Registry) UserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Len returns the number of bound users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

func (r *Registry) snapshotLocked() []string {
	ids := make([]string, 0, len(r.byUser))
	for userID := range r.byUser {
		ids = append(ids, userID)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) notify(snapshot []string) {
	for _, listener := range r.listeners {
		listener(snapshot)
	}
}
