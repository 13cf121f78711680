package realtime

import (
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-chat-api/internal/observability"
)

// Emitter delivers events to live transport connections.
type Emitter interface {
	// Emit queues an event for a single connection, reporting whether the
	// connection was live and accepted the frame.
	Emit(connectionID, event string, payload interface{}) bool
	// Broadcast queues an event for every live connection.
	Broadcast(event string, payload interface{})
}

// Locator resolves a user id to its live connection id.
type Locator interface {
	Lookup(userID string) (string, bool)
}

// Notifier turns a domain event addressed to users into connection emissions.
// Users without a live connection are skipped silently.
type Notifier struct {
	locator Locator
	emitter Emitter
	logger  zerolog.Logger
}

// NewNotifier wires a notifier over a connection locator and an emitter.
func NewNotifier(locator Locator, emitter Emitter, logger zerolog.Logger) *Notifier {
	return &Notifier{
		locator: locator,
		emitter: emitter,
		logger:  logger.With().Str("component", "notifier").Logger(),
	}
}

// NotifyUser emits to one user's connection if they are online.
func (n *Notifier) NotifyUser(userID, event string, payload interface{}) bool {
	connectionID, ok := n.locator.Lookup(userID)
	if !ok {
		return false
	}
	return n.emit(connectionID, event, payload)
}

// NotifyEach resolves and emits for every entry independently. Repeated user
// ids receive repeated emissions; callers that need a set use NotifyParties.
func (n *Notifier) NotifyEach(userIDs []string, event string, payload interface{}) int {
	delivered := 0
	for _, userID := range userIDs {
		if n.NotifyUser(userID, event, payload) {
			delivered++
		}
	}
	return delivered
}

// NotifyParties emits exactly once per distinct resolved connection. The user
// id set is de-duplicated first, then resolved connection ids are compared so
// two users transiently sharing a socket still receive a single frame.
func (n *Notifier) NotifyParties(userIDs []string, event string, payload interface{}) int {
	seenUsers := make(map[string]struct{}, len(userIDs))
	seenConns := make(map[string]struct{}, len(userIDs))
	delivered := 0

	for _, userID := range userIDs {
		if userID == "" {
			continue
		}
		if _, dup := seenUsers[userID]; dup {
			continue
		}
		seenUsers[userID] = struct{}{}

		connectionID, ok := n.locator.Lookup(userID)
		if !ok {
			continue
		}
		if _, dup := seenConns[connectionID]; dup {
			continue
		}
		seenConns[connectionID] = struct{}{}

		if n.emit(connectionID, event, payload) {
			delivered++
		}
	}
	return delivered
}

func (n *Notifier) emit(connectionID, event string, payload interface{}) bool {
	if !n.emitter.Emit(connectionID, event, payload) {
		n.logger.Debug().Str("event", event).Str("connection_id", connectionID).Msg("emission skipped")
		return false
	}
	observability.ChatEventsEmitted().WithLabelValues(event).Inc()
	return true
}

// InterestedParties returns members ∪ {admin} in first-seen order without duplicates.
func InterestedParties(admin string, members []string) []string {
	parties := make([]string, 0, len(members)+1)
	seen := make(map[string]struct{}, len(members)+1)
	add := func(userID string) {
		if userID == "" {
			return
		}
		if _, ok := seen[userID]; ok {
			return
		}
		seen[userID] = struct{}{}
		parties = append(parties, userID)
	}
	for _, member := range members {
		add(member)
	}
	add(admin)
	return parties
}
