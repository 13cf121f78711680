package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-chat-api/internal/observability"
)

const presenceMirrorTimeout = 2 * time.Second

// PresenceStore mirrors the online-user snapshot outside the process.
type PresenceStore interface {
	Save(ctx context.Context, userIDs []string) error
	Load(ctx context.Context) ([]string, error)
}

// PresenceBroadcaster pushes the full online-user set to every connection
// whenever the registry changes. When a store is configured the latest
// snapshot is also mirrored to it from a background goroutine, so a slow
// store never holds up registry updates.
type PresenceBroadcaster struct {
	emitter Emitter
	store   PresenceStore
	logger  zerolog.Logger

	// pending holds at most one snapshot; a newer one replaces it.
	pending   chan []string
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewPresenceBroadcaster creates a broadcaster. store may be nil. Call Close
// to flush the last snapshot and stop the mirror goroutine.
func NewPresenceBroadcaster(emitter Emitter, store PresenceStore, logger zerolog.Logger) *PresenceBroadcaster {
	p := &PresenceBroadcaster{
		emitter: emitter,
		store:   store,
		logger:  logger.With().Str("component", "presence").Logger(),
	}
	if store != nil {
		p.pending = make(chan []string, 1)
		p.done = make(chan struct{})
		p.stopped = make(chan struct{})
		go p.mirror()
	}
	return p
}

// Attach subscribes the broadcaster to registry changes.
func (p *PresenceBroadcaster) Attach(registry *Registry) *PresenceBroadcaster {
	registry.OnChange(p.Publish)
	return p
}

// Publish broadcasts a snapshot. It is safe to call with an unchanged set.
func (p *PresenceBroadcaster) Publish(userIDs []string) {
	online := userIDs
	if online == nil {
		online = []string{}
	}

	p.emitter.Broadcast(EventOnlineUsers, online)
	observability.ChatEventsEmitted().WithLabelValues(EventOnlineUsers).Inc()
	observability.ChatOnlineUsers().Set(float64(len(online)))

	if p.store != nil {
		p.enqueue(append([]string(nil), online...))
	}
}

// Close stops mirroring after saving the most recent snapshot. It is safe to
// call more than once.
func (p *PresenceBroadcaster) Close() {
	if p.store == nil {
		return
	}
	p.closeOnce.Do(func() {
		close(p.done)
		<-p.stopped
	})
}

func (p *PresenceBroadcaster) enqueue(snapshot []string) {
	select {
	case <-p.done:
		return
	default:
	}

	for {
		select {
		case p.pending <- snapshot:
			return
		default:
		}
		select {
		case <-p.pending:
		default:
		}
	}
}

func (p *PresenceBroadcaster) mirror() {
	defer close(p.stopped)
	for {
		select {
		case snapshot := <-p.pending:
			p.save(snapshot)
		case <-p.done:
			select {
			case snapshot := <-p.pending:
				p.save(snapshot)
			default:
			}
			return
		}
	}
}

func (p *PresenceBroadcaster) save(snapshot []string) {
	ctx, cancel := context.WithTimeout(context.Background(), presenceMirrorTimeout)
	defer cancel()
	if err := p.store.Save(ctx, snapshot); err != nil {
		p.logger.Warn().Err(err).Int("online", len(snapshot)).Msg("failed to mirror presence snapshot")
	}
}
