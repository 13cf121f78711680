package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Domain event names published to the journal.
const (
	JournalDirectMessageSent      = "dm.sent"
	JournalDirectMessageDeleted   = "dm.deleted"
	JournalChannelMessageSent     = "channel.message.sent"
	JournalChannelMessageDeleted  = "channel.message.deleted"
	JournalChannelMessageRedacted = "channel.message.redacted"
	JournalChannelCreated         = "channel.created"
	JournalChannelUpdated         = "channel.updated"
	JournalChannelDeleted         = "channel.deleted"
	JournalMembersAdded           = "channel.members.added"
	JournalMemberRemoved          = "channel.member.removed"
	JournalMemberLeft             = "channel.member.left"
)

// Journal records completed dispatches for downstream consumers. It is not a
// delivery path: sockets are only fed from the in-process registry.
type Journal interface {
	Record(ctx context.Context, name string, payload interface{})
}

// JournalEntry is the message body published for each domain event.
type JournalEntry struct {
	Name       string      `json:"name"`
	Payload    interface{} `json:"payload"`
	RecordedAt time.Time   `json:"recordedAt"`
}

// NopJournal discards entries.
type NopJournal struct{}

// Record implements Journal.
func (NopJournal) Record(context.Context, string, interface{}) {}

// NATSJournal publishes entries to "<prefix>.events.<name>".
type NATSJournal struct {
	conn   *nats.Conn
	prefix string
	logger zerolog.Logger
	now    func() time.Time
}

// NewNATSJournal creates a journal over an established NATS connection.
func NewNATSJournal(conn *nats.Conn, prefix string, logger zerolog.Logger) *NATSJournal {
	prefix = strings.Trim(strings.ReplaceAll(prefix, ":", "."), ".")
	if prefix == "" {
		prefix = "chat"
	}
	return &NATSJournal{
		conn:   conn,
		prefix: prefix,
		logger: logger.With().Str("component", "journal").Logger(),
		now:    time.Now,
	}
}

// Subject returns the NATS subject used for an event name.
func (j *NATSJournal) Subject(name string) string {
	return j.prefix + ".events." + name
}

// Record publishes best effort; failures are logged and never surface.
func (j *NATSJournal) Record(_ context.Context, name string, payload interface{}) {
	if j == nil || j.conn == nil {
		return
	}

	data, err := json.Marshal(JournalEntry{Name: name, Payload: payload, RecordedAt: j.now().UTC()})
	if err != nil {
		j.logger.Warn().Err(err).Str("event", name).Msg("failed to encode journal entry")
		return
	}

	if err := j.conn.Publish(j.Subject(name), data); err != nil {
		j.logger.Warn().Err(err).Str("event", name).Msg("failed to publish journal entry")
	}
}

// AuditStore persists encoded journal entries.
type AuditStore interface {
	Append(ctx context.Context, name string, payload []byte, recordedAt time.Time) error
}

// AuditJournal writes every entry to a durable store.
type AuditJournal struct {
	store  AuditStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewAuditJournal creates a journal backed by store.
func NewAuditJournal(store AuditStore, logger zerolog.Logger) *AuditJournal {
	return &AuditJournal{
		store:  store,
		logger: logger.With().Str("component", "audit_journal").Logger(),
		now:    time.Now,
	}
}

// Record stores the payload as JSON; failures are logged and never surface.
func (j *AuditJournal) Record(ctx context.Context, name string, payload interface{}) {
	if j == nil || j.store == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		j.logger.Warn().Err(err).Str("event", name).Msg("failed to encode audit entry")
		return
	}

	if err := j.store.Append(ctx, name, data, j.now().UTC()); err != nil {
		j.logger.Warn().Err(err).Str("event", name).Msg("failed to persist audit entry")
	}
}

// MultiJournal records each entry to every journal in order.
type MultiJournal []Journal

// Record implements Journal.
func (m MultiJournal) Record(ctx context.Context, name string, payload interface{}) {
	for _, journal := range m {
		journal.Record(ctx, name, payload)
	}
}
