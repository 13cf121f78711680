package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNATSJournalSubject(t *testing.T) {
	require.Equal(t, "chat.events.dm.sent", NewNATSJournal(nil, "", zerolog.Nop()).Subject(JournalDirectMessageSent))
	require.Equal(t, "gema.chat.events.channel.created", NewNATSJournal(nil, "gema:chat", zerolog.Nop()).Subject(JournalChannelCreated))
}

func TestJournalWithoutConnectionIsNoop(t *testing.T) {
	var journal *NATSJournal
	require.NotPanics(t, func() { journal.Record(context.Background(), JournalChannelDeleted, nil) })
	require.NotPanics(t, func() {
		NewNATSJournal(nil, "chat", zerolog.Nop()).Record(context.Background(), JournalMemberLeft, map[string]string{"a": "b"})
	})
	require.NotPanics(t, func() { NopJournal{}.Record(context.Background(), JournalMembersAdded, nil) })
}

type auditRow struct {
	Name       string
	Payload    string
	RecordedAt time.Time
}

type memoryAuditStore struct {
	rows []auditRow
	err  error
}

func (s *memoryAuditStore) Append(_ context.Context, name string, payload []byte, recordedAt time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, auditRow{Name: name, Payload: string(payload), RecordedAt: recordedAt})
	return nil
}

func TestAuditJournalStoresEncodedPayload(t *testing.T) {
	store := &memoryAuditStore{}
	journal := NewAuditJournal(store, zerolog.Nop())
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	journal.now = func() time.Time { return fixed }

	journal.Record(context.Background(), JournalChannelCreated, map[string]string{"id": "c1"})

	require.Len(t, store.rows, 1)
	require.Equal(t, JournalChannelCreated, store.rows[0].Name)
	require.JSONEq(t, `{"id":"c1"}`, store.rows[0].Payload)
	require.Equal(t, time.UTC, store.rows[0].RecordedAt.Location())
	require.True(t, fixed.Equal(store.rows[0].RecordedAt))
}

func TestAuditJournalSwallowsFailures(t *testing.T) {
	store := &memoryAuditStore{err: errors.New("disk full")}
	journal := NewAuditJournal(store, zerolog.Nop())

	require.NotPanics(t, func() { journal.Record(context.Background(), JournalMemberLeft, nil) })
	require.NotPanics(t, func() { journal.Record(context.Background(), JournalMemberLeft, make(chan int)) })
	require.Empty(t, store.rows)

	var missing *AuditJournal
	require.NotPanics(t, func() { missing.Record(context.Background(), JournalMemberLeft, nil) })
}

func TestMultiJournalRecordsToEach(t *testing.T) {
	first := &memoryAuditStore{}
	second := &memoryAuditStore{}
	journal := MultiJournal{NopJournal{}, NewAuditJournal(first, zerolog.Nop()), NewAuditJournal(second, zerolog.Nop())}

	journal.Record(context.Background(), JournalDirectMessageDeleted, map[string]string{"messageId": "m1"})

	require.Len(t, first.rows, 1)
	require.Len(t, second.rows, 1)
	require.Equal(t, JournalDirectMessageDeleted, second.rows[0].Name)
}
