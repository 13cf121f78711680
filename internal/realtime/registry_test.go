package realtime

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryLookupReflectsLatestBind(t *testing.T) {
	registry := NewRegistry()

	registry.Bind("alice", "c1")
	connectionID, ok := registry.Lookup("alice")
	require.True(t, ok)
	require.Equal(t, "c1", connectionID)

	registry.Bind("alice", "c2")
	connectionID, ok = registry.Lookup("alice")
	require.True(t, ok)
	require.Equal(t, "c2", connectionID)

	// The superseded connection no longer matches anything.
	_, removed := registry.Unbind("c1")
	require.False(t, removed)
	connectionID, ok = registry.Lookup("alice")
	require.True(t, ok)
	require.Equal(t, "c2", connectionID)

	userID, removed := registry.Unbind("c2")
	require.True(t, removed)
	require.Equal(t, "alice", userID)
	_, ok = registry.Lookup("alice")
	require.False(t, ok)
}

func TestRegistryReconnectBroadcastsTwice(t *testing.T) {
	registry := NewRegistry()

	var snapshots [][]string
	registry.OnChange(func(userIDs []string) {
		snapshots = append(snapshots, userIDs)
	})

	registry.Bind("alice", "c1")
	registry.Bind("alice", "c2")

	require.Len(t, snapshots, 2)
	require.Equal(t, []string{"alice"}, snapshots[1])

	connectionID, ok := registry.Lookup("alice")
	require.True(t, ok)
	require.Equal(t, "c2", connectionID)

	// Closing the stale socket afterwards must not drop the new binding or broadcast.
	registry.Unbind("c1")
	require.Len(t, snapshots, 2)
	require.Equal(t, []string{"alice"}, registry.UserIDs())
}

func TestRegistryUnknownUnbindIsNoop(t *testing.T) {
	registry := NewRegistry()
	calls := 0
	registry.OnChange(func([]string) { calls++ })

	_, removed := registry.Unbind("ghost")
	require.False(t, removed)
	require.Zero(t, calls)
}

func TestRegistryConnectionReboundToAnotherUser(t *testing.T) {
	registry := NewRegistry()

	registry.Bind("alice", "c1")
	registry.Bind("bob", "c1")

	_, ok := registry.Lookup("alice")
	require.False(t, ok)
	connectionID, ok := registry.Lookup("bob")
	require.True(t, ok)
	require.Equal(t, "c1", connectionID)
	require.Equal(t, 1, registry.Len())
}

func TestRegistryIgnoresEmptyIdentifiers(t *testing.T) {
	registry := NewRegistry()
	registry.Bind("", "c1")
	registry.Bind("alice", "")
	require.Zero(t, registry.Len())
}

func TestRegistrySequencesMatchModel(t *testing.T) {
	type op struct {
		bind bool
		user string
		conn string
	}
	sequences := [][]op{
		{{true, "a", "1"}, {true, "b", "2"}, {false, "", "1"}, {true, "a", "3"}},
		{{true, "a", "1"}, {true, "a", "2"}, {false, "", "2"}, {false, "", "1"}},
		{{true, "a", "1"}, {false, "", "9"}, {true, "b", "1"}, {true, "a", "4"}},
	}

	for i, sequence := range sequences {
		t.Run(fmt.Sprintf("sequence_%d", i), func(t *testing.T) {
			registry := NewRegistry()
			model := map[string]string{}
			for _, step := range sequence {
				if step.bind {
					for user, conn := range model {
						if conn == step.conn {
							delete(model, user)
						}
					}
					model[step.user] = step.conn
					registry.Bind(step.user, step.conn)
					continue
				}
				for user, conn := range model {
					if conn == step.conn {
						delete(model, user)
					}
				}
				registry.Unbind(step.conn)
			}

			for _, user := range []string{"a", "b"} {
				expected, expectedOK := model[user]
				actual, actualOK := registry.Lookup(user)
				require.Equal(t, expectedOK, actualOK, user)
				require.Equal(t, expected, actual, user)
			}
		})
	}
}

func TestRegistryConcurrentBindUnbind(t *testing.T) {
	registry := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", i%10)
			conn := fmt.Sprintf("conn-%d", i)
			registry.Bind(user, conn)
			if i%2 == 0 {
				registry.Unbind(conn)
			}
			registry.Lookup(user)
		}(i)
	}
	wg.Wait()

	for _, user := range registry.UserIDs() {
		conn, ok := registry.Lookup(user)
		require.True(t, ok)
		owner, removed := registry.Unbind(conn)
		require.True(t, removed)
		require.Equal(t, user, owner)
	}
	require.Zero(t, registry.Len())
}
