package realtime

import (
	"context"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisPresenceStore keeps the presence snapshot in a Redis set so other
// services can read who is online.
type RedisPresenceStore struct {
	client *redis.Client
	key    string
}

// NewRedisPresenceStore creates a store writing to "<prefix>:presence".
func NewRedisPresenceStore(client *redis.Client, prefix string) *RedisPresenceStore {
	if prefix == "" {
		prefix = "chat"
	}
	return &RedisPresenceStore{client: client, key: prefix + ":presence"}
}

// Key returns the Redis key holding the snapshot.
func (s *RedisPresenceStore) Key() string {
	return s.key
}

// Save atomically replaces the stored set with userIDs.
func (s *RedisPresenceStore) Save(ctx context.Context, userIDs []string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(userIDs) > 0 {
			members := make([]interface{}, 0, len(userIDs))
			for _, userID := range userIDs {
				members = append(members, userID)
			}
			pipe.SAdd(ctx, s.key, members...)
		}
		return nil
	})
	return err
}

// Load returns the stored snapshot in sorted order.
func (s *RedisPresenceStore) Load(ctx context.Context) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(members)
	return members, nil
}
