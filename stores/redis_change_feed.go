package stores

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/medforge/ability"
)

const defaultChangeChannel = "ability:grant-changes"

// RedisChangeFeed broadcasts grant-change events over Redis pub/sub so every
// service instance invalidates its ruleset cache, not just the one that
// performed the write. The payload is the changed user id.
type RedisChangeFeed struct {
	client  *redis.Client
	channel string
}

func NewRedisChangeFeed(client *redis.Client) *RedisChangeFeed {
	return &RedisChangeFeed{client: client, channel: defaultChangeChannel}
}

// Publish announces that the user's grants changed.
func (f *RedisChangeFeed) Publish(ctx context.Context, userID string) error {
	return f.client.Publish(ctx, f.channel, userID).Err()
}

// Run subscribes to the change channel and forwards every event to the local
// notifier until ctx is cancelled. Callers run it in its own goroutine.
func (f *RedisChangeFeed) Run(ctx context.Context, notifier *ability.ChangeNotifier) error {
	sub := f.client.Subscribe(ctx, f.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			notifier.Notify(msg.Payload)
		}
	}
}
