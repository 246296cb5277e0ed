// Package presence provides the Redis-backed presence store used when
// several server nodes must agree on who is online.
package presence

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/drgusroqa-netizen/Naser-Chat/internal/core"
)

const (
	onlineSetKey  = "presence:online"
	userKeyPrefix = "presence:user:"
	connKeyPrefix = "presence:conn:"
)

type redisPresence struct {
	client *redis.Client
}

// NewRedis creates a presence store on an existing Redis client. Connection
// sets are shared across nodes, so a user counted online on one node stays
// online until their last connection anywhere closes.
func NewRedis(client *redis.Client) core.PresenceStore {
	return &redisPresence{client: client}
}

// Dial connects to Redis at addr and verifies the connection.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (p *redisPresence) Add(ctx context.Context, userID, connID string) (bool, error) {
	userKey := userKeyPrefix + userID

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, connKeyPrefix+connID, userID, 0)
	added := pipe.SAdd(ctx, userKey, connID)
	card := pipe.SCard(ctx, userKey)
	pipe.SAdd(ctx, onlineSetKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("presence add: %w", err)
	}
	// Re-adding a known connection never counts as a first connection.
	return added.Val() == 1 && card.Val() == 1, nil
}

func (p *redisPresence) Remove(ctx context.Context, connID string) (string, bool, error) {
	connKey := connKeyPrefix + connID
	userID, err := p.client.Get(ctx, connKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("presence conn lookup: %w", err)
	}
	userKey := userKeyPrefix + userID

	pipe := p.client.TxPipeline()
	pipe.Del(ctx, connKey)
	pipe.SRem(ctx, userKey, connID)
	card := pipe.SCard(ctx, userKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", false, fmt.Errorf("presence remove: %w", err)
	}

	last := card.Val() == 0
	if last {
		if err := p.client.SRem(ctx, onlineSetKey, userID).Err(); err != nil {
			return "", false, fmt.Errorf("presence offline mark: %w", err)
		}
	}
	return userID, last, nil
}

func (p *redisPresence) IsOnline(ctx context.Context, userID string) (bool, error) {
	online, err := p.client.SIsMember(ctx, onlineSetKey, userID).Result()
	if err != nil {
		return false, fmt.Errorf("presence is-online: %w", err)
	}
	return online, nil
}

func (p *redisPresence) OnlineUsers(ctx context.Context) ([]string, error) {
	users, err := p.client.SMembers(ctx, onlineSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("presence online list: %w", err)
	}
	return users, nil
}
