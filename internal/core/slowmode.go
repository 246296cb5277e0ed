package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/drgusroqa-netizen/Naser-Chat/internal/store"
)

// SlowmodeDecision is the outcome of a slowmode check. RetryAfter is the
// remaining cooldown in whole seconds, rounded up, set only on denial.
type SlowmodeDecision struct {
	Allowed    bool
	RetryAfter int
}

// SlowmodeGate enforces the per-channel minimum interval between messages
// from one author. The persisted message timestamps are authoritative so the
// gate survives restarts; the in-memory table is a fast path that can only
// deny, never allow, and therefore cannot let a message through early.
type SlowmodeGate struct {
	messages store.MessageStore

	mu   sync.Mutex
	last map[string]time.Time // channelID+"\x00"+authorID -> last allowed send
}

// NewSlowmodeGate creates a gate backed by the message store.
func NewSlowmodeGate(messages store.MessageStore) *SlowmodeGate {
	return &SlowmodeGate{
		messages: messages,
		last:     make(map[string]time.Time),
	}
}

// Check decides whether the author may send in the channel at now. Channels
// with slowmode disabled always pass. Check never records anything; callers
// confirm an allowed send with Record once the message is committed.
func (g *SlowmodeGate) Check(ctx context.Context, ch *store.Channel, authorID string, now time.Time) (SlowmodeDecision, error) {
	if !ch.Slowmode.Enabled || ch.Slowmode.DelaySeconds <= 0 {
		return SlowmodeDecision{Allowed: true}, nil
	}

	delay := time.Duration(ch.Slowmode.DelaySeconds) * time.Second
	key := ch.ID + "\x00" + authorID

	g.mu.Lock()
	cached, ok := g.last[key]
	g.mu.Unlock()
	if ok {
		if d := deny(cached, delay, now); d != nil {
			return *d, nil
		}
	}

	lastAt, err := g.messages.LastAuthorMessageAt(ctx, ch.ID, authorID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return SlowmodeDecision{}, fmt.Errorf("last author message: %w", err)
	}
	if err == nil {
		if d := deny(lastAt, delay, now); d != nil {
			return *d, nil
		}
	}

	return SlowmodeDecision{Allowed: true}, nil
}

// Record notes a committed send so later checks see the cooldown without a
// store round trip. Only call after the message persisted; a failed persist
// must not start a cooldown.
func (g *SlowmodeGate) Record(ch *store.Channel, authorID string, now time.Time) {
	if !ch.Slowmode.Enabled || ch.Slowmode.DelaySeconds <= 0 {
		return
	}
	g.mu.Lock()
	g.last[ch.ID+"\x00"+authorID] = now
	g.mu.Unlock()
}

// deny returns a denial decision when now is still inside the window, nil
// otherwise. The cache holds raw timestamps so a changed delay takes effect
// on the next check without invalidation.
func deny(lastAt time.Time, delay time.Duration, now time.Time) *SlowmodeDecision {
	windowEnd := lastAt.Add(delay)
	if !now.Before(windowEnd) {
		return nil
	}
	remaining := int(math.Ceil(windowEnd.Sub(now).Seconds()))
	if remaining < 1 {
		remaining = 1
	}
	return &SlowmodeDecision{Allowed: false, RetryAfter: remaining}
}
