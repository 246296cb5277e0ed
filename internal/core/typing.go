package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type typingKey struct {
	channelID string
	userID    string
}

// TypingTracker keeps short-lived typing state per channel/user pair. An
// entry expires after the TTL unless refreshed; expiry and explicit clears
// both announce a single stopped-typing event for the entry.
type TypingTracker struct {
	events Broadcaster
	ttl    time.Duration
	sweep  time.Duration
	log    *zerolog.Logger

	mu      sync.Mutex
	entries map[typingKey]time.Time // expiry deadline
}

// NewTypingTracker creates a tracker. ttl bounds how long a typing signal
// stays live without refresh; sweep is how often expired entries are reaped.
func NewTypingTracker(events Broadcaster, ttl, sweep time.Duration, logger *zerolog.Logger) *TypingTracker {
	return &TypingTracker{
		events:  events,
		ttl:     ttl,
		sweep:   sweep,
		log:     logger,
		entries: make(map[typingKey]time.Time),
	}
}

// SetTyping marks the user as typing in the channel and broadcasts to the
// channel room, skipping the originating connection. Repeated calls refresh
// the TTL and re-broadcast, matching client keystroke throttling.
func (t *TypingTracker) SetTyping(channelID, userID string, origin *Conn) {
	t.mu.Lock()
	t.entries[typingKey{channelID, userID}] = time.Now().Add(t.ttl)
	t.events.Broadcast(ChannelRoom(channelID), &Event{
		Name:    EventUserTyping,
		Payload: TypingPayload{UserID: userID, IsTyping: true, ChannelID: channelID},
	}, origin)
	t.mu.Unlock()
}

// ClearTyping removes the user's typing state and announces it. Clearing an
// absent entry is a no-op so an explicit clear racing the sweeper never
// produces a duplicate stopped-typing event.
func (t *TypingTracker) ClearTyping(channelID, userID string, origin *Conn) {
	key := typingKey{channelID, userID}
	t.mu.Lock()
	if _, ok := t.entries[key]; ok {
		delete(t.entries, key)
		t.broadcastStopped(key, origin)
	}
	t.mu.Unlock()
}

// ClearUser drops all typing entries of one user, announcing each. Called
// when a user's last connection closes.
func (t *TypingTracker) ClearUser(userID string) {
	t.mu.Lock()
	for key := range t.entries {
		if key.userID == userID {
			delete(t.entries, key)
			t.broadcastStopped(key, nil)
		}
	}
	t.mu.Unlock()
}

// Run sweeps expired entries until the context is cancelled.
func (t *TypingTracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t.sweepExpired(now)
		}
	}
}

func (t *TypingTracker) sweepExpired(now time.Time) {
	t.mu.Lock()
	for key, deadline := range t.entries {
		if now.After(deadline) {
			delete(t.entries, key)
			t.broadcastStopped(key, nil)
		}
	}
	t.mu.Unlock()
}

// broadcastStopped must be called with t.mu held so the delete and the
// announcement stay atomic relative to concurrent clears.
func (t *TypingTracker) broadcastStopped(key typingKey, origin *Conn) {
	t.events.Broadcast(ChannelRoom(key.channelID), &Event{
		Name:    EventUserTyping,
		Payload: TypingPayload{UserID: key.userID, IsTyping: false, ChannelID: key.channelID},
	}, origin)
}
