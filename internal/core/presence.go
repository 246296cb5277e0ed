package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Presence status values carried by user_status_change events.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// PresenceStore tracks which connections each user currently holds. A user
// is online while they hold at least one connection.
type PresenceStore interface {
	// Add records a connection for the user and reports whether it is the
	// user's first live connection. Re-adding a known connection reports
	// false.
	Add(ctx context.Context, userID, connID string) (first bool, err error)

	// Remove drops a connection. Returns the owning user and whether it was
	// their last live connection. An unknown connID returns an empty userID.
	Remove(ctx context.Context, connID string) (userID string, last bool, err error)

	// IsOnline reports whether the user holds any live connection.
	IsOnline(ctx context.Context, userID string) (bool, error)

	// OnlineUsers lists all users with at least one live connection.
	OnlineUsers(ctx context.Context) ([]string, error)
}

type memoryPresence struct {
	mu     sync.Mutex
	byUser map[string]map[string]struct{}
	byConn map[string]string
}

// NewMemoryPresence creates an in-process presence store. Suitable for a
// single-node deployment; multi-node setups use the Redis-backed store.
func NewMemoryPresence() PresenceStore {
	return &memoryPresence{
		byUser: make(map[string]map[string]struct{}),
		byConn: make(map[string]string),
	}
}

func (p *memoryPresence) Add(ctx context.Context, userID, connID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, known := p.byConn[connID]; known {
		return false, nil
	}
	conns, ok := p.byUser[userID]
	if !ok {
		conns = make(map[string]struct{})
		p.byUser[userID] = conns
	}
	conns[connID] = struct{}{}
	p.byConn[connID] = userID
	return len(conns) == 1, nil
}

func (p *memoryPresence) Remove(ctx context.Context, connID string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	userID, ok := p.byConn[connID]
	if !ok {
		return "", false, nil
	}
	delete(p.byConn, connID)
	conns := p.byUser[userID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(p.byUser, userID)
		return userID, true, nil
	}
	return userID, false, nil
}

func (p *memoryPresence) IsOnline(ctx context.Context, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byUser[userID]) > 0, nil
}

func (p *memoryPresence) OnlineUsers(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	users := make([]string, 0, len(p.byUser))
	for userID := range p.byUser {
		users = append(users, userID)
	}
	return users, nil
}

// PresenceTracker turns connection lifecycle calls into status broadcasts.
// A transition is announced exactly once: opening a second tab or closing
// one of several emits nothing.
type PresenceTracker struct {
	store  PresenceStore
	events Broadcaster
	log    *zerolog.Logger
}

// NewPresenceTracker creates a tracker over the given presence store.
func NewPresenceTracker(store PresenceStore, events Broadcaster, logger *zerolog.Logger) *PresenceTracker {
	return &PresenceTracker{store: store, events: events, log: logger}
}

// MarkOnline records a new connection and broadcasts the online transition
// if it is the user's first.
func (t *PresenceTracker) MarkOnline(ctx context.Context, userID, connID string) error {
	first, err := t.store.Add(ctx, userID, connID)
	if err != nil {
		return fmt.Errorf("presence add: %w", err)
	}
	if first {
		t.events.BroadcastAll(&Event{
			Name:    EventUserStatusChange,
			Payload: StatusChangePayload{UserID: userID, Status: StatusOnline},
		}, nil)
	}
	return nil
}

// MarkOffline records a closed connection and broadcasts the offline
// transition if it was the user's last. Unknown connections are a no-op.
func (t *PresenceTracker) MarkOffline(ctx context.Context, connID string) error {
	userID, last, err := t.store.Remove(ctx, connID)
	if err != nil {
		return fmt.Errorf("presence remove: %w", err)
	}
	if userID == "" {
		return nil
	}
	if last {
		t.events.BroadcastAll(&Event{
			Name:    EventUserStatusChange,
			Payload: StatusChangePayload{UserID: userID, Status: StatusOffline},
		}, nil)
	}
	return nil
}

// IsOnline reports whether the user currently holds any connection.
func (t *PresenceTracker) IsOnline(ctx context.Context, userID string) bool {
	online, err := t.store.IsOnline(ctx, userID)
	if err != nil {
		t.log.Warn().Err(err).Str("user_id", userID).Msg("presence lookup failed")
		return false
	}
	return online
}

// OnlineUsers lists all currently online users.
func (t *PresenceTracker) OnlineUsers(ctx context.Context) []string {
	users, err := t.store.OnlineUsers(ctx)
	if err != nil {
		t.log.Warn().Err(err).Msg("presence list failed")
		return nil
	}
	return users
}
