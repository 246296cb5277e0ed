package core

import (
	"sync"

	"github.com/rs/zerolog"
)

// ServerRoom returns the room key for a server's member audience.
func ServerRoom(serverID string) string {
	return "server:" + serverID
}

// ChannelRoom returns the room key for a channel's viewer audience.
func ChannelRoom(channelID string) string {
	return "channel:" + channelID
}

// Broadcaster fans events out to room members. Satisfied by Router;
// the interface exists so services can be tested against a recorder.
type Broadcaster interface {
	Broadcast(room string, ev *Event, exclude *Conn)
	BroadcastAll(ev *Event, exclude *Conn)
}

// Router tracks which connections belong to which rooms and fans events out
// to them. Delivery is best-effort: a connection whose buffer is full misses
// the event instead of stalling the broadcast.
type Router struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Conn]struct{}
	byID    map[string]*Conn
	joined  map[*Conn]map[string]struct{}
	log     *zerolog.Logger
}

// NewRouter creates an empty room router.
func NewRouter(logger *zerolog.Logger) *Router {
	return &Router{
		rooms:  make(map[string]map[*Conn]struct{}),
		byID:   make(map[string]*Conn),
		joined: make(map[*Conn]map[string]struct{}),
		log:    logger,
	}
}

// Register makes the connection addressable for direct sends. Must be called
// before Join.
func (r *Router) Register(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.ID] = c
	if _, ok := r.joined[c]; !ok {
		r.joined[c] = make(map[string]struct{})
	}
}

// Unregister removes the connection from every room it joined and from the
// direct-send table. Safe to call for a connection that was never registered.
func (r *Router) Unregister(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for room := range r.joined[c] {
		r.dropLocked(c, room)
	}
	delete(r.joined, c)
	delete(r.byID, c.ID)
}

// Join adds the connection to a room. Joining twice is a no-op.
func (r *Router) Join(c *Conn, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[*Conn]struct{})
		r.rooms[room] = members
	}
	members[c] = struct{}{}
	if _, ok := r.joined[c]; !ok {
		r.joined[c] = make(map[string]struct{})
	}
	r.joined[c][room] = struct{}{}
}

// Leave removes the connection from a room. Leaving a room the connection is
// not in is a no-op.
func (r *Router) Leave(c *Conn, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropLocked(c, room)
	delete(r.joined[c], room)
}

func (r *Router) dropLocked(c *Conn, room string) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// Broadcast delivers an event to every member of a room, optionally skipping
// one connection (typically the originator of a typing notification).
func (r *Router) Broadcast(room string, ev *Event, exclude *Conn) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.rooms[room] {
		if c == exclude {
			continue
		}
		if !c.push(ev) {
			r.log.Warn().
				Str("conn_id", c.ID).
				Str("room", room).
				Str("event", ev.Name).
				Msg("slow consumer, event dropped")
		}
	}
}

// BroadcastAll delivers an event to every registered connection. Used for
// presence transitions, which are not scoped to a room.
func (r *Router) BroadcastAll(ev *Event, exclude *Conn) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.byID {
		if c == exclude {
			continue
		}
		if !c.push(ev) {
			r.log.Warn().
				Str("conn_id", c.ID).
				Str("event", ev.Name).
				Msg("slow consumer, event dropped")
		}
	}
}

// SendToConn delivers an event to a single connection by its ID. Returns
// false when no such connection is registered or its buffer is full.
func (r *Router) SendToConn(connID string, ev *Event) bool {
	r.mu.RLock()
	c, ok := r.byID[connID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return c.push(ev)
}

// InRoom reports whether the connection currently belongs to the room.
func (r *Router) InRoom(c *Conn, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.joined[c][room]
	return ok
}
