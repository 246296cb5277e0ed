package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/drgusroqa-netizen/Naser-Chat/internal/store"
	"github.com/drgusroqa-netizen/Naser-Chat/internal/store/sqlite"
	"github.com/drgusroqa-netizen/Naser-Chat/internal/utils"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

type recordedEvent struct {
	Room    string
	All     bool
	Event   *Event
	Exclude *Conn
}

// recorder captures broadcasts so tests can assert on emitted events.
type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) Broadcast(room string, ev *Event, exclude *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Room: room, Event: ev, Exclude: exclude})
}

func (r *recorder) BroadcastAll(ev *Event, exclude *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{All: true, Event: ev, Exclude: exclude})
}

func (r *recorder) named(name string) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedEvent
	for _, rec := range r.events {
		if rec.Event.Name == name {
			out = append(out, rec)
		}
	}
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// fixture is a seeded store with one server: an owner, a moderator, a plain
// member, an outsider who belongs to no server, and a general channel.
type fixture struct {
	st       *sqlite.SQLiteStore
	owner    *store.User
	mod      *store.User
	member   *store.User
	outsider *store.User
	srv      *store.Server
	ch       *store.Channel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	f := &fixture{st: st}

	f.owner = f.newUser(t, "owner")
	f.mod = f.newUser(t, "mod")
	f.member = f.newUser(t, "alice")
	f.outsider = f.newUser(t, "stranger")

	now := time.Now().UTC()
	f.srv = &store.Server{
		ID:         utils.NewID(),
		Name:       "test server",
		OwnerID:    f.owner.ID,
		InviteCode: utils.NewInviteCode(),
		CreatedAt:  now,
	}
	if err := st.CreateServer(ctx, f.srv, &store.Member{UserID: f.owner.ID, Role: store.RoleOwner, JoinedAt: now}); err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	f.addMember(t, f.mod.ID, store.RoleModerator)
	f.addMember(t, f.member.ID, store.RoleMember)

	f.ch = f.newChannel(t, "general", store.Slowmode{})
	return f
}

func (f *fixture) newUser(t *testing.T, username string) *store.User {
	t.Helper()
	u := &store.User{
		ID:           utils.NewID(),
		Username:     username,
		DisplayName:  username,
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC(),
	}
	if err := f.st.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return u
}

func (f *fixture) addMember(t *testing.T, userID string, role store.Role) {
	t.Helper()
	m := &store.Member{UserID: userID, Role: role, JoinedAt: time.Now().UTC()}
	if err := f.st.AddMember(context.Background(), f.srv.ID, m); err != nil {
		t.Fatalf("failed to add member: %v", err)
	}
}

func (f *fixture) newChannel(t *testing.T, name string, slowmode store.Slowmode) *store.Channel {
	t.Helper()
	ch := &store.Channel{
		ID:        utils.NewID(),
		ServerID:  f.srv.ID,
		Name:      name,
		Type:      store.ChannelText,
		Slowmode:  slowmode,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.st.CreateChannel(context.Background(), ch); err != nil {
		t.Fatalf("failed to create channel: %v", err)
	}
	return ch
}

func (f *fixture) pipeline(rec *recorder) *Pipeline {
	resolver := NewResolver(f.st, f.st)
	gate := NewSlowmodeGate(f.st)
	reactions := NewReactionAggregator(f.st)
	return NewPipeline(f.st, resolver, gate, reactions, rec, 5*time.Second, testLogger())
}

func (f *fixture) membership(rec *recorder, presence *PresenceTracker) *Membership {
	resolver := NewResolver(f.st, f.st)
	if presence == nil {
		presence = NewPresenceTracker(NewMemoryPresence(), rec, testLogger())
	}
	return NewMembership(f.st, resolver, presence, rec, 5*time.Second, testLogger())
}

func wantCode(t *testing.T, cerr *CoreError, code string) {
	t.Helper()
	if cerr == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if cerr.Code != code {
		t.Fatalf("error code = %s (%s), want %s", cerr.Code, cerr.Message, code)
	}
}
