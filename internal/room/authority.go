package room

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rendezvous-chat/server/internal/domain"
)

// deliverTimeout bounds how long join-time enumeration waits for a
// connection's write loop to drain before giving up on it.
const deliverTimeout = 5 * time.Second

type ClientKind int

const (
	KindUser ClientKind = iota
	KindAdmin
)

type userEntry struct {
	name string
	out  *Outbox
}

type joinCmd struct {
	kind ClientKind
	id   domain.ClientID
	name string
	out  *Outbox
}

type leaveCmd struct {
	id domain.ClientID
}

type relayCmd struct {
	from    domain.ClientID
	payload []byte
}

type expireCmd struct {
	pairing domain.Pairing
}

type snapshotCmd struct {
	reply chan Snapshot
}

// Snapshot is a point-in-time copy of room state, taken on the authority
// goroutine so it is always internally consistent.
type Snapshot struct {
	Users  int
	Admins int
	Active []domain.Pairing
}

// Authority is the single owner of one room's state. Every mutation
// arrives as a command on one channel and is handled by one goroutine,
// so Join, Leave, Relay and match expiry never interleave.
type Authority struct {
	room          *domain.Room
	matchDuration time.Duration

	cmds chan any
	done chan struct{}
	lg   zerolog.Logger

	// Owned by the run loop. Nothing outside it reads or writes these.
	users   map[domain.ClientID]*userEntry
	admins  map[domain.ClientID]*Outbox
	active  []domain.Pairing
	history []domain.Pairing
}

func NewAuthority(room *domain.Room, matchDuration time.Duration) *Authority {
	a := &Authority{
		room:          room,
		matchDuration: matchDuration,
		cmds:          make(chan any, 64),
		done:          make(chan struct{}),
		lg:            log.With().Str("module", "room").Str("room", string(room.ID)).Logger(),
		users:         make(map[domain.ClientID]*userEntry),
		admins:        make(map[domain.ClientID]*Outbox),
	}
	go a.run()
	return a
}

func (a *Authority) Room() *domain.Room { return a.room }

// Join registers a connection. Delivery to a stopped authority is a
// silent no-op, mirroring every other command.
func (a *Authority) Join(kind ClientKind, id domain.ClientID, name string, out *Outbox) {
	a.enqueue(joinCmd{kind: kind, id: id, name: name, out: out})
}

func (a *Authority) Leave(id domain.ClientID) {
	a.enqueue(leaveCmd{id: id})
}

// Relay forwards a raw signaling payload authored by from. Parsing and
// addressing happen on the authority goroutine.
func (a *Authority) Relay(from domain.ClientID, payload []byte) {
	a.enqueue(relayCmd{from: from, payload: payload})
}

// Snapshot asks the run loop for current state. Returns the zero value
// if the authority has stopped.
func (a *Authority) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	select {
	case a.cmds <- snapshotCmd{reply: reply}:
	case <-a.done:
		return Snapshot{}
	}
	select {
	case s := <-reply:
		return s
	case <-a.done:
		return Snapshot{}
	}
}

func (a *Authority) MemberCount() int {
	return a.Snapshot().Users
}

func (a *Authority) Stop() {
	select {
	case <-a.done:
	default:
		close(a.done)
	}
}

func (a *Authority) enqueue(c any) {
	select {
	case a.cmds <- c:
	case <-a.done:
	}
}

func (a *Authority) run() {
	for {
		select {
		case <-a.done:
			return
		case c := <-a.cmds:
			switch c := c.(type) {
			case joinCmd:
				a.handleJoin(c)
			case leaveCmd:
				a.handleLeave(c.id)
			case relayCmd:
				a.handleRelay(c.from, c.payload)
			case expireCmd:
				a.handleExpire(c.pairing)
			case snapshotCmd:
				c.reply <- Snapshot{
					Users:  len(a.users),
					Admins: len(a.admins),
					Active: append([]domain.Pairing(nil), a.active...),
				}
			}
		}
	}
}

func (a *Authority) handleJoin(c joinCmd) {
	if c.kind == KindAdmin {
		a.admins[c.id] = c.out
		a.lg.Info().Str("admin", string(c.id)).Msg("admin joined")
		// The enumeration must cover every connected user, so it waits
		// for the admin's write loop instead of dropping past the
		// outbox buffer.
		for uid, u := range a.users {
			a.pushWait(c.out, userPresent(uid, u.name))
		}
		snapshot := activeMatchesChanged(a.active)
		a.pushWait(c.out, snapshot)
		for id, out := range a.admins {
			if id != c.id {
				a.push(out, snapshot)
			}
		}
		return
	}

	a.users[c.id] = &userEntry{name: c.name, out: c.out}
	a.lg.Info().Str("user", string(c.id)).Str("name", c.name).Msg("user joined")
	a.push(c.out, selfJoined(c.id))

	if peer, ok := pickPeer(c.id, a.userIDs(), a.active, a.history); ok {
		a.createPairing(c.id, peer)
	}
	a.broadcastAdmins(userJoined(c.id, c.name))
}

// createPairing records the pair in both the active set and the history
// before any event leaves the authority.
func (a *Authority) createPairing(newcomer, peer domain.ClientID) {
	p := domain.Pairing{A: newcomer, B: peer}
	a.active = append(a.active, p)
	a.history = append(a.history, p)

	duration := int(a.matchDuration.Seconds())
	a.lg.Info().
		Str("user", string(newcomer)).
		Str("peer", string(peer)).
		Int("duration", duration).
		Msg("pairing created")

	if u, ok := a.users[newcomer]; ok {
		a.push(u.out, userMatched(peer, a.userName(peer), duration))
	}
	if u, ok := a.users[peer]; ok {
		a.push(u.out, userMatched(newcomer, a.userName(newcomer), duration))
	}

	time.AfterFunc(a.matchDuration, func() {
		a.enqueue(expireCmd{pairing: p})
	})
	a.broadcastMatches()
}

func (a *Authority) handleLeave(id domain.ClientID) {
	if u, ok := a.users[id]; ok {
		delete(a.users, id)
		u.out.Close()
		a.dissolveFor(id)
		a.broadcastMatches()
		a.broadcastAdmins(userLeft(id))
		a.lg.Info().Str("user", string(id)).Msg("user left")
		return
	}
	if out, ok := a.admins[id]; ok {
		delete(a.admins, id)
		out.Close()
		a.lg.Info().Str("admin", string(id)).Msg("admin left")
		return
	}
	// A disconnect can race an earlier cleanup; unknown ids are fine.
}

// dissolveFor drops every active pairing containing id and tells the
// counterpart. History is never rewritten.
func (a *Authority) dissolveFor(id domain.ClientID) {
	kept := a.active[:0]
	for _, p := range a.active {
		if !p.Contains(id) {
			kept = append(kept, p)
			continue
		}
		if other, ok := p.Other(id); ok {
			if u, ok := a.users[other]; ok {
				a.push(u.out, userLeft(id))
			}
		}
	}
	a.active = kept
}

func (a *Authority) handleRelay(from domain.ClientID, payload []byte) {
	tag, p, err := parseSignal(payload)
	if err != nil {
		a.lg.Warn().Err(err).Str("from", string(from)).Msg("dropping signaling payload")
		return
	}
	target, ok := a.users[p.ID]
	if !ok {
		a.lg.Debug().Str("from", string(from)).Str("target", string(p.ID)).Str("tag", tag).
			Msg("signaling target not connected")
		return
	}
	// Sender id is taken from the connection, never from the payload.
	a.push(target.out, Event{Type: tag, Data: SignalPayload{ID: from, Description: p.Description}})
}

func (a *Authority) handleExpire(pairing domain.Pairing) {
	idx := -1
	for i, p := range a.active {
		if p.Same(pairing) {
			idx = i
			break
		}
	}
	if idx < 0 {
		// Already dissolved by a disconnect that beat the timer.
		return
	}
	a.active = append(a.active[:idx], a.active[idx+1:]...)
	a.lg.Info().Str("a", string(pairing.A)).Str("b", string(pairing.B)).Msg("pairing expired")

	if u, ok := a.users[pairing.A]; ok {
		a.push(u.out, matchEnded(pairing.B))
	}
	if u, ok := a.users[pairing.B]; ok {
		a.push(u.out, matchEnded(pairing.A))
	}
	a.broadcastMatches()
}

func (a *Authority) userIDs() []domain.ClientID {
	ids := make([]domain.ClientID, 0, len(a.users))
	for id := range a.users {
		ids = append(ids, id)
	}
	return ids
}

func (a *Authority) userName(id domain.ClientID) string {
	if u, ok := a.users[id]; ok {
		return u.name
	}
	return ""
}

func (a *Authority) broadcastMatches() {
	ev := activeMatchesChanged(a.active)
	for _, out := range a.admins {
		a.push(out, ev)
	}
}

func (a *Authority) broadcastAdmins(ev Event) {
	for _, out := range a.admins {
		a.push(out, ev)
	}
}

func (a *Authority) pushWait(out *Outbox, ev Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		a.lg.Error().Err(err).Str("tag", ev.Type).Msg("marshal event")
		return
	}
	if err := out.Send(Frame{Data: b}, deliverTimeout); err != nil {
		a.lg.Warn().Err(err).Str("tag", ev.Type).Msg("enumeration delivery failed")
	}
}

func (a *Authority) push(out *Outbox, ev Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		a.lg.Error().Err(err).Str("tag", ev.Type).Msg("marshal event")
		return
	}
	if err := out.TrySend(Frame{Data: b}); err != nil {
		// Receiver gone or slow; either way not our problem to fix here.
		a.lg.Debug().Err(err).Str("tag", ev.Type).Msg("event dropped")
	}
}
