// Package registry maps room ids to their single authority instance.
package registry

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rendezvous-chat/server/internal/domain"
	"github.com/rendezvous-chat/server/internal/room"
)

type Registry struct {
	mu            sync.RWMutex
	rooms         map[domain.RoomID]*room.Authority
	matchDuration time.Duration
}

func New(matchDuration time.Duration) *Registry {
	return &Registry{
		rooms:         make(map[domain.RoomID]*room.Authority),
		matchDuration: matchDuration,
	}
}

// Create makes a fresh room with a generated id and admin token and
// starts its authority.
func (r *Registry) Create(name string) *room.Authority {
	rm := domain.NewRoom(name)
	auth := room.NewAuthority(rm, r.matchDuration)

	r.mu.Lock()
	r.rooms[rm.ID] = auth
	r.mu.Unlock()

	log.Info().Str("module", "registry").Str("room", string(rm.ID)).Str("name", name).Msg("room created")
	return auth
}

func (r *Registry) Get(id domain.RoomID) (*room.Authority, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	auth, ok := r.rooms[id]
	return auth, ok
}

// GetOrCreate returns the authority for id, creating one on first
// reference. The lock covers only the map access, never an authority
// call.
func (r *Registry) GetOrCreate(id domain.RoomID, name string) *room.Authority {
	r.mu.RLock()
	auth, ok := r.rooms[id]
	r.mu.RUnlock()
	if ok {
		return auth
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if auth, ok = r.rooms[id]; ok {
		return auth
	}
	rm := domain.NewRoom(name)
	rm.ID = id
	auth = room.NewAuthority(rm, r.matchDuration)
	r.rooms[id] = auth
	log.Info().Str("module", "registry").Str("room", string(id)).Msg("room created on first reference")
	return auth
}

type Info struct {
	ID      domain.RoomID `json:"id"`
	Name    string        `json:"name"`
	Members int           `json:"members"`
}

func (r *Registry) List() []Info {
	r.mu.RLock()
	auths := make([]*room.Authority, 0, len(r.rooms))
	for _, a := range r.rooms {
		auths = append(auths, a)
	}
	r.mu.RUnlock()

	out := make([]Info, 0, len(auths))
	for _, a := range auths {
		rm := a.Room()
		out = append(out, Info{ID: rm.ID, Name: rm.Name, Members: a.MemberCount()})
	}
	return out
}
