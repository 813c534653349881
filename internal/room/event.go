package room

import (
	"encoding/json"
	"fmt"

	"github.com/rendezvous-chat/server/internal/domain"
)

// Wire tags. Everything on the socket is {"type": tag, "data": {...}};
// receivers must tolerate tags they do not know.
const (
	TagSelfJoined           = "self-joined"
	TagUserJoined           = "user-joined"
	TagUserPresent          = "user-present"
	TagUserMatched          = "user-matched"
	TagMatchEnded           = "match-ended"
	TagUserLeft             = "user-left"
	TagActiveMatchesChanged = "active-matches-changed"

	TagICECandidate = "ice-candidate"
	TagRTCOffer     = "rtc-connection-offer"
	TagRTCAnswer    = "rtc-connection-answer"
)

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// The wire table is explicit about which fields each tag carries, so
// every payload shape gets its own struct and nothing is omitted for
// being zero.
type idData struct {
	ID domain.ClientID `json:"id"`
}

type presenceData struct {
	ID   domain.ClientID `json:"id"`
	Name string          `json:"name"`
}

type matchData struct {
	ID       domain.ClientID `json:"id"`
	Name     string          `json:"name"`
	Duration int             `json:"duration"`
}

type matchesData struct {
	Matches [][2]domain.ClientID `json:"matches"`
}

func selfJoined(id domain.ClientID) Event {
	return Event{Type: TagSelfJoined, Data: idData{ID: id}}
}

func userJoined(id domain.ClientID, name string) Event {
	return Event{Type: TagUserJoined, Data: presenceData{ID: id, Name: name}}
}

func userPresent(id domain.ClientID, name string) Event {
	return Event{Type: TagUserPresent, Data: presenceData{ID: id, Name: name}}
}

func userMatched(peer domain.ClientID, name string, duration int) Event {
	return Event{Type: TagUserMatched, Data: matchData{ID: peer, Name: name, Duration: duration}}
}

func matchEnded(peer domain.ClientID) Event {
	return Event{Type: TagMatchEnded, Data: idData{ID: peer}}
}

func userLeft(id domain.ClientID) Event {
	return Event{Type: TagUserLeft, Data: idData{ID: id}}
}

func activeMatchesChanged(active []domain.Pairing) Event {
	out := make([][2]domain.ClientID, 0, len(active))
	for _, p := range active {
		out = append(out, [2]domain.ClientID{p.A, p.B})
	}
	return Event{Type: TagActiveMatchesChanged, Data: matchesData{Matches: out}}
}

// SignalPayload is the data half of a signaling envelope. Inbound, ID is
// the addressed peer; outbound, ID is rewritten to the authenticated
// sender so a client can never impersonate another (the description is
// relayed opaque and untouched).
type SignalPayload struct {
	ID          domain.ClientID `json:"id"`
	Description string          `json:"description"`
}

func isSignalTag(tag string) bool {
	switch tag {
	case TagICECandidate, TagRTCOffer, TagRTCAnswer:
		return true
	}
	return false
}

func parseSignal(raw []byte) (string, SignalPayload, error) {
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", SignalPayload{}, fmt.Errorf("malformed signaling envelope: %w", err)
	}
	if !isSignalTag(env.Type) {
		return "", SignalPayload{}, fmt.Errorf("unexpected signaling tag %q", env.Type)
	}
	var p SignalPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return "", SignalPayload{}, fmt.Errorf("malformed %s payload: %w", env.Type, err)
	}
	if p.ID == "" {
		return "", SignalPayload{}, fmt.Errorf("%s payload has no target id", env.Type)
	}
	return env.Type, p, nil
}
