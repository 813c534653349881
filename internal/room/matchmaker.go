package room

import (
	"sort"

	"github.com/rendezvous-chat/server/internal/domain"
)

// pickPeer selects a partner for a user that just joined. Candidates are
// walked in sorted id order so the same inputs always produce the same
// answer. A candidate qualifies when it is not the newcomer, neither side
// is already inside an active pairing, and the two have never been paired
// before in this room.
//
// Matchmaking runs only at join time; users freed by a dissolved pairing
// wait for the next join to be reconsidered.
func pickPeer(newcomer domain.ClientID, connected []domain.ClientID, active, history []domain.Pairing) (domain.ClientID, bool) {
	if inActive(active, newcomer) {
		return "", false
	}

	candidates := make([]domain.ClientID, 0, len(connected))
	for _, id := range connected {
		if id != newcomer {
			candidates = append(candidates, id)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

	for _, c := range candidates {
		if inActive(active, c) {
			continue
		}
		if inHistory(history, domain.Pairing{A: newcomer, B: c}) {
			continue
		}
		return c, true
	}
	return "", false
}

func inActive(active []domain.Pairing, id domain.ClientID) bool {
	for _, p := range active {
		if p.Contains(id) {
			return true
		}
	}
	return false
}

func inHistory(history []domain.Pairing, pair domain.Pairing) bool {
	for _, p := range history {
		if p.Same(pair) {
			return true
		}
	}
	return false
}
