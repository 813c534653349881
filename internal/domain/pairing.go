package domain

// Pairing is an unordered pair of user ids. Orientation is an artifact of
// who joined last; all comparisons go through Same.
type Pairing struct {
	A ClientID
	B ClientID
}

func (p Pairing) Contains(id ClientID) bool {
	return p.A == id || p.B == id
}

// Other returns the counterpart of id inside the pairing.
func (p Pairing) Other(id ClientID) (ClientID, bool) {
	switch id {
	case p.A:
		return p.B, true
	case p.B:
		return p.A, true
	}
	return "", false
}

func (p Pairing) Same(q Pairing) bool {
	return (p.A == q.A && p.B == q.B) || (p.A == q.B && p.B == q.A)
}
