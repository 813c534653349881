package domain

import "github.com/google/uuid"

type RoomID string

// ClientID identifies one connected participant (user or admin) for the
// lifetime of its connection. A reconnecting client gets a fresh id.
type ClientID string

func NewClientID() ClientID {
	return ClientID(uuid.NewString())
}

// Room is an isolated matchmaking pool. The admin token is generated once
// at creation and compared verbatim on every admin connect.
type Room struct {
	ID         RoomID
	Name       string
	AdminToken string
}

func NewRoom(name string) *Room {
	return &Room{
		ID:         RoomID(uuid.NewString()),
		Name:       name,
		AdminToken: uuid.NewString(),
	}
}

func (r *Room) Authorize(token string) bool {
	return token != "" && token == r.AdminToken
}
