// Package ws bridges one websocket connection to its room authority.
package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rendezvous-chat/server/internal/domain"
	"github.com/rendezvous-chat/server/internal/room"
)

const writeWait = 5 * time.Second

type Role int

const (
	RoleUser Role = iota
	RoleAdmin
)

type Config struct {
	ReadLimit         int64
	HeartbeatInterval time.Duration
	ClientTimeout     time.Duration
	SendBuffer        int
}

// Session owns one transport. It forwards inbound text to the authority,
// drains the outbox onto the socket, and watches liveness. Every exit
// path funnels into teardown, which sends Leave exactly once.
type Session struct {
	id        domain.ClientID
	role      Role
	name      string
	authority *room.Authority
	conn      *websocket.Conn
	out       *room.Outbox
	cfg       Config
	lg        zerolog.Logger

	lastSeen atomic.Int64
	closing  sync.Once
}

func NewSession(conn *websocket.Conn, role Role, name string, authority *room.Authority, cfg Config) *Session {
	id := domain.NewClientID()
	return &Session{
		id:        id,
		role:      role,
		name:      name,
		authority: authority,
		conn:      conn,
		out:       room.NewOutbox(cfg.SendBuffer),
		cfg:       cfg,
		lg: log.With().Str("module", "ws").
			Str("room", string(authority.Room().ID)).
			Str("client", string(id)).Logger(),
	}
}

func (s *Session) ID() domain.ClientID { return s.id }

// Start joins the room and spins up both pumps. It returns immediately;
// the session lives until the transport dies or the heartbeat gives up.
func (s *Session) Start() {
	s.touch()
	s.conn.SetReadLimit(s.cfg.ReadLimit)
	s.conn.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})
	s.conn.SetPingHandler(func(appData string) error {
		s.touch()
		return s.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	// The writer must be draining before Join: the authority answers a
	// join with a burst (admin membership enumeration, match events)
	// that can exceed the outbox buffer.
	go s.writePump()

	kind := room.KindUser
	if s.role == RoleAdmin {
		kind = room.KindAdmin
	}
	s.authority.Join(kind, s.id, s.name, s.out)

	go s.readPump()
}

func (s *Session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

func (s *Session) sinceLastSeen() time.Duration {
	return time.Since(time.Unix(0, s.lastSeen.Load()))
}

func (s *Session) readPump() {
	defer s.teardown()
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.lg.Warn().Err(err).Msg("read error")
			}
			return
		}
		s.touch()
		switch mt {
		case websocket.TextMessage:
			// Admins only receive; their text input carries no meaning.
			if s.role == RoleUser {
				s.authority.Relay(s.id, data)
			}
		case websocket.BinaryMessage:
			// Non-semantic passthrough, echoed as received.
			if err := s.out.TrySend(room.Frame{Binary: true, Data: data}); err != nil {
				s.lg.Debug().Err(err).Msg("binary echo dropped")
			}
		}
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		s.teardown()
	}()
	for {
		select {
		case f, ok := <-s.out.C():
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			mt := websocket.TextMessage
			if f.Binary {
				mt = websocket.BinaryMessage
			}
			if err := s.conn.WriteMessage(mt, f.Data); err != nil {
				s.lg.Warn().Err(err).Msg("write error")
				return
			}
		case <-ticker.C:
			if s.sinceLastSeen() > s.cfg.ClientTimeout {
				s.lg.Info().Msg("disconnecting after failed heartbeat")
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// teardown converts any transport failure into a single Leave. The
// authority also closes the outbox on Leave; Close is idempotent so the
// two owners cannot trip over each other.
func (s *Session) teardown() {
	s.closing.Do(func() {
		s.authority.Leave(s.id)
		s.out.Close()
		_ = s.conn.Close()
		s.lg.Info().Msg("session closed")
	})
}
