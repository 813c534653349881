package room

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendezvous-chat/server/internal/domain"
)

func TestParseSignal(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantTag string
		wantErr bool
	}{
		{
			name:    "ice candidate",
			raw:     `{"type":"ice-candidate","data":{"id":"peer-1","description":"cand"}}`,
			wantTag: TagICECandidate,
		},
		{
			name:    "offer",
			raw:     `{"type":"rtc-connection-offer","data":{"id":"peer-1","description":"sdp"}}`,
			wantTag: TagRTCOffer,
		},
		{
			name:    "answer",
			raw:     `{"type":"rtc-connection-answer","data":{"id":"peer-1","description":"sdp"}}`,
			wantTag: TagRTCAnswer,
		},
		{
			name:    "not json",
			raw:     `{{{`,
			wantErr: true,
		},
		{
			name:    "unknown tag",
			raw:     `{"type":"self-joined","data":{"id":"peer-1"}}`,
			wantErr: true,
		},
		{
			name:    "missing target id",
			raw:     `{"type":"ice-candidate","data":{"description":"cand"}}`,
			wantErr: true,
		},
		{
			name:    "payload wrong shape",
			raw:     `{"type":"ice-candidate","data":[1,2]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, p, err := parseSignal([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTag, tag)
			assert.Equal(t, domain.ClientID("peer-1"), p.ID)
			assert.NotEmpty(t, p.Description)
		})
	}
}

func TestEventWireShape(t *testing.T) {
	b, err := json.Marshal(userMatched("peer-1", "alice", 300))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"user-matched","data":{"id":"peer-1","name":"alice","duration":300}}`,
		string(b))

	// Zero values stay on the wire: the tag dictates the fields.
	b, err = json.Marshal(userMatched("peer-1", "", 0))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"user-matched","data":{"id":"peer-1","name":"","duration":0}}`,
		string(b))

	b, err = json.Marshal(selfJoined("me"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"self-joined","data":{"id":"me"}}`, string(b))

	b, err = json.Marshal(userJoined("peer-2", ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"user-joined","data":{"id":"peer-2","name":""}}`, string(b))

	b, err = json.Marshal(activeMatchesChanged([]domain.Pairing{{A: "a", B: "b"}}))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"active-matches-changed","data":{"matches":[["a","b"]]}}`,
		string(b))

	b, err = json.Marshal(activeMatchesChanged(nil))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"active-matches-changed","data":{"matches":[]}}`,
		string(b))
}

func TestOutbox(t *testing.T) {
	o := NewOutbox(1)
	require.NoError(t, o.TrySend(Frame{Data: []byte("one")}))
	assert.ErrorIs(t, o.TrySend(Frame{Data: []byte("two")}), ErrBackpressure)

	f := <-o.C()
	assert.Equal(t, []byte("one"), f.Data)

	o.Close()
	o.Close() // idempotent
	assert.ErrorIs(t, o.TrySend(Frame{Data: []byte("three")}), ErrOutboxClosed)

	_, ok := <-o.C()
	assert.False(t, ok)
}

func TestOutboxSend(t *testing.T) {
	o := NewOutbox(1)
	require.NoError(t, o.TrySend(Frame{Data: []byte("one")}))

	// Full buffer with nobody draining: Send gives up after the timeout.
	err := o.Send(Frame{Data: []byte("two")}, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrBackpressure)

	// With a drain in flight, Send waits for room instead of dropping.
	go func() {
		time.Sleep(10 * time.Millisecond)
		<-o.C()
	}()
	require.NoError(t, o.Send(Frame{Data: []byte("three")}, time.Second))

	o.Close()
	assert.ErrorIs(t, o.Send(Frame{Data: []byte("four")}, time.Second), ErrOutboxClosed)
}
