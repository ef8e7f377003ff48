package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeServerMessageVariants(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Payload
	}{
		{
			name: "join",
			raw:  `{"type":"JOIN","payload":{"roomCode":"abcd","name":"Bob","isHost":true}}`,
			want: JoinPayload{RoomCode: "abcd", Name: "Bob", IsHost: true},
		},
		{
			name: "participants",
			raw:  `{"type":"PARTICIPANTS_UPDATE","payload":[{"name":"Bob","isHost":true,"avatar":"elf"},{"name":"Ann","isHost":false,"avatar":""}]}`,
			want: ParticipantsPayload{Participants: []Participant{{Name: "Bob", IsHost: true, Avatar: "elf"}, {Name: "Ann"}}},
		},
		{
			name: "match result object",
			raw:  `{"type":"MATCH_RESULT","payload":{"target":"Alice"}}`,
			want: MatchResultPayload{Target: "Alice"},
		},
		{
			name: "match result bare string",
			raw:  `{"type":"MATCH_RESULT","payload":"Alice"}`,
			want: MatchResultPayload{Target: "Alice"},
		},
		{
			name: "error object",
			raw:  `{"type":"ERROR","payload":{"message":"room full"}}`,
			want: ErrorPayload{Message: "room full"},
		},
		{
			name: "error bare string",
			raw:  `{"type":"ERROR","payload":"Room does not exist"}`,
			want: ErrorPayload{Message: "Room does not exist"},
		},
		{
			name: "error without payload",
			raw:  `{"type":"ERROR"}`,
			want: ErrorPayload{},
		},
		{
			name: "error null payload",
			raw:  `{"type":"ERROR","payload":null}`,
			want: ErrorPayload{},
		},
		{
			name: "error number payload",
			raw:  `{"type":"ERROR","payload":500}`,
			want: ErrorPayload{Message: "500"},
		},
		{
			name: "error array payload",
			raw:  `{"type":"ERROR","payload":["a",1]}`,
			want: ErrorPayload{Message: `["a",1]`},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := DecodeServerMessage([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.want.Type(), msg.Type)
			assert.Equal(t, tc.want, msg.Payload)
		})
	}
}

func TestDecodeServerMessageUnknownTagKeepsRaw(t *testing.T) {
	msg, err := DecodeServerMessage([]byte(`{"type":"CHAT","payload":{"text":"hi"}}`))
	require.NoError(t, err)
	assert.False(t, msg.Type.Known())

	unknown, ok := msg.Payload.(UnknownPayload)
	require.True(t, ok)
	assert.Equal(t, MessageType("CHAT"), unknown.Tag)
	assert.JSONEq(t, `{"text":"hi"}`, string(unknown.Raw))

	out, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"CHAT","payload":{"text":"hi"}}`, string(out))
}

func TestDecodeServerMessageRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"payload":{}}`,
		`{"type":"","payload":{}}`,
		`{"type":"MATCH_RESULT","payload":{"target":""}}`,
		`{"type":"MATCH_RESULT","payload":""}`,
		`{"type":"MATCH_RESULT"}`,
		`{"type":"JOIN","payload":{"roomCode":"abcd"}}`,
		`{"type":"PARTICIPANTS_UPDATE","payload":{"name":"Bob"}}`,
		`{"type":"PARTICIPANTS_UPDATE","payload":[{"name":"","isHost":true,"avatar":""}]}`,
	} {
		_, err := DecodeServerMessage([]byte(raw))
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, ErrMalformedMessage), raw)
		var decodeErr *DecodeError
		assert.True(t, errors.As(err, &decodeErr), raw)
	}
}

func TestServerMessageEncodeShape(t *testing.T) {
	out, err := json.Marshal(NewServerMessage(MatchResultPayload{Target: "Alice"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"MATCH_RESULT","payload":{"target":"Alice"}}`, string(out))

	out, err = json.Marshal(NewServerMessage(ParticipantsPayload{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"PARTICIPANTS_UPDATE","payload":[]}`, string(out))

	out, err = json.Marshal(ErrorMessage("room_exists", "room already exists"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ERROR","payload":{"code":"room_exists","message":"room already exists"}}`, string(out))
}

func TestParticipantsRoundTripKeepsOrderAndHost(t *testing.T) {
	in := NewServerMessage(ParticipantsPayload{Participants: []Participant{
		{Name: "Carol", IsHost: false, Avatar: "reindeer"},
		{Name: "Alice", IsHost: true, Avatar: "santa"},
		{Name: "Bob", IsHost: false, Avatar: "elf"},
	}})
	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var out ServerMessage
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)

	hosts := 0
	for _, p := range out.Payload.(ParticipantsPayload).Participants {
		if p.IsHost {
			hosts++
		}
	}
	assert.Equal(t, 1, hosts)
}
