package protocol

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/earthtowalt/hide-and-seek/game"
)

func sampleUpdate() Update {
	return Update{
		Timestamp: 912,
		State:     game.Seeking,
		MapSeed:   77,
		Players: []game.PlayerState{
			{Username: "alice", Role: game.Seeker, X: 480.5, Y: -12.25, Speed: 9, Inputs: game.InputUp, Score: 4},
			{Username: "bob", Role: game.Ghost, X: 0, Y: 960, Speed: 10, Score: 1},
		},
	}
}

func TestUpdateSurvivesEncoding(t *testing.T) {
	want := sampleUpdate()

	b, err := Encode(want)
	require.NoError(t, err)
	got, err := Decode(b)
	require.NoError(t, err)

	if diff := cmp.Diff(Message(want), got); diff != "" {
		t.Fatalf("decoded update mismatch (-want +got):\n%s", diff)
	}
}

func TestSmallMessagesSurviveEncoding(t *testing.T) {
	for _, want := range []Message{
		Login{Username: "zoë", ReturnPort: 50123, Timestamp: 1},
		Inputs{Inputs: game.InputDown.With(game.InputLeft), Timestamp: 42},
		LoginAck{Status: StatusBad},
		InputsAck{Inputs: game.InputRight},
		Kick{},
	} {
		b, err := Encode(want)
		require.NoError(t, err)
		got, err := Decode(b)
		require.NoError(t, err, want.Kind().String())
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("%s mismatch (-want +got):\n%s", want.Kind(), diff)
		}
	}
}

func TestDecodeTruncatedNeverPanics(t *testing.T) {
	b, err := Encode(sampleUpdate())
	require.NoError(t, err)

	for i := 0; i < len(b); i++ {
		assert.NotPanics(t, func() { _, _ = Decode(b[:i]) })
	}
}

func TestDecodeRejects(t *testing.T) {
	kindOnly := func(k Kind) []byte {
		b := protowire.AppendTag(nil, fieldKind, protowire.VarintType)
		return protowire.AppendVarint(b, uint64(k))
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrUnknownKind},
		{"unknown kind", kindOnly(Kind(99)), ErrUnknownKind},
		{"garbage", []byte{0xff, 0xff, 0xff}, ErrMalformed},
		{"login ack without status", kindOnly(KindLoginAck), ErrMalformed},
		{"inputs with unknown flag", appendVarint(kindOnly(KindInputs), fieldInputs, 0x80), ErrMalformed},
		{"kind with wrong wire type", appendString(nil, fieldKind, "x"), ErrMalformed},
		{"update with bad state", appendVarint(kindOnly(KindUpdate), fieldState, 9), ErrMalformed},
		{
			"player with NaN position",
			func() []byte {
				b := kindOnly(KindUpdate)
				p := appendDouble(nil, playerX, math.NaN())
				b = protowire.AppendTag(b, fieldPlayer, protowire.BytesType)
				return protowire.AppendBytes(b, p)
			}(),
			ErrMalformed,
		},
		{"invalid utf8 username", protowire.AppendBytes(protowire.AppendTag(kindOnly(KindLogin), fieldUsername, protowire.BytesType), []byte{0xc3, 0x28}), ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	b, err := Encode(InputsAck{Inputs: game.InputUp})
	require.NoError(t, err)
	b = appendString(b, 15, "from a newer client")

	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, InputsAck{Inputs: game.InputUp}, got)
}

func TestCodecEnforcesPacketSize(t *testing.T) {
	c := NewCodec(64)

	_, err := c.Decode(make([]byte, 65))
	assert.ErrorIs(t, err, ErrOversized)

	_, err = c.Encode(Login{Username: strings.Repeat("x", 100)})
	assert.ErrorIs(t, err, ErrTooLarge)

	b, err := c.Encode(Kick{})
	require.NoError(t, err)
	got, err := c.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, Kick{}, got)

	assert.Equal(t, DefaultMaxPacket, NewCodec(0).MaxPacket)
}

func TestEncodeRejectsNil(t *testing.T) {
	_, err := Encode(nil)
	assert.ErrorIs(t, err, ErrUnknownKind)
}
