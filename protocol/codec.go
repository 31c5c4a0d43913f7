package protocol

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/earthtowalt/hide-and-seek/game"
)

// Codec errors.
var (
	ErrMalformed   = errors.New("malformed datagram")
	ErrUnknownKind = errors.New("unknown message kind")
	ErrOversized   = errors.New("datagram exceeds maximum packet size")
	ErrTooLarge    = errors.New("encoded message exceeds maximum packet size")
)

// DefaultMaxPacket is the largest datagram either side reads or writes.
const DefaultMaxPacket = 2048

// Field numbers. The same number means the same thing in every kind.
const (
	fieldKind       protowire.Number = 1
	fieldUsername   protowire.Number = 2
	fieldStatus     protowire.Number = 2
	fieldInputs     protowire.Number = 2
	fieldReturnPort protowire.Number = 3
	fieldTimestamp  protowire.Number = 4
	fieldState      protowire.Number = 5
	fieldMapSeed    protowire.Number = 6
	fieldPlayer     protowire.Number = 7

	playerUsername protowire.Number = 1
	playerRole     protowire.Number = 2
	playerX        protowire.Number = 3
	playerY        protowire.Number = 4
	playerSpeed    protowire.Number = 5
	playerInputs   protowire.Number = 6
	playerScore    protowire.Number = 7
)

// Codec encodes and decodes messages within a packet size limit.
type Codec struct {
	MaxPacket int
}

// NewCodec returns a Codec capped at maxPacket bytes, or DefaultMaxPacket when
// maxPacket is not positive.
func NewCodec(maxPacket int) *Codec {
	if maxPacket <= 0 {
		maxPacket = DefaultMaxPacket
	}
	return &Codec{MaxPacket: maxPacket}
}

// Encode encodes m and fails with ErrTooLarge if it would not fit a datagram.
func (c *Codec) Encode(m Message) ([]byte, error) {
	b, err := Encode(m)
	if err != nil {
		return nil, err
	}
	if len(b) > c.MaxPacket {
		return nil, fmt.Errorf("%s of %d bytes: %w", m.Kind(), len(b), ErrTooLarge)
	}
	return b, nil
}

// Decode decodes a datagram, rejecting it unread if it is over the limit.
func (c *Codec) Decode(b []byte) (Message, error) {
	if len(b) > c.MaxPacket {
		return nil, ErrOversized
	}
	return Decode(b)
}

// Encode returns the wire form of m.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, ErrUnknownKind
	}
	b := protowire.AppendTag(nil, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Kind()))

	switch m := m.(type) {
	case Login:
		b = appendString(b, fieldUsername, m.Username)
		b = appendVarint(b, fieldReturnPort, uint64(m.ReturnPort))
		b = appendSint(b, fieldTimestamp, m.Timestamp)
	case LoginAck:
		b = appendVarint(b, fieldStatus, uint64(m.Status))
	case Inputs:
		b = appendVarint(b, fieldInputs, uint64(m.Inputs))
		b = appendSint(b, fieldTimestamp, m.Timestamp)
	case InputsAck:
		b = appendVarint(b, fieldInputs, uint64(m.Inputs))
	case Kick:
	case Update:
		b = appendSint(b, fieldTimestamp, m.Timestamp)
		b = appendVarint(b, fieldState, uint64(m.State))
		b = appendSint(b, fieldMapSeed, m.MapSeed)
		for _, p := range m.Players {
			b = protowire.AppendTag(b, fieldPlayer, protowire.BytesType)
			b = protowire.AppendBytes(b, appendPlayer(nil, p))
		}
	default:
		return nil, fmt.Errorf("%T: %w", m, ErrUnknownKind)
	}
	return b, nil
}

func appendPlayer(b []byte, p game.PlayerState) []byte {
	b = appendString(b, playerUsername, p.Username)
	b = appendVarint(b, playerRole, uint64(p.Role))
	b = appendDouble(b, playerX, p.X)
	b = appendDouble(b, playerY, p.Y)
	b = appendDouble(b, playerSpeed, p.Speed)
	b = appendVarint(b, playerInputs, uint64(p.Inputs))
	b = appendSint(b, playerScore, int64(p.Score))
	return b
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendSint(b []byte, num protowire.Number, v int64) []byte {
	return appendVarint(b, num, protowire.EncodeZigZag(v))
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

// envelope collects every field any kind may carry.
type envelope struct {
	kind       uint64
	username   string
	small      uint64 // status or inputs, both field 2
	returnPort uint64
	timestamp  int64
	state      uint64
	mapSeed    int64
	players    []game.PlayerState
}

// Decode parses a datagram. It never panics on hostile input; any structural
// problem is reported as ErrMalformed and unknown kinds as ErrUnknownKind.
func Decode(b []byte) (Message, error) {
	var e envelope
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case fieldKind:
			v, n := consumeVarint(typ, b)
			e.kind = v
			return n
		case fieldUsername:
			// Field 2 is a string for login and a small varint elsewhere.
			if typ == protowire.BytesType {
				s, n := consumeString(typ, b)
				e.username = s
				return n
			}
			v, n := consumeVarint(typ, b)
			e.small = v
			return n
		case fieldReturnPort:
			v, n := consumeVarint(typ, b)
			e.returnPort = v
			return n
		case fieldTimestamp:
			v, n := consumeVarint(typ, b)
			e.timestamp = protowire.DecodeZigZag(v)
			return n
		case fieldState:
			v, n := consumeVarint(typ, b)
			e.state = v
			return n
		case fieldMapSeed:
			v, n := consumeVarint(typ, b)
			e.mapSeed = protowire.DecodeZigZag(v)
			return n
		case fieldPlayer:
			raw, n := consumeBytes(typ, b)
			if n < 0 {
				return n
			}
			p, err := decodePlayer(raw)
			if err != nil {
				return -1
			}
			e.players = append(e.players, p)
			return n
		default:
			return protowire.ConsumeFieldValue(num, typ, b)
		}
	})
	if err != nil {
		return nil, err
	}
	return e.message()
}

func (e envelope) message() (Message, error) {
	switch Kind(e.kind) {
	case KindLogin:
		if e.returnPort > math.MaxUint16 {
			return nil, ErrMalformed
		}
		return Login{Username: e.username, ReturnPort: int(e.returnPort), Timestamp: e.timestamp}, nil
	case KindLoginAck:
		s := Status(e.small)
		if s != StatusOK && s != StatusBad {
			return nil, ErrMalformed
		}
		return LoginAck{Status: s}, nil
	case KindInputs:
		set, err := inputSet(e.small)
		if err != nil {
			return nil, err
		}
		return Inputs{Inputs: set, Timestamp: e.timestamp}, nil
	case KindInputsAck:
		set, err := inputSet(e.small)
		if err != nil {
			return nil, err
		}
		return InputsAck{Inputs: set}, nil
	case KindKick:
		return Kick{}, nil
	case KindUpdate:
		st := game.State(e.state)
		if e.state > math.MaxUint8 || !st.Valid() {
			return nil, ErrMalformed
		}
		return Update{Timestamp: e.timestamp, State: st, MapSeed: e.mapSeed, Players: e.players}, nil
	default:
		return nil, ErrUnknownKind
	}
}

func inputSet(v uint64) (game.InputSet, error) {
	set := game.InputSet(v)
	if v > math.MaxUint8 || !set.Valid() {
		return 0, ErrMalformed
	}
	return set, nil
}

func decodePlayer(b []byte) (game.PlayerState, error) {
	var p game.PlayerState
	var role, inputs uint64
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case playerUsername:
			s, n := consumeString(typ, b)
			p.Username = s
			return n
		case playerRole:
			v, n := consumeVarint(typ, b)
			role = v
			return n
		case playerX:
			v, n := consumeDouble(typ, b)
			p.X = v
			return n
		case playerY:
			v, n := consumeDouble(typ, b)
			p.Y = v
			return n
		case playerSpeed:
			v, n := consumeDouble(typ, b)
			p.Speed = v
			return n
		case playerInputs:
			v, n := consumeVarint(typ, b)
			inputs = v
			return n
		case playerScore:
			v, n := consumeVarint(typ, b)
			p.Score = int(protowire.DecodeZigZag(v))
			return n
		default:
			return protowire.ConsumeFieldValue(num, typ, b)
		}
	})
	if err != nil {
		return p, err
	}
	if role > math.MaxUint8 || !game.Role(role).Valid() {
		return p, ErrMalformed
	}
	p.Role = game.Role(role)
	set, err := inputSet(inputs)
	if err != nil {
		return p, err
	}
	p.Inputs = set
	if !finite(p.X) || !finite(p.Y) || !finite(p.Speed) {
		return p, ErrMalformed
	}
	return p, nil
}

// walk calls visit for every field in b. visit consumes the field value and
// returns its length, or a negative number if the value is unusable.
func walk(b []byte, visit func(num protowire.Number, typ protowire.Type, b []byte) int) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return ErrMalformed
		}
		b = b[n:]
		m := visit(num, typ, b)
		if m < 0 {
			return ErrMalformed
		}
		b = b[m:]
	}
	return nil
}

func consumeVarint(typ protowire.Type, b []byte) (uint64, int) {
	if typ != protowire.VarintType {
		return 0, -1
	}
	return protowire.ConsumeVarint(b)
}

func consumeBytes(typ protowire.Type, b []byte) ([]byte, int) {
	if typ != protowire.BytesType {
		return nil, -1
	}
	return protowire.ConsumeBytes(b)
}

func consumeString(typ protowire.Type, b []byte) (string, int) {
	raw, n := consumeBytes(typ, b)
	if n < 0 || !utf8.Valid(raw) {
		return "", -1
	}
	return string(raw), n
}

func consumeDouble(typ protowire.Type, b []byte) (float64, int) {
	if typ != protowire.Fixed64Type {
		return 0, -1
	}
	v, n := protowire.ConsumeFixed64(b)
	return math.Float64frombits(v), n
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
