// Package protocol defines the datagrams exchanged between clients and the
// server and their wire encoding. Every datagram carries exactly one message.
package protocol

import (
	"fmt"

	"github.com/earthtowalt/hide-and-seek/game"
)

// Kind tags the message carried by a datagram.
type Kind uint8

const (
	KindLogin Kind = iota + 1
	KindLoginAck
	KindInputs
	KindInputsAck
	KindKick
	KindUpdate
)

func (k Kind) String() string {
	switch k {
	case KindLogin:
		return "login"
	case KindLoginAck:
		return "login_ack"
	case KindInputs:
		return "inputs"
	case KindInputsAck:
		return "inputs_ack"
	case KindKick:
		return "kick"
	case KindUpdate:
		return "update"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Message is implemented by the six message types below.
type Message interface {
	Kind() Kind
}

// Status is the outcome of a login.
type Status uint8

const (
	StatusOK Status = iota + 1
	StatusBad
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusBad:
		return "bad"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Login asks the server to register Username. Client to server.
type Login struct {
	Username   string
	ReturnPort int
	Timestamp  int64
}

// LoginAck answers a Login. A bad status is terminal for the client.
type LoginAck struct {
	Status Status
}

// Inputs carries the client's current directional intent.
type Inputs struct {
	Inputs    game.InputSet
	Timestamp int64
}

// InputsAck echoes the input set the server applied.
type InputsAck struct {
	Inputs game.InputSet
}

// Kick tells a client the server does not know it (any more).
type Kick struct{}

// Update is a complete authoritative snapshot. The map travels as its seed.
type Update struct {
	Timestamp int64
	State     game.State
	MapSeed   int64
	Players   []game.PlayerState
}

func (Login) Kind() Kind     { return KindLogin }
func (LoginAck) Kind() Kind  { return KindLoginAck }
func (Inputs) Kind() Kind    { return KindInputs }
func (InputsAck) Kind() Kind { return KindInputsAck }
func (Kick) Kind() Kind      { return KindKick }
func (Update) Kind() Kind    { return KindUpdate }
