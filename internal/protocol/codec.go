// Package protocol defines the wire format exchanged between the gateway
// and connected demo clients: a small JSON envelope carrying one of six
// message kinds. The teacher's equivalent (internal/protocol/codec.go)
// wraps generated protobuf types; this module has no .proto source or
// generated package anywhere in the retrieved example pack, so the same
// Codec/sentinel-error/ValidateMessage shape is implemented over
// encoding/json instead (see DESIGN.md).
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidMessage = errors.New("protocol: invalid message")
	ErrUnknownType    = errors.New("protocol: unknown message type")
)

// MessageType names one of the wire message kinds.
type MessageType string

const (
	MessageSpawn     MessageType = "spawn"
	MessageDespawn   MessageType = "despawn"
	MessageMove      MessageType = "move"
	MessageEnter     MessageType = "enter"
	MessageLeave     MessageType = "leave"
	MessageHeartbeat MessageType = "heartbeat"
)

// Spawn requests that the world create an entity for the sending client.
type Spawn struct {
	ClientID string  `json:"client_id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// Despawn reports that an entity has left the world.
type Despawn struct {
	EntityID int    `json:"entity_id"`
	Reason   string `json:"reason,omitempty"`
}

// Move carries a client-submitted absolute position intent, or (outbound)
// an entity's updated position for subscribers to render.
type Move struct {
	EntityID int     `json:"entity_id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Sequence uint64  `json:"sequence,omitempty"`
}

// Enter/Leave report a visibility-subscription transition between two
// entities, mirroring the delta engine's callback arguments directly.
type Enter struct {
	SelfID  int `json:"self_id"`
	OtherID int `json:"other_id"`
}

type Leave struct {
	SelfID  int `json:"self_id"`
	OtherID int `json:"other_id"`
}

// Heartbeat keeps a connection alive from the client side.
type Heartbeat struct {
	ClientID string `json:"client_id"`
}

// Message is the envelope every wire frame is encoded as. Exactly one of
// the typed payload fields is populated, selected by Type.
type Message struct {
	Type      MessageType `json:"type"`
	Spawn     *Spawn      `json:"spawn,omitempty"`
	Despawn   *Despawn    `json:"despawn,omitempty"`
	Move      *Move       `json:"move,omitempty"`
	Enter     *Enter      `json:"enter,omitempty"`
	Leave     *Leave      `json:"leave,omitempty"`
	Heartbeat *Heartbeat  `json:"heartbeat,omitempty"`
}

// Codec encodes and decodes wire Messages.
type Codec struct{}

// NewCodec returns a ready-to-use Codec. It carries no state; the type
// exists so the gateway can hold a *Codec field the way the teacher holds
// one, and so a future wire format swap has a single point of injection.
func NewCodec() *Codec {
	return &Codec{}
}

// Encode marshals msg to its JSON wire form.
func (c *Codec) Encode(msg *Message) ([]byte, error) {
	if msg == nil {
		return nil, ErrInvalidMessage
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal message: %w", err)
	}
	return data, nil
}

// Decode unmarshals a wire frame into a Message.
func (c *Codec) Decode(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, ErrInvalidMessage
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("protocol: unmarshal message: %w", err)
	}
	return &msg, nil
}

// ValidateMessage checks that msg carries the payload its Type requires.
func (c *Codec) ValidateMessage(msg *Message) error {
	if msg == nil {
		return ErrInvalidMessage
	}

	switch msg.Type {
	case MessageSpawn:
		if msg.Spawn == nil {
			return fmt.Errorf("%w: spawn payload required for spawn message", ErrInvalidMessage)
		}
		if msg.Spawn.ClientID == "" {
			return fmt.Errorf("%w: client_id required in spawn", ErrInvalidMessage)
		}

	case MessageDespawn:
		if msg.Despawn == nil {
			return fmt.Errorf("%w: despawn payload required for despawn message", ErrInvalidMessage)
		}

	case MessageMove:
		if msg.Move == nil {
			return fmt.Errorf("%w: move payload required for move message", ErrInvalidMessage)
		}

	case MessageEnter:
		if msg.Enter == nil {
			return fmt.Errorf("%w: enter payload required for enter message", ErrInvalidMessage)
		}

	case MessageLeave:
		if msg.Leave == nil {
			return fmt.Errorf("%w: leave payload required for leave message", ErrInvalidMessage)
		}

	case MessageHeartbeat:
		if msg.Heartbeat == nil {
			return fmt.Errorf("%w: heartbeat payload required for heartbeat message", ErrInvalidMessage)
		}
		if msg.Heartbeat.ClientID == "" {
			return fmt.Errorf("%w: client_id required in heartbeat", ErrInvalidMessage)
		}

	default:
		return ErrUnknownType
	}

	return nil
}
