package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind is returned for a frame whose type is not in the closed set.
	// Receivers ignore it without logging it as a failure.
	ErrUnknownKind = errors.New("unknown event kind")
	// ErrMalformed covers unparseable frames and payloads that do not fit their kind.
	ErrMalformed = errors.New("malformed message")
)

// Message -> satu frame di atas kabel
type Message struct {
	Kind    EventKind
	Payload Payload
}

// envelope is the JSON shape: {"type": ..., "payload": {...}}
type envelope struct {
	Type    EventKind       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// New wraps a payload into a message.
func New(p Payload) Message {
	return Message{Kind: p.Kind(), Payload: p}
}

// Encode -> serialisasi payload menjadi frame JSON
func Encode(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("encode: %w: nil payload", ErrMalformed)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.Kind(), err)
	}
	return json.Marshal(envelope{Type: p.Kind(), Payload: raw})
}

// MarshalJSON lets a Message be embedded directly in other JSON documents.
func (m Message) MarshalJSON() ([]byte, error) {
	return Encode(m.Payload)
}

// UnmarshalJSON decodes a frame into m. Unknown kinds return ErrUnknownKind.
func (m *Message) UnmarshalJSON(data []byte) error {
	msg, err := Decode(data)
	if err != nil {
		return err
	}
	*m = msg
	return nil
}

// Decode -> parse frame; kind tak dikenal mengembalikan ErrUnknownKind,
// frame rusak mengembalikan ErrMalformed. Tidak ada state yang diubah.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	decode, ok := decoders[env.Type]
	if !ok {
		return Message{Kind: env.Type}, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}

	payload := bytes.TrimSpace(env.Payload)
	if len(payload) == 0 || payload[0] != '{' {
		return Message{}, fmt.Errorf("%w: %s payload must be an object", ErrMalformed, env.Type)
	}

	p, err := decode(payload)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}
	return Message{Kind: env.Type, Payload: p}, nil
}

type validator interface {
	validate() error
}

func decodeAs[T Payload](raw []byte) (Payload, error) {
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if v, ok := any(p).(validator); ok {
		if err := v.validate(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p NewOrder) validate() error {
	if p.OrderID == 0 || p.TableID == 0 {
		return errors.New("orderId and tableId are required")
	}
	return nil
}

func (p OrderCompleted) validate() error {
	if p.OrderID == 0 {
		return errors.New("orderId is required")
	}
	return nil
}

func (p OrderReopened) validate() error {
	if p.OrderID == 0 {
		return errors.New("orderId is required")
	}
	return nil
}

func (p TableActivated) validate() error {
	if p.TableID == 0 {
		return errors.New("tableId is required")
	}
	return nil
}

func (p TableDeactivated) validate() error {
	if p.TableID == 0 {
		return errors.New("tableId is required")
	}
	return nil
}

func (p KitchenAlert) validate() error {
	if p.TableNumber == "" {
		return errors.New("tableNumber is required")
	}
	return nil
}

func (p PresenceChanged) validate() error {
	if p.Count < 0 {
		return errors.New("count must not be negative")
	}
	return nil
}
