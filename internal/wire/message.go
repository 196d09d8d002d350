// Package wire defines the JSON frames exchanged over the persistent
// channel, one object per frame. Decoding is tolerant: frames with an
// unrecognized type decode to Unknown instead of failing, so new frame
// kinds never break an old peer.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// Frame type tags.
const (
	TypeCartUpdate   = "cart_update"
	TypeWeightUpdate = "weight_update"
	TypePing         = "ping"
)

// ErrEmptyFrame is returned for frames with no payload.
var ErrEmptyFrame = errors.New("empty frame")

// Message is a decoded frame.
type Message interface {
	frameType() string
}

// CartItem is the item payload of a cart_update frame.
type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CartUpdate mirrors the cart_update frame. Add carries Item; remove and
// update carry the flat product_id/quantity fields.
type CartUpdate struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	Item      *CartItem `json:"item,omitempty"`
	ProductID string    `json:"product_id,omitempty"`
	Quantity  *int      `json:"quantity,omitempty"`
	Timestamp float64   `json:"timestamp"`
}

func (CartUpdate) frameType() string { return TypeCartUpdate }

// WeightUpdate mirrors the weight_update frame.
type WeightUpdate struct {
	Type      string  `json:"type"`
	DeviceID  string  `json:"device_id"`
	Weight    float64 `json:"weight"`
	Stable    bool    `json:"stable"`
	Timestamp float64 `json:"timestamp"`
}

func (WeightUpdate) frameType() string { return TypeWeightUpdate }

// Ping is the client keepalive frame.
type Ping struct {
	Type string `json:"type"`
}

func (Ping) frameType() string { return TypePing }

// Unknown preserves a frame whose type tag is not recognized.
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

func (u Unknown) frameType() string { return u.Type }

// envelope peeks at the type tag before the full decode.
type envelope struct {
	Type string `json:"type"`
}

// Decode parses one frame. Malformed JSON or a missing type tag is an
// error; an unrecognized type tag is not.
func Decode(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if env.Type == "" {
		return nil, errors.New("decode frame: missing type")
	}
	switch env.Type {
	case TypeCartUpdate:
		var m CartUpdate
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode cart_update: %w", err)
		}
		return m, nil
	case TypeWeightUpdate:
		var m WeightUpdate
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode weight_update: %w", err)
		}
		return m, nil
	case TypePing:
		return Ping{Type: TypePing}, nil
	default:
		return Unknown{Type: env.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

// Encode serializes a frame, filling in its type tag.
func Encode(m Message) ([]byte, error) {
	switch v := m.(type) {
	case CartUpdate:
		v.Type = TypeCartUpdate
		return json.Marshal(v)
	case WeightUpdate:
		v.Type = TypeWeightUpdate
		return json.Marshal(v)
	case Ping:
		v.Type = TypePing
		return json.Marshal(v)
	case Unknown:
		if len(v.Raw) > 0 {
			return v.Raw, nil
		}
		return json.Marshal(map[string]string{"type": v.Type})
	default:
		return nil, fmt.Errorf("encode: unsupported message %T", m)
	}
}

// UnixSeconds converts a time to the float seconds used on the wire.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromUnixSeconds converts wire seconds back to a time. Zero maps to the
// zero time so absent timestamps stay recognizable.
func FromUnixSeconds(s float64) time.Time {
	if s == 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}
