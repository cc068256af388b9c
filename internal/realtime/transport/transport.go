// Package transport carries envelopes between stations over named topics.
//
// A station is one logical POS context: the staff register, a self-order
// kiosk, the customer display, the order board. Delivery is best-effort and
// cross-station only: a publisher never receives its own envelopes, the same
// way a browser tab never receives its own broadcast messages. Stations that
// need same-context signalling use the notify package instead.
package transport

import (
	"encoding/json"
	"errors"
)

const (
	// TopicCartDisplay carries full cart snapshots for the customer display.
	TopicCartDisplay = "cart_display"
	// TopicOrderTracking carries single order records for the order board.
	TopicOrderTracking = "order_tracking"
)

var (
	ErrClosed     = errors.New("transport is closed")
	ErrNilHandler = errors.New("subscriber handler cannot be nil")
)

// Envelope is the unit of delivery on every topic.
type Envelope struct {
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
	Origin string          `json:"origin"`
}

// Handle is an open channel on one topic, owned by one station.
type Handle interface {
	// Publish fans the envelope out to every other station on the topic.
	// Envelope.Origin is stamped with the owning station when empty.
	Publish(env Envelope) error

	// Subscribe registers a handler for envelopes published by other
	// stations. The returned func removes the handler.
	Subscribe(handler func(Envelope)) (func(), error)

	// Close removes every subscription made through this handle.
	Close() error
}

// Transport opens topic handles. Open fails soft: callers log the error,
// keep the nil handle, and rely on the durable-store fallback path.
type Transport interface {
	Open(topic, station string) (Handle, error)
	Close() error
}
