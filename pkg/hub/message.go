// Package hub is a channel-based websocket fan-out for telemetry. One
// goroutine owns the client set; producers hand it pre-encoded envelopes
// and never block on slow consumers.
package hub

import "encoding/json"

// Envelope wraps a broadcast payload with its kind so dashboard clients can
// demultiplex on a single socket.
type Envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Envelope kinds sent over the status socket.
const (
	KindStatus = "status"
	KindEvent  = "event"
)

// NewEnvelope encodes v into an envelope of the given kind.
func NewEnvelope(kind string, v interface{}) (Envelope, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: kind, Data: data}, nil
}

// Encode returns the wire form of the envelope.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
