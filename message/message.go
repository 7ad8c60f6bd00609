// Package message defines what a listener hands to its handler chain.
//
// The transport has no framing: a message is everything a peer wrote before closing its
// write side, so one Inbound corresponds to exactly one accepted connection.
package message

import (
	"time"

	"github.com/rs/zerolog"
)

// Inbound carries one received payload through the middleware chain.
//
//   - Set by the listener: ConnID, Remote, Codec, Payload, Received.
//   - Set by the decode handler: Name, DecodeDuration.
type Inbound struct {
	ConnID   string    // ksuid assigned at accept
	Remote   string    // peer address
	Codec    string    // codec name the listener decodes with, e.g. "binary"
	Payload  []byte    // complete accumulated bytes
	Received time.Time // when EOF was observed

	Name           string // decoded record name, empty until decoded
	DecodeDuration time.Duration
}

// Len is the payload size in bytes.
func (m *Inbound) Len() int {
	return len(m.Payload)
}

// MarshalZerologObject lets loggers embed the message with Event.EmbedObject.
func (m *Inbound) MarshalZerologObject(e *zerolog.Event) {
	e.Str("conn_id", m.ConnID).
		Str("remote", m.Remote).
		Str("codec", m.Codec).
		Int("bytes", m.Len())
	if m.Name != "" {
		e.Str("name", m.Name).Dur("decode", m.DecodeDuration)
	}
}

// Outbound is one encoded buffer on its way to the listener for Codec.
type Outbound struct {
	Codec   string
	Payload []byte
}
