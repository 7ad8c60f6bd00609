// Package bench measures the codecs against one shared record.
//
// The local pipeline is build → encode(each codec) → decode(each codec), and every stage
// reports a Measurement. The distributed pipeline stops after encode and ships the buffers.
package bench

import (
	"time"

	"codecbench/codec"
	"codecbench/metrics"
	"codecbench/record"

	"github.com/rs/zerolog"
)

// Measurement is what one stage observed for one codec.
type Measurement struct {
	Codec          string
	EncodedLen     int
	EncodeDuration time.Duration
	DecodeDuration time.Duration
	// Sentinel is the name read back after decoding; it proves the decode produced data.
	Sentinel string
	Err      error
}

// MarshalZerologObject lets a Measurement be embedded in log events.
func (m Measurement) MarshalZerologObject(e *zerolog.Event) {
	e.Str("codec", m.Codec)
	if m.EncodedLen > 0 {
		e.Int("bytes", m.EncodedLen)
	}
	if m.EncodeDuration > 0 {
		e.Dur("encode", m.EncodeDuration)
	}
	if m.DecodeDuration > 0 {
		e.Dur("decode", m.DecodeDuration)
	}
	if m.Sentinel != "" {
		e.Str("name", m.Sentinel)
	}
	if m.Err != nil {
		e.AnErr("stage_error", m.Err)
	}
}

// EncodeStage times one Encode call.
func EncodeStage(c codec.Codec, r *record.Record) ([]byte, Measurement) {
	m := Measurement{Codec: c.Name()}
	start := time.Now()
	data, err := c.Encode(r)
	m.EncodeDuration = time.Since(start)
	if err != nil {
		m.Err = err
		return nil, m
	}
	m.EncodedLen = len(data)
	metrics.RecordEncode(m.Codec, m.EncodedLen, m.EncodeDuration)
	return data, m
}

// DecodeStage times one Decode call plus the name read that follows it. For the binary
// codec the name read is where the first field is actually dereferenced.
func DecodeStage(c codec.Codec, data []byte) (record.View, Measurement) {
	m := Measurement{Codec: c.Name(), EncodedLen: len(data)}
	start := time.Now()
	view, err := c.Decode(data)
	if err == nil {
		m.Sentinel, err = view.GetName()
	}
	m.DecodeDuration = time.Since(start)
	metrics.RecordDecode(m.Codec, m.DecodeDuration, err)
	if err != nil {
		m.Err = err
		m.Sentinel = ""
		return nil, m
	}
	return view, m
}
