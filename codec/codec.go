// Package codec holds the two competing record codecs.
//
//   - BinaryCodec: schema-defined, word-aligned pointer layout. Decode is a zero-copy view.
//   - JSONCodec:   self-describing text. Decode materializes the whole record.
//
// Both implement Codec so the harness and the listener drive them identically.
package codec

import (
	"fmt"
	"strings"

	"codecbench/record"

	"github.com/cockroachdb/errors"
)

type CodecType byte

const (
	CodecTypeJSON   CodecType = 0
	CodecTypeBinary CodecType = 1
)

func (t CodecType) String() string {
	switch t {
	case CodecTypeJSON:
		return "json"
	case CodecTypeBinary:
		return "binary"
	default:
		return fmt.Sprintf("codec(%d)", byte(t))
	}
}

type Codec interface {
	Encode(r *record.Record) ([]byte, error)
	Decode(data []byte) (record.View, error)
	Type() CodecType // 0=JSON, 1=Binary
	Name() string
}

func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeJSON {
		return &JSONCodec{}
	}

	return &BinaryCodec{}
}

// All returns one instance of every codec, binary first.
func All() []Codec {
	return []Codec{GetCodec(CodecTypeBinary), GetCodec(CodecTypeJSON)}
}

// ParseCodecType accepts a codec name as used on the command line and in the registry.
func ParseCodecType(name string) (CodecType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json", "text":
		return CodecTypeJSON, nil
	case "binary", "capnp":
		return CodecTypeBinary, nil
	default:
		return 0, errors.Newf("codec: unknown codec %q", name)
	}
}
