package codec

import "github.com/cockroachdb/errors"

var (
	// ErrCorruptMessage covers truncated buffers, bad segment tables and pointers that do not resolve.
	ErrCorruptMessage = errors.New("codec: corrupt message")
	// ErrSchemaMismatch is returned when a pointer targets a shape the Cat schema does not expect.
	ErrSchemaMismatch   = errors.New("codec: schema mismatch")
	ErrMalformedText    = errors.New("codec: malformed text")
	ErrTypeMismatch     = errors.New("codec: type mismatch")
	ErrEncodingMismatch = errors.New("codec: encoding mismatch")
)

// corrupt marks a capnp read failure as ErrCorruptMessage.
func corrupt(err error, what string) error {
	return errors.Wrapf(ErrCorruptMessage, "%s: %v", what, err)
}

func mismatchf(format string, args ...any) error {
	return errors.Wrapf(ErrSchemaMismatch, format, args...)
}
