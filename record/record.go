// Package record defines the benchmarked entity shared by every codec.
//
// A Record is built once per run and handed unchanged to both codecs, so any difference
// in encoded length or timing comes from the codec and never from the data.
package record

import (
	"bytes"

	"github.com/cockroachdb/errors"
)

// MaxAddresses bounds the address list: each Address.Number is its list index and must fit a uint8.
const MaxAddresses = 256

var ErrInvalidAddressCount = errors.New("record: invalid address count")

// Address is one nested sub-record.
type Address struct {
	Street     string
	Number     uint8
	Postalcode uint16
}

// Record is the root entity.
//
// Image is nil when the record carries no attachment. A non-nil empty slice is a present,
// empty attachment and survives both codecs as such.
type Record struct {
	Name      string
	Age       uint8
	Color     string
	Cuteness  float32
	Addresses []Address
	Image     []byte
}

// View is a decoded record. The binary codec returns a view borrowing from the wire buffer,
// the text codec a fully materialized *Record.
type View interface {
	// GetName returns the record name, used as the correctness sentinel in reports.
	GetName() (string, error)
	// Materialize returns an owned copy of every field.
	Materialize() (*Record, error)
}

// BuildOptions holds the literal field values used by Build.
type BuildOptions struct {
	Name         string
	Age          uint8
	Color        string
	Cuteness     float32
	Street       string
	Postalcode   uint16
	AddressCount int
}

func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		Name:         "Minka",
		Age:          8,
		Color:        "lucky",
		Cuteness:     100.0,
		Street:       "some street",
		Postalcode:   1234,
		AddressCount: 10,
	}
}

// Build constructs a Record from opts and the attachment bytes.
// Address i gets Number i; pass a nil image for a record without attachment.
func Build(opts BuildOptions, image []byte) (*Record, error) {
	if opts.AddressCount < 0 || opts.AddressCount > MaxAddresses {
		return nil, errors.Wrapf(ErrInvalidAddressCount, "%d not in [0, %d]", opts.AddressCount, MaxAddresses)
	}

	addresses := make([]Address, opts.AddressCount)
	for i := range addresses {
		addresses[i] = Address{
			Street:     opts.Street,
			Number:     uint8(i),
			Postalcode: opts.Postalcode,
		}
	}

	var img []byte
	if image != nil {
		img = make([]byte, len(image))
		copy(img, image)
	}

	return &Record{
		Name:      opts.Name,
		Age:       opts.Age,
		Color:     opts.Color,
		Cuteness:  opts.Cuteness,
		Addresses: addresses,
		Image:     img,
	}, nil
}

// HasImage reports whether the record carries an attachment.
func (r *Record) HasImage() bool {
	return r.Image != nil
}

// Equal reports whether r and other hold the same values, including the
// distinction between an absent and an empty image.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.Name != other.Name || r.Age != other.Age || r.Color != other.Color {
		return false
	}
	if r.Cuteness != other.Cuteness {
		return false
	}
	if len(r.Addresses) != len(other.Addresses) {
		return false
	}
	for i := range r.Addresses {
		if r.Addresses[i] != other.Addresses[i] {
			return false
		}
	}
	if r.HasImage() != other.HasImage() {
		return false
	}
	return bytes.Equal(r.Image, other.Image)
}

func (r *Record) GetName() (string, error) {
	return r.Name, nil
}

func (r *Record) Materialize() (*Record, error) {
	return r, nil
}
