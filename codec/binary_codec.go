package codec

import (
	"math"

	"codecbench/record"

	capnp "capnproto.org/go/capnp/v3"
	"github.com/cockroachdb/errors"
)

const wordSize = 8

// BinaryCodec encodes records as a single-segment Cap'n Proto message laid out as in schema.go.
// Pros: no parsing on read, fields are reached through pointers, text and blobs are not copied.
// Cons: word padding and pointers cost space on small fields; readers must know the schema.
type BinaryCodec struct {
	// TraverseLimit caps the bytes a reader may dereference; zero selects the capnp default.
	TraverseLimit uint64
	// DepthLimit caps pointer nesting; zero selects the capnp default.
	DepthLimit uint
}

func (c *BinaryCodec) Encode(r *record.Record) ([]byte, error) {
	if r == nil {
		return nil, errors.New("BinaryCodec: nil record")
	}
	msg, seg, err := capnp.NewMessage(capnp.SingleSegment(make([]byte, 0, estimateWords(r)*wordSize)))
	if err != nil {
		return nil, errors.Wrap(err, "new message")
	}

	// Root struct first, then the address list, then text and the image.
	cat, err := capnp.NewRootStruct(seg, catSize)
	if err != nil {
		return nil, errors.Wrap(err, "root")
	}
	cat.SetUint8(catAgeOffset, r.Age)
	cat.SetUint32(catCutenessOffset, math.Float32bits(r.Cuteness))

	addresses, err := capnp.NewCompositeList(seg, addressSize, int32(len(r.Addresses)))
	if err != nil {
		return nil, errors.Wrap(err, "addresses")
	}
	if err := cat.SetPtr(catAddressesPtr, addresses.ToPtr()); err != nil {
		return nil, errors.Wrap(err, "addresses")
	}
	for i, a := range r.Addresses {
		el := addresses.Struct(i)
		el.SetUint8(addressNumberOffset, a.Number)
		el.SetUint16(addressPostalcodeOffset, a.Postalcode)
		if err := el.SetText(addressStreetPtr, a.Street); err != nil {
			return nil, errors.Wrapf(err, "address %d street", i)
		}
	}

	if err := cat.SetText(catNamePtr, r.Name); err != nil {
		return nil, errors.Wrap(err, "name")
	}
	if err := cat.SetText(catColorPtr, r.Color); err != nil {
		return nil, errors.Wrap(err, "color")
	}
	// nil leaves the pointer null; an empty slice becomes a zero-length list.
	if err := cat.SetData(catImagePtr, r.Image); err != nil {
		return nil, errors.Wrap(err, "image")
	}
	return msg.Marshal()
}

// estimateWords sizes the first segment so a typical record encodes without regrowing.
func estimateWords(r *record.Record) int {
	words := 1 + 5 + 1 + len(r.Addresses)*2
	for _, a := range r.Addresses {
		words += (len(a.Street) + wordSize) / wordSize
	}
	words += (len(r.Name) + len(r.Color) + len(r.Image) + 2 + 3*wordSize) / wordSize
	return words
}

func (c *BinaryCodec) Decode(data []byte) (record.View, error) {
	return c.Read(data)
}

// Read validates the segment table and the root pointer and returns a view over data.
// Field reads are lazy; data must stay unmodified while the reader is in use.
func (c *BinaryCodec) Read(data []byte) (cat *CatReader, err error) {
	defer func() {
		if p := recover(); p != nil {
			cat, err = nil, errors.Wrapf(ErrCorruptMessage, "decode: %v", p)
		}
	}()

	msg, err := capnp.Unmarshal(data)
	if err != nil {
		return nil, corrupt(err, "read message")
	}
	if err := checkLength(msg, len(data)); err != nil {
		return nil, err
	}
	if c.TraverseLimit > 0 {
		msg.TraverseLimit = c.TraverseLimit
	}
	if c.DepthLimit > 0 {
		msg.DepthLimit = c.DepthLimit
	}

	p, err := msg.Root()
	if err != nil {
		return nil, corrupt(err, "root")
	}
	if !p.IsValid() {
		return nil, errors.Wrap(ErrCorruptMessage, "null root pointer")
	}
	root := p.Struct()
	if !root.IsValid() {
		return nil, mismatchf("root pointer is not a struct")
	}
	if sz := root.Size(); !covers(sz, catSize) {
		return nil, mismatchf("root struct has %d data bytes and %d pointers, Cat needs %d and %d",
			sz.DataSize, sz.PointerCount, catSize.DataSize, catSize.PointerCount)
	}
	return &CatReader{root: root}, nil
}

// checkLength rejects buffers holding more than the one message their segment table declares.
func checkLength(msg *capnp.Message, n int) error {
	segs := int(msg.NumSegments())
	total := (4*(segs+1) + wordSize - 1) / wordSize * wordSize
	for i := 0; i < segs; i++ {
		seg, err := msg.Segment(capnp.SegmentID(i))
		if err != nil {
			return corrupt(err, "segment table")
		}
		total += len(seg.Data())
	}
	if n != total {
		return errors.Wrapf(ErrCorruptMessage, "%d trailing bytes after last segment", n-total)
	}
	return nil
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

func (c *BinaryCodec) Name() string {
	return CodecTypeBinary.String()
}

// readText returns the text at pointer i as a view into the buffer. A null pointer reads as empty.
func readText(s capnp.Struct, i uint16, field string) ([]byte, error) {
	p, err := s.Ptr(i)
	if err != nil {
		return nil, corrupt(err, field)
	}
	if p.IsValid() && !p.List().IsValid() {
		return nil, mismatchf("%s: pointer is not a list", field)
	}
	return p.TextBytes(), nil
}

// CatReader is a borrowed view of an encoded record. It is not safe for concurrent use.
type CatReader struct {
	root capnp.Struct
}

// NameBytes returns the name as a view into the buffer.
func (r *CatReader) NameBytes() ([]byte, error) {
	return readText(r.root, catNamePtr, "name")
}

func (r *CatReader) GetName() (string, error) {
	b, err := r.NameBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *CatReader) ColorBytes() ([]byte, error) {
	return readText(r.root, catColorPtr, "color")
}

func (r *CatReader) Age() uint8 {
	return r.root.Uint8(catAgeOffset)
}

func (r *CatReader) Cuteness() float32 {
	return math.Float32frombits(r.root.Uint32(catCutenessOffset))
}

// Image returns the attachment as a view into the buffer; ok is false when absent.
func (r *CatReader) Image() (b []byte, ok bool, err error) {
	if !r.root.HasPtr(catImagePtr) {
		return nil, false, nil
	}
	p, err := r.root.Ptr(catImagePtr)
	if err != nil {
		return nil, false, corrupt(err, "image")
	}
	if !p.List().IsValid() {
		return nil, false, mismatchf("image: pointer is not a list")
	}
	b = p.Data()
	if b == nil {
		b = []byte{}
	}
	return b, true, nil
}

// Addresses returns the address list. A null list reads as empty.
func (r *CatReader) Addresses() (AddressList, error) {
	p, err := r.root.Ptr(catAddressesPtr)
	if err != nil {
		return AddressList{}, corrupt(err, "addresses")
	}
	if !p.IsValid() {
		return AddressList{}, nil
	}
	l := p.List()
	if !l.IsValid() {
		return AddressList{}, mismatchf("addresses: pointer is not a list")
	}
	return AddressList{list: l}, nil
}

// Materialize copies every field out of the buffer.
func (r *CatReader) Materialize() (*record.Record, error) {
	out := &record.Record{Age: r.Age(), Cuteness: r.Cuteness()}
	var err error

	if out.Name, err = r.GetName(); err != nil {
		return nil, err
	}
	color, err := r.ColorBytes()
	if err != nil {
		return nil, err
	}
	out.Color = string(color)

	list, err := r.Addresses()
	if err != nil {
		return nil, err
	}
	out.Addresses = make([]record.Address, list.Len())
	for i := range out.Addresses {
		a, err := list.At(i)
		if err != nil {
			return nil, err
		}
		if out.Addresses[i], err = a.Materialize(); err != nil {
			return nil, errors.Wrapf(err, "address %d", i)
		}
	}

	img, ok, err := r.Image()
	if err != nil {
		return nil, err
	}
	if ok {
		out.Image = make([]byte, len(img))
		copy(out.Image, img)
	}
	return out, nil
}

// AddressList is a view of the encoded address list.
type AddressList struct {
	list capnp.List
}

func (l AddressList) Len() int {
	return l.list.Len()
}

func (l AddressList) At(i int) (AddressReader, error) {
	if i < 0 || i >= l.Len() {
		return AddressReader{}, errors.Newf("codec: address index %d out of range [0,%d)", i, l.Len())
	}
	s := l.list.Struct(i)
	if sz := s.Size(); !covers(sz, addressSize) {
		return AddressReader{}, mismatchf("address %d has %d data bytes and %d pointers, Address needs %d and %d",
			i, sz.DataSize, sz.PointerCount, addressSize.DataSize, addressSize.PointerCount)
	}
	return AddressReader{s: s}, nil
}

// AddressReader is a view of one encoded address.
type AddressReader struct {
	s capnp.Struct
}

func (a AddressReader) StreetBytes() ([]byte, error) {
	return readText(a.s, addressStreetPtr, "street")
}

func (a AddressReader) Number() uint8 {
	return a.s.Uint8(addressNumberOffset)
}

func (a AddressReader) Postalcode() uint16 {
	return a.s.Uint16(addressPostalcodeOffset)
}

func (a AddressReader) Materialize() (record.Address, error) {
	street, err := a.StreetBytes()
	if err != nil {
		return record.Address{}, err
	}
	return record.Address{Street: string(street), Number: a.Number(), Postalcode: a.Postalcode()}, nil
}
