package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"codecbench/record"

	"github.com/buger/jsonparser"
	"github.com/cockroachdb/errors"
)

// JSONCodec encodes records as a JSON object; the image is unpadded standard base64 or null.
// Pros: human-readable, self-describing, any language can read it.
// Cons: every field is parsed and copied on read, binary data grows by a third.
type JSONCodec struct{}

var imageEncoding = base64.RawStdEncoding.Strict()

type catJSON struct {
	Name      string        `json:"name"`
	Age       uint8         `json:"age"`
	Color     string        `json:"color"`
	Cuteness  float32       `json:"cuteness"`
	Addresses []addressJSON `json:"addresses"`
	Image     *string       `json:"image"`
}

type addressJSON struct {
	Street     string `json:"street"`
	Number     uint8  `json:"number"`
	Postalcode uint16 `json:"postalcode"`
}

func (c *JSONCodec) Encode(r *record.Record) ([]byte, error) {
	if r == nil {
		return nil, errors.New("JSONCodec: nil record")
	}
	if math.IsNaN(float64(r.Cuteness)) || math.IsInf(float64(r.Cuteness), 0) {
		return nil, errors.Wrapf(ErrTypeMismatch, "cuteness %v has no JSON form", r.Cuteness)
	}
	out := catJSON{
		Name:      r.Name,
		Age:       r.Age,
		Color:     r.Color,
		Cuteness:  r.Cuteness,
		Addresses: make([]addressJSON, len(r.Addresses)),
	}
	for i, a := range r.Addresses {
		out.Addresses[i] = addressJSON{Street: a.Street, Number: a.Number, Postalcode: a.Postalcode}
	}
	if r.Image != nil {
		img := imageEncoding.EncodeToString(r.Image)
		out.Image = &img
	}
	return json.Marshal(out)
}

func (c *JSONCodec) Decode(data []byte) (record.View, error) {
	return c.Unmarshal(data)
}

const (
	hasName = 1 << iota
	hasAge
	hasColor
	hasCuteness
	hasAddresses

	hasRequired = hasName | hasAge | hasColor | hasCuteness | hasAddresses
)

// Unmarshal parses the whole document into a fresh record.
// Unknown keys are ignored; a missing or null image means absent.
func (c *JSONCodec) Unmarshal(data []byte) (*record.Record, error) {
	if !utf8.Valid(data) {
		return nil, errors.Wrap(ErrMalformedText, "payload is not valid UTF-8")
	}
	// jsonparser does not validate structure.
	if !json.Valid(data) {
		return nil, errors.Wrap(ErrMalformedText, "payload is not valid JSON")
	}
	root, dt, end, err := jsonparser.Get(data)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedText, "%v", err)
	}
	if dt != jsonparser.Object {
		return nil, errors.Wrapf(ErrMalformedText, "root is %s, want object", dt)
	}
	if len(bytes.TrimSpace(data[end:])) != 0 {
		return nil, errors.Wrapf(ErrMalformedText, "trailing data at offset %d", end)
	}

	r := &record.Record{}
	var seen int
	err = jsonparser.ObjectEach(root, func(key, value []byte, dt jsonparser.ValueType, _ int) error {
		var err error
		switch string(key) {
		case "name":
			r.Name, err = parseString("name", value, dt)
			seen |= hasName
		case "age":
			var v uint64
			v, err = parseUint("age", value, dt, math.MaxUint8)
			r.Age = uint8(v)
			seen |= hasAge
		case "color":
			r.Color, err = parseString("color", value, dt)
			seen |= hasColor
		case "cuteness":
			r.Cuteness, err = parseFloat32("cuteness", value, dt)
			seen |= hasCuteness
		case "addresses":
			r.Addresses, err = parseAddresses(value, dt)
			seen |= hasAddresses
		case "image":
			r.Image, err = parseImage(value, dt)
		}
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	if missing := hasRequired &^ seen; missing != 0 {
		return nil, errors.Wrapf(ErrMalformedText, "missing field %q", firstMissing(missing))
	}
	return r, nil
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}

func (c *JSONCodec) Name() string {
	return CodecTypeJSON.String()
}

// classify maps parser errors onto ErrMalformedText and passes typed errors through.
func classify(err error) error {
	if errors.IsAny(err, ErrMalformedText, ErrTypeMismatch, ErrEncodingMismatch) {
		return err
	}
	return errors.Wrapf(ErrMalformedText, "%v", err)
}

func firstMissing(mask int) string {
	switch {
	case mask&hasName != 0:
		return "name"
	case mask&hasAge != 0:
		return "age"
	case mask&hasColor != 0:
		return "color"
	case mask&hasCuteness != 0:
		return "cuteness"
	default:
		return "addresses"
	}
}

func parseString(field string, value []byte, dt jsonparser.ValueType) (string, error) {
	if dt != jsonparser.String {
		return "", errors.Wrapf(ErrTypeMismatch, "%s: expected string, found %s", field, dt)
	}
	s, err := jsonparser.ParseString(value)
	if err != nil {
		return "", errors.Wrapf(ErrMalformedText, "%s: %v", field, err)
	}
	return s, nil
}

func parseUint(field string, value []byte, dt jsonparser.ValueType, max uint64) (uint64, error) {
	if dt != jsonparser.Number {
		return 0, errors.Wrapf(ErrTypeMismatch, "%s: expected number, found %s", field, dt)
	}
	v, err := strconv.ParseUint(string(value), 10, 64)
	if err != nil || v > max {
		return 0, errors.Wrapf(ErrTypeMismatch, "%s: %s is not an integer in [0,%d]", field, value, max)
	}
	return v, nil
}

func parseFloat32(field string, value []byte, dt jsonparser.ValueType) (float32, error) {
	if dt != jsonparser.Number {
		return 0, errors.Wrapf(ErrTypeMismatch, "%s: expected number, found %s", field, dt)
	}
	// Parse at 32-bit precision directly; going through float64 can round twice.
	v, err := strconv.ParseFloat(string(value), 32)
	if err != nil {
		return 0, errors.Wrapf(ErrTypeMismatch, "%s: %s is not a finite float32", field, value)
	}
	return float32(v), nil
}

func parseAddresses(value []byte, dt jsonparser.ValueType) ([]record.Address, error) {
	if dt != jsonparser.Array {
		return nil, errors.Wrapf(ErrTypeMismatch, "addresses: expected array, found %s", dt)
	}
	out := make([]record.Address, 0)
	var firstErr error
	_, err := jsonparser.ArrayEach(value, func(el []byte, dt jsonparser.ValueType, _ int, err error) {
		if firstErr != nil {
			return
		}
		if err != nil {
			firstErr = errors.Wrapf(ErrMalformedText, "addresses[%d]: %v", len(out), err)
			return
		}
		a, err := parseAddress(el, dt)
		if err != nil {
			firstErr = errors.Wrapf(err, "addresses[%d]", len(out))
			return
		}
		out = append(out, a)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedText, "addresses: %v", err)
	}
	return out, nil
}

func parseAddress(value []byte, dt jsonparser.ValueType) (record.Address, error) {
	if dt != jsonparser.Object {
		return record.Address{}, errors.Wrapf(ErrTypeMismatch, "expected object, found %s", dt)
	}
	var a record.Address
	var hasStreet, hasNumber, hasPostalcode bool
	err := jsonparser.ObjectEach(value, func(key, value []byte, dt jsonparser.ValueType, _ int) error {
		var err error
		var v uint64
		switch string(key) {
		case "street":
			a.Street, err = parseString("street", value, dt)
			hasStreet = true
		case "number":
			v, err = parseUint("number", value, dt, math.MaxUint8)
			a.Number = uint8(v)
			hasNumber = true
		case "postalcode":
			v, err = parseUint("postalcode", value, dt, math.MaxUint16)
			a.Postalcode = uint16(v)
			hasPostalcode = true
		}
		return err
	})
	if err != nil {
		return record.Address{}, classify(err)
	}
	switch {
	case !hasStreet:
		return record.Address{}, errors.Wrap(ErrMalformedText, `missing field "street"`)
	case !hasNumber:
		return record.Address{}, errors.Wrap(ErrMalformedText, `missing field "number"`)
	case !hasPostalcode:
		return record.Address{}, errors.Wrap(ErrMalformedText, `missing field "postalcode"`)
	}
	return a, nil
}

func parseImage(value []byte, dt jsonparser.ValueType) ([]byte, error) {
	switch dt {
	case jsonparser.Null:
		return nil, nil
	case jsonparser.String:
	default:
		return nil, errors.Wrapf(ErrTypeMismatch, "image: expected string or null, found %s", dt)
	}
	s, err := jsonparser.ParseString(value)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedText, "image: %v", err)
	}
	// The decoder skips CR and LF; line-wrapped input is not the canonical form.
	if strings.ContainsAny(s, "\r\n") {
		return nil, errors.Wrap(ErrEncodingMismatch, "image: line breaks in base64")
	}
	img, err := imageEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrapf(ErrEncodingMismatch, "image: %v", err)
	}
	return img, nil
}
