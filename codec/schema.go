package codec

import capnp "capnproto.org/go/capnp/v3"

// Layout of the Cat struct:
//
//	data word 0: [0] age uint8, [4:8] cuteness float32
//	pointers:    0 name, 1 color, 2 addresses, 3 image
var catSize = capnp.ObjectSize{DataSize: 8, PointerCount: 4}

const (
	catAgeOffset      capnp.DataOffset = 0
	catCutenessOffset capnp.DataOffset = 4

	catNamePtr      uint16 = 0
	catColorPtr     uint16 = 1
	catAddressesPtr uint16 = 2
	catImagePtr     uint16 = 3
)

// Layout of the Address struct:
//
//	data word 0: [0] number uint8, [2:4] postalcode uint16
//	pointers:    0 street
var addressSize = capnp.ObjectSize{DataSize: 8, PointerCount: 1}

const (
	addressNumberOffset     capnp.DataOffset = 0
	addressPostalcodeOffset capnp.DataOffset = 2

	addressStreetPtr uint16 = 0
)

// covers reports whether a struct of size got holds every field of want.
func covers(got, want capnp.ObjectSize) bool {
	return got.DataSize >= want.DataSize && got.PointerCount >= want.PointerCount
}
