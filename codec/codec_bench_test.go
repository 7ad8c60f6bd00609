package codec

import (
	"testing"
)

func BenchmarkEncode(b *testing.B) {
	r := testRecord(b, testImage())
	for _, c := range All() {
		b.Run(c.Name(), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := c.Encode(r); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// Decode plus a name read, the same work the listener does per message.
func BenchmarkDecode(b *testing.B) {
	r := testRecord(b, testImage())
	for _, c := range All() {
		data, err := c.Encode(r)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(c.Name(), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				v, err := c.Decode(data)
				if err != nil {
					b.Fatal(err)
				}
				if _, err := v.GetName(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkMaterialize(b *testing.B) {
	r := testRecord(b, testImage())
	for _, c := range All() {
		data, err := c.Encode(r)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(c.Name(), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				v, err := c.Decode(data)
				if err != nil {
					b.Fatal(err)
				}
				if _, err := v.Materialize(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
