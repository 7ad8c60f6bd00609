package record

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestBuildDefaults(t *testing.T) {
	r, err := Build(DefaultBuildOptions(), []byte{0xFF, 0xD8, 0xFF})
	require.NoError(t, err)

	require.Equal(t, "Minka", r.Name)
	require.Equal(t, uint8(8), r.Age)
	require.Equal(t, "lucky", r.Color)
	require.Equal(t, float32(100.0), r.Cuteness)
	require.Len(t, r.Addresses, 10)
	for i, a := range r.Addresses {
		require.Equal(t, "some street", a.Street)
		require.Equal(t, uint8(i), a.Number)
		require.Equal(t, uint16(1234), a.Postalcode)
	}
	require.True(t, r.HasImage())
}

func TestBuildAddressCountBounds(t *testing.T) {
	opts := DefaultBuildOptions()

	for _, n := range []int{0, 1, MaxAddresses} {
		opts.AddressCount = n
		r, err := Build(opts, nil)
		require.NoError(t, err)
		require.Len(t, r.Addresses, n)
	}

	for _, n := range []int{-1, MaxAddresses + 1} {
		opts.AddressCount = n
		_, err := Build(opts, nil)
		require.True(t, errors.Is(err, ErrInvalidAddressCount), "count %d: %v", n, err)
	}
}

func TestBuildCopiesImage(t *testing.T) {
	img := []byte("cat picture")
	r, err := Build(DefaultBuildOptions(), img)
	require.NoError(t, err)

	img[0] = 'X'
	require.Equal(t, "cat picture", string(r.Image))
}

func TestBuildIsDeterministic(t *testing.T) {
	a, err := Build(DefaultBuildOptions(), []byte{1, 2, 3})
	require.NoError(t, err)
	b, err := Build(DefaultBuildOptions(), []byte{1, 2, 3})
	require.NoError(t, err)
	require.True(t, a.Equal(b))
}

func TestEqualDistinguishesAbsentAndEmptyImage(t *testing.T) {
	absent, err := Build(DefaultBuildOptions(), nil)
	require.NoError(t, err)
	empty, err := Build(DefaultBuildOptions(), []byte{})
	require.NoError(t, err)

	require.False(t, absent.HasImage())
	require.True(t, empty.HasImage())
	require.False(t, absent.Equal(empty))
	require.True(t, absent.Equal(absent))
}

func TestRecordIsItsOwnView(t *testing.T) {
	r, err := Build(DefaultBuildOptions(), nil)
	require.NoError(t, err)

	var v View = r
	name, err := v.GetName()
	require.NoError(t, err)
	require.Equal(t, "Minka", name)

	m, err := v.Materialize()
	require.NoError(t, err)
	require.Same(t, r, m)
}
