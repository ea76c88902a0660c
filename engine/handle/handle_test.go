package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocGet(t *testing.T) {
	var tbl Table[string]

	h := tbl.Alloc("mesh")
	require.True(t, h.Valid())

	v, ok := tbl.Get(h)
	require.True(t, ok)
	assert.Equal(t, "mesh", *v)
	assert.Equal(t, 1, tbl.Live())
}

func TestStaleHandleMisses(t *testing.T) {
	var tbl Table[int]

	h := tbl.Alloc(7)
	require.True(t, tbl.Free(h))

	// The slot is recycled by the next Alloc, but the old handle must not
	// resolve to the new occupant.
	h2 := tbl.Alloc(42)
	assert.Equal(t, h.Index, h2.Index)
	assert.NotEqual(t, h.Generation, h2.Generation)

	_, ok := tbl.Get(h)
	assert.False(t, ok)

	v, ok := tbl.Get(h2)
	require.True(t, ok)
	assert.Equal(t, 42, *v)
}

func TestDoubleFreeIsNoop(t *testing.T) {
	var tbl Table[int]

	h := tbl.Alloc(1)
	assert.True(t, tbl.Free(h))
	assert.False(t, tbl.Free(h))
	assert.Equal(t, 0, tbl.Live())
}

func TestNilHandle(t *testing.T) {
	var tbl Table[int]
	tbl.Alloc(1)

	assert.False(t, Nil.Valid())
	_, ok := tbl.Get(Nil)
	assert.False(t, ok)
}

func TestLiveAccounting(t *testing.T) {
	var tbl Table[int]

	handles := make([]Handle, 0, 64)
	for i := 0; i < 64; i++ {
		handles = append(handles, tbl.Alloc(i))
	}
	assert.Equal(t, 64, tbl.Live())

	for _, h := range handles[:32] {
		tbl.Free(h)
	}
	assert.Equal(t, 32, tbl.Live())

	// Recycle the freed half and verify the count is stable.
	for i := 0; i < 32; i++ {
		tbl.Alloc(i)
	}
	assert.Equal(t, 64, tbl.Live())

	seen := 0
	tbl.Each(func(h Handle, v *int) { seen++ })
	assert.Equal(t, 64, seen)
}
