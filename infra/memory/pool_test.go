package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolGetPut(t *testing.T) {
	p := NewOrderPool(4)
	require.Equal(t, 4, p.Allocated())
	require.Equal(t, 4, p.Free())

	o := p.Get()
	o.ID = "x"
	o.Remaining = 5
	require.Equal(t, 3, p.Free())

	p.Put(o)
	require.Equal(t, 4, p.Free())

	// recycled orders come back zeroed
	o2 := p.Get()
	require.Empty(t, o2.ID)
	require.Zero(t, o2.Remaining)
}

func TestPoolGrowsWhenExhausted(t *testing.T) {
	p := NewOrderPool(2)
	a, b := p.Get(), p.Get()
	require.Equal(t, 0, p.Free())

	c := p.Get()
	require.NotNil(t, c)
	require.Equal(t, 4, p.Allocated())
	_ = a
	_ = b
}
