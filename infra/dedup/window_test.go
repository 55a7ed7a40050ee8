package dedup

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordAndLookup(t *testing.T) {
	w := NewWindow(16)

	_, ok := w.Lookup("alice", "n1")
	require.False(t, ok)

	w.Record("alice", "n1", Outcome{Accepted: true})
	out, ok := w.Lookup("alice", "n1")
	require.True(t, ok)
	require.True(t, out.Accepted)

	// same nonce, different principal is a different key
	_, ok = w.Lookup("bob", "n1")
	require.False(t, ok)
}

func TestFirstWriteWins(t *testing.T) {
	w := NewWindow(16)
	w.Record("alice", "n1", Outcome{Reason: "zero size"})
	w.Record("alice", "n1", Outcome{Accepted: true})

	out, _ := w.Lookup("alice", "n1")
	require.False(t, out.Accepted)
	require.Equal(t, "zero size", out.Reason)
}

func TestEvictionIsFIFO(t *testing.T) {
	w := NewWindow(4)
	for i := 0; i < 4; i++ {
		w.Record("p", fmt.Sprintf("n%d", i), Outcome{Accepted: true})
	}
	require.Equal(t, 4, w.Len())

	// fifth key evicts the oldest
	w.Record("p", "n4", Outcome{Accepted: true})
	require.Equal(t, 4, w.Len())

	_, ok := w.Lookup("p", "n0")
	require.False(t, ok)
	_, ok = w.Lookup("p", "n1")
	require.True(t, ok)
	_, ok = w.Lookup("p", "n4")
	require.True(t, ok)
}
