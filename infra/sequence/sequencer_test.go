package sequence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamsAdvanceIndependently(t *testing.T) {
	s := New()
	require.Equal(t, uint64(1), s.NextAdmission())
	require.Equal(t, uint64(2), s.NextAdmission())
	require.Equal(t, uint64(1), s.NextEvent())

	require.Equal(t, uint64(2), s.Admission())
	require.Equal(t, uint64(1), s.Events())
}

func TestResume(t *testing.T) {
	s := New()
	s.Resume(10, 40)
	require.Equal(t, uint64(11), s.NextAdmission())
	require.Equal(t, uint64(41), s.NextEvent())
}
