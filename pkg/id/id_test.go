package id

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIsValid(t *testing.T) {
	require.True(t, IsValid(New()))
	require.False(t, IsValid("foobar"))
	require.False(t, IsValid(""))
}

func TestNoCollisionsAndOrdered(t *testing.T) {
	now := time.Now()
	ids := make([]string, 0, 10000)
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		s, err := NewFromTime(now)
		require.NoError(t, err)
		ids = append(ids, s)
		seen[s] = struct{}{}
	}

	require.Len(t, seen, len(ids))
	require.True(t, sort.StringsAreSorted(ids))
}

func TestTime(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	s, err := NewFromTime(at)
	require.NoError(t, err)

	got, err := Time(s)
	require.NoError(t, err)
	require.True(t, at.Equal(got))

	_, err = Time("nope")
	require.Error(t, err)
}
