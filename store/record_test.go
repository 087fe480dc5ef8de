package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNowIsStrictlyIncreasing(t *testing.T) {
	prev := Now()
	for i := 0; i < 1000; i++ {
		next := Now()
		require.True(t, next.After(prev))
		prev = next
	}
}

func TestSyncPointWaitsForOpenWrites(t *testing.T) {
	before := SyncPoint()
	started, release := BeginWrite()
	require.True(t, started.After(before))

	// A pull taken while the write is open must not move past it.
	point := SyncPoint()
	require.True(t, point.Before(started))
	require.False(t, point.Before(before))

	later, releaseLater := BeginWrite()
	require.True(t, SyncPoint().Before(started))

	release()
	release()
	point = SyncPoint()
	require.True(t, point.Before(later))
	require.False(t, point.Before(started))

	releaseLater()
	require.True(t, SyncPoint().After(later))
}
