package service

import (
	"context"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kaprika-press/card-services/internal/cardsvc/models"
	"github.com/kaprika-press/card-services/internal/cardsvc/store"
)

func seededStore(t *testing.T, ids ...string) store.CardStore {
	t.Helper()
	s, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	for _, id := range ids {
		require.NoError(t, s.Add(context.Background(), models.CardRecord{CardId: id}))
	}
	return s
}

func TestRandomNumericAllocatorProducesUniqueIdsInBurst(t *testing.T) {
	s := seededStore(t, "1000001", "2000002", "3000003")
	a := NewRandomNumericAllocator(s)
	ctx := context.Background()

	pattern := regexp.MustCompile(`^[0-9]{7,9}$`)
	seen := map[string]bool{"1000001": true, "2000002": true, "3000003": true}

	for i := 0; i < 50; i++ {
		id, err := a.Allocate(ctx)
		require.NoError(t, err)
		require.Regexp(t, pattern, id)
		require.False(t, seen[id], "allocator returned duplicate id %s", id)
		seen[id] = true

		// mirror the caller: persist so the next call sees it
		require.NoError(t, s.Add(ctx, models.CardRecord{CardId: id}))
	}
}

func TestRandomNumericAllocatorRedrawsOnCollision(t *testing.T) {
	s := seededStore(t, strconv.FormatInt(numericIdFloor+7, 10))
	a := NewRandomNumericAllocator(s)

	draws := []int64{7, 7, 11} // two collisions, then a free id
	a.draw = func() int64 {
		d := draws[0]
		if len(draws) > 1 {
			draws = draws[1:]
		}
		return d
	}

	id, err := a.Allocate(context.Background())
	require.NoError(t, err)
	require.Equal(t, strconv.FormatInt(numericIdFloor+11, 10), id)
}

func TestRandomNumericAllocatorGivesUpAfterMaxAttempts(t *testing.T) {
	s := seededStore(t, strconv.FormatInt(numericIdFloor+7, 10))
	a := NewRandomNumericAllocator(s)
	a.draw = func() int64 { return 7 } // always collides

	_, err := a.Allocate(context.Background())
	require.ErrorIs(t, err, ErrAllocationExhausted)
}

func TestTimestampAllocatorFormat(t *testing.T) {
	a := NewTimestampAllocator("KAP")
	a.now = func() time.Time { return time.UnixMilli(1767225600000) }

	id, err := a.Allocate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "KAP-"+strconv.FormatInt(1767225600000, 36), id)
}
