package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/kaprika-press/card-services/internal/cardsvc/store"
)

// ErrAllocationExhausted means the random allocator kept colliding with
// existing ids and gave up.
var ErrAllocationExhausted = errors.New("card id allocation exhausted")

// Allocator produces a unique card identifier. The two issuance modes use
// different schemes behind this one contract.
type Allocator interface {
	Allocate(ctx context.Context) (string, error)
}

const (
	numericIdFloor  = 1_000_000   // smallest 7 digit id
	numericIdSpan   = 999_000_000 // up to 9 digits
	maxDrawAttempts = 50
)

// RandomNumericAllocator draws a uniform 7-9 digit number and redraws on
// collision with any id already in the store. The existing id set is
// re-read on every call so concurrent creations from other processes are
// seen. Used by the print-only flow.
type RandomNumericAllocator struct {
	store store.CardStore
	draw  func() int64 // value in [0, numericIdSpan)
}

func NewRandomNumericAllocator(s store.CardStore) *RandomNumericAllocator {
	return &RandomNumericAllocator{
		store: s,
		draw:  func() int64 { return rand.Int63n(numericIdSpan) },
	}
}

func (a *RandomNumericAllocator) Allocate(ctx context.Context) (string, error) {
	cards, err := a.store.GetAll(ctx)
	if err != nil {
		return "", fmt.Errorf("could not read existing card ids: %w", err)
	}

	existing := make(map[string]struct{}, len(cards))
	for _, c := range cards {
		existing[c.CardId] = struct{}{}
	}

	for attempt := 0; attempt < maxDrawAttempts; attempt++ {
		id := strconv.FormatInt(numericIdFloor+a.draw(), 10)
		if _, taken := existing[id]; !taken {
			return id, nil
		}
	}
	return "", ErrAllocationExhausted
}

// TimestampAllocator derives the id from the current millisecond clock,
// base 36, behind a fixed tag. Used by the mint flow.
type TimestampAllocator struct {
	prefix string
	now    func() time.Time
}

func NewTimestampAllocator(prefix string) *TimestampAllocator {
	return &TimestampAllocator{prefix: prefix, now: time.Now}
}

func (a *TimestampAllocator) Allocate(ctx context.Context) (string, error) {
	token := strconv.FormatInt(a.now().UnixMilli(), 36)
	return a.prefix + "-" + strings.ToLower(token), nil
}
