package store

import (
	"context"
	"errors"

	"github.com/kaprika-press/card-services/internal/cardsvc/models"
)

// ErrNotFound is returned when no card exists for the given id.
var ErrNotFound = errors.New("card not found")

// CardStore is the durable card collection. Cards are appended and mutated,
// never deleted. Uniqueness of CardId is the allocator's responsibility, the
// store does not check it.
type CardStore interface {
	// GetAll returns every card in insertion order.
	GetAll(ctx context.Context) ([]models.CardRecord, error)
	// Get returns the card with the given id or ErrNotFound.
	Get(ctx context.Context, cardId string) (*models.CardRecord, error)
	// Add appends a new card.
	Add(ctx context.Context, card models.CardRecord) error
	// Update merges the patch over the stored card, stamps UpdatedAt and
	// returns the merged record, or ErrNotFound.
	Update(ctx context.Context, cardId string, patch models.CardPatch) (*models.CardRecord, error)
}
