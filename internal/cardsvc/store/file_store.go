package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kaprika-press/card-services/internal/cardsvc/models"
)

// FileStore keeps the whole collection in one JSON file (data/cards.json).
// Every mutation rewrites the file through a temp-file rename and all
// mutations are serialized behind one mutex, so concurrent writers cannot
// lose each other's updates.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create data dir: %w", err)
	}
	return &FileStore{path: filepath.Join(dataDir, "cards.json")}, nil
}

// load reads the full collection. A missing or unparseable file yields an
// empty collection rather than an error.
func (s *FileStore) load() ([]models.CardRecord, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.CardRecord{}, nil
		}
		return nil, fmt.Errorf("could not read card file: %w", err)
	}

	var cards []models.CardRecord
	if err := json.Unmarshal(raw, &cards); err != nil {
		return []models.CardRecord{}, nil
	}
	return cards, nil
}

func (s *FileStore) saveAll(cards []models.CardRecord) error {
	raw, err := json.MarshalIndent(cards, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal cards: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("could not write card file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("could not replace card file: %w", err)
	}
	return nil
}

func (s *FileStore) GetAll(ctx context.Context) ([]models.CardRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) Get(ctx context.Context, cardId string) (*models.CardRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cards, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range cards {
		if cards[i].CardId == cardId {
			c := cards[i]
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileStore) Add(ctx context.Context, card models.CardRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cards, err := s.load()
	if err != nil {
		return err
	}
	cards = append(cards, card)
	return s.saveAll(cards)
}

func (s *FileStore) Update(ctx context.Context, cardId string, patch models.CardPatch) (*models.CardRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cards, err := s.load()
	if err != nil {
		return nil, err
	}

	for i := range cards {
		if cards[i].CardId != cardId {
			continue
		}
		patch.Apply(&cards[i])
		cards[i].UpdatedAt = time.Now().UTC()
		if err := s.saveAll(cards); err != nil {
			return nil, err
		}
		c := cards[i]
		return &c, nil
	}
	return nil, ErrNotFound
}
