package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vbonduro/sectorinv/internal/domain"
	"github.com/vbonduro/sectorinv/internal/kvstore"
)

// DefaultKey is the key the inventory document is stored under.
const DefaultKey = "sectoral-inventory-data"

// Store loads and saves the whole inventory document as one JSON value.
type Store struct {
	kv     kvstore.Store
	key    string
	logger *slog.Logger
}

func New(kv kvstore.Store, key string, logger *slog.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{kv: kv, key: key, logger: logger}
}

// Load returns the stored document. A missing or unparseable value yields an
// empty document; only backend errors are returned.
func (s *Store) Load(ctx context.Context) (*domain.Document, error) {
	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return domain.NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	doc := domain.NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		s.logger.Warn("stored document is corrupt, starting empty", "key", s.key, "bytes", len(data), "error", err)
		return domain.NewDocument(), nil
	}
	normalize(doc)
	return doc, nil
}

func (s *Store) Save(ctx context.Context, doc *domain.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := s.kv.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// normalize replaces null collections so the document always encodes as arrays.
func normalize(doc *domain.Document) {
	if doc.Sectors == nil {
		doc.Sectors = []domain.Sector{}
	}
	if doc.Products == nil {
		doc.Products = []domain.Product{}
	}
	if doc.History == nil {
		doc.History = []domain.HistoryEntry{}
	}
}
