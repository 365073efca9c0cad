package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/sectorinv/internal/domain"
)

var (
	ErrSectorNotFound    = errors.New("sector not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity out of range")
	ErrInvalidAction     = errors.New("action must be add or subtract")
)

// DefaultResponsible is recorded in history when the context carries no user.
const DefaultResponsible = "System User"

// unknownSector is the history sector name for products whose sector is gone.
const unknownSector = "Unknown Sector"

// documentRepository is the subset of docstore.Store that InventoryService requires.
type documentRepository interface {
	Load(ctx context.Context) (*domain.Document, error)
	Save(ctx context.Context, doc *domain.Document) error
}

// InventoryService owns the inventory document. Every operation holds mu for
// its whole duration, so callers never observe a half-applied change. A
// mutation that fails to persist, or whose history entry fails to persist,
// is rolled back.
type InventoryService struct {
	mu     sync.Mutex
	docs   documentRepository
	doc    *domain.Document
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

type Option func(*InventoryService)

// WithClock overrides the time source used for timestamps and expiration checks.
func WithClock(now func() time.Time) Option {
	return func(s *InventoryService) { s.now = now }
}

// WithIDGenerator overrides how entity ids are produced.
func WithIDGenerator(newID func() string) Option {
	return func(s *InventoryService) { s.newID = newID }
}

func NewInventoryService(docs documentRepository, logger *slog.Logger, opts ...Option) *InventoryService {
	s := &InventoryService{
		docs:   docs,
		doc:    domain.NewDocument(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory document with the persisted one.
func (s *InventoryService) Load(ctx context.Context) error {
	doc, err := s.docs.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load inventory: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.logger.Info("inventory loaded",
		"sectors", len(doc.Sectors),
		"products", len(doc.Products),
		"history", len(doc.History),
	)
	return nil
}

func (s *InventoryService) ListSectors(ctx context.Context) []domain.Sector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.doc.Sectors)
}

// GetSector returns a copy of the sector, or nil when id is unknown.
func (s *InventoryService) GetSector(ctx context.Context, id string) *domain.Sector {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.sectorIndex(id)
	if i < 0 {
		return nil
	}
	sector := s.doc.Sectors[i]
	return &sector
}

// CreateSector does not validate name; callers trim and reject empty names.
func (s *InventoryService) CreateSector(ctx context.Context, name string) (*domain.Sector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sector := domain.Sector{
		ID:        s.newID(),
		Name:      name,
		CreatedAt: s.now(),
	}
	prev := s.snapshot()
	s.doc.Sectors = append(s.doc.Sectors, sector)
	if err := s.save(ctx); err != nil {
		s.doc = prev
		return nil, err
	}

	s.logger.Info("sector created", "sector_id", sector.ID, "name", name)
	return &sector, nil
}

// UpdateSector renames in place. History entries keep the old name.
func (s *InventoryService) UpdateSector(ctx context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.sectorIndex(id)
	if i < 0 {
		return ErrSectorNotFound
	}
	prev := s.snapshot()
	s.doc.Sectors[i].Name = name
	if err := s.save(ctx); err != nil {
		s.doc = prev
		return err
	}
	return nil
}

// DeleteSector removes the sector and every product that references it.
func (s *InventoryService) DeleteSector(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.sectorIndex(id)
	if i < 0 {
		return ErrSectorNotFound
	}

	prev := s.snapshot()
	before := len(s.doc.Products)
	s.doc.Products = slices.DeleteFunc(s.doc.Products, func(p domain.Product) bool {
		return p.SectorID == id
	})
	s.doc.Sectors = slices.Delete(s.doc.Sectors, i, i+1)
	if err := s.save(ctx); err != nil {
		s.doc = prev
		return err
	}

	s.logger.Info("sector deleted", "sector_id", id, "products_removed", before-len(s.doc.Products))
	return nil
}

// ListProducts returns every product when sectorID is empty, otherwise only
// the sector's products, in insertion order.
func (s *InventoryService) ListProducts(ctx context.Context, sectorID string) []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sectorID == "" {
		return slices.Clone(s.doc.Products)
	}
	products := make([]domain.Product, 0)
	for _, p := range s.doc.Products {
		if p.SectorID == sectorID {
			products = append(products, p)
		}
	}
	return products
}

// GetProduct returns a copy of the product, or nil when id is unknown.
func (s *InventoryService) GetProduct(ctx context.Context, id string) *domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.productIndex(id)
	if i < 0 {
		return nil
	}
	product := s.doc.Products[i]
	return &product
}

// CreateProduct adds an available product and logs an add of its quantity.
// sectorID is not checked against existing sectors.
func (s *InventoryService) CreateProduct(ctx context.Context, sectorID, name string, quantity int, expiration *time.Time) (*domain.Product, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	product := domain.Product{
		ID:             s.newID(),
		SectorID:       sectorID,
		Name:           name,
		Quantity:       quantity,
		ExpirationDate: expiration,
		Status:         domain.StatusAvailable,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	prev := s.snapshot()
	s.doc.Products = append(s.doc.Products, product)
	if err := s.commit(ctx, prev, domain.ActionAdd, product.Name, sectorID, quantity); err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProductQuantity sets the quantity and logs the absolute change under
// action. The caller picks the label; direction is not derived here.
func (s *InventoryService) UpdateProductQuantity(ctx context.Context, productID string, newQuantity int, action domain.ActionType) error {
	if action != domain.ActionAdd && action != domain.ActionSubtract {
		return ErrInvalidAction
	}
	if newQuantity < 0 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.productIndex(productID)
	if i < 0 {
		return ErrProductNotFound
	}
	return s.setQuantity(ctx, i, newQuantity, action)
}

// AdjustProductQuantity adds or subtracts amount from the current quantity in
// one step. Subtracting more than is in stock fails with ErrInsufficientStock.
func (s *InventoryService) AdjustProductQuantity(ctx context.Context, productID string, amount int, action domain.ActionType) error {
	if action != domain.ActionAdd && action != domain.ActionSubtract {
		return ErrInvalidAction
	}
	if amount < 0 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.productIndex(productID)
	if i < 0 {
		return ErrProductNotFound
	}
	if action == domain.ActionAdd && amount > math.MaxInt-s.doc.Products[i].Quantity {
		return ErrInvalidQuantity
	}
	newQuantity := s.doc.Products[i].Quantity + amount
	if action == domain.ActionSubtract {
		if amount > s.doc.Products[i].Quantity {
			return ErrInsufficientStock
		}
		newQuantity = s.doc.Products[i].Quantity - amount
	}
	return s.setQuantity(ctx, i, newQuantity, action)
}

// setQuantity updates product i and logs the magnitude of the change.
// Must be called with s.mu held.
func (s *InventoryService) setQuantity(ctx context.Context, i, newQuantity int, action domain.ActionType) error {
	prev := s.snapshot()
	p := &s.doc.Products[i]
	delta := newQuantity - p.Quantity
	if delta < 0 {
		delta = -delta
	}
	p.Quantity = newQuantity
	p.UpdatedAt = s.now()
	return s.commit(ctx, prev, action, p.Name, p.SectorID, delta)
}

// LendProduct takes quantity out of stock and marks the product lent, even
// when stock remains.
func (s *InventoryService) LendProduct(ctx context.Context, productID string, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.productIndex(productID)
	if i < 0 {
		return ErrProductNotFound
	}
	if quantity > s.doc.Products[i].Quantity {
		return ErrInsufficientStock
	}
	prev := s.snapshot()
	p := &s.doc.Products[i]
	p.Quantity -= quantity
	p.Status = domain.StatusLent
	p.UpdatedAt = s.now()
	return s.commit(ctx, prev, domain.ActionLend, p.Name, p.SectorID, quantity)
}

// ReturnProduct puts quantity back into stock. The product becomes available
// again only if the resulting quantity is positive. Returns are not capped by
// the amount previously lent, only by the largest representable quantity.
func (s *InventoryService) ReturnProduct(ctx context.Context, productID string, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.productIndex(productID)
	if i < 0 {
		return ErrProductNotFound
	}
	if quantity > math.MaxInt-s.doc.Products[i].Quantity {
		return ErrInvalidQuantity
	}
	prev := s.snapshot()
	p := &s.doc.Products[i]
	p.Quantity += quantity
	if p.Quantity > 0 {
		p.Status = domain.StatusAvailable
	}
	p.UpdatedAt = s.now()
	return s.commit(ctx, prev, domain.ActionReturn, p.Name, p.SectorID, quantity)
}

// DeleteProduct removes the product and logs its quantity at deletion.
func (s *InventoryService) DeleteProduct(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.productIndex(productID)
	if i < 0 {
		return ErrProductNotFound
	}
	prev := s.snapshot()
	p := s.doc.Products[i]
	s.doc.Products = slices.Delete(s.doc.Products, i, i+1)
	return s.commit(ctx, prev, domain.ActionDelete, p.Name, p.SectorID, p.Quantity)
}

// History returns all entries, most recent first. Entries with equal
// timestamps keep their insertion order.
func (s *InventoryService) History(ctx context.Context) []domain.HistoryEntry {
	s.mu.Lock()
	history := slices.Clone(s.doc.History)
	s.mu.Unlock()

	slices.SortStableFunc(history, func(a, b domain.HistoryEntry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return history
}

func (s *InventoryService) IsNearExpiration(date time.Time) bool {
	return domain.IsNearExpiration(date, s.now())
}

func (s *InventoryService) IsLowStock(quantity int) bool {
	return domain.IsLowStock(quantity)
}

// commit persists a product mutation and then its history entry. When either
// write fails the in-memory document goes back to prev, and if the mutation
// had already been written, prev is written again.
// Must be called with s.mu held.
func (s *InventoryService) commit(ctx context.Context, prev *domain.Document, action domain.ActionType, productName, sectorID string, quantity int) error {
	if err := s.save(ctx); err != nil {
		s.doc = prev
		return err
	}
	if err := s.appendHistory(ctx, action, productName, sectorID, quantity); err != nil {
		s.doc = prev
		if rerr := s.save(ctx); rerr != nil {
			s.logger.Error("failed to restore inventory after history write", "error", rerr)
		}
		return err
	}
	return nil
}

// snapshot copies the document's slices so in-place edits can be undone.
// Must be called with s.mu held.
func (s *InventoryService) snapshot() *domain.Document {
	return &domain.Document{
		Sectors:  slices.Clone(s.doc.Sectors),
		Products: slices.Clone(s.doc.Products),
		History:  slices.Clone(s.doc.History),
	}
}

// appendHistory records one entry and persists the document again.
// Must be called with s.mu held.
func (s *InventoryService) appendHistory(ctx context.Context, action domain.ActionType, productName, sectorID string, quantity int) error {
	entry := domain.HistoryEntry{
		ID:          s.newID(),
		Type:        action,
		ProductName: productName,
		SectorName:  s.sectorName(sectorID),
		Quantity:    quantity,
		Timestamp:   s.now(),
		Responsible: ResponsibleFrom(ctx),
	}
	s.doc.History = append(s.doc.History, entry)
	if err := s.save(ctx); err != nil {
		return err
	}

	s.logger.Info("inventory action",
		"type", action,
		"product", productName,
		"sector", entry.SectorName,
		"quantity", quantity,
		"responsible", entry.Responsible,
	)
	return nil
}

// save writes the whole document. Must be called with s.mu held.
func (s *InventoryService) save(ctx context.Context) error {
	if err := s.docs.Save(ctx, s.doc); err != nil {
		s.logger.Error("failed to persist inventory", "error", err)
		return fmt.Errorf("failed to persist inventory: %w", err)
	}
	return nil
}

func (s *InventoryService) sectorIndex(id string) int {
	return slices.IndexFunc(s.doc.Sectors, func(sec domain.Sector) bool { return sec.ID == id })
}

func (s *InventoryService) productIndex(id string) int {
	return slices.IndexFunc(s.doc.Products, func(p domain.Product) bool { return p.ID == id })
}

func (s *InventoryService) sectorName(id string) string {
	if i := s.sectorIndex(id); i >= 0 {
		return s.doc.Sectors[i].Name
	}
	return unknownSector
}
