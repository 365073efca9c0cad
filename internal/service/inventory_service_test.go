package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/sectorinv/internal/docstore"
	"github.com/vbonduro/sectorinv/internal/domain"
	"github.com/vbonduro/sectorinv/internal/kvstore/memory"
)

var baseTime = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

// tickingClock advances one second per reading so every timestamp is distinct.
type tickingClock struct {
	t time.Time
}

func (c *tickingClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestService(t *testing.T) (*InventoryService, *memory.Store) {
	t.Helper()
	kv := memory.New()
	clock := &tickingClock{t: baseTime}
	svc := NewInventoryService(docstore.New(kv, docstore.DefaultKey, slog.Default()), slog.Default(), WithClock(clock.Now))
	require.NoError(t, svc.Load(context.Background()))
	return svc, kv
}

func TestCreateAndListSectors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.CreateSector(ctx, "Almoxarifado")
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "Almoxarifado", a.Name)
	assert.False(t, a.CreatedAt.IsZero())

	b, err := svc.CreateSector(ctx, "Farmácia")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	sectors := svc.ListSectors(ctx)
	require.Len(t, sectors, 2)
	assert.Equal(t, "Almoxarifado", sectors[0].Name)
	assert.Equal(t, "Farmácia", sectors[1].Name)

	// Sector operations do not write history.
	assert.Empty(t, svc.History(ctx))
}

func TestListSectorsReturnsCopy(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateSector(ctx, "Almoxarifado")
	require.NoError(t, err)

	sectors := svc.ListSectors(ctx)
	sectors[0].Name = "mutated"

	assert.Equal(t, "Almoxarifado", svc.ListSectors(ctx)[0].Name)
}

func TestUpdateSector(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sector, err := svc.CreateSector(ctx, "Almoxarifado")
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, sector.ID, "Gaze", 10, nil)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateSector(ctx, sector.ID, "Depósito"))

	assert.Equal(t, "Depósito", svc.GetSector(ctx, sector.ID).Name)
	history := svc.History(ctx)
	require.Len(t, history, 1)
	assert.Equal(t, "Almoxarifado", history[0].SectorName)
}

func TestUpdateSector_NotFound(t *testing.T) {
	svc, kv := newTestService(t)

	err := svc.UpdateSector(context.Background(), "missing", "x")
	assert.ErrorIs(t, err, ErrSectorNotFound)
	assert.Zero(t, kv.Puts())
}

func TestDeleteSector_CascadesOnlyItsProducts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	target, err := svc.CreateSector(ctx, "Almoxarifado")
	require.NoError(t, err)
	other, err := svc.CreateSector(ctx, "Farmácia")
	require.NoError(t, err)

	_, err = svc.CreateProduct(ctx, target.ID, "Gaze", 10, nil)
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, target.ID, "Seringa", 3, nil)
	require.NoError(t, err)
	kept, err := svc.CreateProduct(ctx, other.ID, "Álcool 70%", 8, nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSector(ctx, target.ID))

	assert.Empty(t, svc.ListProducts(ctx, target.ID))
	remaining := svc.ListProducts(ctx, "")
	require.Len(t, remaining, 1)
	assert.Equal(t, kept.ID, remaining[0].ID)

	sectors := svc.ListSectors(ctx)
	require.Len(t, sectors, 1)
	assert.Equal(t, other.ID, sectors[0].ID)
	assert.Nil(t, svc.GetSector(ctx, target.ID))

	// Cascade does not write history.
	assert.Len(t, svc.History(ctx), 3)
}

func TestDeleteSector_PersistsWithoutOrphans(t *testing.T) {
	svc, kv := newTestService(t)
	ctx := context.Background()

	sector, err := svc.CreateSector(ctx, "Almoxarifado")
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, sector.ID, "Gaze", 10, nil)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteSector(ctx, sector.ID))

	reloaded := NewInventoryService(docstore.New(kv, docstore.DefaultKey, slog.Default()), slog.Default())
	require.NoError(t, reloaded.Load(ctx))
	assert.Empty(t, reloaded.ListSectors(ctx))
	assert.Empty(t, reloaded.ListProducts(ctx, ""))
}

func TestDeleteSector_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	assert.ErrorIs(t, svc.DeleteSector(context.Background(), "missing"), ErrSectorNotFound)
}

func TestListProductsFiltersBySector(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.CreateSector(ctx, "A")
	require.NoError(t, err)
	b, err := svc.CreateSector(ctx, "B")
	require.NoError(t, err)

	_, err = svc.CreateProduct(ctx, a.ID, "one", 1, nil)
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, b.ID, "two", 2, nil)
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, a.ID, "three", 3, nil)
	require.NoError(t, err)

	inA := svc.ListProducts(ctx, a.ID)
	require.Len(t, inA, 2)
	assert.Equal(t, "one", inA[0].Name)
	assert.Equal(t, "three", inA[1].Name)

	assert.Len(t, svc.ListProducts(ctx, ""), 3)
	assert.Empty(t, svc.ListProducts(ctx, "nobody"))
	assert.NotNil(t, svc.ListProducts(ctx, "nobody"))
}

func TestCreateProduct(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sector, err := svc.CreateSector(ctx, "Almoxarifado")
	require.NoError(t, err)
	exp := baseTime.AddDate(0, 2, 0)

	product, err := svc.CreateProduct(ctx, sector.ID, "Gaze", 10, &exp)
	require.NoError(t, err)
	assert.NotEmpty(t, product.ID)
	assert.Equal(t, sector.ID, product.SectorID)
	assert.Equal(t, 10, product.Quantity)
	assert.Equal(t, domain.StatusAvailable, product.Status)
	require.NotNil(t, product.ExpirationDate)
	assert.True(t, exp.Equal(*product.ExpirationDate))
	assert.Equal(t, product.CreatedAt, product.UpdatedAt)

	history := svc.History(ctx)
	require.Len(t, history, 1)
	assert.Equal(t, domain.ActionAdd, history[0].Type)
	assert.Equal(t, 10, history[0].Quantity)
	assert.Equal(t, "Gaze", history[0].ProductName)
	assert.Equal(t, "Almoxarifado", history[0].SectorName)
	assert.Equal(t, DefaultResponsible, history[0].Responsible)
}

func TestCreateProduct_UnknownSectorAccepted(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, "ghost", "Gaze", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "ghost", product.SectorID)
	assert.Equal(t, "Unknown Sector", svc.History(ctx)[0].SectorName)
}

func TestCreateProduct_NegativeQuantity(t *testing.T) {
	svc, kv := newTestService(t)

	_, err := svc.CreateProduct(context.Background(), "s", "Gaze", -1, nil)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Empty(t, svc.ListProducts(context.Background(), ""))
	assert.Zero(t, kv.Puts())
}

func TestUpdateProductQuantity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sector, err := svc.CreateSector(ctx, "Almoxarifado")
	require.NoError(t, err)
	product, err := svc.CreateProduct(ctx, sector.ID, "Gaze", 10, nil)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateProductQuantity(ctx, product.ID, 15, domain.ActionAdd))
	require.NoError(t, svc.UpdateProductQuantity(ctx, product.ID, 12, domain.ActionSubtract))

	got := svc.GetProduct(ctx, product.ID)
	assert.Equal(t, 12, got.Quantity)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
	assert.Equal(t, domain.StatusAvailable, got.Status)

	history := svc.History(ctx)
	require.Len(t, history, 3)
	assert.Equal(t, domain.ActionSubtract, history[0].Type)
	assert.Equal(t, 3, history[0].Quantity)
	assert.Equal(t, domain.ActionAdd, history[1].Type)
	assert.Equal(t, 5, history[1].Quantity)
}

func TestUpdateProductQuantity_LabelNotDerived(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, "s", "Gaze", 10, nil)
	require.NoError(t, err)

	// Decrease labelled as add: the label is kept and the magnitude is absolute.
	require.NoError(t, svc.UpdateProductQuantity(ctx, product.ID, 4, domain.ActionAdd))

	latest := svc.History(ctx)[0]
	assert.Equal(t, domain.ActionAdd, latest.Type)
	assert.Equal(t, 6, latest.Quantity)
}

func TestUpdateProductQuantity_Failures(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, "s", "Gaze", 10, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.UpdateProductQuantity(ctx, "missing", 1, domain.ActionAdd), ErrProductNotFound)
	assert.ErrorIs(t, svc.UpdateProductQuantity(ctx, product.ID, -1, domain.ActionSubtract), ErrInvalidQuantity)
	assert.ErrorIs(t, svc.UpdateProductQuantity(ctx, product.ID, 5, domain.ActionLend), ErrInvalidAction)

	assert.Equal(t, 10, svc.GetProduct(ctx, product.ID).Quantity)
	assert.Len(t, svc.History(ctx), 1)
}

func TestLendAndReturnScenario(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sector, err := svc.CreateSector(ctx, "Almoxarifado")
	require.NoError(t, err)
	product, err := svc.CreateProduct(ctx, sector.ID, "Gaze", 10, nil)
	require.NoError(t, err)

	require.NoError(t, svc.LendProduct(ctx, product.ID, 4))

	got := svc.GetProduct(ctx, product.ID)
	assert.Equal(t, 6, got.Quantity)
	assert.Equal(t, domain.StatusLent, got.Status)

	history := svc.History(ctx)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ActionLend, history[0].Type)
	assert.Equal(t, 4, history[0].Quantity)
	assert.Equal(t, domain.ActionAdd, history[1].Type)
	assert.Equal(t, 10, history[1].Quantity)

	require.NoError(t, svc.ReturnProduct(ctx, product.ID, 4))

	got = svc.GetProduct(ctx, product.ID)
	assert.Equal(t, 10, got.Quantity)
	assert.Equal(t, domain.StatusAvailable, got.Status)

	history = svc.History(ctx)
	require.Len(t, history, 3)
	assert.Equal(t, domain.ActionReturn, history[0].Type)
	assert.Equal(t, 4, history[0].Quantity)
}

func TestLendProduct_InsufficientStock(t *testing.T) {
	svc, kv := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, "s", "Gaze", 3, nil)
	require.NoError(t, err)
	puts := kv.Puts()

	err = svc.LendProduct(ctx, product.ID, 4)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	got := svc.GetProduct(ctx, product.ID)
	assert.Equal(t, 3, got.Quantity)
	assert.Equal(t, domain.StatusAvailable, got.Status)
	assert.Len(t, svc.History(ctx), 1)
	assert.Equal(t, puts, kv.Puts())
}

func TestLendProduct_ExactStockAndFailures(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, "s", "Gaze", 3, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.LendProduct(ctx, "missing", 1), ErrProductNotFound)
	assert.ErrorIs(t, svc.LendProduct(ctx, product.ID, -1), ErrInvalidQuantity)

	require.NoError(t, svc.LendProduct(ctx, product.ID, 3))
	got := svc.GetProduct(ctx, product.ID)
	assert.Equal(t, 0, got.Quantity)
	assert.Equal(t, domain.StatusLent, got.Status)
}

func TestReturnProduct_StaysLentAtZero(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, "s", "Gaze", 2, nil)
	require.NoError(t, err)
	require.NoError(t, svc.LendProduct(ctx, product.ID, 2))

	require.NoError(t, svc.ReturnProduct(ctx, product.ID, 0))

	got := svc.GetProduct(ctx, product.ID)
	assert.Equal(t, 0, got.Quantity)
	assert.Equal(t, domain.StatusLent, got.Status)
	assert.Len(t, svc.History(ctx), 3)
}

func TestReturnProduct_OverReturnAccepted(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, "s", "Gaze", 5, nil)
	require.NoError(t, err)

	require.NoError(t, svc.ReturnProduct(ctx, product.ID, 7))

	got := svc.GetProduct(ctx, product.ID)
	assert.Equal(t, 12, got.Quantity)
	assert.Equal(t, domain.StatusAvailable, got.Status)
}

func TestReturnProduct_Failures(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, "s", "Gaze", 5, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ReturnProduct(ctx, "missing", 1), ErrProductNotFound)
	assert.ErrorIs(t, svc.ReturnProduct(ctx, product.ID, -2), ErrInvalidQuantity)
	assert.Equal(t, 5, svc.GetProduct(ctx, product.ID).Quantity)
}

func TestStatusUntouchedByAddSubtract(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, "s", "Gaze", 5, nil)
	require.NoError(t, err)
	require.NoError(t, svc.LendProduct(ctx, product.ID, 1))
	require.NoError(t, svc.UpdateProductQuantity(ctx, product.ID, 10, domain.ActionAdd))

	assert.Equal(t, domain.StatusLent, svc.GetProduct(ctx, product.ID).Status)
}

func TestDeleteProduct(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sector, err := svc.CreateSector(ctx, "Almoxarifado")
	require.NoError(t, err)
	product, err := svc.CreateProduct(ctx, sector.ID, "Gaze", 7, nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProduct(ctx, product.ID))
	assert.Nil(t, svc.GetProduct(ctx, product.ID))
	assert.ErrorIs(t, svc.DeleteProduct(ctx, product.ID), ErrProductNotFound)

	latest := svc.History(ctx)[0]
	assert.Equal(t, domain.ActionDelete, latest.Type)
	assert.Equal(t, 7, latest.Quantity)
	assert.Equal(t, "Gaze", latest.ProductName)
	assert.Equal(t, "Almoxarifado", latest.SectorName)
}

func TestEveryMutationAppendsOneEntry(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, "s", "Gaze", 10, nil)
	require.NoError(t, err)

	steps := []struct {
		name string
		run  func() error
		want int
	}{
		{"add", func() error { return svc.UpdateProductQuantity(ctx, product.ID, 13, domain.ActionAdd) }, 3},
		{"subtract", func() error { return svc.UpdateProductQuantity(ctx, product.ID, 11, domain.ActionSubtract) }, 2},
		{"lend", func() error { return svc.LendProduct(ctx, product.ID, 5) }, 5},
		{"return", func() error { return svc.ReturnProduct(ctx, product.ID, 1) }, 1},
		{"delete", func() error { return svc.DeleteProduct(ctx, product.ID) }, 7},
	}

	for i, step := range steps {
		require.NoError(t, step.run(), step.name)
		history := svc.History(ctx)
		require.Len(t, history, i+2, step.name)
		assert.Equal(t, step.want, history[0].Quantity, step.name)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	svc, kv := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, "s", "Gaze", 10, nil)
	require.NoError(t, err)
	require.NoError(t, svc.LendProduct(ctx, product.ID, 1))
	require.NoError(t, svc.ReturnProduct(ctx, product.ID, 1))

	history := svc.History(ctx)
	require.Len(t, history, 3)
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i-1].Timestamp.After(history[i].Timestamp))
	}

	// The stored order is untouched by reads.
	reloaded := NewInventoryService(docstore.New(kv, docstore.DefaultKey, slog.Default()), slog.Default())
	require.NoError(t, reloaded.Load(ctx))
	reloaded.mu.Lock()
	assert.Equal(t, domain.ActionAdd, reloaded.doc.History[0].Type)
	reloaded.mu.Unlock()
}

func TestResponsibleFromContext(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := WithResponsible(context.Background(), "Maria")

	_, err := svc.CreateProduct(ctx, "s", "Gaze", 1, nil)
	require.NoError(t, err)

	assert.Equal(t, "Maria", svc.History(ctx)[0].Responsible)
	assert.Equal(t, DefaultResponsible, ResponsibleFrom(WithResponsible(context.Background(), "")))
}

func TestPersistenceWrites(t *testing.T) {
	svc, kv := newTestService(t)
	ctx := context.Background()

	sector, err := svc.CreateSector(ctx, "Almoxarifado")
	require.NoError(t, err)
	assert.Equal(t, 1, kv.Puts())

	product, err := svc.CreateProduct(ctx, sector.ID, "Gaze", 10, nil)
	require.NoError(t, err)
	// One write for the product, one for the history entry.
	assert.Equal(t, 3, kv.Puts())

	require.NoError(t, svc.LendProduct(ctx, product.ID, 2))
	assert.Equal(t, 5, kv.Puts())

	reloaded := NewInventoryService(docstore.New(kv, docstore.DefaultKey, slog.Default()), slog.Default())
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, svc.ListSectors(ctx), reloaded.ListSectors(ctx))
	assert.Equal(t, svc.ListProducts(ctx, ""), reloaded.ListProducts(ctx, ""))
	assert.Equal(t, svc.History(ctx), reloaded.History(ctx))
}

func TestLoadCorruptDocumentStartsEmpty(t *testing.T) {
	kv := memory.New()
	require.NoError(t, kv.Put(context.Background(), docstore.DefaultKey, []byte("garbage")))

	svc := NewInventoryService(docstore.New(kv, docstore.DefaultKey, slog.Default()), slog.Default())
	require.NoError(t, svc.Load(context.Background()))
	assert.Empty(t, svc.ListSectors(context.Background()))
}

type failingDocs struct {
	loadErr error
	saveErr error
}

func (f *failingDocs) Load(context.Context) (*domain.Document, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return domain.NewDocument(), nil
}

func (f *failingDocs) Save(context.Context, *domain.Document) error { return f.saveErr }

// flakyDocs wraps a real document store and fails the saves picked by fail,
// which receives the 1-based save count.
type flakyDocs struct {
	documentRepository
	err   error
	saves int
	fail  func(n int) bool
}

func newFlakyDocs() (*flakyDocs, *memory.Store) {
	kv := memory.New()
	return &flakyDocs{
		documentRepository: docstore.New(kv, docstore.DefaultKey, slog.Default()),
		err:                errors.New("disk full"),
	}, kv
}

func (f *flakyDocs) Save(ctx context.Context, doc *domain.Document) error {
	f.saves++
	if f.fail != nil && f.fail(f.saves) {
		return f.err
	}
	return f.documentRepository.Save(ctx, doc)
}

func TestPersistenceFailuresSurface(t *testing.T) {
	boom := errors.New("quota exceeded")

	svc := NewInventoryService(&failingDocs{loadErr: boom}, slog.Default())
	assert.ErrorIs(t, svc.Load(context.Background()), boom)

	svc = NewInventoryService(&failingDocs{saveErr: boom}, slog.Default())
	_, err := svc.CreateSector(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, svc.ListSectors(context.Background()))
}

func TestFailedSaveLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	docs, _ := newFlakyDocs()
	clock := &tickingClock{t: baseTime}
	svc := NewInventoryService(docs, slog.Default(), WithClock(clock.Now))

	sector, err := svc.CreateSector(ctx, "Almoxarifado")
	require.NoError(t, err)
	product, err := svc.CreateProduct(ctx, sector.ID, "Gaze", 10, nil)
	require.NoError(t, err)

	wantSectors := svc.ListSectors(ctx)
	wantProducts := svc.ListProducts(ctx, "")
	wantHistory := svc.History(ctx)

	docs.fail = func(int) bool { return true }
	_, err = svc.CreateSector(ctx, "Farmacia")
	assert.ErrorIs(t, err, docs.err)
	assert.ErrorIs(t, svc.UpdateSector(ctx, sector.ID, "Renamed"), docs.err)
	assert.ErrorIs(t, svc.DeleteSector(ctx, sector.ID), docs.err)
	_, err = svc.CreateProduct(ctx, sector.ID, "Luvas", 3, nil)
	assert.ErrorIs(t, err, docs.err)
	assert.ErrorIs(t, svc.LendProduct(ctx, product.ID, 4), docs.err)
	assert.ErrorIs(t, svc.ReturnProduct(ctx, product.ID, 4), docs.err)
	assert.ErrorIs(t, svc.AdjustProductQuantity(ctx, product.ID, 4, domain.ActionAdd), docs.err)
	assert.ErrorIs(t, svc.UpdateProductQuantity(ctx, product.ID, 1, domain.ActionSubtract), docs.err)
	assert.ErrorIs(t, svc.DeleteProduct(ctx, product.ID), docs.err)

	assert.Equal(t, wantSectors, svc.ListSectors(ctx))
	assert.Equal(t, wantProducts, svc.ListProducts(ctx, ""))
	assert.Equal(t, wantHistory, svc.History(ctx))

	docs.fail = nil
	require.NoError(t, svc.LendProduct(ctx, product.ID, 4))
	history := svc.History(ctx)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ActionLend, history[0].Type)
	assert.Equal(t, domain.ActionAdd, history[1].Type)
}

func TestFailedHistoryWriteRollsBackMutation(t *testing.T) {
	ctx := context.Background()
	docs, kv := newFlakyDocs()
	clock := &tickingClock{t: baseTime}
	svc := NewInventoryService(docs, slog.Default(), WithClock(clock.Now))

	product, err := svc.CreateProduct(ctx, "s", "Gaze", 10, nil)
	require.NoError(t, err)

	// The lend itself is written, its history entry is not.
	historyWrite := docs.saves + 2
	docs.fail = func(n int) bool { return n == historyWrite }
	assert.ErrorIs(t, svc.LendProduct(ctx, product.ID, 4), docs.err)

	got := svc.GetProduct(ctx, product.ID)
	assert.Equal(t, 10, got.Quantity)
	assert.Equal(t, domain.StatusAvailable, got.Status)
	assert.Len(t, svc.History(ctx), 1)

	reloaded := NewInventoryService(docstore.New(kv, docstore.DefaultKey, slog.Default()), slog.Default())
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, 10, reloaded.GetProduct(ctx, product.ID).Quantity)
	assert.Len(t, reloaded.History(ctx), 1)
}

func TestThresholdHelpers(t *testing.T) {
	now := baseTime
	svc := NewInventoryService(&failingDocs{}, slog.Default(), WithClock(func() time.Time { return now }))

	assert.True(t, svc.IsLowStock(4))
	assert.False(t, svc.IsLowStock(5))
	assert.True(t, svc.IsNearExpiration(now.AddDate(0, 0, -30)))
	assert.True(t, svc.IsNearExpiration(now.AddDate(0, 0, 15)))
	assert.False(t, svc.IsNearExpiration(now.AddDate(0, 0, 16)))
}

func TestAdjustProductQuantity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, "s", "Gaze", 10, nil)
	require.NoError(t, err)

	require.NoError(t, svc.AdjustProductQuantity(ctx, product.ID, 5, domain.ActionAdd))
	assert.Equal(t, 15, svc.GetProduct(ctx, product.ID).Quantity)

	require.NoError(t, svc.AdjustProductQuantity(ctx, product.ID, 15, domain.ActionSubtract))
	assert.Equal(t, 0, svc.GetProduct(ctx, product.ID).Quantity)

	history := svc.History(ctx)
	require.Len(t, history, 3)
	assert.Equal(t, domain.ActionSubtract, history[0].Type)
	assert.Equal(t, 15, history[0].Quantity)
	assert.Equal(t, domain.ActionAdd, history[1].Type)
	assert.Equal(t, 5, history[1].Quantity)
}

func TestAdjustProductQuantity_Failures(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, "s", "Gaze", 2, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.AdjustProductQuantity(ctx, product.ID, 3, domain.ActionSubtract), ErrInsufficientStock)
	assert.ErrorIs(t, svc.AdjustProductQuantity(ctx, product.ID, -1, domain.ActionAdd), ErrInvalidQuantity)
	assert.ErrorIs(t, svc.AdjustProductQuantity(ctx, product.ID, 1, domain.ActionReturn), ErrInvalidAction)
	assert.ErrorIs(t, svc.AdjustProductQuantity(ctx, "missing", 1, domain.ActionAdd), ErrProductNotFound)

	assert.Equal(t, 2, svc.GetProduct(ctx, product.ID).Quantity)
	assert.Len(t, svc.History(ctx), 1)
}

func TestQuantityOverflowRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, "s", "Gaze", 10, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ReturnProduct(ctx, product.ID, math.MaxInt), ErrInvalidQuantity)
	assert.ErrorIs(t, svc.AdjustProductQuantity(ctx, product.ID, math.MaxInt, domain.ActionAdd), ErrInvalidQuantity)
	assert.ErrorIs(t, svc.ReturnProduct(ctx, product.ID, math.MaxInt-9), ErrInvalidQuantity)

	got := svc.GetProduct(ctx, product.ID)
	assert.Equal(t, 10, got.Quantity)
	assert.Len(t, svc.History(ctx), 1)

	require.NoError(t, svc.ReturnProduct(ctx, product.ID, math.MaxInt-10))
	assert.Equal(t, math.MaxInt, svc.GetProduct(ctx, product.ID).Quantity)
	assert.ErrorIs(t, svc.AdjustProductQuantity(ctx, product.ID, 1, domain.ActionAdd), ErrInvalidQuantity)
}
