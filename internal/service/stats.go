package service

import (
	"context"
	"slices"

	"github.com/vbonduro/sectorinv/internal/domain"
)

// SectorSummary bundles a sector with the counters shown on overview cards.
type SectorSummary struct {
	domain.Sector
	ProductCount   int
	TotalItems     int
	NearExpiration int
	LowStock       int
	Lent           int
}

// ProductFlags are the badges rendered next to a product.
type ProductFlags struct {
	Lent           bool
	NearExpiration bool
	LowStock       bool
}

func (s *InventoryService) Flags(p domain.Product) ProductFlags {
	return ProductFlags{
		Lent:           p.Status == domain.StatusLent,
		NearExpiration: p.ExpirationDate != nil && s.IsNearExpiration(*p.ExpirationDate),
		LowStock:       s.IsLowStock(p.Quantity),
	}
}

// SectorStats returns one summary per sector, in sector order.
func (s *InventoryService) SectorStats(ctx context.Context) []*SectorSummary {
	s.mu.Lock()
	sectors := slices.Clone(s.doc.Sectors)
	products := slices.Clone(s.doc.Products)
	s.mu.Unlock()

	byID := make(map[string]*SectorSummary, len(sectors))
	summaries := make([]*SectorSummary, 0, len(sectors))
	for _, sector := range sectors {
		summary := &SectorSummary{Sector: sector}
		byID[sector.ID] = summary
		summaries = append(summaries, summary)
	}

	for _, p := range products {
		summary, ok := byID[p.SectorID]
		if !ok {
			continue
		}
		flags := s.Flags(p)
		summary.ProductCount++
		summary.TotalItems += p.Quantity
		if flags.NearExpiration {
			summary.NearExpiration++
		}
		if flags.LowStock {
			summary.LowStock++
		}
		if flags.Lent {
			summary.Lent++
		}
	}
	return summaries
}
