package domain

import "time"

const (
	// LowStockThreshold is the quantity below which a product is flagged.
	LowStockThreshold = 5

	// ExpirationHorizon is how far ahead of now an expiration date is
	// considered near. Past dates are always near.
	ExpirationHorizon = 15 * 24 * time.Hour
)

func IsLowStock(quantity int) bool {
	return quantity < LowStockThreshold
}

func IsNearExpiration(date, now time.Time) bool {
	return !date.After(now.Add(ExpirationHorizon))
}
