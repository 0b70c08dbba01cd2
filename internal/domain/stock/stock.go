package stock

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("stock: product not found")
	ErrInvalidQuantity = errors.New("stock: quantity must be greater than zero")
)

const (
	// ReplenishThreshold is the level below which a product is topped up.
	ReplenishThreshold = 100
	// ReplenishAmount is added by a single replenishment.
	ReplenishAmount = 100
)

// Level is the on-hand quantity of one product. Quantity may go negative;
// the store does not reject overdraws.
type Level struct {
	Product   string
	Quantity  int
	UpdatedAt time.Time
}

func (l *Level) Clone() *Level {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

// NeedsReplenishment reports whether the level is under ReplenishThreshold.
func (l *Level) NeedsReplenishment() bool {
	return l.Quantity < ReplenishThreshold
}

// ValidateQuantity rejects non-positive adjustment amounts.
func ValidateQuantity(q int) error {
	if q <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}
