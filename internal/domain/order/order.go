package order

import (
	"errors"
	"maps"
	"time"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrConflict        = errors.New("order: conflict")
	ErrInvalidQuantity = errors.New("order: quantity must be zero or greater")
	ErrUnknownProduct  = errors.New("order: unknown product")
)

// Products is the fixed catalog, in fulfillment order.
var Products = []string{"computers", "chairs", "desks", "cupboards"}

// IsProduct reports whether name is part of the catalog.
func IsProduct(name string) bool {
	for _, p := range Products {
		if p == name {
			return true
		}
	}
	return false
}

// Lines maps a catalog product to its requested quantity.
type Lines map[string]int

// Normalize returns a copy holding every catalog product, missing ones as zero.
func (l Lines) Normalize() Lines {
	out := make(Lines, len(Products))
	for _, p := range Products {
		out[p] = l[p]
	}
	return out
}

// Total is the sum of all quantities.
func (l Lines) Total() int {
	n := 0
	for _, q := range l {
		n += q
	}
	return n
}

type Order struct {
	// ID is assigned by the repository on insert; zero before.
	ID             int64
	Lines          Lines
	IdempotencyKey string
	Processed      bool
	CreatedAt      time.Time
}

func New(lines Lines, idempotencyKey string) (*Order, error) {
	for p, q := range lines {
		if !IsProduct(p) {
			return nil, ErrUnknownProduct
		}
		if q < 0 {
			return nil, ErrInvalidQuantity
		}
	}
	return &Order{
		Lines:          lines.Normalize(),
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Lines = maps.Clone(o.Lines)
	return &c
}
