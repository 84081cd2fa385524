package pricebook

import (
	"context"
	"time"

	"github.com/meterline/meterline/internal/types"
)

// Repository defines persistence for price books and their rules
type Repository interface {
	CreateBook(ctx context.Context, b *PriceBook) error
	GetBook(ctx context.Context, id string) (*PriceBook, error)
	// GetLatestBook returns the book of the given kind with the greatest
	// effective_from at or before asOf, or a not-found error.
	GetLatestBook(ctx context.Context, appID string, kind types.PriceBookKind, asOf time.Time) (*PriceBook, error)
	ListBooks(ctx context.Context, appID string) ([]*PriceBook, error)

	CreateRule(ctx context.Context, r *Rule) error
	// ListRules returns the book's rules ordered by priority descending,
	// then created_at ascending, so the first match wins.
	ListRules(ctx context.Context, priceBookID string) ([]*Rule, error)
}
