// Package listing searches vehicle marketplaces.
package listing

import (
	"context"

	"github.com/ashureev/autofinance/internal/domain"
)

// Searcher returns vehicles matching criteria. An empty result is not an error.
type Searcher interface {
	Search(ctx context.Context, criteria domain.SearchCriteria) ([]domain.Vehicle, error)
}

// Capped limits the number of results returned by a Searcher.
type Capped struct {
	next  Searcher
	limit int
}

// NewCapped wraps next so it never returns more than limit vehicles, and never
// more than domain.MaxListings. Vehicles without a positive price are dropped
// before the cap applies.
func NewCapped(next Searcher, limit int) *Capped {
	if limit <= 0 || limit > domain.MaxListings {
		limit = domain.MaxListings
	}
	return &Capped{next: next, limit: limit}
}

// Search implements Searcher.
func (c *Capped) Search(ctx context.Context, criteria domain.SearchCriteria) ([]domain.Vehicle, error) {
	out, err := c.next.Search(ctx, criteria)
	if err != nil {
		return nil, err
	}
	priced := make([]domain.Vehicle, 0, len(out))
	for _, v := range out {
		if v.Price > 0 {
			priced = append(priced, v)
		}
	}
	if len(priced) > c.limit {
		priced = priced[:c.limit]
	}
	return priced, nil
}
