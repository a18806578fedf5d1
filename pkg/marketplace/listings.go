// Package marketplace binds the generic resource store to the marketplace's
// entity kinds and wires them, the API client and the session holder into
// one Client.
package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/grovetools/bnb/errors"
	"github.com/grovetools/bnb/pkg/models"
	"github.com/grovetools/bnb/pkg/resource"
)

// Listings caches the public listing catalogue and remembers the last search.
type Listings struct {
	*resource.Store[models.Listing]

	mu      sync.RWMutex
	filters models.ListingFilter
}

func NewListings(client resource.Doer, opts ...resource.Option) *Listings {
	opts = append(opts, resource.WithEnvelope("listing"))
	return &Listings{
		Store: resource.New[models.Listing]("listings", client, resource.Routes{Collection: "/listings"}, opts...),
	}
}

// Search lists the listings matching f and records f as the current filters.
func (l *Listings) Search(ctx context.Context, f models.ListingFilter) ([]models.Listing, error) {
	if f.MinPrice > 0 && f.MaxPrice > 0 && f.MinPrice > f.MaxPrice {
		return nil, errors.InvalidInput(fmt.Sprintf("min price %.2f is above max price %.2f", f.MinPrice, f.MaxPrice))
	}
	l.SetSearchFilters(f)
	return l.List(ctx, f.Query())
}

// ForHost lists the listings owned by hostID.
func (l *Listings) ForHost(ctx context.Context, hostID int64) ([]models.Listing, error) {
	return l.ListFrom(ctx, fmt.Sprintf("/listings/host/%d", hostID), nil)
}

func (l *Listings) Create(ctx context.Context, in models.ListingInput) (models.Listing, error) {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return models.Listing{}, errors.InvalidInput("title is required")
	case strings.TrimSpace(in.Location) == "":
		return models.Listing{}, errors.InvalidInput("location is required")
	case in.PricePerNight <= 0:
		return models.Listing{}, errors.InvalidInput("price per night must be positive")
	}
	return l.Store.Create(ctx, in)
}

func (l *Listings) Update(ctx context.Context, id int64, patch models.ListingPatch) (models.Listing, error) {
	return l.Store.Update(ctx, id, patch)
}

func (l *Listings) Delete(ctx context.Context, id int64) error {
	return l.Remove(ctx, id)
}

// SetStatus moves a listing through moderation. Admin only on the server.
func (l *Listings) SetStatus(ctx context.Context, id int64, status models.ListingStatus) (models.Listing, error) {
	st, ok := models.ParseListingStatus(string(status))
	if !ok {
		return models.Listing{}, errors.InvalidInput(fmt.Sprintf("unknown listing status %q", status))
	}
	return l.UpdateAt(ctx, http.MethodPatch, fmt.Sprintf("/listings/%d/status", id), id, models.StatusChange{Status: string(st)})
}

// Verify approves a listing.
func (l *Listings) Verify(ctx context.Context, id int64) (models.Listing, error) {
	return l.SetStatus(ctx, id, models.ListingApproved)
}

func (l *Listings) SetSearchFilters(f models.ListingFilter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filters = f
}

func (l *Listings) SearchFilters() models.ListingFilter {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.filters
}

// Filter narrows the cached listings without a request.
func (l *Listings) Filter(f models.ListingFilter) []models.Listing {
	return l.Select(f.Matches)
}

// Reset drops the cache and the remembered filters.
func (l *Listings) Reset() {
	l.SetSearchFilters(models.ListingFilter{})
	l.Store.Reset()
}
