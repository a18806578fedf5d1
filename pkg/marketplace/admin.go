package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/grovetools/bnb/errors"
	"github.com/grovetools/bnb/pkg/api"
	"github.com/grovetools/bnb/pkg/models"
	"github.com/grovetools/bnb/pkg/resource"
)

// Admin groups the administrator views: every account, every listing and
// the analytics overview.
type Admin struct {
	Users    *resource.Store[models.User]
	Listings *resource.Store[models.Listing]

	client    resource.Doer
	mu        sync.RWMutex
	analytics *models.Analytics
}

func NewAdmin(client resource.Doer, opts ...resource.Option) *Admin {
	listingOpts := append(append([]resource.Option{}, opts...), resource.WithEnvelope("listing"))
	return &Admin{
		Users: resource.New[models.User]("admin.users", client,
			resource.Routes{Collection: "/admin/users", Item: "/users/%d"}, opts...),
		Listings: resource.New[models.Listing]("admin.listings", client,
			resource.Routes{Collection: "/admin/listings"}, listingOpts...),
		client: client,
	}
}

func (a *Admin) LoadUsers(ctx context.Context) ([]models.User, error) {
	return a.Users.List(ctx, nil)
}

func (a *Admin) SetRole(ctx context.Context, userID int64, role models.Role) (models.User, error) {
	r, ok := models.ParseRole(string(role))
	if !ok {
		return models.User{}, errors.InvalidInput(fmt.Sprintf("unknown role %q", role))
	}
	return a.Users.UpdateAt(ctx, http.MethodPatch, fmt.Sprintf("/users/%d/role", userID), userID, models.RoleChange{Role: r})
}

// SetUserStatus suspends or reactivates an account.
func (a *Admin) SetUserStatus(ctx context.Context, userID int64, status models.UserStatus) (models.User, error) {
	if status != models.UserActive && status != models.UserSuspended {
		return models.User{}, errors.InvalidInput(fmt.Sprintf("unknown account status %q", status))
	}
	return a.Users.UpdateAt(ctx, http.MethodPatch, fmt.Sprintf("/users/%d/status", userID), userID, models.StatusChange{Status: string(status)})
}

func (a *Admin) LoadListings(ctx context.Context) ([]models.Listing, error) {
	return a.Listings.List(ctx, nil)
}

func (a *Admin) SetListingStatus(ctx context.Context, id int64, status models.ListingStatus) (models.Listing, error) {
	st, ok := models.ParseListingStatus(string(status))
	if !ok {
		return models.Listing{}, errors.InvalidInput(fmt.Sprintf("unknown listing status %q", status))
	}
	return a.Listings.UpdateAt(ctx, http.MethodPatch, fmt.Sprintf("/admin/listings/%d/status", id), id, models.StatusChange{Status: string(st)})
}

func (a *Admin) DeleteListing(ctx context.Context, id int64) error {
	return a.Listings.Remove(ctx, id)
}

// Analytics fetches the overview and caches it. On failure the previous
// value is kept.
func (a *Admin) Analytics(ctx context.Context) (models.Analytics, error) {
	var out models.Analytics
	if err := a.client.Do(ctx, api.Request{Method: http.MethodGet, Path: "/admin/analytics"}, &out); err != nil {
		return models.Analytics{}, err
	}
	a.mu.Lock()
	a.analytics = &out
	a.mu.Unlock()
	return out, nil
}

// CachedAnalytics returns the last fetched overview.
func (a *Admin) CachedAnalytics() (models.Analytics, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.analytics == nil {
		return models.Analytics{}, false
	}
	return *a.analytics, true
}

func (a *Admin) Reset() {
	a.Users.Reset()
	a.Listings.Reset()
	a.mu.Lock()
	a.analytics = nil
	a.mu.Unlock()
}

// Host holds the host's earnings summary.
type Host struct {
	client   resource.Doer
	mu       sync.RWMutex
	earnings *models.Earnings
}

func NewHost(client resource.Doer) *Host {
	return &Host{client: client}
}

// Earnings fetches the total of the host's completed bookings.
func (h *Host) Earnings(ctx context.Context) (models.Earnings, error) {
	var out models.Earnings
	if err := h.client.Do(ctx, api.Request{Method: http.MethodGet, Path: "/host/total-earnings"}, &out); err != nil {
		return models.Earnings{}, err
	}
	h.mu.Lock()
	h.earnings = &out
	h.mu.Unlock()
	return out, nil
}

func (h *Host) CachedEarnings() (models.Earnings, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.earnings == nil {
		return models.Earnings{}, false
	}
	return *h.earnings, true
}

func (h *Host) Reset() {
	h.mu.Lock()
	h.earnings = nil
	h.mu.Unlock()
}
