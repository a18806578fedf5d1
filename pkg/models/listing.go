package models

import (
	"net/url"
	"strconv"
	"strings"
)

// ListingStatus is a listing's moderation state.
type ListingStatus string

const (
	ListingPending  ListingStatus = "Pending"
	ListingApproved ListingStatus = "Approved"
	ListingRejected ListingStatus = "Rejected"
)

// ParseListingStatus normalizes a status name to its canonical capitalization.
func ParseListingStatus(s string) (ListingStatus, bool) {
	for _, st := range []ListingStatus{ListingPending, ListingApproved, ListingRejected} {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

type Listing struct {
	ID            int64         `json:"id"`
	UserID        int64         `json:"user_id,omitempty"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	PricePerNight float64       `json:"price_per_night"`
	Amenities     string        `json:"amenities,omitempty"`
	Location      string        `json:"location"`
	ImageURL      string        `json:"image_url,omitempty"`
	Status        ListingStatus `json:"status,omitempty"`
	CreatedAt     Time          `json:"created_at"`
	UpdatedAt     Time          `json:"updated_at"`
}

func (l Listing) EntityID() int64 { return l.ID }

// ListingInput is the body of POST /listings.
type ListingInput struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	PricePerNight float64 `json:"price_per_night"`
	Amenities     string  `json:"amenities"`
	Location      string  `json:"location"`
	ImageURL      string  `json:"image_url"`
}

// ListingPatch is the body of PATCH /listings/{id}. Nil fields are left unchanged.
type ListingPatch struct {
	Title         *string  `json:"title,omitempty"`
	Description   *string  `json:"description,omitempty"`
	PricePerNight *float64 `json:"price_per_night,omitempty"`
	Amenities     *string  `json:"amenities,omitempty"`
	Location      *string  `json:"location,omitempty"`
	ImageURL      *string  `json:"image_url,omitempty"`
}

// ListingFilter narrows a listing search. Zero values are ignored.
type ListingFilter struct {
	Title    string
	Location string
	MinPrice float64
	MaxPrice float64
}

// Query encodes the filter as GET /listings query parameters.
func (f ListingFilter) Query() url.Values {
	q := url.Values{}
	if f.Title != "" {
		q.Set("title", f.Title)
	}
	if f.Location != "" {
		q.Set("location", f.Location)
	}
	if f.MinPrice > 0 {
		q.Set("min_price", strconv.FormatFloat(f.MinPrice, 'f', -1, 64))
	}
	if f.MaxPrice > 0 {
		q.Set("max_price", strconv.FormatFloat(f.MaxPrice, 'f', -1, 64))
	}
	return q
}

// Matches applies the filter locally: substring match on title and location,
// inclusive price bounds.
func (f ListingFilter) Matches(l Listing) bool {
	if f.Title != "" && !containsFold(l.Title, f.Title) {
		return false
	}
	if f.Location != "" && !containsFold(l.Location, f.Location) {
		return false
	}
	if f.MinPrice > 0 && l.PricePerNight < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && l.PricePerNight > f.MaxPrice {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
