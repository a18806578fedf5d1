package models

import "fmt"

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	ListingID int64  `json:"listing_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
	CreatedAt Time   `json:"created_at"`
}

func (r Review) EntityID() int64 { return r.ID }

// ReviewInput is the body of POST /reviews.
type ReviewInput struct {
	ListingID int64  `json:"listing_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
}

// Validate checks the rating range before a request is made.
func (r ReviewInput) Validate() error {
	if r.ListingID <= 0 {
		return fmt.Errorf("listing id is required")
	}
	if r.Rating < MinRating || r.Rating > MaxRating {
		return fmt.Errorf("rating must be between %d and %d, got %d", MinRating, MaxRating, r.Rating)
	}
	return nil
}
