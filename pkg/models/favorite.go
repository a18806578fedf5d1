package models

// DefaultFavoriteNote is stored when a favorite is added without a note.
const DefaultFavoriteNote = "Want to book next month? We got you. You can always count on us!"

// Favorite is a saved listing. The listing summary fields are filled in by
// GET /users/{id}/favorites.
type Favorite struct {
	ID            int64   `json:"id"`
	UserID        int64   `json:"user_id"`
	ListingID     int64   `json:"listing_id"`
	Note          string  `json:"note,omitempty"`
	CreatedAt     Time    `json:"created_at"`
	Title         string  `json:"title,omitempty"`
	Description   string  `json:"description,omitempty"`
	PricePerNight float64 `json:"price_per_night,omitempty"`
	ImageURL      string  `json:"image_url,omitempty"`
}

func (f Favorite) EntityID() int64 { return f.ID }

// FavoriteInput is the body of POST /favorites.
type FavoriteInput struct {
	UserID    int64  `json:"user_id"`
	ListingID int64  `json:"listing_id"`
	Note      string `json:"note,omitempty"`
}
