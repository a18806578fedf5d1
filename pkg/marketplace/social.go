package marketplace

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/grovetools/bnb/errors"
	"github.com/grovetools/bnb/pkg/models"
	"github.com/grovetools/bnb/pkg/resource"
)

// Favorites caches the signed-in user's saved listings.
type Favorites struct {
	*resource.Store[models.Favorite]
}

func NewFavorites(client resource.Doer, opts ...resource.Option) *Favorites {
	return &Favorites{
		Store: resource.New[models.Favorite]("favorites", client, resource.Routes{Collection: "/favorites"}, opts...),
	}
}

func (f *Favorites) ForUser(ctx context.Context, userID int64) ([]models.Favorite, error) {
	return f.ListFrom(ctx, fmt.Sprintf("/users/%d/favorites", userID), nil)
}

// Add saves listingID for the signed-in user. The server fills in the user
// and, for an empty note, a default one.
func (f *Favorites) Add(ctx context.Context, listingID int64, note string) (models.Favorite, error) {
	if listingID <= 0 {
		return models.Favorite{}, errors.InvalidInput("listing id is required")
	}
	return f.Create(ctx, models.FavoriteInput{ListingID: listingID, Note: note})
}

// IsFavorite reports whether listingID is among the cached favorites.
func (f *Favorites) IsFavorite(listingID int64) bool {
	_, ok := f.ForListing(listingID)
	return ok
}

// ForListing returns the cached favorite for listingID.
func (f *Favorites) ForListing(listingID int64) (models.Favorite, bool) {
	found := f.Select(func(fav models.Favorite) bool { return fav.ListingID == listingID })
	if len(found) == 0 {
		return models.Favorite{}, false
	}
	return found[0], true
}

// Reviews caches the reviews of the listing loaded last.
type Reviews struct {
	*resource.Store[models.Review]
}

func NewReviews(client resource.Doer, opts ...resource.Option) *Reviews {
	return &Reviews{
		Store: resource.New[models.Review]("reviews", client, resource.Routes{Collection: "/reviews"}, opts...),
	}
}

func (r *Reviews) ForListing(ctx context.Context, listingID int64) ([]models.Review, error) {
	return r.List(ctx, url.Values{"listing_id": {strconv.FormatInt(listingID, 10)}})
}

func (r *Reviews) Add(ctx context.Context, in models.ReviewInput) (models.Review, error) {
	if err := in.Validate(); err != nil {
		return models.Review{}, errors.InvalidInput(err.Error())
	}
	return r.Create(ctx, in)
}

func (r *Reviews) Delete(ctx context.Context, id int64) error {
	return r.Remove(ctx, id)
}

// AverageRating averages the cached ratings of listingID. It returns 0 and
// a count of 0 when there are none.
func (r *Reviews) AverageRating(listingID int64) (float64, int) {
	reviews := r.Select(func(rv models.Review) bool { return rv.ListingID == listingID })
	if len(reviews) == 0 {
		return 0, 0
	}
	sum := 0
	for _, rv := range reviews {
		sum += rv.Rating
	}
	return float64(sum) / float64(len(reviews)), len(reviews)
}
