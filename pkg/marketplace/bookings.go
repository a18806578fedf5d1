package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/grovetools/bnb/errors"
	"github.com/grovetools/bnb/pkg/api"
	"github.com/grovetools/bnb/pkg/models"
	"github.com/grovetools/bnb/pkg/resource"
)

// Bookings caches whichever booking view was loaded last: the guest's own,
// one listing's, the host's or the admin's full list.
type Bookings struct {
	*resource.Store[models.Booking]
	client resource.Doer
}

func NewBookings(client resource.Doer, opts ...resource.Option) *Bookings {
	opts = append(opts, resource.WithEnvelope("booking"))
	return &Bookings{
		Store:  resource.New[models.Booking]("bookings", client, resource.Routes{Collection: "/bookings"}, opts...),
		client: client,
	}
}

func (b *Bookings) ForUser(ctx context.Context, userID int64) ([]models.Booking, error) {
	return b.ListFrom(ctx, fmt.Sprintf("/users/%d/bookings", userID), nil)
}

func (b *Bookings) ForListing(ctx context.Context, listingID int64) ([]models.Booking, error) {
	return b.ListFrom(ctx, fmt.Sprintf("/listings/%d/bookings", listingID), nil)
}

// All lists every booking. Admin only. A non-positive page or pageSize
// requests the whole collection.
func (b *Bookings) All(ctx context.Context, page, pageSize int) ([]models.Booking, error) {
	var q url.Values
	if page > 0 && pageSize > 0 {
		q = url.Values{
			"page":      {strconv.Itoa(page)},
			"page_size": {strconv.Itoa(pageSize)},
		}
	}
	return b.List(ctx, q)
}

// ForHost lists bookings on the signed-in host's listings.
func (b *Bookings) ForHost(ctx context.Context) ([]models.Booking, error) {
	return b.ListFrom(ctx, "/host/bookings", nil)
}

func (b *Bookings) Book(ctx context.Context, listingID int64, req models.BookingRequest) (models.Booking, error) {
	if err := validateStay(req.CheckIn, req.CheckOut); err != nil {
		return models.Booking{}, err
	}
	return b.CreateAt(ctx, fmt.Sprintf("/users/bookings/%d", listingID), req)
}

func (b *Bookings) Update(ctx context.Context, id int64, patch models.BookingPatch) (models.Booking, error) {
	if patch.CheckIn != nil && patch.CheckOut != nil {
		if err := validateStay(*patch.CheckIn, *patch.CheckOut); err != nil {
			return models.Booking{}, err
		}
	}
	return b.Store.Update(ctx, id, patch)
}

func (b *Bookings) Cancel(ctx context.Context, id int64) error {
	return b.Remove(ctx, id)
}

// SetStatus is the host's confirm/cancel/complete action.
func (b *Bookings) SetStatus(ctx context.Context, id int64, status models.BookingStatus) (models.Booking, error) {
	st, ok := models.ParseBookingStatus(string(status))
	if !ok {
		return models.Booking{}, errors.InvalidInput(fmt.Sprintf("unknown booking status %q", status))
	}
	return b.UpdateAt(ctx, http.MethodPut, fmt.Sprintf("/host/bookings/%d", id), id, models.HostBookingUpdate{Status: st})
}

// CheckAvailability asks the server whether listingID is free for the stay.
// The cache is not touched.
func (b *Bookings) CheckAvailability(ctx context.Context, listingID int64, checkIn, checkOut models.Date) (bool, error) {
	if err := validateStay(checkIn, checkOut); err != nil {
		return false, err
	}
	var out models.Availability
	err := b.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/listings/%d/availability", listingID),
		Body:   models.BookingRequest{CheckIn: checkIn, CheckOut: checkOut},
	}, &out)
	if err != nil {
		return false, err
	}
	return out.Available, nil
}

func validateStay(checkIn, checkOut models.Date) error {
	if checkIn.IsZero() || checkOut.IsZero() {
		return errors.InvalidInput("check-in and check-out dates are required")
	}
	if !checkOut.After(checkIn.Time) {
		return errors.InvalidInput(fmt.Sprintf("check-out %s must be after check-in %s", checkOut, checkIn))
	}
	return nil
}
