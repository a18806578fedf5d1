package models

import "strings"

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// ParseBookingStatus normalizes a booking status name.
func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch st := BookingStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted:
		return st, true
	}
	return "", false
}

type Booking struct {
	ID         int64         `json:"id"`
	UserID     int64         `json:"user_id"`
	ListingID  int64         `json:"listing_id"`
	CheckIn    Date          `json:"check_in"`
	CheckOut   Date          `json:"check_out"`
	Status     BookingStatus `json:"status"`
	TotalPrice float64       `json:"total_price"`
	CreatedAt  Time          `json:"created_at"`
	UpdatedAt  Time          `json:"updated_at"`
}

func (b Booking) EntityID() int64 { return b.ID }

// BookingRequest is the body of POST /users/bookings/{listingId} and of the
// availability check.
type BookingRequest struct {
	CheckIn  Date `json:"check_in"`
	CheckOut Date `json:"check_out"`
}

// BookingPatch is the body of PATCH /bookings/{id}.
type BookingPatch struct {
	CheckIn  *Date          `json:"check_in,omitempty"`
	CheckOut *Date          `json:"check_out,omitempty"`
	Status   *BookingStatus `json:"status,omitempty"`
}

// HostBookingUpdate is the body of PUT /host/bookings/{id}.
type HostBookingUpdate struct {
	Status BookingStatus `json:"booking_status"`
}

// Availability is the response of POST /listings/{id}/availability.
type Availability struct {
	Available bool   `json:"available"`
	Success   string `json:"success,omitempty"`
	Error     string `json:"error,omitempty"`
}
