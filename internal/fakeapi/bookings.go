package fakeapi

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/grovetools/bnb/pkg/models"
)

// overlapsLocked reports whether another active booking of listingID
// intersects [checkIn, checkOut). skip excludes one booking id.
func (s *Server) overlapsLocked(listingID, skip int64, checkIn, checkOut models.Date) bool {
	for _, b := range s.bookings {
		if b.ListingID != listingID || b.ID == skip || b.Status == models.BookingCancelled {
			continue
		}
		if b.CheckOut.After(checkIn.Time) && b.CheckIn.Before(checkOut.Time) {
			return true
		}
	}
	return false
}

func (s *Server) sortedBookingsLocked(keep func(models.Booking) bool) []models.Booking {
	out := []models.Booking{}
	for _, b := range s.bookings {
		if keep == nil || keep(*b) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) handleAllBookings(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	all := s.sortedBookingsLocked(nil)
	s.mu.Unlock()

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page > 0 && size > 0 {
		start := (page - 1) * size
		if start > len(all) {
			start = len(all)
		}
		end := start + size
		if end > len(all) {
			end = len(all)
		}
		all = all[start:end]
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleUserBookings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	caller, _ := s.caller(r)
	if !selfOrAdmin(caller, id) {
		writeError(w, http.StatusForbidden, "Unauthorized")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.sortedBookingsLocked(func(b models.Booking) bool { return b.UserID == id }))
}

func (s *Server) handleListingBookings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	caller, _ := s.caller(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ownedListingLocked(w, caller, id); !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.sortedBookingsLocked(func(b models.Booking) bool { return b.ListingID == id }))
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	listingID, ok := pathID(w, r)
	if !ok {
		return
	}
	caller, _ := s.caller(r)
	if caller.Role.Is(models.RoleHost) {
		writeError(w, http.StatusForbidden, "Hosts are not allowed to book listings")
		return
	}
	var req models.BookingRequest
	if !decode(w, r, &req) {
		return
	}
	if req.CheckIn.IsZero() || req.CheckOut.IsZero() {
		writeError(w, http.StatusBadRequest, "Check-in and check-out dates are required")
		return
	}
	if !req.CheckOut.After(req.CheckIn.Time) {
		writeError(w, http.StatusBadRequest, "Check-out must be after check-in")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l, exists := s.listings[listingID]
	if !exists {
		writeError(w, http.StatusNotFound, "Listing not found")
		return
	}
	if s.overlapsLocked(listingID, 0, req.CheckIn, req.CheckOut) {
		writeError(w, http.StatusBadRequest, "Listing is not available for the selected dates")
		return
	}
	b := &models.Booking{
		ID:         s.id(),
		UserID:     caller.ID,
		ListingID:  listingID,
		CheckIn:    req.CheckIn,
		CheckOut:   req.CheckOut,
		Status:     models.BookingPending,
		TotalPrice: l.PricePerNight * float64(models.Nights(req.CheckIn, req.CheckOut)),
		CreatedAt:  s.stamp(),
		UpdatedAt:  s.stamp(),
	}
	s.bookings[b.ID] = b
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Booking successful",
		"booking": b,
	})
}

func (s *Server) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	caller, _ := s.caller(r)
	var patch models.BookingPatch
	if !decode(w, r, &patch) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	b, exists := s.bookings[id]
	if !exists {
		writeError(w, http.StatusNotFound, "Booking not found")
		return
	}
	if !selfOrAdmin(caller, b.UserID) {
		writeError(w, http.StatusForbidden, "Unauthorized")
		return
	}

	checkIn, checkOut := b.CheckIn, b.CheckOut
	if patch.CheckIn != nil {
		checkIn = *patch.CheckIn
	}
	if patch.CheckOut != nil {
		checkOut = *patch.CheckOut
	}
	if !checkOut.After(checkIn.Time) {
		writeError(w, http.StatusBadRequest, "Check-out must be after check-in")
		return
	}
	if s.overlapsLocked(b.ListingID, b.ID, checkIn, checkOut) {
		writeError(w, http.StatusBadRequest, "Listing is not available for the selected dates")
		return
	}
	if patch.Status != nil {
		st, valid := models.ParseBookingStatus(string(*patch.Status))
		if !valid {
			writeError(w, http.StatusBadRequest, "Invalid booking status")
			return
		}
		b.Status = st
	}
	b.CheckIn, b.CheckOut = checkIn, checkOut
	if l, ok := s.listings[b.ListingID]; ok {
		b.TotalPrice = l.PricePerNight * float64(models.Nights(checkIn, checkOut))
	}
	b.UpdatedAt = s.stamp()
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	caller, _ := s.caller(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	b, exists := s.bookings[id]
	if !exists {
		writeError(w, http.StatusNotFound, "Booking not found")
		return
	}
	if !selfOrAdmin(caller, b.UserID) {
		writeError(w, http.StatusForbidden, "Unauthorized")
		return
	}
	delete(s.bookings, id)
	writeSuccess(w, "Booking cancelled successfully!")
}

// hostListingIDsLocked returns the ids of listings owned by hostID.
func (s *Server) hostListingIDsLocked(hostID int64) map[int64]bool {
	ids := map[int64]bool{}
	for _, l := range s.listings {
		if l.UserID == hostID {
			ids[l.ID] = true
		}
	}
	return ids
}

func (s *Server) handleHostBookings(w http.ResponseWriter, r *http.Request) {
	caller, _ := s.caller(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	owned := s.hostListingIDsLocked(caller.ID)
	writeJSON(w, http.StatusOK, s.sortedBookingsLocked(func(b models.Booking) bool { return owned[b.ListingID] }))
}

func (s *Server) handleHostUpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	caller, _ := s.caller(r)
	var req models.HostBookingUpdate
	if !decode(w, r, &req) {
		return
	}
	status, valid := models.ParseBookingStatus(string(req.Status))
	if !valid {
		writeError(w, http.StatusBadRequest, "Invalid booking status")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	b, exists := s.bookings[id]
	if !exists {
		writeError(w, http.StatusNotFound, "Booking not found")
		return
	}
	if l, ok := s.listings[b.ListingID]; !ok || l.UserID != caller.ID {
		writeError(w, http.StatusForbidden, "Unauthorized")
		return
	}
	b.Status = status
	b.UpdatedAt = s.stamp()
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleEarnings(w http.ResponseWriter, r *http.Request) {
	caller, _ := s.caller(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	owned := s.hostListingIDsLocked(caller.ID)
	var e models.Earnings
	for _, b := range s.bookings {
		if owned[b.ListingID] && b.Status == models.BookingCompleted {
			e.TotalEarnings += b.TotalPrice
			e.Bookings++
		}
	}
	writeJSON(w, http.StatusOK, e)
}
