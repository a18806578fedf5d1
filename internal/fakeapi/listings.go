package fakeapi

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/grovetools/bnb/pkg/models"
)

// AddListing stores a listing owned by hostID.
func (s *Server) AddListing(hostID int64, in models.ListingInput, status models.ListingStatus) models.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addListingLocked(hostID, in, status)
}

func (s *Server) addListingLocked(hostID int64, in models.ListingInput, status models.ListingStatus) models.Listing {
	l := &models.Listing{
		ID:            s.id(),
		UserID:        hostID,
		Title:         in.Title,
		Description:   in.Description,
		PricePerNight: in.PricePerNight,
		Amenities:     in.Amenities,
		Location:      in.Location,
		ImageURL:      in.ImageURL,
		Status:        status,
		CreatedAt:     s.stamp(),
		UpdatedAt:     s.stamp(),
	}
	s.listings[l.ID] = l
	return *l
}

func (s *Server) sortedListingsLocked(keep func(models.Listing) bool) []models.Listing {
	out := []models.Listing{}
	for _, l := range s.listings {
		if keep == nil || keep(*l) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ListingFilter{
		Title:    q.Get("title"),
		Location: q.Get("location"),
	}
	if v := q.Get("min_price"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "min_price must be a number")
			return
		}
		filter.MinPrice = p
	}
	if v := q.Get("max_price"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "max_price must be a number")
			return
		}
		filter.MaxPrice = p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.sortedListingsLocked(filter.Matches))
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, exists := s.listings[id]
	if !exists {
		writeError(w, http.StatusNotFound, "Listing not found")
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleHostListings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.sortedListingsLocked(func(l models.Listing) bool { return l.UserID == id }))
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	caller, _ := s.caller(r)
	var in models.ListingInput
	if !decode(w, r, &in) {
		return
	}
	switch {
	case strings.TrimSpace(in.Title) == "":
		writeError(w, http.StatusBadRequest, "title required.")
		return
	case strings.TrimSpace(in.Location) == "":
		writeError(w, http.StatusBadRequest, "location required.")
		return
	case in.PricePerNight <= 0:
		writeError(w, http.StatusBadRequest, "price_per_night must be positive.")
		return
	}

	s.mu.Lock()
	l := s.addListingLocked(caller.ID, in, models.ListingPending)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Listing created successfully!",
		"listing": l,
	})
}

// ownedListingLocked resolves a listing the caller may modify.
func (s *Server) ownedListingLocked(w http.ResponseWriter, caller models.User, id int64) (*models.Listing, bool) {
	l, exists := s.listings[id]
	if !exists {
		writeError(w, http.StatusNotFound, "Listing not found")
		return nil, false
	}
	if l.UserID != caller.ID && !caller.Role.Is(models.RoleAdmin) {
		writeError(w, http.StatusForbidden, "Listing not found or unauthorized")
		return nil, false
	}
	return l, true
}

func (s *Server) handleUpdateListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	caller, _ := s.caller(r)
	var patch models.ListingPatch
	if !decode(w, r, &patch) {
		return
	}
	if patch.PricePerNight != nil && *patch.PricePerNight <= 0 {
		writeError(w, http.StatusBadRequest, "price_per_night must be positive.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ownedListingLocked(w, caller, id)
	if !ok {
		return
	}
	if patch.Title != nil {
		l.Title = *patch.Title
	}
	if patch.Description != nil {
		l.Description = *patch.Description
	}
	if patch.PricePerNight != nil {
		l.PricePerNight = *patch.PricePerNight
	}
	if patch.Amenities != nil {
		l.Amenities = *patch.Amenities
	}
	if patch.Location != nil {
		l.Location = *patch.Location
	}
	if patch.ImageURL != nil {
		l.ImageURL = *patch.ImageURL
	}
	l.UpdatedAt = s.stamp()
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleDeleteListing(w http.ResponseWriter, r *http.Request) {
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
	s.deleteListingLocked(id)
	writeSuccess(w, "Listing deleted successfully!")
}

// deleteListingLocked removes a listing and everything that refers to it.
func (s *Server) deleteListingLocked(id int64) {
	for bid, b := range s.bookings {
		if b.ListingID == id {
			delete(s.bookings, bid)
		}
	}
	for fid, f := range s.favorites {
		if f.ListingID == id {
			delete(s.favorites, fid)
		}
	}
	for rid, rv := range s.reviews {
		if rv.ListingID == id {
			delete(s.reviews, rid)
		}
	}
	delete(s.listings, id)
}

func (s *Server) handleListingStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.StatusChange
	if !decode(w, r, &req) {
		return
	}
	status, valid := models.ParseListingStatus(req.Status)
	if !valid {
		writeError(w, http.StatusBadRequest, "Invalid status value")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l, exists := s.listings[id]
	if !exists {
		writeError(w, http.StatusNotFound, "Listing not found")
		return
	}
	l.Status = status
	l.UpdatedAt = s.stamp()
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Status updated to " + string(status),
		"listing": l,
	})
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.BookingRequest
	if !decode(w, r, &req) {
		return
	}
	if req.CheckIn.IsZero() || req.CheckOut.IsZero() {
		writeError(w, http.StatusBadRequest, "check_in and check_out dates required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.listings[id]; !exists {
		writeError(w, http.StatusNotFound, "Listing not found")
		return
	}
	if s.overlapsLocked(id, 0, req.CheckIn, req.CheckOut) {
		writeJSON(w, http.StatusOK, models.Availability{Available: false, Error: "Listing is not available for the selected dates."})
		return
	}
	writeJSON(w, http.StatusOK, models.Availability{Available: true, Success: "Listing is available for the selected dates."})
}
