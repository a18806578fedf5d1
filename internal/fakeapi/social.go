package fakeapi

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/grovetools/bnb/pkg/models"
)

func (s *Server) withListingLocked(f models.Favorite) models.Favorite {
	if l, ok := s.listings[f.ListingID]; ok {
		f.Title = l.Title
		f.Description = l.Description
		f.PricePerNight = l.PricePerNight
		f.ImageURL = l.ImageURL
	}
	return f
}

func (s *Server) handleUserFavorites(w http.ResponseWriter, r *http.Request) {
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
	out := []models.Favorite{}
	for _, f := range s.favorites {
		if f.UserID == id {
			out = append(out, s.withListingLocked(*f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	caller, _ := s.caller(r)
	var in models.FavoriteInput
	if !decode(w, r, &in) {
		return
	}
	if in.UserID == 0 {
		in.UserID = caller.ID
	}
	if in.ListingID == 0 {
		writeError(w, http.StatusBadRequest, "User_id and Listing_id required")
		return
	}
	if !selfOrAdmin(caller, in.UserID) {
		writeError(w, http.StatusForbidden, "Unauthorized")
		return
	}
	if in.Note == "" {
		in.Note = models.DefaultFavoriteNote
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[in.UserID]; !ok {
		writeError(w, http.StatusNotFound, "User or Listing does not exist")
		return
	}
	if _, ok := s.listings[in.ListingID]; !ok {
		writeError(w, http.StatusNotFound, "User or Listing does not exist")
		return
	}
	for _, f := range s.favorites {
		if f.UserID == in.UserID && f.ListingID == in.ListingID {
			writeError(w, http.StatusBadRequest, "This listing exists in your favorites")
			return
		}
	}
	f := &models.Favorite{
		ID:        s.id(),
		UserID:    in.UserID,
		ListingID: in.ListingID,
		Note:      in.Note,
		CreatedAt: s.stamp(),
	}
	s.favorites[f.ID] = f
	writeJSON(w, http.StatusCreated, s.withListingLocked(*f))
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	caller, _ := s.caller(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	f, exists := s.favorites[id]
	if !exists {
		writeError(w, http.StatusNotFound, "Favorite not found")
		return
	}
	if !selfOrAdmin(caller, f.UserID) {
		writeError(w, http.StatusForbidden, "Unauthorized")
		return
	}
	delete(s.favorites, id)
	writeSuccess(w, "Favorite removed successfully!")
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	var listingID int64
	if v := r.URL.Query().Get("listing_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "listing_id must be an integer")
			return
		}
		listingID = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Review{}
	for _, rv := range s.reviews {
		if listingID == 0 || rv.ListingID == listingID {
			out = append(out, *rv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddReview(w http.ResponseWriter, r *http.Request) {
	caller, _ := s.caller(r)
	var in models.ReviewInput
	if !decode(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[in.ListingID]; !ok {
		writeError(w, http.StatusNotFound, "Listing not found")
		return
	}
	rv := &models.Review{
		ID:        s.id(),
		UserID:    caller.ID,
		ListingID: in.ListingID,
		Rating:    in.Rating,
		Comment:   in.Comment,
		CreatedAt: s.stamp(),
	}
	s.reviews[rv.ID] = rv
	writeJSON(w, http.StatusCreated, rv)
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	caller, _ := s.caller(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	rv, exists := s.reviews[id]
	if !exists {
		writeError(w, http.StatusNotFound, "Review not found")
		return
	}
	if rv.UserID != caller.ID {
		writeError(w, http.StatusForbidden, "You are not authorized to delete this review")
		return
	}
	delete(s.reviews, id)
	writeSuccess(w, "Review deleted successfully!")
}
