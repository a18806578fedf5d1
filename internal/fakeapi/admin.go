package fakeapi

import (
	"net/http"
	"sort"

	"github.com/grovetools/bnb/pkg/models"
)

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminListings(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.sortedListingsLocked(nil))
}

func (s *Server) handleAdminDeleteListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.listings[id]; !exists {
		writeError(w, http.StatusNotFound, "Listing not found")
		return
	}
	s.deleteListingLocked(id)
	writeSuccess(w, "Listing deleted successfully")
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := models.Analytics{
		TotalUsers:    len(s.accounts),
		TotalListings: len(s.listings),
		TotalBookings: len(s.bookings),
		UsersByRole:   map[models.Role]int{},
	}
	for _, acct := range s.accounts {
		a.UsersByRole[acct.user.Role]++
	}

	byLocation := map[string]int{}
	for _, b := range s.bookings {
		a.TotalRevenue += b.TotalPrice
		if l, ok := s.listings[b.ListingID]; ok {
			byLocation[l.Location]++
		}
	}
	for loc, n := range byLocation {
		a.PopularLocations = append(a.PopularLocations, models.PopularLocation{Location: loc, Bookings: n})
	}
	sort.Slice(a.PopularLocations, func(i, j int) bool {
		if a.PopularLocations[i].Bookings != a.PopularLocations[j].Bookings {
			return a.PopularLocations[i].Bookings > a.PopularLocations[j].Bookings
		}
		return a.PopularLocations[i].Location < a.PopularLocations[j].Location
	})
	writeJSON(w, http.StatusOK, a)
}
