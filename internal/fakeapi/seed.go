package fakeapi

import (
	"fmt"

	"github.com/grovetools/bnb/pkg/models"
)

// SeedPassword is the password of every seeded account.
const SeedPassword = "password123"

// Seeded accounts, by email.
const (
	SeedAdminEmail = "admin@bnb.test"
	SeedHostEmail  = "host@bnb.test"
	SeedGuestEmail = "guest@bnb.test"
)

// Seed populates the server with one account per role and a few listings
// owned by the host, so serve-fake is usable without setup.
func (s *Server) Seed() error {
	if _, err := s.AddUser("admin", SeedAdminEmail, SeedPassword, models.RoleAdmin); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	host, err := s.AddUser("harriet", SeedHostEmail, SeedPassword, models.RoleHost)
	if err != nil {
		return fmt.Errorf("seed host: %w", err)
	}
	if _, err := s.AddUser("gus", SeedGuestEmail, SeedPassword, models.RoleGuest); err != nil {
		return fmt.Errorf("seed guest: %w", err)
	}

	listings := []struct {
		in     models.ListingInput
		status models.ListingStatus
	}{
		{models.ListingInput{
			Title:         "Loft by the canal",
			Description:   "Bright loft with a view of the water.",
			PricePerNight: 120,
			Amenities:     "wifi, kitchen",
			Location:      "Amsterdam",
		}, models.ListingApproved},
		{models.ListingInput{
			Title:         "Mountain cabin",
			Description:   "Wood stove and a hot tub.",
			PricePerNight: 95,
			Amenities:     "fireplace, parking",
			Location:      "Banff",
		}, models.ListingApproved},
		{models.ListingInput{
			Title:         "Studio near the station",
			Description:   "Compact and central.",
			PricePerNight: 60,
			Amenities:     "wifi",
			Location:      "Berlin",
		}, models.ListingPending},
	}
	for _, l := range listings {
		s.AddListing(host.ID, l.in, l.status)
	}
	return nil
}
