package models

// Analytics is the admin overview returned by GET /admin/analytics.
type Analytics struct {
	TotalUsers       int               `json:"total_users"`
	TotalListings    int               `json:"total_listings"`
	TotalBookings    int               `json:"total_bookings"`
	TotalRevenue     float64           `json:"total_revenue"`
	UsersByRole      map[Role]int      `json:"users_by_role,omitempty"`
	PopularLocations []PopularLocation `json:"popular_locations,omitempty"`
}

type PopularLocation struct {
	Location string `json:"location"`
	Bookings int    `json:"bookings"`
}

// Earnings is the host summary returned by GET /host/total-earnings.
type Earnings struct {
	TotalEarnings float64 `json:"total_earnings"`
	Bookings      int     `json:"bookings"`
}
