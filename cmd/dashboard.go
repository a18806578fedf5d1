package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/bnb/cli"
	"github.com/grovetools/bnb/pkg/marketplace"
	"github.com/grovetools/bnb/pkg/models"
)

// dashboardView summarizes what one Dashboard refresh loaded. Counts of
// stores the role does not load are omitted.
type dashboardView struct {
	User      string      `json:"user,omitempty"`
	Role      models.Role `json:"role,omitempty"`
	Listings  int         `json:"listings"`
	Favorites *int        `json:"favorites,omitempty"`
	Bookings  *int        `json:"bookings,omitempty"`
	Users     *int        `json:"users,omitempty"`
	Revenue   *float64    `json:"revenue,omitempty"`
	Earnings  *float64    `json:"earnings,omitempty"`
}

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Refresh everything relevant to your role and summarize it",
		Long: `Refresh everything relevant to your role and summarize it.

Stores are loaded concurrently. When one of them fails the others are still
shown, and the command exits with the first error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				refreshErr := c.Dashboard(ctx)
				view := summarize(c)
				if err := render(cmd, view, func() string { return dashboardTable(view) }); err != nil {
					return err
				}
				return refreshErr
			})
		},
	}
}

func summarize(c *marketplace.Client) dashboardView {
	view := dashboardView{Listings: len(c.Listings.Items())}
	s, ok := c.Session.Current()
	if !ok {
		return view
	}
	view.User = s.Identity.DisplayName
	view.Role = s.Identity.Role

	favorites := len(c.Favorites.Items())
	view.Favorites = &favorites

	switch {
	case s.Identity.Role.Is(models.RoleAdmin):
		users := len(c.Admin.Users.Items())
		view.Users = &users
		view.Listings = len(c.Admin.Listings.Items())
		if a, ok := c.Admin.CachedAnalytics(); ok {
			view.Revenue = &a.TotalRevenue
		}
	case s.Identity.Role.Is(models.RoleHost):
		bookings := len(c.Bookings.Items())
		view.Bookings = &bookings
		if e, ok := c.Host.CachedEarnings(); ok {
			view.Earnings = &e.TotalEarnings
		}
	default:
		bookings := len(c.Bookings.Items())
		view.Bookings = &bookings
	}
	return view
}

func dashboardTable(v dashboardView) string {
	who := "anonymous"
	if v.User != "" {
		who = fmt.Sprintf("%s (%s)", v.User, v.Role)
	}
	rows := [][2]string{{"Signed in as", who}, {"Listings", fmt.Sprint(v.Listings)}}
	if v.Favorites != nil {
		rows = append(rows, [2]string{"Favorites", fmt.Sprint(*v.Favorites)})
	}
	if v.Bookings != nil {
		rows = append(rows, [2]string{"Bookings", fmt.Sprint(*v.Bookings)})
	}
	if v.Users != nil {
		rows = append(rows, [2]string{"Users", fmt.Sprint(*v.Users)})
	}
	if v.Revenue != nil {
		rows = append(rows, [2]string{"Revenue", money(*v.Revenue)})
	}
	if v.Earnings != nil {
		rows = append(rows, [2]string{"Earnings", money(*v.Earnings)})
	}
	return cli.StatusTable(rows)
}
