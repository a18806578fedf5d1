package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grovetools/bnb/cli"
	"github.com/grovetools/bnb/errors"
	"github.com/grovetools/bnb/pkg/marketplace"
	"github.com/grovetools/bnb/pkg/models"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Moderate users and listings (admins)",
	}

	users := &cobra.Command{
		Use:   "users",
		Short: "List every account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				list, err := c.Admin.LoadUsers(ctx)
				if err != nil {
					return err
				}
				return render(cmd, list, func() string { return userTable(list) })
			})
		},
	}

	role := &cobra.Command{
		Use:   "role <user-id> <guest|host|admin>",
		Short: "Change the role of an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user id")
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				u, err := c.Admin.SetRole(ctx, id, models.Role(args[1]))
				if err != nil {
					return err
				}
				return render(cmd, u, func() string { return userTable([]models.User{u}) })
			})
		},
	}

	status := &cobra.Command{
		Use:   "status <user-id> <active|suspended>",
		Short: "Suspend or reactivate an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user id")
			if err != nil {
				return err
			}
			st := models.UserStatus(strings.ToLower(args[1]))
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				u, err := c.Admin.SetUserStatus(ctx, id, st)
				if err != nil {
					return err
				}
				return render(cmd, u, func() string { return userTable([]models.User{u}) })
			})
		},
	}

	listings := &cobra.Command{
		Use:   "listings",
		Short: "List every listing, whatever its status",
		Long: `List every listing. --approve, --reject and --delete moderate one listing
before the list is shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			approve, _ := cmd.Flags().GetInt64("approve")
			reject, _ := cmd.Flags().GetInt64("reject")
			remove, _ := cmd.Flags().GetInt64("delete")
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				var err error
				switch {
				case approve > 0:
					_, err = c.Admin.SetListingStatus(ctx, approve, models.ListingApproved)
				case reject > 0:
					_, err = c.Admin.SetListingStatus(ctx, reject, models.ListingRejected)
				case remove > 0:
					err = c.Admin.DeleteListing(ctx, remove)
				}
				if err != nil {
					return err
				}
				list, err := c.Admin.LoadListings(ctx)
				if err != nil {
					return err
				}
				return render(cmd, list, func() string { return listingTable(list) })
			})
		},
	}
	listings.Flags().Int64("approve", 0, "Approve this listing first")
	listings.Flags().Int64("reject", 0, "Reject this listing first")
	listings.Flags().Int64("delete", 0, "Delete this listing first")
	listings.MarkFlagsMutuallyExclusive("approve", "reject", "delete")

	analytics := &cobra.Command{
		Use:   "analytics",
		Short: "Show marketplace totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				a, err := c.Admin.Analytics(ctx)
				if err != nil {
					return err
				}
				return render(cmd, a, func() string { return analyticsView(a) })
			})
		},
	}

	cmd.AddCommand(users, role, status, listings, analytics)
	return cmd
}

func newHostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Reservations and earnings of your listings (hosts)",
	}

	bookings := &cobra.Command{
		Use:   "bookings",
		Short: "List the bookings made on your listings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				list, err := c.Bookings.ForHost(ctx)
				if err != nil {
					return err
				}
				return render(cmd, list, func() string { return bookingTable(list) })
			})
		},
	}

	status := &cobra.Command{
		Use:   "status <booking-id> <pending|confirmed|cancelled|completed>",
		Short: "Move a booking on one of your listings to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "booking id")
			if err != nil {
				return err
			}
			st, ok := models.ParseBookingStatus(args[1])
			if !ok {
				return errors.InvalidInput(fmt.Sprintf("unknown booking status %q", args[1]))
			}
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				b, err := c.Bookings.SetStatus(ctx, id, st)
				if err != nil {
					return err
				}
				return render(cmd, b, func() string { return bookingTable([]models.Booking{b}) })
			})
		},
	}

	earnings := &cobra.Command{
		Use:   "earnings",
		Short: "Show what your completed stays earned",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				e, err := c.Host.Earnings(ctx)
				if err != nil {
					return err
				}
				return render(cmd, e, func() string {
					return cli.StatusTable([][2]string{
						{"Earnings", money(e.TotalEarnings)},
						{"Completed stays", fmt.Sprint(e.Bookings)},
					})
				})
			})
		},
	}

	cmd.AddCommand(bookings, status, earnings)
	return cmd
}

func userTable(users []models.User) string {
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{fmt.Sprint(u.ID), u.Username, u.Email, string(u.Role), string(u.Status)})
	}
	return cli.SimpleTable([]string{"ID", "USERNAME", "EMAIL", "ROLE", "STATUS"}, rows)
}

func analyticsView(a models.Analytics) string {
	var b strings.Builder
	b.WriteString(cli.StatusTable([][2]string{
		{"Users", fmt.Sprint(a.TotalUsers)},
		{"Listings", fmt.Sprint(a.TotalListings)},
		{"Bookings", fmt.Sprint(a.TotalBookings)},
		{"Revenue", money(a.TotalRevenue)},
	}))

	if len(a.UsersByRole) > 0 {
		roles := make([]string, 0, len(a.UsersByRole))
		for r := range a.UsersByRole {
			roles = append(roles, string(r))
		}
		sort.Strings(roles)
		rows := make([][]string, 0, len(roles))
		for _, r := range roles {
			rows = append(rows, []string{r, fmt.Sprint(a.UsersByRole[models.Role(r)])})
		}
		b.WriteString("\n" + cli.SimpleTable([]string{"ROLE", "USERS"}, rows))
	}

	if len(a.PopularLocations) > 0 {
		rows := make([][]string, 0, len(a.PopularLocations))
		for _, p := range a.PopularLocations {
			rows = append(rows, []string{p.Location, fmt.Sprint(p.Bookings)})
		}
		b.WriteString("\n" + cli.SimpleTable([]string{"LOCATION", "BOOKINGS"}, rows))
	}
	return b.String()
}
