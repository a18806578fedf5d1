package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/bnb/cli"
	"github.com/grovetools/bnb/pkg/marketplace"
	"github.com/grovetools/bnb/pkg/models"
)

func newBookingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bookings",
		Aliases: []string{"booking"},
		Short:   "Book stays and manage your reservations",
	}
	cmd.AddCommand(
		newBookingsListCmd(),
		newBookingsBookCmd(),
		newBookingsCancelCmd(),
		newBookingsAvailabilityCmd(),
	)
	return cmd
}

func newBookingsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your bookings",
		Long: `List the signed-in user's bookings. --listing shows the bookings of a
listing you own; --all lists every booking (admins).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			listingID, _ := cmd.Flags().GetInt64("listing")
			all, _ := cmd.Flags().GetBool("all")
			page, _ := cmd.Flags().GetInt("page")
			pageSize, _ := cmd.Flags().GetInt("page-size")

			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				var (
					bookings []models.Booking
					err      error
				)
				switch {
				case all:
					bookings, err = c.Bookings.All(ctx, page, pageSize)
				case listingID > 0:
					bookings, err = c.Bookings.ForListing(ctx, listingID)
				default:
					id, idErr := c.Identity()
					if idErr != nil {
						return idErr
					}
					bookings, err = c.Bookings.ForUser(ctx, id.ID)
				}
				if err != nil {
					return err
				}
				return render(cmd, bookings, func() string { return bookingTable(bookings) })
			})
		},
	}
	cmd.Flags().Int64("listing", 0, "Show the bookings of this listing")
	cmd.Flags().Bool("all", false, "List every booking (admins)")
	cmd.Flags().Int("page", 0, "Page number with --all")
	cmd.Flags().Int("page-size", 0, "Page size with --all")
	return cmd
}

func newBookingsBookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book <listing-id>",
		Short: "Reserve a listing for a stay",
		Long: `Reserve a listing. Check-out is exclusive, so back-to-back stays are fine.

Examples:
bnb bookings book 4 --check-in 2026-11-02 --check-out 2026-11-05`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			listingID, err := parseID(args[0], "listing id")
			if err != nil {
				return err
			}
			req, err := stayFlags(cmd)
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				b, err := c.Bookings.Book(ctx, listingID, req)
				if err != nil {
					return err
				}
				return render(cmd, b, func() string { return bookingTable([]models.Booking{b}) })
			})
		},
	}
	addStayFlags(cmd)
	return cmd
}

func newBookingsCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <booking-id>",
		Short: "Cancel one of your bookings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "booking id")
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				if err := c.Bookings.Cancel(ctx, id); err != nil {
					return err
				}
				return done(cmd, fmt.Sprintf("Cancelled booking %d", id))
			})
		},
	}
}

func newBookingsAvailabilityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "availability <listing-id>",
		Short: "Check whether a listing is free for a stay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			listingID, err := parseID(args[0], "listing id")
			if err != nil {
				return err
			}
			req, err := stayFlags(cmd)
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				ok, err := c.Bookings.CheckAvailability(ctx, listingID, req.CheckIn, req.CheckOut)
				if err != nil {
					return err
				}
				out := models.Availability{Available: ok}
				return render(cmd, out, func() string {
					if ok {
						return cli.DefaultTheme.Success.Render("✓ ") +
							fmt.Sprintf("Listing %d is available from %s to %s", listingID, req.CheckIn, req.CheckOut)
					}
					return cli.DefaultTheme.Warning.Render("✗ ") +
						fmt.Sprintf("Listing %d is booked between %s and %s", listingID, req.CheckIn, req.CheckOut)
				})
			})
		},
	}
	addStayFlags(cmd)
	return cmd
}

func addStayFlags(cmd *cobra.Command) {
	cmd.Flags().String("check-in", "", "First night (YYYY-MM-DD)")
	cmd.Flags().String("check-out", "", "Departure day (YYYY-MM-DD)")
}

func stayFlags(cmd *cobra.Command) (models.BookingRequest, error) {
	in, err := parseDateFlag(cmd, "check-in")
	if err != nil {
		return models.BookingRequest{}, err
	}
	out, err := parseDateFlag(cmd, "check-out")
	if err != nil {
		return models.BookingRequest{}, err
	}
	return models.BookingRequest{CheckIn: in, CheckOut: out}, nil
}

func bookingTable(bookings []models.Booking) string {
	rows := make([][]string, 0, len(bookings))
	for _, b := range bookings {
		rows = append(rows, []string{
			fmt.Sprint(b.ID),
			fmt.Sprint(b.ListingID),
			b.CheckIn.String(),
			b.CheckOut.String(),
			fmt.Sprint(models.Nights(b.CheckIn, b.CheckOut)),
			money(b.TotalPrice),
			string(b.Status),
		})
	}
	return cli.SimpleTable([]string{"ID", "LISTING", "CHECK-IN", "CHECK-OUT", "NIGHTS", "TOTAL", "STATUS"}, rows)
}
