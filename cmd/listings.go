package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/bnb/cli"
	"github.com/grovetools/bnb/errors"
	"github.com/grovetools/bnb/pkg/marketplace"
	"github.com/grovetools/bnb/pkg/models"
)

func newListingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "listings",
		Aliases: []string{"listing", "ls"},
		Short:   "Search and manage listings",
	}
	cmd.AddCommand(
		newListingsListCmd(),
		newListingsShowCmd(),
		newListingsCreateCmd(),
		newListingsUpdateCmd(),
		newListingsDeleteCmd(),
		newListingsStatusCmd(),
	)
	return cmd
}

func newListingsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Search listings",
		Long: `Search listings by title, location and nightly price. --mine lists the
signed-in host's own listings instead.

Examples:
bnb listings list --location amsterdam
bnb listings list --min-price 50 --max-price 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var f models.ListingFilter
			f.Title, _ = cmd.Flags().GetString("title")
			f.Location, _ = cmd.Flags().GetString("location")
			f.MinPrice, _ = cmd.Flags().GetFloat64("min-price")
			f.MaxPrice, _ = cmd.Flags().GetFloat64("max-price")
			mine, _ := cmd.Flags().GetBool("mine")

			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				var (
					listings []models.Listing
					err      error
				)
				if mine {
					id, idErr := c.Identity()
					if idErr != nil {
						return idErr
					}
					listings, err = c.Listings.ForHost(ctx, id.ID)
				} else {
					listings, err = c.Listings.Search(ctx, f)
				}
				if err != nil {
					return err
				}
				return render(cmd, listings, func() string { return listingTable(listings) })
			})
		},
	}
	cmd.Flags().String("title", "", "Title contains")
	cmd.Flags().String("location", "", "Location contains")
	cmd.Flags().Float64("min-price", 0, "Minimum price per night")
	cmd.Flags().Float64("max-price", 0, "Maximum price per night")
	cmd.Flags().Bool("mine", false, "List the signed-in host's listings")
	return cmd
}

func newListingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <listing-id>",
		Short: "Show one listing with its rating",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "listing id")
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				l, err := c.Listings.Fetch(ctx, id)
				if err != nil {
					return err
				}
				if _, err := c.Reviews.ForListing(ctx, id); err != nil {
					return err
				}
				avg, count := c.Reviews.AverageRating(id)

				out := struct {
					models.Listing
					Rating  float64 `json:"rating"`
					Reviews int     `json:"reviews"`
				}{l, avg, count}
				return render(cmd, out, func() string {
					rating := "no reviews"
					if count > 0 {
						rating = fmt.Sprintf("%.1f / 5 (%d reviews)", avg, count)
					}
					return cli.StatusTable([][2]string{
						{"ID", fmt.Sprint(l.ID)},
						{"Title", l.Title},
						{"Location", l.Location},
						{"Price", money(l.PricePerNight) + " / night"},
						{"Status", string(l.Status)},
						{"Amenities", l.Amenities},
						{"Description", l.Description},
						{"Rating", rating},
					})
				})
			})
		},
	}
}

func newListingsCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a new listing (hosts)",
		Long: `Publish a new listing. New listings wait for an administrator's approval.

Examples:
bnb listings create --title "Loft" --location Lisbon --price 80`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in models.ListingInput
			in.Title, _ = cmd.Flags().GetString("title")
			in.Description, _ = cmd.Flags().GetString("description")
			in.PricePerNight, _ = cmd.Flags().GetFloat64("price")
			in.Amenities, _ = cmd.Flags().GetString("amenities")
			in.Location, _ = cmd.Flags().GetString("location")
			in.ImageURL, _ = cmd.Flags().GetString("image-url")

			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				l, err := c.Listings.Create(ctx, in)
				if err != nil {
					return err
				}
				return render(cmd, l, func() string { return listingTable([]models.Listing{l}) })
			})
		},
	}
	listingFlags(cmd)
	return cmd
}

func newListingsUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <listing-id>",
		Short: "Change fields of a listing you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "listing id")
			if err != nil {
				return err
			}
			patch := listingPatch(cmd)
			if patch == (models.ListingPatch{}) {
				return errors.InvalidInput("nothing to update; pass at least one field flag")
			}
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				l, err := c.Listings.Update(ctx, id, patch)
				if err != nil {
					return err
				}
				return render(cmd, l, func() string { return listingTable([]models.Listing{l}) })
			})
		},
	}
	listingFlags(cmd)
	return cmd
}

func newListingsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <listing-id>",
		Short: "Delete a listing you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "listing id")
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				if err := c.Listings.Delete(ctx, id); err != nil {
					return err
				}
				return done(cmd, fmt.Sprintf("Deleted listing %d", id))
			})
		},
	}
}

func newListingsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <listing-id> <Pending|Approved|Rejected>",
		Short: "Set the review status of a listing (admins)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "listing id")
			if err != nil {
				return err
			}
			status, ok := models.ParseListingStatus(args[1])
			if !ok {
				return errors.InvalidInput(fmt.Sprintf("unknown listing status %q", args[1]))
			}
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				l, err := c.Listings.SetStatus(ctx, id, status)
				if err != nil {
					return err
				}
				return render(cmd, l, func() string { return listingTable([]models.Listing{l}) })
			})
		},
	}
}

func listingFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "Listing title")
	cmd.Flags().String("description", "", "Longer description")
	cmd.Flags().Float64("price", 0, "Price per night")
	cmd.Flags().String("amenities", "", "Comma-separated amenities")
	cmd.Flags().String("location", "", "City or area")
	cmd.Flags().String("image-url", "", "Cover image URL")
}

// listingPatch collects only the flags the user set.
func listingPatch(cmd *cobra.Command) models.ListingPatch {
	var p models.ListingPatch
	str := func(name string) *string {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		v, _ := cmd.Flags().GetString(name)
		return &v
	}
	p.Title = str("title")
	p.Description = str("description")
	p.Amenities = str("amenities")
	p.Location = str("location")
	p.ImageURL = str("image-url")
	if cmd.Flags().Changed("price") {
		v, _ := cmd.Flags().GetFloat64("price")
		p.PricePerNight = &v
	}
	return p
}

func listingTable(listings []models.Listing) string {
	rows := make([][]string, 0, len(listings))
	for _, l := range listings {
		rows = append(rows, []string{
			fmt.Sprint(l.ID), l.Title, l.Location, money(l.PricePerNight), string(l.Status),
		})
	}
	return cli.SimpleTable([]string{"ID", "TITLE", "LOCATION", "PRICE", "STATUS"}, rows)
}
