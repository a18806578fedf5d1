package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/bnb/cli"
	"github.com/grovetools/bnb/pkg/marketplace"
	"github.com/grovetools/bnb/pkg/models"
)

func newFavoritesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "favorites",
		Aliases: []string{"favs"},
		Short:   "Manage saved listings",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List your saved listings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				id, err := c.Identity()
				if err != nil {
					return err
				}
				favs, err := c.Favorites.ForUser(ctx, id.ID)
				if err != nil {
					return err
				}
				return render(cmd, favs, func() string {
					rows := make([][]string, 0, len(favs))
					for _, f := range favs {
						rows = append(rows, []string{
							fmt.Sprint(f.ID), fmt.Sprint(f.ListingID), f.Title, money(f.PricePerNight), f.Note,
						})
					}
					return cli.SimpleTable([]string{"ID", "LISTING", "TITLE", "PRICE", "NOTE"}, rows)
				})
			})
		},
	}

	add := &cobra.Command{
		Use:   "add <listing-id>",
		Short: "Save a listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			listingID, err := parseID(args[0], "listing id")
			if err != nil {
				return err
			}
			note, _ := cmd.Flags().GetString("note")
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				f, err := c.Favorites.Add(ctx, listingID, note)
				if err != nil {
					return err
				}
				return render(cmd, f, func() string {
					return cli.DefaultTheme.Success.Render("✓ ") +
						fmt.Sprintf("Saved listing %d as favorite %d", f.ListingID, f.ID)
				})
			})
		},
	}
	add.Flags().String("note", "", "A note to remember it by")

	remove := &cobra.Command{
		Use:   "remove <favorite-id>",
		Short: "Forget a saved listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "favorite id")
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				if err := c.Favorites.Remove(ctx, id); err != nil {
					return err
				}
				return done(cmd, fmt.Sprintf("Removed favorite %d", id))
			})
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}

func newReviewsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reviews",
		Aliases: []string{"review"},
		Short:   "Read and write listing reviews",
	}

	list := &cobra.Command{
		Use:   "list <listing-id>",
		Short: "Show the reviews of a listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			listingID, err := parseID(args[0], "listing id")
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				reviews, err := c.Reviews.ForListing(ctx, listingID)
				if err != nil {
					return err
				}
				return render(cmd, reviews, func() string {
					rows := make([][]string, 0, len(reviews))
					for _, r := range reviews {
						rows = append(rows, []string{fmt.Sprint(r.ID), fmt.Sprint(r.UserID), fmt.Sprint(r.Rating), r.Comment})
					}
					table := cli.SimpleTable([]string{"ID", "USER", "RATING", "COMMENT"}, rows)
					if avg, n := c.Reviews.AverageRating(listingID); n > 0 {
						table += "\n" + cli.DefaultTheme.Muted.Render(fmt.Sprintf("Average %.1f from %d reviews", avg, n))
					}
					return table
				})
			})
		},
	}

	add := &cobra.Command{
		Use:   "add <listing-id>",
		Short: "Review a listing",
		Long: `Review a listing with a rating from 1 to 5.

Examples:
bnb reviews add 4 --rating 5 --comment "Lovely canal views"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			listingID, err := parseID(args[0], "listing id")
			if err != nil {
				return err
			}
			rating, _ := cmd.Flags().GetInt("rating")
			comment, _ := cmd.Flags().GetString("comment")
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				r, err := c.Reviews.Add(ctx, models.ReviewInput{ListingID: listingID, Rating: rating, Comment: comment})
				if err != nil {
					return err
				}
				return render(cmd, r, func() string {
					return cli.DefaultTheme.Success.Render("✓ ") +
						fmt.Sprintf("Posted review %d (%d/5) on listing %d", r.ID, r.Rating, r.ListingID)
				})
			})
		},
	}
	add.Flags().Int("rating", 0, "Rating from 1 to 5")
	add.Flags().String("comment", "", "What you thought")

	remove := &cobra.Command{
		Use:   "delete <review-id>",
		Short: "Delete one of your reviews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "review id")
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *marketplace.Client) error {
				if err := c.Reviews.Delete(ctx, id); err != nil {
					return err
				}
				return done(cmd, fmt.Sprintf("Deleted review %d", id))
			})
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}
