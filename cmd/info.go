package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mspro-labs/book-buddy/internal/recommend"
)

var reviewLimit int

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Look up facts about books and authors in the graph",
	Long: `Direct lookups against the loaded graph. Examples:
  book-buddy info describe "The Hobbit"
  book-buddy info author "The Hobbit"
  book-buddy info genre "The Hobbit"
  book-buddy info publisher "The Hobbit"
  book-buddy info books-by "J.R.R. Tolkien"
  book-buddy info reviews "The Hobbit" --limit 3`,
}

func init() {
	infoCmd.PersistentFlags().IntVar(&reviewLimit, "limit", 5, "max reviews to show")
	infoCmd.AddCommand(infoSubcommand("describe [title]", "Show a book's description", func(ctx context.Context, r *recommend.Recommender, arg string) error {
		desc, err := r.Description(ctx, arg)
		if err != nil {
			return err
		}
		if desc == "" {
			fmt.Println("(no description recorded)")
			return nil
		}
		fmt.Println(desc)
		return nil
	}))
	infoCmd.AddCommand(infoSubcommand("author [title]", "Show a book's author(s)", func(ctx context.Context, r *recommend.Recommender, arg string) error {
		return printNames(r.AuthorsOf(ctx, arg))
	}))
	infoCmd.AddCommand(infoSubcommand("genre [title]", "Show a book's categories", func(ctx context.Context, r *recommend.Recommender, arg string) error {
		return printNames(r.GenresOf(ctx, arg))
	}))
	infoCmd.AddCommand(infoSubcommand("publisher [title]", "Show a book's publisher", func(ctx context.Context, r *recommend.Recommender, arg string) error {
		name, err := r.PublisherOf(ctx, arg)
		if err != nil {
			return err
		}
		if name == "" {
			fmt.Println("(no publisher recorded)")
			return nil
		}
		fmt.Println(name)
		return nil
	}))
	infoCmd.AddCommand(infoSubcommand("books-by [author]", "List books by an author", func(ctx context.Context, r *recommend.Recommender, arg string) error {
		return printNames(r.BooksByAuthor(ctx, arg))
	}))
	infoCmd.AddCommand(infoSubcommand("reviews [title]", "Show top reviews of a book", func(ctx context.Context, r *recommend.Recommender, arg string) error {
		reviews, err := r.Reviews(ctx, arg, reviewLimit)
		if err != nil {
			return err
		}
		if len(reviews) == 0 {
			fmt.Println("No reviews recorded.")
			return nil
		}
		for i, rev := range reviews {
			who := rev.ProfileName
			if who == "" {
				who = "anonymous"
			}
			fmt.Printf("#%d [%.1f/5] %s", i+1, rev.Score, who)
			if !rev.Time.IsZero() {
				fmt.Printf(" (%s)", rev.Time.Format("2006-01-02"))
			}
			fmt.Println()
			if rev.Summary != "" {
				fmt.Printf("   %s\n", rev.Summary)
			}
			if rev.Text != "" {
				fmt.Printf("   %s\n", truncate(rev.Text, 300))
			}
			fmt.Println()
		}
		return nil
	}))
	rootCmd.AddCommand(infoCmd)
}

func infoSubcommand(use, short string, run func(context.Context, *recommend.Recommender, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			_, store, logger, cleanup := setup(ctx)
			defer cleanup()

			rec := recommend.New(recommend.Options{Store: store, Log: logger})
			arg := strings.Join(args, " ")
			if err := run(ctx, rec, arg); err != nil {
				if errors.Is(err, recommend.ErrNotFound) {
					fmt.Printf("Not found: %q\n", arg)
					return
				}
				logger.Fatal("lookup failed", "error", err)
			}
		},
	}
}

func printNames(names []string, err error) error {
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("(none recorded)")
		return nil
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
