package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"mspro-labs/book-buddy/internal/ai"
	"mspro-labs/book-buddy/internal/cache"
	"mspro-labs/book-buddy/internal/config"
	"mspro-labs/book-buddy/internal/logging"
	"mspro-labs/book-buddy/internal/recommend"
)

var (
	topK         int
	seedProperty string
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Get book recommendations from the graph",
	Long: `Ranks books by semantic similarity, or by structural relations in the
graph. The seed can be a book title already in the graph or free text.
Examples:
  book-buddy recommend similar "The Hobbit"
  book-buddy recommend similar "dark political sci-fi with unreliable narrators"
  book-buddy recommend genre "Dune"
  book-buddy recommend author "Dune"
  book-buddy recommend reviews "made me cry on the train"

Seed cache commands:
  book-buddy recommend history
  book-buddy recommend clear "query text"
  book-buddy recommend clear all`,
}

var recommendSimilarCmd = &cobra.Command{
	Use:   "similar [seed]",
	Short: "Books with descriptions similar to a title or free-text query",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRecommend(strings.Join(args, " "), func(ctx context.Context, r *recommend.Recommender, seed string) ([]recommend.Result, error) {
			return r.Similar(ctx, seed, seedProperty, topK)
		})
	},
}

var recommendGenreCmd = &cobra.Command{
	Use:   "genre [title]",
	Short: "Books sharing a category with the given book",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRecommend(strings.Join(args, " "), func(ctx context.Context, r *recommend.Recommender, seed string) ([]recommend.Result, error) {
			return r.SameGenreAs(ctx, seed, topK)
		})
	},
}

var recommendAuthorCmd = &cobra.Command{
	Use:   "author [title]",
	Short: "Other books by the given book's author",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRecommend(strings.Join(args, " "), func(ctx context.Context, r *recommend.Recommender, seed string) ([]recommend.Result, error) {
			return r.SameAuthorAs(ctx, seed, topK)
		})
	},
}

var recommendReviewsCmd = &cobra.Command{
	Use:   "reviews [query]",
	Short: "Books whose reader reviews match a free-text query",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRecommend(strings.Join(args, " "), func(ctx context.Context, r *recommend.Recommender, seed string) ([]recommend.Result, error) {
			return r.ByReview(ctx, seed, topK)
		})
	},
}

var recommendHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List cached seed queries",
	Run: func(cmd *cobra.Command, args []string) {
		runHistory()
	},
}

var recommendClearCmd = &cobra.Command{
	Use:   "clear [query|all]",
	Short: "Remove cached seed queries",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runClear(strings.Join(args, " "))
	},
}

func init() {
	recommendCmd.PersistentFlags().IntVar(&topK, "top-k", 5, "number of results to return")
	recommendSimilarCmd.Flags().StringVar(&seedProperty, "property", "", "source property whose embedding is compared (default: description for graph titles, title for free text)")
	recommendCmd.AddCommand(recommendSimilarCmd)
	recommendCmd.AddCommand(recommendGenreCmd)
	recommendCmd.AddCommand(recommendAuthorCmd)
	recommendCmd.AddCommand(recommendReviewsCmd)
	recommendCmd.AddCommand(recommendHistoryCmd)
	recommendCmd.AddCommand(recommendClearCmd)
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(seed string, query func(context.Context, *recommend.Recommender, string) ([]recommend.Result, error)) {
	ctx := context.Background()
	appCfg, store, logger, cleanup := setup(ctx)
	defer cleanup()

	rec := buildRecommender(ctx, appCfg, store, logger)

	results, err := query(ctx, rec, seed)
	if err != nil {
		logger.Fatal("recommendation failed", "error", err)
	}
	if len(results) == 0 {
		fmt.Printf("No recommendations found for %q.\n", seed)
		return
	}

	fmt.Printf("\n🔍 Top matches for: %q\n\n", seed)
	for i, r := range results {
		if r.Score == recommend.MissingScore {
			fmt.Printf("#%d [  no score ] %s\n", i+1, r.Title)
			continue
		}
		fmt.Printf("#%d [%.1f%% match] %s\n", i+1, r.Score*100, r.Title)
	}
}

// buildRecommender assembles the recommender with whatever is available: no
// API key means title-seeded queries still work, free-text ones degrade.
func buildRecommender(ctx context.Context, appCfg config.AppConfig, store recommend.Reader, logger *logging.Logger) *recommend.Recommender {
	opts := recommend.Options{Store: store, Log: logger}

	if appCfg.GeminiAPIKey != "" {
		aiClient, err := ai.NewClient(ctx, appCfg.GeminiAPIKey, appCfg.EmbeddingsModel)
		if err != nil {
			logger.Warn("AI client unavailable, free-text seeds disabled", "error", err)
		} else {
			opts.Embedder = aiClient
		}
	}

	seedCache, err := cache.Open(appCfg.CachePath)
	if err != nil {
		logger.Warn("seed cache unavailable", "path", appCfg.CachePath, "error", err)
	} else {
		opts.Cache = seedCache
	}

	return recommend.New(opts)
}

func runHistory() {
	seedCache, err := cache.Open(config.CachePath())
	if err != nil {
		log.Fatalf("Cache error: %v", err)
	}
	defer seedCache.Close()

	entries, err := seedCache.List()
	if err != nil {
		log.Fatalf("Failed to list history: %v", err)
	}
	fmt.Println("📜 Seed Query History (Cached Embeddings)")
	fmt.Println("------------------------------------------")
	if len(entries) == 0 {
		fmt.Println("No history found.")
		return
	}
	for _, e := range entries {
		fmt.Printf("[%s] %s (%s)\n", e.CreatedAt.Format("2006-01-02 15:04"), e.QueryText, e.Model)
	}
}

func runClear(target string) {
	seedCache, err := cache.Open(config.CachePath())
	if err != nil {
		log.Fatalf("Cache error: %v", err)
	}
	defer seedCache.Close()

	var affected int64
	if strings.EqualFold(strings.TrimSpace(target), "all") {
		affected, err = seedCache.ClearAll()
	} else {
		affected, err = seedCache.Clear(target)
	}
	if err != nil {
		log.Fatalf("Failed to clear history: %v", err)
	}
	fmt.Printf("🗑️ Done. Removed %d entry(s) from cache.\n", affected)
}
