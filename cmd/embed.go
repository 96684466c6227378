package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"mspro-labs/book-buddy/internal/ai"
	"mspro-labs/book-buddy/internal/config"
	"mspro-labs/book-buddy/internal/embedder"
)

var embedModel string

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Backfill Gemini embeddings onto graph nodes",
	Long: `Finds nodes whose embedding property is still missing and generates
vectors for them using the Gemini API. Targets come from the embed plan
file (labels and source properties). A cosine vector index is created for
each target once its vector dimensions are known.`,
	Run: func(cmd *cobra.Command, args []string) {
		runEmbedBackfill()
	},
}

func init() {
	embedCmd.Flags().StringVar(&embedModel, "model", "", "override the configured embedding model")
	rootCmd.AddCommand(embedCmd)
}

func runEmbedBackfill() {
	ctx := context.Background()
	appCfg, store, logger, cleanup := setup(ctx)
	defer cleanup()

	if err := appCfg.RequireAI(); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	targets, err := config.LoadEmbedPlan(appCfg.EmbedPlanPath)
	if err != nil {
		logger.Fatal("failed to load embed plan", "path", appCfg.EmbedPlanPath, "error", err)
	}

	aiClient, err := ai.NewClient(ctx, appCfg.GeminiAPIKey, appCfg.EmbeddingsModel)
	if err != nil {
		logger.Fatal("failed to initialize AI client", "error", err)
	}
	defer aiClient.Close()
	if embedModel != "" {
		aiClient.UseModel(embedModel)
	}

	pipeline := &embedder.Pipeline{
		Store:          store,
		Embedder:       aiClient,
		WriteBatchSize: appCfg.BatchSize,
		EmbedBatchSize: appCfg.EmbedBatchSize,
		Log:            logger,
	}
	for _, t := range targets {
		target := embedder.Target{Label: t.Label, Property: t.Property, Index: t.Index}
		if err := pipeline.Backfill(ctx, target); err != nil {
			logger.Fatal("backfill failed", "label", t.Label, "property", t.Property, "error", err)
		}
	}
	logger.Info("embedding backfill complete", "targets", len(targets))
}
