// Package config resolves process configuration once at startup:
// infrastructure settings from environment variables, and the embedding
// backfill plan from a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"mspro-labs/book-buddy/internal/graph"
)

// AppConfig holds infrastructure config from standard env vars.
type AppConfig struct {
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	BooksPath   string
	RatingsPath string

	GeminiAPIKey    string
	EmbeddingsModel string

	BatchSize      int
	EmbedBatchSize int
	NumWorkers     int

	CachePath     string
	EmbedPlanPath string
}

// FromEnv reads settings from environment variables. NEO4J_URI is required
// by every command; settings required only by specific commands are checked
// by the Require* helpers so that e.g. `wipe` does not demand an API key.
func FromEnv() (AppConfig, error) {
	cfg := AppConfig{
		Neo4jURI:        strings.TrimSpace(os.Getenv("NEO4J_URI")),
		Neo4jUser:       envDefault("NEO4J_USERNAME", "neo4j"),
		Neo4jPassword:   os.Getenv("NEO4J_PASSWORD"),
		Neo4jDatabase:   strings.TrimSpace(os.Getenv("NEO4J_DATABASE")),
		BooksPath:       strings.TrimSpace(os.Getenv("BOOKS_PATH")),
		RatingsPath:     strings.TrimSpace(os.Getenv("RATINGS_PATH")),
		GeminiAPIKey:    strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		EmbeddingsModel: envDefault("EMBEDDINGS_MODEL", "text-embedding-004"),
		BatchSize:       envInt("BATCH_SIZE", 1000),
		EmbedBatchSize:  envInt("EMBED_BATCH_SIZE", 32),
		NumWorkers:      envInt("NUM_WORKERS", 4),
		CachePath:       CachePath(),
		EmbedPlanPath:   envDefault("EMBED_PLAN_PATH", "embed-plan.yaml"),
	}

	if cfg.Neo4jURI == "" {
		return AppConfig{}, fmt.Errorf("NEO4J_URI environment variable not set")
	}
	if cfg.BatchSize <= 0 {
		return AppConfig{}, fmt.Errorf("BATCH_SIZE must be positive, got %d", cfg.BatchSize)
	}
	if cfg.EmbedBatchSize <= 0 {
		return AppConfig{}, fmt.Errorf("EMBED_BATCH_SIZE must be positive, got %d", cfg.EmbedBatchSize)
	}
	if cfg.NumWorkers <= 0 {
		return AppConfig{}, fmt.Errorf("NUM_WORKERS must be positive, got %d", cfg.NumWorkers)
	}
	return cfg, nil
}

// CachePath resolves the seed cache location on its own, so commands that
// only touch the cache do not need the Neo4j settings.
func CachePath() string {
	return envDefault("CACHE_PATH", "./local-data/book-buddy.db")
}

// RequireDataset checks the settings the load command needs.
func (c AppConfig) RequireDataset() error {
	if c.BooksPath == "" {
		return fmt.Errorf("BOOKS_PATH environment variable not set")
	}
	if c.RatingsPath == "" {
		return fmt.Errorf("RATINGS_PATH environment variable not set")
	}
	return nil
}

// RequireAI checks the settings the embed and recommend commands need.
func (c AppConfig) RequireAI() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	return nil
}

func envDefault(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// EmbedTarget names one (label, source property) pair the backfill pipeline
// should process.
type EmbedTarget struct {
	Label    string `yaml:"label"`
	Property string `yaml:"property"`
	Index    string `yaml:"index"`
}

// IndexName returns the vector index name for the target, defaulting to
// <label>_<property>_embedding_idx.
func (t EmbedTarget) IndexName() string {
	if t.Index != "" {
		return t.Index
	}
	return fmt.Sprintf("%s_%s_embedding_idx", strings.ToLower(t.Label), t.Property)
}

type embedPlanFile struct {
	Targets []EmbedTarget `yaml:"targets"`
}

// LoadEmbedPlan reads the YAML plan and validates every target against the
// graph schema registry, so unknown labels or properties are rejected before
// any query text is built from them.
func LoadEmbedPlan(path string) ([]EmbedTarget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read embed plan at %q: %w", path, err)
	}
	var plan embedPlanFile
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse embed plan: %w", err)
	}
	if len(plan.Targets) == 0 {
		return nil, fmt.Errorf("embed plan %q declares no targets", path)
	}
	for _, t := range plan.Targets {
		if err := graph.ValidateEmbeddingTarget(t.Label, t.Property); err != nil {
			return nil, fmt.Errorf("invalid embed plan target: %w", err)
		}
	}
	return plan.Targets, nil
}
