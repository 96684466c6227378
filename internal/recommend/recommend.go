// Package recommend answers "what should I read next" queries against the
// loaded graph. Similarity scoring happens client-side: candidate vectors
// are pulled from the graph and ranked by cosine similarity against a seed
// vector, so the queries work on any Neo4j edition.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"mspro-labs/book-buddy/internal/ai"
	"mspro-labs/book-buddy/internal/graph"
	"mspro-labs/book-buddy/internal/logging"
)

// ErrNotFound is returned by the info queries when the named book or author
// does not exist in the graph.
var ErrNotFound = errors.New("not found")

// MissingScore marks a result whose vector was unavailable, so callers can
// tell "ranked last" apart from "could not be scored".
const MissingScore = float32(-1)

// Reader is the graph surface the recommender needs.
type Reader interface {
	RunRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// SeedCache stores embeddings for free-text seed queries.
type SeedCache interface {
	Get(queryText, model string) ([]float32, error)
	Put(queryText, model string, vector []float32) error
}

type Result struct {
	Title string
	Score float32
}

type Recommender struct {
	store    Reader
	embedder ai.Embedder
	cache    SeedCache
	log      *logging.Logger
}

// Options for New. Embedder and Cache may be nil; queries that only need
// stored vectors or graph structure still work without them.
type Options struct {
	Store    Reader
	Embedder ai.Embedder
	Cache    SeedCache
	Log      *logging.Logger
}

func New(opts Options) *Recommender {
	log := opts.Log
	if log == nil {
		log = logging.Nop()
	}
	return &Recommender{
		store:    opts.Store,
		embedder: opts.Embedder,
		cache:    opts.Cache,
		log:      log,
	}
}

// Similar returns up to topK books ranked by embedding similarity to the
// seed. A seed matching a book title reuses that book's stored description
// embedding and ranks against descriptions; free text is embedded on demand
// and ranks against titles. A non-empty property pins the compared property
// for both paths. Books without the compared embedding are still returned,
// at MissingScore below every scored candidate, so the result stays topK
// long whenever enough candidates exist. An unresolvable seed degrades to an
// empty result, not an error.
func (r *Recommender) Similar(ctx context.Context, seed, property string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = 5
	}
	if property != "" {
		if err := graph.ValidateEmbeddingTarget("Book", property); err != nil {
			return nil, err
		}
	}

	storedProp := property
	if storedProp == "" {
		storedProp = "description"
	}
	seedVec, err := r.storedVector(ctx, seed, graph.EmbeddingProperty(storedProp))
	if err != nil {
		return nil, err
	}

	candidateProp := storedProp
	seedTitle := seed
	if seedVec == nil {
		// Free-text path: the seed text is closest in kind to a title.
		if property == "" {
			candidateProp = "title"
		}
		seedTitle = ""
		seedVec, err = r.embedSeed(ctx, seed)
		if err != nil {
			return nil, err
		}
	}
	if seedVec == nil {
		r.log.Warn("no seed vector available, returning no recommendations", "seed", seed)
		return nil, nil
	}

	rows, err := r.store.RunRead(ctx, fmt.Sprintf(`
		MATCH (b:Book)
		RETURN b.title AS title, b.%s AS vector`, graph.EmbeddingProperty(candidateProp)),
		nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}

	results := scoreRows(rows, seedVec, seedTitle)
	return topN(results, topK), nil
}

// SameGenreAs returns books sharing a category with the named book, ranked
// by description similarity to it when its embedding exists and listed
// unscored otherwise.
func (r *Recommender) SameGenreAs(ctx context.Context, title string, topK int) ([]Result, error) {
	return r.structural(ctx, title, topK, `
		MATCH (b:Book {title: $title})-[:BELONGS_TO]->(:Category)<-[:BELONGS_TO]-(other:Book)
		WHERE other.title <> $title
		RETURN DISTINCT other.title AS title, other.description_embedding AS vector`)
}

// SameAuthorAs returns other books by the named book's author(s), ranked by
// description similarity when possible.
func (r *Recommender) SameAuthorAs(ctx context.Context, title string, topK int) ([]Result, error) {
	return r.structural(ctx, title, topK, `
		MATCH (b:Book {title: $title})-[:WRITTEN_BY]->(:Author)<-[:WRITTEN_BY]-(other:Book)
		WHERE other.title <> $title
		RETURN DISTINCT other.title AS title, other.description_embedding AS vector`)
}

func (r *Recommender) structural(ctx context.Context, title string, topK int, candidateQuery string) ([]Result, error) {
	if topK <= 0 {
		topK = 5
	}
	rows, err := r.store.RunRead(ctx, candidateQuery, map[string]any{"title": title})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	seedVec, err := r.storedVector(ctx, title, graph.EmbeddingProperty("description"))
	if err != nil {
		return nil, err
	}
	if seedVec == nil {
		// No embedding to rank by. Fall back to an unscored listing so the
		// structural answer is still useful.
		results := make([]Result, 0, len(rows))
		for _, row := range rows {
			t, _ := row["title"].(string)
			if t == "" {
				continue
			}
			results = append(results, Result{Title: t, Score: MissingScore})
		}
		if len(results) > topK {
			results = results[:topK]
		}
		return results, nil
	}

	return topN(scoreRows(rows, seedVec, title), topK), nil
}

// ByReview ranks books by how closely their review text matches the query.
// Each book is scored by its best-matching review.
func (r *Recommender) ByReview(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = 5
	}
	seedVec, err := r.embedSeed(ctx, query)
	if err != nil {
		return nil, err
	}
	if seedVec == nil {
		r.log.Warn("could not embed review query, returning no recommendations", "query", query)
		return nil, nil
	}

	rows, err := r.store.RunRead(ctx, `
		MATCH (rev:Review)-[:REVIEWS]->(b:Book)
		WHERE rev.text_embedding IS NOT NULL
		RETURN b.title AS title, rev.text_embedding AS vector`,
		nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reviews: %w", err)
	}

	best := make(map[string]float32)
	for _, row := range rows {
		title, _ := row["title"].(string)
		if title == "" {
			continue
		}
		vec := asFloat32s(row["vector"])
		if vec == nil {
			continue
		}
		score := ai.CosineSimilarity(seedVec, vec)
		if cur, ok := best[title]; !ok || score > cur {
			best[title] = score
		}
	}

	results := make([]Result, 0, len(best))
	for title, score := range best {
		results = append(results, Result{Title: title, Score: score})
	}
	return topN(results, topK), nil
}

// storedVector fetches a book's stored embedding, nil when the book or its
// embedding is absent.
func (r *Recommender) storedVector(ctx context.Context, title, embeddingProp string) ([]float32, error) {
	rows, err := r.store.RunRead(ctx, fmt.Sprintf(`
		MATCH (b:Book {title: $title})
		RETURN b.%s AS vector`, embeddingProp),
		map[string]any{"title": title})
	if err != nil {
		return nil, fmt.Errorf("failed to look up book vector: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return asFloat32s(rows[0]["vector"]), nil
}

// embedSeed embeds free text, consulting the seed cache first. Embedding
// failures degrade to a nil vector, logged but not surfaced.
func (r *Recommender) embedSeed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" || r.embedder == nil {
		return nil, nil
	}
	model := r.embedder.ModelName()

	if r.cache != nil {
		vec, err := r.cache.Get(text, model)
		if err != nil {
			r.log.Warn("seed cache lookup failed", "error", err)
		} else if vec != nil {
			r.log.Debug("seed cache hit", "model", model)
			return vec, nil
		}
	}

	vectors, err := r.embedder.Embed(ctx, []string{text})
	if err != nil {
		r.log.Warn("seed embedding failed", "error", err)
		return nil, nil
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, nil
	}
	vec := vectors[0]

	if r.cache != nil {
		if err := r.cache.Put(text, model, vec); err != nil {
			r.log.Warn("seed cache store failed", "error", err)
		}
	}
	return vec, nil
}

// scoreRows scores candidate rows against the seed vector, skipping the seed
// title itself and marking vectorless candidates with MissingScore.
func scoreRows(rows []map[string]any, seedVec []float32, excludeTitle string) []Result {
	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		title, _ := row["title"].(string)
		if title == "" || title == excludeTitle {
			continue
		}
		vec := asFloat32s(row["vector"])
		if vec == nil {
			results = append(results, Result{Title: title, Score: MissingScore})
			continue
		}
		results = append(results, Result{Title: title, Score: ai.CosineSimilarity(seedVec, vec)})
	}
	return results
}

func topN(results []Result, n int) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > n {
		results = results[:n]
	}
	return results
}

// asFloat32s converts a vector property as the driver returns it. Neo4j
// hands lists back as []any of float64.
func asFloat32s(v any) []float32 {
	switch vs := v.(type) {
	case []float32:
		return vs
	case []float64:
		out := make([]float32, len(vs))
		for i, f := range vs {
			out[i] = float32(f)
		}
		return out
	case []any:
		out := make([]float32, 0, len(vs))
		for _, e := range vs {
			switch f := e.(type) {
			case float64:
				out = append(out, float32(f))
			case float32:
				out = append(out, f)
			default:
				return nil
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}
