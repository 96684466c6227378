// Package embedder backfills vector embeddings onto graph nodes and
// provisions the similarity indexes over them. Embedding generation batches
// are sized independently of database write batches: the first is bounded by
// model throughput, the second by transaction size.
package embedder

import (
	"context"
	"fmt"
	"strings"

	"mspro-labs/book-buddy/internal/ai"
	"mspro-labs/book-buddy/internal/graph"
	"mspro-labs/book-buddy/internal/logging"
)

// GraphStore is the slice of the graph store the pipeline needs.
type GraphStore interface {
	RunRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
	RunWrite(ctx context.Context, query string, params map[string]any) (graph.WriteSummary, error)
	CreateVectorIndex(ctx context.Context, name, label, property string, dimensions int) error
}

// Target names one (label, source property) pair to backfill.
type Target struct {
	Label    string
	Property string
	Index    string
}

type Pipeline struct {
	Store    GraphStore
	Embedder ai.Embedder

	// WriteBatchSize caps nodes touched per write transaction.
	WriteBatchSize int
	// EmbedBatchSize caps texts per embedding call.
	EmbedBatchSize int
	// SpillFactor times WriteBatchSize is the accumulation threshold at
	// which computed vectors are flushed to the store.
	SpillFactor int

	Log *logging.Logger
}

type pair struct {
	id   string
	text string
}

type vectored struct {
	id     string
	vector []float32
}

// Backfill selects nodes of the target label whose source property is set
// but not yet embedded, computes vectors in batches, persists them, and
// finally creates the cosine similarity index. Already-flushed batches
// survive a mid-run failure; re-running only re-selects nodes still missing
// the embedding property.
func (p *Pipeline) Backfill(ctx context.Context, t Target) error {
	if err := graph.ValidateEmbeddingTarget(t.Label, t.Property); err != nil {
		return err
	}
	if p.WriteBatchSize <= 0 || p.EmbedBatchSize <= 0 {
		return fmt.Errorf("batch sizes must be positive")
	}
	spill := p.SpillFactor
	if spill <= 0 {
		spill = 4
	}
	spec, err := graph.NodeSpecFor(t.Label)
	if err != nil {
		return err
	}
	embeddingProp := graph.EmbeddingProperty(t.Property)
	log := p.Log.With("label", t.Label, "property", t.Property)

	pairs, err := p.selectPending(ctx, spec, t.Property, embeddingProp)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		log.Info("no nodes need embedding")
		return nil
	}
	log.Info("embedding nodes", "count", len(pairs), "model", p.Embedder.ModelName())

	writeQuery := fmt.Sprintf(`UNWIND $batch AS row
MATCH (n:%s {%s: row.id})
SET n.%s = row.vector`, spec.Label, spec.KeyProp, embeddingProp)

	dimensions := 0
	written := 0
	var accumulated []vectored

	flush := func() error {
		for len(accumulated) > 0 {
			chunk := accumulated
			if len(chunk) > p.WriteBatchSize {
				chunk = chunk[:p.WriteBatchSize]
			}
			payload := make([]map[string]any, len(chunk))
			for i, v := range chunk {
				payload[i] = map[string]any{"id": v.id, "vector": toFloat64s(v.vector)}
			}
			if _, err := p.Store.RunWrite(ctx, writeQuery, map[string]any{"batch": payload}); err != nil {
				return fmt.Errorf("failed to persist %s vectors: %w", embeddingProp, err)
			}
			written += len(chunk)
			accumulated = accumulated[len(chunk):]
		}
		log.Info("vectors persisted", "written", written, "total", len(pairs))
		return nil
	}

	for start := 0; start < len(pairs); start += p.EmbedBatchSize {
		end := min(start+p.EmbedBatchSize, len(pairs))
		batch := pairs[start:end]

		texts := make([]string, len(batch))
		for i, pr := range batch {
			texts[i] = pr.text
		}
		vectors, err := p.Embedder.Embed(ctx, texts)
		if err != nil {
			// Abandon the batch in flight; everything flushed so far stays.
			return fmt.Errorf("embedding batch %d-%d failed: %w", start+1, end, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedding batch %d-%d returned %d vectors for %d texts", start+1, end, len(vectors), len(batch))
		}
		for i, vec := range vectors {
			if dimensions == 0 {
				dimensions = len(vec)
			} else if len(vec) != dimensions {
				return fmt.Errorf("inconsistent embedding dimensionality: got %d, expected %d", len(vec), dimensions)
			}
			accumulated = append(accumulated, vectored{id: batch[i].id, vector: vec})
		}

		if len(accumulated) >= spill*p.WriteBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	// Dimensionality is only known once at least one vector was computed, so
	// index creation never runs for an empty selection.
	return p.Store.CreateVectorIndex(ctx, t.IndexName(), spec.Label, embeddingProp, dimensions)
}

// IndexName returns the configured index name or the repo-wide default.
func (t Target) IndexName() string {
	if t.Index != "" {
		return t.Index
	}
	return fmt.Sprintf("%s_%s_embedding_idx", strings.ToLower(t.Label), t.Property)
}

func (p *Pipeline) selectPending(ctx context.Context, spec graph.NodeSpec, property, embeddingProp string) ([]pair, error) {
	query := fmt.Sprintf(`MATCH (n:%s)
WHERE n.%s IS NOT NULL AND n.%s IS NULL
RETURN n.%s AS id, n.%s AS text`,
		spec.Label, property, embeddingProp, spec.KeyProp, property)

	rows, err := p.Store.RunRead(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s nodes: %w", spec.Label, err)
	}
	pairs := make([]pair, 0, len(rows))
	for _, row := range rows {
		id, _ := row["id"].(string)
		text, _ := row["text"].(string)
		if id == "" {
			continue
		}
		pairs = append(pairs, pair{id: id, text: text})
	}
	return pairs, nil
}

func toFloat64s(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
