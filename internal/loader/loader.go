// Package loader bulk-loads dataset rows into the graph as merge-keyed
// nodes and relationships. Every write is an idempotent UNWIND+MERGE over at
// most one batch of values, which is what makes re-running the whole load a
// safe recovery strategy after any failure.
package loader

import (
	"context"
	"fmt"
	"io"

	"mspro-labs/book-buddy/internal/graph"
	"mspro-labs/book-buddy/internal/logging"
)

// Writer is the slice of the graph store the loader needs.
type Writer interface {
	RunWrite(ctx context.Context, query string, params map[string]any) (graph.WriteSummary, error)
	RunWriteRecords(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// Options bound a single load pass.
type Options struct {
	Store Writer
	// BatchSize is a hard upper bound on values touched per write
	// transaction, including the final partial batch.
	BatchSize int
	Log       *logging.Logger
}

// NodeExtractor maps one dataset row to zero or more candidate node property
// maps. Each map must contain the spec's natural key; a row may contribute
// several values (a book with three authors) or none (malformed field).
type NodeExtractor[R any] func(row R) []map[string]any

// RelValue is one candidate relationship: endpoint natural keys plus
// optional relationship properties.
type RelValue struct {
	From  string
	To    string
	Props map[string]any
}

// RelExtractor maps one dataset row to zero or more candidate relationships.
type RelExtractor[R any] func(row R) []RelValue

// LoadNodes streams rows from next (which ends with io.EOF), accumulates the
// extracted values, and flushes one MERGE write per BatchSize rows. Values
// are deduplicated by natural key within each flush. Returns the number of
// unique values written.
func LoadNodes[R any](ctx context.Context, next func() (R, error), extract NodeExtractor[R], spec graph.NodeSpec, opts Options) (int, error) {
	if _, err := graph.NodeSpecFor(spec.Label); err != nil {
		return 0, err
	}
	if opts.BatchSize <= 0 {
		return 0, fmt.Errorf("batch size must be positive")
	}
	log := opts.Log.With("label", spec.Label)

	query := fmt.Sprintf(`UNWIND $batch AS row
MERGE (n:%s {%s: row.%s})
ON CREATE SET n += row`, spec.Label, spec.KeyProp, spec.KeyProp)

	total := 0
	rowCount := 0
	batchStart := 1
	var pending []map[string]any

	flush := func() error {
		batch := dedupeByKey(pending, spec.KeyProp)
		pending = pending[:0]
		if len(batch) > 0 {
			if _, err := opts.Store.RunWrite(ctx, query, map[string]any{"batch": batch}); err != nil {
				return fmt.Errorf("node batch for %s (rows %d-%d) failed: %w", spec.Label, batchStart, rowCount, err)
			}
			total += len(batch)
		}
		log.Info("node batch merged", "rows", fmt.Sprintf("%d-%d", batchStart, rowCount), "unique", len(batch))
		batchStart = rowCount + 1
		return nil
	}

	for {
		row, err := next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, fmt.Errorf("failed to read row %d: %w", rowCount+1, err)
		}
		rowCount++
		pending = append(pending, extract(row)...)
		if rowCount%opts.BatchSize == 0 {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if rowCount%opts.BatchSize != 0 || rowCount == 0 {
		if err := flush(); err != nil {
			return total, err
		}
	}

	log.Info("node load complete", "rows", rowCount, "merged", total)
	return total, nil
}

// LoadRelationships is the relationship counterpart of LoadNodes. It must
// run only after the node passes for both endpoint labels have completed.
// Candidates whose endpoints do not exist produce no edge; they are counted
// and logged as skipped rather than failing the batch.
func LoadRelationships[R any](ctx context.Context, next func() (R, error), extract RelExtractor[R], spec graph.RelSpec, opts Options) (merged, skipped int, err error) {
	if opts.BatchSize <= 0 {
		return 0, 0, fmt.Errorf("batch size must be positive")
	}
	log := opts.Log.With("rel", spec.Type)

	query := fmt.Sprintf(`UNWIND $batch AS row
MATCH (a:%s {%s: row.from})
MATCH (b:%s {%s: row.to})
MERGE (a)-[r:%s]->(b)
SET r += row.props
RETURN count(r) AS merged`,
		spec.FromLabel, spec.FromKey, spec.ToLabel, spec.ToKey, spec.Type)

	rowCount := 0
	batchStart := 1
	var pending []RelValue

	flush := func() error {
		batch := dedupeRels(pending)
		pending = pending[:0]
		if len(batch) > 0 {
			payload := make([]map[string]any, len(batch))
			for i, rel := range batch {
				props := rel.Props
				if props == nil {
					props = map[string]any{}
				}
				payload[i] = map[string]any{"from": rel.From, "to": rel.To, "props": props}
			}
			rows, err := opts.Store.RunWriteRecords(ctx, query, map[string]any{"batch": payload})
			if err != nil {
				return fmt.Errorf("relationship batch for %s (rows %d-%d) failed: %w", spec.Type, batchStart, rowCount, err)
			}
			batchMerged := countFromRows(rows)
			merged += batchMerged
			skipped += len(batch) - batchMerged
			log.Info("relationship batch merged",
				"rows", fmt.Sprintf("%d-%d", batchStart, rowCount),
				"unique", len(batch), "merged", batchMerged, "skipped", len(batch)-batchMerged)
		} else {
			log.Info("relationship batch merged", "rows", fmt.Sprintf("%d-%d", batchStart, rowCount), "unique", 0)
		}
		batchStart = rowCount + 1
		return nil
	}

	for {
		row, err := next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return merged, skipped, fmt.Errorf("failed to read row %d: %w", rowCount+1, err)
		}
		rowCount++
		pending = append(pending, extract(row)...)
		if rowCount%opts.BatchSize == 0 {
			if err := flush(); err != nil {
				return merged, skipped, err
			}
		}
	}
	if rowCount%opts.BatchSize != 0 || rowCount == 0 {
		if err := flush(); err != nil {
			return merged, skipped, err
		}
	}

	log.Info("relationship load complete", "rows", rowCount, "merged", merged, "skipped", skipped)
	return merged, skipped, nil
}

func dedupeByKey(values []map[string]any, key string) []map[string]any {
	seen := make(map[any]struct{}, len(values))
	out := values[:0:0]
	for _, v := range values {
		k, ok := v[key]
		if !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

func dedupeRels(values []RelValue) []RelValue {
	type pair struct{ from, to string }
	seen := make(map[pair]struct{}, len(values))
	out := values[:0:0]
	for _, v := range values {
		p := pair{v.From, v.To}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, v)
	}
	return out
}

func countFromRows(rows []map[string]any) int {
	if len(rows) == 0 {
		return 0
	}
	switch v := rows[0]["merged"].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
