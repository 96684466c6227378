package loader

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mspro-labs/book-buddy/internal/graph"
	"mspro-labs/book-buddy/internal/logging"
)

type recordedWrite struct {
	query string
	batch []map[string]any
}

// fakeWriter captures every batch write. mergedPerBatch, when set, is the
// value the relationship query's RETURN count(r) reports per flush.
type fakeWriter struct {
	writes         []recordedWrite
	mergedPerBatch []int
}

func (f *fakeWriter) RunWrite(ctx context.Context, query string, params map[string]any) (graph.WriteSummary, error) {
	batch, _ := params["batch"].([]map[string]any)
	f.writes = append(f.writes, recordedWrite{query: query, batch: batch})
	return graph.WriteSummary{NodesCreated: len(batch)}, nil
}

func (f *fakeWriter) RunWriteRecords(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	batch, _ := params["batch"].([]map[string]any)
	f.writes = append(f.writes, recordedWrite{query: query, batch: batch})
	merged := len(batch)
	if len(f.mergedPerBatch) > 0 {
		merged = f.mergedPerBatch[0]
		f.mergedPerBatch = f.mergedPerBatch[1:]
	}
	return []map[string]any{{"merged": int64(merged)}}, nil
}

func sliceNext[R any](rows []R) func() (R, error) {
	i := 0
	return func() (R, error) {
		if i >= len(rows) {
			var zero R
			return zero, io.EOF
		}
		row := rows[i]
		i++
		return row, nil
	}
}

func testOpts(w *fakeWriter, batchSize int) Options {
	return Options{Store: w, BatchSize: batchSize, Log: logging.Nop()}
}

type titleRow struct{ title string }

func titleExtractor(r titleRow) []map[string]any {
	if r.title == "" {
		return nil
	}
	return []map[string]any{{"title": r.title}}
}

func TestLoadNodesFlushesEveryBatch(t *testing.T) {
	var rows []titleRow
	for i := 0; i < 25; i++ {
		rows = append(rows, titleRow{title: fmt.Sprintf("Book %02d", i)})
	}
	w := &fakeWriter{}

	total, err := LoadNodes(context.Background(), sliceNext(rows), titleExtractor, graph.BookSpec, testOpts(w, 10))
	require.NoError(t, err)
	assert.Equal(t, 25, total)

	// 25 rows at batch size 10: two full flushes plus the final partial.
	require.Len(t, w.writes, 3)
	assert.Len(t, w.writes[0].batch, 10)
	assert.Len(t, w.writes[1].batch, 10)
	assert.Len(t, w.writes[2].batch, 5)
	for _, wr := range w.writes {
		assert.LessOrEqual(t, len(wr.batch), 10)
	}
}

func TestLoadNodesDedupesWithinFlush(t *testing.T) {
	rows := []titleRow{{"Dune"}, {"Emma"}, {"Dune"}, {"Dune"}}
	w := &fakeWriter{}

	total, err := LoadNodes(context.Background(), sliceNext(rows), titleExtractor, graph.BookSpec, testOpts(w, 100))
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, w.writes, 1)
	assert.Len(t, w.writes[0].batch, 2)
}

func TestLoadNodesSkipsKeylessValues(t *testing.T) {
	rows := []titleRow{{""}, {"Dune"}, {""}}
	w := &fakeWriter{}

	total, err := LoadNodes(context.Background(), sliceNext(rows), titleExtractor, graph.BookSpec, testOpts(w, 100))
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestLoadNodesEmptyInput(t *testing.T) {
	w := &fakeWriter{}
	total, err := LoadNodes(context.Background(), sliceNext[titleRow](nil), titleExtractor, graph.BookSpec, testOpts(w, 100))
	require.NoError(t, err)
	assert.Zero(t, total)
	// No non-empty batch means no write reaches the store.
	assert.Empty(t, w.writes)
}

func TestLoadNodesMergeQueryShape(t *testing.T) {
	rows := []titleRow{{"Dune"}}
	w := &fakeWriter{}

	_, err := LoadNodes(context.Background(), sliceNext(rows), titleExtractor, graph.BookSpec, testOpts(w, 10))
	require.NoError(t, err)
	require.Len(t, w.writes, 1)
	assert.Contains(t, w.writes[0].query, "MERGE (n:Book {title: row.title})")
	assert.Contains(t, w.writes[0].query, "ON CREATE SET n += row")
}

func TestLoadNodesRejectsUnknownLabel(t *testing.T) {
	w := &fakeWriter{}
	_, err := LoadNodes(context.Background(), sliceNext[titleRow](nil), titleExtractor, graph.NodeSpec{Label: "Widget", KeyProp: "id"}, testOpts(w, 10))
	assert.Error(t, err)
}

type relRow struct{ from, to string }

func relExtractor(r relRow) []RelValue {
	if r.from == "" || r.to == "" {
		return nil
	}
	return []RelValue{{From: r.from, To: r.to}}
}

func TestLoadRelationshipsCountsSkipped(t *testing.T) {
	rows := []relRow{
		{"Dune", "Frank Herbert"},
		{"Ghost Book", "Nobody"}, // endpoints missing in the graph
		{"Emma", "Jane Austen"},
	}
	// The store reports only 2 of the 3 candidates merged.
	w := &fakeWriter{mergedPerBatch: []int{2}}

	merged, skipped, err := LoadRelationships(context.Background(), sliceNext(rows), relExtractor, graph.WrittenBySpec, testOpts(w, 100))
	require.NoError(t, err)
	assert.Equal(t, 2, merged)
	assert.Equal(t, 1, skipped)
}

func TestLoadRelationshipsDedupesEndpointPairs(t *testing.T) {
	rows := []relRow{
		{"Dune", "Frank Herbert"},
		{"Dune", "Frank Herbert"},
	}
	w := &fakeWriter{}

	merged, skipped, err := LoadRelationships(context.Background(), sliceNext(rows), relExtractor, graph.WrittenBySpec, testOpts(w, 100))
	require.NoError(t, err)
	assert.Equal(t, 1, merged)
	assert.Zero(t, skipped)
	require.Len(t, w.writes, 1)
	assert.Len(t, w.writes[0].batch, 1)
}

func TestLoadRelationshipsQueryShape(t *testing.T) {
	rows := []relRow{{"Dune", "Frank Herbert"}}
	w := &fakeWriter{}

	_, _, err := LoadRelationships(context.Background(), sliceNext(rows), relExtractor, graph.WrittenBySpec, testOpts(w, 10))
	require.NoError(t, err)
	require.Len(t, w.writes, 1)
	q := w.writes[0].query
	assert.Contains(t, q, "MATCH (a:Book {title: row.from})")
	assert.Contains(t, q, "MATCH (b:Author {name: row.to})")
	assert.Contains(t, q, "MERGE (a)-[r:WRITTEN_BY]->(b)")
	assert.Contains(t, q, "RETURN count(r) AS merged")
}

func TestLoadRelationshipsBatchBound(t *testing.T) {
	var rows []relRow
	for i := 0; i < 7; i++ {
		rows = append(rows, relRow{from: fmt.Sprintf("B%d", i), to: "A"})
	}
	w := &fakeWriter{}

	merged, _, err := LoadRelationships(context.Background(), sliceNext(rows), relExtractor, graph.WrittenBySpec, testOpts(w, 3))
	require.NoError(t, err)
	assert.Equal(t, 7, merged)
	require.Len(t, w.writes, 3)
	for _, wr := range w.writes {
		assert.LessOrEqual(t, len(wr.batch), 3)
	}
}
