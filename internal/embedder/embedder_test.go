package embedder

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mspro-labs/book-buddy/internal/ai"
	"mspro-labs/book-buddy/internal/graph"
	"mspro-labs/book-buddy/internal/logging"
)

type indexCall struct {
	name       string
	label      string
	property   string
	dimensions int
}

// fakeStore serves a fixed pending selection and records writes and index
// creations.
type fakeStore struct {
	pending    []map[string]any
	writes     [][]map[string]any
	indexCalls []indexCall
}

func (f *fakeStore) RunRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return f.pending, nil
}

func (f *fakeStore) RunWrite(ctx context.Context, query string, params map[string]any) (graph.WriteSummary, error) {
	batch, _ := params["batch"].([]map[string]any)
	f.writes = append(f.writes, batch)
	return graph.WriteSummary{PropertiesSet: len(batch)}, nil
}

func (f *fakeStore) CreateVectorIndex(ctx context.Context, name, label, property string, dimensions int) error {
	f.indexCalls = append(f.indexCalls, indexCall{name, label, property, dimensions})
	return nil
}

// fakeEmbedder returns a fixed-dimension vector per text and counts calls.
type fakeEmbedder struct {
	dims    int
	calls   int
	batches []int
	fail    bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.batches = append(f.batches, len(texts))
	if f.fail {
		return nil, fmt.Errorf("model unavailable")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, f.dims)
		vec[0] = float32(i + 1)
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake-embedding-001" }

func pendingRows(n int) []map[string]any {
	rows := make([]map[string]any, n)
	for i := range rows {
		rows[i] = map[string]any{
			"id":   fmt.Sprintf("Book %03d", i),
			"text": fmt.Sprintf("description %d", i),
		}
	}
	return rows
}

func newPipeline(store *fakeStore, emb ai.Embedder, writeBatch, embedBatch int) *Pipeline {
	return &Pipeline{
		Store:          store,
		Embedder:       emb,
		WriteBatchSize: writeBatch,
		EmbedBatchSize: embedBatch,
		Log:            logging.Nop(),
	}
}

func TestBackfillNothingPending(t *testing.T) {
	store := &fakeStore{}
	emb := &fakeEmbedder{dims: 4}
	p := newPipeline(store, emb, 10, 5)

	err := p.Backfill(context.Background(), Target{Label: "Book", Property: "description"})
	require.NoError(t, err)

	// No nodes pending: the model is never called and no index is created.
	assert.Zero(t, emb.calls)
	assert.Empty(t, store.writes)
	assert.Empty(t, store.indexCalls)
}

func TestBackfillEmbedsWritesAndIndexes(t *testing.T) {
	store := &fakeStore{pending: pendingRows(12)}
	emb := &fakeEmbedder{dims: 8}
	p := newPipeline(store, emb, 10, 5)

	err := p.Backfill(context.Background(), Target{Label: "Book", Property: "description"})
	require.NoError(t, err)

	// 12 texts at embed batch 5: calls of 5, 5, 2.
	assert.Equal(t, []int{5, 5, 2}, emb.batches)

	written := 0
	for _, batch := range store.writes {
		assert.LessOrEqual(t, len(batch), 10)
		written += len(batch)
	}
	assert.Equal(t, 12, written)

	require.Len(t, store.indexCalls, 1)
	idx := store.indexCalls[0]
	assert.Equal(t, "book_description_embedding_idx", idx.name)
	assert.Equal(t, "Book", idx.label)
	assert.Equal(t, "description_embedding", idx.property)
	assert.Equal(t, 8, idx.dimensions)
}

func TestBackfillSpillsBeforeCompletion(t *testing.T) {
	store := &fakeStore{pending: pendingRows(30)}
	emb := &fakeEmbedder{dims: 4}
	p := newPipeline(store, emb, 5, 10)
	p.SpillFactor = 2

	err := p.Backfill(context.Background(), Target{Label: "Book", Property: "description"})
	require.NoError(t, err)

	// Spill threshold is 2*5=10 accumulated vectors, so writes happen
	// during the embed loop rather than one giant flush at the end.
	require.Greater(t, len(store.writes), 2)
	for _, batch := range store.writes {
		assert.LessOrEqual(t, len(batch), 5)
	}
}

func TestBackfillEmbeddingFailureKeepsFlushedBatches(t *testing.T) {
	store := &fakeStore{pending: pendingRows(10)}
	emb := &fakeEmbedder{dims: 4, fail: true}
	p := newPipeline(store, emb, 10, 5)

	err := p.Backfill(context.Background(), Target{Label: "Book", Property: "description"})
	require.Error(t, err)
	assert.Empty(t, store.indexCalls)
}

func TestBackfillRejectsUnknownTarget(t *testing.T) {
	p := newPipeline(&fakeStore{}, &fakeEmbedder{dims: 4}, 10, 5)
	err := p.Backfill(context.Background(), Target{Label: "Widget", Property: "description"})
	assert.Error(t, err)
}

func TestBackfillRejectsInconsistentDimensions(t *testing.T) {
	store := &fakeStore{pending: pendingRows(4)}
	emb := &varyingEmbedder{}
	p := newPipeline(store, emb, 10, 2)

	err := p.Backfill(context.Background(), Target{Label: "Book", Property: "description"})
	assert.ErrorContains(t, err, "dimensionality")
}

// varyingEmbedder returns a different dimensionality on each call.
type varyingEmbedder struct{ calls int }

func (v *varyingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	v.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, 2+v.calls)
	}
	return out, nil
}

func (v *varyingEmbedder) ModelName() string { return "varying" }

func TestTargetIndexName(t *testing.T) {
	assert.Equal(t, "book_description_embedding_idx", Target{Label: "Book", Property: "description"}.IndexName())
	assert.Equal(t, "my_idx", Target{Label: "Book", Property: "description", Index: "my_idx"}.IndexName())
}
