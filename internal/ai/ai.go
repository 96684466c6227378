// Package ai wraps the Gemini embedding API.
package ai

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Embedder is the batched text -> vector operation the backfill pipeline and
// query layer consume. Implementations must return one vector per input, in
// input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// Client wraps the GenAI client. The model handle is created lazily on first
// use and can be swapped for a different named model; only one handle is held
// at a time.
type Client struct {
	genaiClient *genai.Client

	mu        sync.Mutex
	modelName string
	model     *genai.EmbeddingModel
}

// NewClient creates a connected AI client for the given embedding model.
func NewClient(ctx context.Context, apiKey, modelName string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("an API key is required")
	}
	if modelName == "" {
		modelName = "text-embedding-004"
	}

	c, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create AI client: %w", err)
	}

	return &Client{genaiClient: c, modelName: modelName}, nil
}

// Close terminates the connection.
func (c *Client) Close() {
	if c.genaiClient != nil {
		c.genaiClient.Close()
	}
}

// ModelName returns the name of the model Embed will use.
func (c *Client) ModelName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modelName
}

// UseModel switches to a different named embedding model. The previous handle
// is dropped before the new one is created.
func (c *Client) UseModel(name string) {
	if name == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if name == c.modelName {
		return
	}
	c.model = nil
	c.modelName = name
}

func (c *Client) embeddingModel() *genai.EmbeddingModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.model == nil {
		c.model = c.genaiClient.EmbeddingModel(c.modelName)
	}
	return c.model
}

// Embed generates one vector per input text in a single batched API call.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model := c.embeddingModel()
	batch := model.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	res, err := model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("embedding call failed: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("AI returned %d embeddings for %d inputs", len(res.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, e := range res.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("AI returned empty embedding at index %d", i)
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}

// --- Vector Math Helpers ---

// CosineSimilarity calculates the similarity between two vectors.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dotProduct, magA, magB float32
	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dotProduct / (float32(math.Sqrt(float64(magA))) * float32(math.Sqrt(float64(magB))))
}

// FloatsToBytes converts a []float32 slice to a []byte slice (BLOB) for SQLite.
func FloatsToBytes(floats []float32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, floats); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BytesToFloats converts the stored byte slice back to []float32.
func BytesToFloats(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid byte length for float32 slice")
	}
	floats := make([]float32, len(b)/4)
	err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &floats)
	return floats, err
}
