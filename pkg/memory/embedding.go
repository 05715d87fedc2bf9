package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// EmbeddingClient embeds text via an external model. Any 384-dim sentence
// encoder satisfies the Memory Adapter's contract.
type EmbeddingClient interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// HTTPEmbeddingClient calls an OpenAI-compatible /v1/embeddings endpoint
// and checks that the encoder's output width matches the collection
// dimensionality the Memory Adapter was configured with, so a
// misconfigured encoder is caught at the first upsert instead of
// poisoning a Qdrant collection with mismatched vectors.
type HTTPEmbeddingClient struct {
	endpoint   string
	model      string
	dims       int
	httpClient *http.Client
}

// NewHTTPEmbeddingClient creates a client for the encoder at url. dims is
// the expected vector width; 0 disables the width check.
func NewHTTPEmbeddingClient(url, model string, dims int) *HTTPEmbeddingClient {
	endpoint := strings.TrimRight(url, "/")
	if !strings.HasSuffix(endpoint, "/v1/embeddings") {
		endpoint += "/v1/embeddings"
	}
	return &HTTPEmbeddingClient{
		endpoint:   endpoint,
		model:      model,
		dims:       dims,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed encodes texts and returns their vectors in input order. The
// endpoint may return data entries out of order; they are reassembled by
// index.
func (c *HTTPEmbeddingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(embeddingRequest{Input: texts, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("encoding embeddings payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling embeddings endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embeddings endpoint returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var decoded embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding embeddings response: %w", err)
	}
	if len(decoded.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings endpoint returned %d vectors for %d inputs", len(decoded.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range decoded.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embeddings response index %d out of range [0, %d)", d.Index, len(texts))
		}
		if c.dims > 0 && len(d.Embedding) != c.dims {
			return nil, fmt.Errorf("encoder produced a %d-dim vector, collection expects %d", len(d.Embedding), c.dims)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
