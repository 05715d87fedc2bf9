package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/neuroforge-dev/kernel/pkg/observability"
)

// maxEmbedBytes is the blanket ceiling on any text field before
// embedding. Individual typed wrappers apply tighter limits on top of
// this (fixes: 2048 bytes).
const maxEmbedBytes = 8192

// Record is one result from Query: an id, a similarity score, and the
// metadata stored alongside it.
type Record struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// Client is the uniform per-namespace Memory Adapter API.
// Typed wrappers in wrappers.go build on Upsert/Query.
type Client struct {
	backend   Backend
	embedding EmbeddingClient
	dims      int
}

// New creates a Client backed by backend and embedding. dims is the
// embedding model's vector width, used to size collections on first use.
func New(backend Backend, embedding EmbeddingClient, dims int) *Client {
	return &Client{backend: backend, embedding: embedding, dims: dims}
}

// Upsert embeds text and stores it under namespace with metadata,
// returning a fresh opaque id. metadata is cleaned of null and
// non-primitive values before being sent to the backend.
func (c *Client) Upsert(ctx context.Context, ns Namespace, text string, metadata Metadata) (string, error) {
	if err := c.backend.EnsureCollection(ctx, ns.collectionName(), c.dims); err != nil {
		return "", fmt.Errorf("ensuring collection %s: %w", ns, err)
	}

	vectors, err := c.embedding.Embed(ctx, []string{truncate(text, maxEmbedBytes)})
	if err != nil {
		return "", fmt.Errorf("embedding text for namespace %s: %w", ns, err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return "", fmt.Errorf("embedding returned no vector for namespace %s", ns)
	}

	id, err := newID(ns)
	if err != nil {
		return "", fmt.Errorf("generating id: %w", err)
	}

	if err := c.backend.Upsert(ctx, ns.collectionName(), id, vectors[0], metadata.clean()); err != nil {
		return "", fmt.Errorf("upserting into namespace %s: %w", ns, err)
	}
	observability.MemoryUpsertsTotal.WithLabelValues(string(ns)).Inc()
	return id, nil
}

// Query embeds text and returns the topK nearest records in namespace,
// ordered by decreasing similarity.
func (c *Client) Query(ctx context.Context, ns Namespace, text string, topK int) ([]Record, error) {
	timer := observability.MemoryQueryLatency.WithLabelValues(string(ns))
	start := time.Now()
	defer func() { timer.Observe(time.Since(start).Seconds()) }()

	vectors, err := c.embedding.Embed(ctx, []string{truncate(text, maxEmbedBytes)})
	if err != nil {
		return nil, fmt.Errorf("embedding query for namespace %s: %w", ns, err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embedding returned no vector for namespace %s query", ns)
	}

	matches, err := c.backend.Search(ctx, ns.collectionName(), vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("searching namespace %s: %w", ns, err)
	}
	observability.MemoryQueriesTotal.WithLabelValues(string(ns)).Inc()

	records := make([]Record, len(matches))
	for i, m := range matches {
		records[i] = Record{ID: m.ID, Score: m.Score, Metadata: m.Metadata}
	}
	return records, nil
}

func truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	return s[:maxBytes]
}
