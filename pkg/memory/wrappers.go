package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/neuroforge-dev/kernel/pkg/task"
)

// toolCodePrefix and fixCodePrefix are per-namespace truncation lengths
// applied before embedding, no looser than the blanket 8 KiB ceiling
// maxEmbedBytes enforces.
const (
	toolCodePrefix = 8192
	fixCodePrefix  = 2048
)

// AddTool persists a successful code sample under the tools namespace.
func (c *Client) AddTool(ctx context.Context, name string, language task.Language, code string, metadata Metadata) (string, error) {
	if metadata == nil {
		metadata = Metadata{}
	}
	metadata["language"] = string(language)
	metadata["name"] = name
	metadata["created_at"] = nowRFC3339()

	text := name + "\n" + truncate(code, toolCodePrefix)
	return c.Upsert(ctx, Tools, text, metadata)
}

// RetrieveTools queries the tools namespace and re-ranks the result using
// rank = score + 0.2*success_count + 0.05*(created_at is set), returning
// the top topK.
func (c *Client) RetrieveTools(ctx context.Context, query string, topK int) ([]Record, error) {
	// Over-fetch so the local re-rank has enough candidates to reorder.
	matches, err := c.Query(ctx, Tools, query, topK*2)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return toolRank(matches[i]) > toolRank(matches[j])
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func toolRank(r Record) float64 {
	successCount := floatValue(r.Metadata, "success_count", 1)
	recentBonus := 0.0
	if stringValue(r.Metadata, "created_at") != "" {
		recentBonus = 0.05
	}
	return float64(r.Score) + 0.2*successCount + recentBonus
}

// AddError persists a confirmed failure under the errors namespace.
func (c *Client) AddError(ctx context.Context, errorText, stderr, codeContext string) (string, error) {
	metadata := Metadata{
		"stderr":     stderr,
		"context":    codeContext,
		"created_at": nowRFC3339(),
	}
	text := errorText + "\n" + codeContext
	return c.Upsert(ctx, Errors, text, metadata)
}

// RetrieveSimilarErrors queries the errors namespace for prior failures
// matching query.
func (c *Client) RetrieveSimilarErrors(ctx context.Context, query string, topK int) ([]Record, error) {
	return c.Query(ctx, Errors, query, topK)
}

// AddFix persists a signature-to-repaired-code mapping under the fixes
// namespace.
func (c *Client) AddFix(ctx context.Context, signature string, language task.Language, fixedCode string, metadata Metadata) (string, error) {
	if metadata == nil {
		metadata = Metadata{}
	}
	metadata["language"] = string(language)
	metadata["created_at"] = nowRFC3339()
	metadata["error_signature"] = signature

	text := fmt.Sprintf("%s\n%s", signature, truncate(fixedCode, fixCodePrefix))
	return c.Upsert(ctx, Fixes, text, metadata)
}

// RetrieveFixes queries the fixes namespace by a signature or raw error
// text.
func (c *Client) RetrieveFixes(ctx context.Context, signatureOrText string, topK int) ([]Record, error) {
	return c.Query(ctx, Fixes, signatureOrText, topK)
}

// AddDoc persists a reference document under the docs namespace.
func (c *Client) AddDoc(ctx context.Context, title, content string) (string, error) {
	metadata := Metadata{"title": title, "created_at": nowRFC3339()}
	text := title + "\n" + truncate(content, toolCodePrefix)
	return c.Upsert(ctx, Docs, text, metadata)
}

// RetrieveDocs queries the docs namespace.
func (c *Client) RetrieveDocs(ctx context.Context, query string, topK int) ([]Record, error) {
	return c.Query(ctx, Docs, query, topK)
}

// AddPattern persists a named reusable pattern under the patterns
// namespace.
func (c *Client) AddPattern(ctx context.Context, name, content string) (string, error) {
	metadata := Metadata{"name": name, "created_at": nowRFC3339()}
	return c.Upsert(ctx, Patterns, truncate(content, toolCodePrefix), metadata)
}

// RetrievePatterns queries the patterns namespace.
func (c *Client) RetrievePatterns(ctx context.Context, query string, topK int) ([]Record, error) {
	return c.Query(ctx, Patterns, query, topK)
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
