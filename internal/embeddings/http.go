package embeddings

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

// HTTPOptions configures an HTTPBackend.
type HTTPOptions struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration

	// QueryInstruction is prepended to query texts for instruction-tuned
	// embedding models.
	QueryInstruction string
}

// HTTPBackend calls an OpenAI-compatible embeddings endpoint.
type HTTPBackend struct {
	opts       HTTPOptions
	httpClient *http.Client
}

// NewHTTPBackend creates an HTTPBackend.
func NewHTTPBackend(opts HTTPOptions) *HTTPBackend {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &HTTPBackend{opts: opts, httpClient: &http.Client{Timeout: opts.Timeout}}
}

func (b *HTTPBackend) Name() string {
	return "http-" + b.opts.Model
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (b *HTTPBackend) Embed(ctx context.Context, texts []string, isQuery bool) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	clean := make([]string, len(texts))
	for i, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			text = " "
		}
		if isQuery {
			text = b.opts.QueryInstruction + text
		}
		clean[i] = text
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(embeddingsRequest{Model: b.opts.Model, Input: clean}); err != nil {
		return nil, fmt.Errorf("encoding embeddings request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.opts.URL, &buf)
	if err != nil {
		return nil, fmt.Errorf("building embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.opts.APIKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending embeddings request: %w", err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("reading embeddings response: %w", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embeddings http %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed embeddingsResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decoding embeddings response: %w", err)
	}

	out := make([][]float32, len(clean))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}
	for i := range out {
		if len(out[i]) == 0 {
			return nil, fmt.Errorf("embeddings response missing index %d (requested=%d returned=%d)", i, len(clean), len(parsed.Data))
		}
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
