// Package llm is the gateway to the text-generation service.
//
// A call either returns the model's text or an error; the error is the
// failure signal and callers decide their own fallback. There are no
// retries. A circuit breaker stops calling an upstream that keeps failing
// until a cooldown has passed.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Benny93/conceptmap-go/internal/logger"
	"github.com/Benny93/conceptmap-go/internal/metrics"
)

var (
	// ErrNotConfigured is returned when no API key is available.
	ErrNotConfigured = errors.New("llm: api key not configured")

	// ErrEmptyResponse is returned when the response carries no text.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return f(ctx, prompt, maxTokens)
}

// StatusError is a non-2xx response from the upstream.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("llm: http %d: %s", e.StatusCode, body)
}

// Options configures a Client.
type Options struct {
	URL     string
	APIKey  string
	Model   string
	Version string
	Timeout time.Duration

	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Client calls a messages-style completion endpoint.
type Client struct {
	opts       Options
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	log        *logger.Logger
	metrics    *metrics.Collector
}

// New creates a Client. log and m may be nil.
func New(opts Options, log *logger.Logger, m *metrics.Collector) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "llm")

	c := &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
		log:        log,
		metrics:    m,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// caller cancellation says nothing about upstream health
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return c
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Generate sends a single user message and returns the first content block's text.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	start := time.Now()
	if c.opts.APIKey == "" {
		c.metrics.RecordLLM("unconfigured", 0)
		return "", ErrNotConfigured
	}

	out, err := c.breaker.Execute(func() (any, error) {
		return c.doOnce(ctx, prompt, maxTokens)
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "short_circuit"
		}
		c.metrics.RecordLLM(outcome, time.Since(start))
		c.log.Warn("generation failed", "error", err, "max_tokens", maxTokens, "elapsed", time.Since(start))
		return "", fmt.Errorf("generating text: %w", err)
	}

	c.metrics.RecordLLM("ok", time.Since(start))
	c.log.Debug("generation succeeded", "max_tokens", maxTokens, "elapsed", time.Since(start))
	return out.(string), nil
}

func (c *Client) doOnce(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(messagesRequest{
		Model:     c.opts.Model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	}); err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, &buf)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("x-api-key", c.opts.APIKey)
	req.Header.Set("anthropic-version", c.opts.Version)
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return "", fmt.Errorf("reading response: %w", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed messagesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Content) == 0 || strings.TrimSpace(parsed.Content[0].Text) == "" {
		return "", ErrEmptyResponse
	}
	return parsed.Content[0].Text, nil
}
