// Package jina provides a client for the Jina AI reader (page crawling)
// and embeddings APIs.
package jina

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the Jina AI operations used by the pipeline.
type Client interface {
	// Read fetches a URL via Jina AI Reader and returns its text content.
	Read(ctx context.Context, targetURL string) (*ReadResponse, error)
	// Embed returns one vector per input string.
	Embed(ctx context.Context, inputs []string) ([][]float64, error)
}

// ReadResponse is the parsed Jina Reader response.
type ReadResponse struct {
	Code int      `json:"code"`
	Data ReadData `json:"data"`
}

// ReadData holds the content from Jina.
type ReadData struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// embedRequest is the embeddings API payload.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the parsed embeddings API response.
type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Option configures the Jina client.
type Option func(*httpClient)

// WithReaderBaseURL sets a custom reader base URL (for testing).
func WithReaderBaseURL(url string) Option {
	return func(c *httpClient) {
		c.readerBaseURL = url
	}
}

// WithEmbedBaseURL sets a custom embeddings base URL (for testing).
func WithEmbedBaseURL(url string) Option {
	return func(c *httpClient) {
		c.embedBaseURL = url
	}
}

// WithEmbedModel sets the embeddings model.
func WithEmbedModel(model string) Option {
	return func(c *httpClient) {
		c.embedModel = model
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRequestsPerSec caps the outgoing request rate. Zero disables
// pacing.
func WithRequestsPerSec(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.pacer = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type httpClient struct {
	apiKey        string
	readerBaseURL string
	embedBaseURL  string
	embedModel    string
	http          *http.Client
	pacer         *rate.Limiter
}

// NewClient creates a new Jina AI client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:        apiKey,
		readerBaseURL: "https://r.jina.ai",
		embedBaseURL:  "https://api.jina.ai/v1/embeddings",
		embedModel:    "jina-embeddings-v3",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Read(ctx context.Context, targetURL string) (*ReadResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/%s", c.readerBaseURL, targetURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Return-Format", "markdown")

	body, statusCode, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("jina: unexpected status %d: %s", statusCode, string(body))
	}

	var result ReadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal read response")
	}
	return &result, nil
}

func (c *httpClient) Embed(ctx context.Context, inputs []string) ([][]float64, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(embedRequest{Model: c.embedModel, Input: inputs})
	if err != nil {
		return nil, eris.Wrap(err, "jina: marshal embed request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.embedBaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "jina: create embed request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	body, statusCode, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("jina: unexpected embed status %d: %s", statusCode, string(body))
	}

	var result embedResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal embed response")
	}
	if len(result.Data) != len(inputs) {
		return nil, eris.Errorf("jina: expected %d embeddings, got %d", len(inputs), len(result.Data))
	}

	vectors := make([][]float64, len(inputs))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, eris.Errorf("jina: embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// wait applies client-side pacing when configured.
func (c *httpClient) wait(ctx context.Context) error {
	if c.pacer == nil {
		return nil
	}
	return eris.Wrap(c.pacer.Wait(ctx), "jina: pacing wait")
}

func (c *httpClient) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "jina: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "jina: read response body")
	}
	return body, resp.StatusCode, nil
}
