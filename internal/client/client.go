// Package client is a rate-limited HTTP client for the wv REST service.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/matsen/wordvec/internal/api"
	"github.com/matsen/wordvec/internal/embedding"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 10 * time.Second

	// RateLimit is the default client-side request rate per second.
	RateLimit = 20.0
)

// Client talks to a running 'wv serve'.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit overrides the client-side request rate.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get issues a GET for path and decodes a 200 body into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body api.ErrorOut
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return &APIError{StatusCode: resp.StatusCode, Detail: body.Detail}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Lookup fetches the vector for word. ok is false when the word is not in
// the vocabulary.
func (c *Client) Lookup(ctx context.Context, word string) (embedding.Embedding, bool, error) {
	var out api.EmbeddingOut
	if err := c.get(ctx, "/embedding/"+url.PathEscape(word), &out); err != nil {
		return embedding.Embedding{}, false, err
	}
	if !out.Found {
		return embedding.Embedding{}, false, nil
	}
	return embedding.Embedding{Word: out.Word, Vector: out.Embedding}, true, nil
}

// NearestNeighbors fetches the topN nearest neighbors of word.
func (c *Client) NearestNeighbors(ctx context.Context, word string, topN int) ([]embedding.Neighbor, error) {
	var out []api.NeighborOut
	path := "/nearest-neighbors/" + url.PathEscape(word) + "?top_n=" + strconv.Itoa(topN)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	neighbors := make([]embedding.Neighbor, len(out))
	for i, n := range out {
		neighbors[i] = embedding.Neighbor{Word: n.Word, Similarity: n.Similarity}
	}
	return neighbors, nil
}

// Similarity fetches the cosine similarity of two words.
func (c *Client) Similarity(ctx context.Context, a, b string) (float64, bool, error) {
	var out api.SimilarityOut
	q := url.Values{"a": {a}, "b": {b}}
	if err := c.get(ctx, "/similarity?"+q.Encode(), &out); err != nil {
		return 0, false, err
	}
	return out.Similarity, out.Found, nil
}

// Health fetches the service status.
func (c *Client) Health(ctx context.Context) (*api.HealthOut, error) {
	var out api.HealthOut
	if err := c.get(ctx, "/healthz", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
