package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/example/b2b-storefront/internal/domain/product"
)

var ErrBackend = errors.New("backend request failed")

// Envelope is the uniform response shape of every backend call.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

type tokenKey struct{}

// WithToken attaches a bearer token that the client forwards upstream.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token attached with WithToken.
func TokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}

// Client talks to the product REST backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type Option func(*Client)

// WithRateLimit caps outgoing requests per second. Zero disables the cap.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetProductos fetches products by an arbitrary field/value pair.
func (c *Client) GetProductos(ctx context.Context, field, value string) ([]product.Product, error) {
	return c.getList(ctx, "/productos/getProductos/"+url.PathEscape(field)+"/"+url.PathEscape(value))
}

// Search runs the cross-company free-text search.
func (c *Client) Search(ctx context.Context, term string) ([]product.Product, error) {
	return c.getList(ctx, "/productos/search/"+url.PathEscape(term))
}

func (c *Client) GetProductoByCodigo(ctx context.Context, code, empresaID string) (product.Product, error) {
	env, err := c.get(ctx, "/productos/getProductoByCodigo/"+url.PathEscape(code)+"/"+url.PathEscape(empresaID))
	if err != nil {
		return product.Product{}, err
	}

	var record map[string]any
	if err := decodeData(env.Data, &record); err != nil {
		return product.Product{}, err
	}
	if record == nil {
		return product.Product{}, product.ErrProductNotFound
	}
	p, ok := product.FromRecord(record)
	if !ok {
		return product.Product{}, product.ErrProductNotFound
	}
	return p, nil
}

func (c *Client) getList(ctx context.Context, path string) ([]product.Product, error) {
	env, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var records []map[string]any
	if err := decodeData(env.Data, &records); err != nil {
		return nil, err
	}
	return product.FromRecords(records), nil
}

func (c *Client) get(ctx context.Context, path string) (*Envelope, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackend, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if tok := TokenFrom(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrBackend, err)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: status %d: invalid envelope", ErrBackend, resp.StatusCode)
	}
	if !env.Success || resp.StatusCode >= http.StatusBadRequest {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s", ErrBackend, msg)
	}
	return &env, nil
}

// decodeData keeps numbers as json.Number so numeric ids keep their exact
// digits on the way into mapstructure.
func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: unexpected data shape: %v", ErrBackend, err)
	}
	return nil
}
