// Package httpapi es el cliente HTTP JSON compartido por los adapters externos:
// rate limiting con x/time/rate y retries con backoff exponencial.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultRetries  = 3
	defaultBaseWait = 500 * time.Millisecond
)

// ErrNotFound se devuelve ante un 404. No se reintenta.
var ErrNotFound = errors.New("not found")

// Options configura un Client. Los ceros toman los defaults.
type Options struct {
	RatePerSec float64
	Burst      int
	Timeout    time.Duration
	MaxRetries int
	BaseWait   time.Duration // espera del primer retry; se duplica en cada intento
	UserAgent  string
}

// Client es un HTTP client JSON para una base URL.
type Client struct {
	http     *http.Client
	base     string
	limiter  *rate.Limiter
	retries  int
	baseWait time.Duration
	agent    string
}

// New crea un Client para base con las opciones dadas.
func New(base string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultRetries
	}
	if opts.BaseWait <= 0 {
		opts.BaseWait = defaultBaseWait
	}
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Client{
		http:     &http.Client{Timeout: opts.Timeout},
		base:     strings.TrimRight(base, "/"),
		limiter:  rate.NewLimiter(limit, opts.Burst),
		retries:  opts.MaxRetries,
		baseWait: opts.BaseWait,
		agent:    opts.UserAgent,
	}
}

// Base devuelve la base URL.
func (c *Client) Base() string { return c.base }

// CloseIdle cierra las conexiones keep-alive. Lo usan los Restart de los adapters.
func (c *Client) CloseIdle() {
	c.http.CloseIdleConnections()
}

// GetJSON hace un GET a base+path con query y decodifica la respuesta en out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		c.headers(req)
		return c.http.Do(req)
	}, out)
}

// PostJSON hace un POST JSON a base+path. out puede ser nil.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		c.headers(req)
		return c.http.Do(req)
	}, out)
}

func (c *Client) headers(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.agent != "" {
		req.Header.Set("User-Agent", c.agent)
	}
}

// doWithRetry ejecuta la función con backoff exponencial.
// 429 y 5xx se reintentan; 404 devuelve ErrNotFound; otros 4xx fallan directo.
func (c *Client) doWithRetry(ctx context.Context, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= c.retries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == c.retries || ctx.Err() != nil {
				return fmt.Errorf("request failed after %d retries: %w", attempt, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by API", "base", c.base, "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == c.retries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, c.retries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return ErrNotFound
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", c.retries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.baseWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
