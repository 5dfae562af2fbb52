// Package sidecar habla con el servicio de scraping e inferencia que corre junto al bot
// (browser headless y modelos de sentimiento). Implementa los puertos del collector.
package sidecar

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/sentibot/internal/adapters/httpapi"
	"github.com/alejandrodnm/sentibot/internal/domain"
)

// ErrUnclassified: el modelo devolvió una etiqueta que no se sabe mapear.
var ErrUnclassified = errors.New("sentiment label not recognized")

// Client es el cliente del sidecar.
type Client struct {
	api *httpapi.Client
}

// NewClient crea el cliente para base.
func NewClient(base string, opts httpapi.Options) *Client {
	if opts.Timeout == 0 {
		// el scraping con browser es lento
		opts.Timeout = 60 * time.Second
	}
	return &Client{api: httpapi.New(base, opts)}
}

type headlineDTO struct {
	Published time.Time `json:"published"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	URL       string    `json:"url"`
}

// Headlines implementa ports.NewsSource.
func (c *Client) Headlines(ctx context.Context, ticker string) ([]domain.Headline, error) {
	var resp struct {
		Headlines []headlineDTO `json:"headlines"`
	}
	q := url.Values{"ticker": {domain.NormalizeTicker(ticker)}}
	if err := c.api.GetJSON(ctx, "/v1/news", q, &resp); err != nil {
		return nil, fmt.Errorf("sidecar.Headlines %s: %w", ticker, err)
	}
	out := make([]domain.Headline, 0, len(resp.Headlines))
	for _, h := range resp.Headlines {
		if strings.TrimSpace(h.Title) == "" {
			continue
		}
		out = append(out, domain.Headline{Published: h.Published, Title: h.Title, Source: h.Source, URL: h.URL})
	}
	return out, nil
}

// Search implementa ports.SocialSource.
func (c *Client) Search(ctx context.Context, query string, max int) ([]string, error) {
	var resp struct {
		Posts []string `json:"posts"`
	}
	q := url.Values{"q": {query}, "max": {strconv.Itoa(max)}}
	if err := c.api.GetJSON(ctx, "/v1/social/search", q, &resp); err != nil {
		return nil, fmt.Errorf("sidecar.Search %q: %w", query, err)
	}
	if max > 0 && len(resp.Posts) > max {
		resp.Posts = resp.Posts[:max]
	}
	return resp.Posts, nil
}

// Score implementa ports.SentimentScorer. Los modelos devuelven
// positive/negative/neutral (news) o bullish/bearish/neutral (social) con una
// confianza; se mapea a +conf, −conf o 0.
func (c *Client) Score(ctx context.Context, text string, kind domain.SourceKind) (float64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("sidecar.Score: empty text: %w", ErrUnclassified)
	}
	var resp struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}
	body := map[string]string{"text": text, "model": string(kind)}
	if err := c.api.PostJSON(ctx, "/v1/sentiment", body, &resp); err != nil {
		return 0, fmt.Errorf("sidecar.Score: %w", err)
	}
	return labelScore(resp.Label, resp.Score)
}

func labelScore(label string, confidence float64) (float64, error) {
	if confidence < 0 || confidence > 1 {
		return 0, fmt.Errorf("sidecar.Score: confidence %v out of [0,1]: %w", confidence, ErrUnclassified)
	}
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "positive"), strings.Contains(l, "bullish"):
		return confidence, nil
	case strings.Contains(l, "negative"), strings.Contains(l, "bearish"):
		return -confidence, nil
	case strings.Contains(l, "neutral"):
		return 0, nil
	}
	return 0, fmt.Errorf("sidecar.Score: label %q: %w", label, ErrUnclassified)
}

// Candidates implementa ports.WatchList: market movers filtrados por el scanner.
func (c *Client) Candidates(ctx context.Context) ([]string, error) {
	var resp struct {
		Tickers []string `json:"tickers"`
	}
	if err := c.api.GetJSON(ctx, "/v1/movers", nil, &resp); err != nil {
		return nil, fmt.Errorf("sidecar.Candidates: %w", err)
	}
	return resp.Tickers, nil
}

// Restart pide al sidecar que recicle el browser y suelta las conexiones ociosas.
func (c *Client) Restart(ctx context.Context) error {
	c.api.CloseIdle()
	if err := c.api.PostJSON(ctx, "/v1/restart", struct{}{}, nil); err != nil {
		return fmt.Errorf("sidecar.Restart: %w", err)
	}
	return nil
}
