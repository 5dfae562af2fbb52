// Package quote implementa el oráculo de precios sobre el endpoint chart de Yahoo Finance.
package quote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/alejandrodnm/sentibot/internal/adapters/httpapi"
	"github.com/alejandrodnm/sentibot/internal/domain"
)

const (
	defaultBase = "https://query1.finance.yahoo.com"

	// Yahoo no documenta límites; 5 req/s evita los 429 en la práctica.
	ratePerSec = 5
	burst      = 5

	// Por debajo de esto el precio es un glitch de pre-market.
	minSanePrice = 0.01

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Client consulta precios actuales. Implementa ports.PriceOracle y ports.Restarter.
type Client struct {
	api *httpapi.Client
}

// NewClient crea el cliente. base vacío usa el endpoint de producción.
func NewClient(base string, opts httpapi.Options) *Client {
	if base == "" {
		base = defaultBase
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = ratePerSec
		opts.Burst = burst
	}
	if opts.UserAgent == "" {
		opts.UserAgent = userAgent
	}
	return &Client{api: httpapi.New(base, opts)}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// LastPrice devuelve el último precio de ticker. Usa regularMarketPrice y, si falta,
// el último cierre de 1 minuto no nulo. Un precio <= 0.01 o ausente es
// domain.ErrPriceUnavailable.
func (c *Client) LastPrice(ctx context.Context, ticker string) (float64, error) {
	sym := domain.NormalizeTicker(ticker)
	if sym == "" {
		return 0, fmt.Errorf("quote.LastPrice: empty ticker: %w", domain.ErrPriceUnavailable)
	}

	var resp chartResponse
	q := url.Values{"interval": {"1m"}, "range": {"1d"}}
	if err := c.api.GetJSON(ctx, "/v8/finance/chart/"+url.PathEscape(sym), q, &resp); err != nil {
		if errors.Is(err, httpapi.ErrNotFound) {
			return 0, fmt.Errorf("quote.LastPrice %s: unknown symbol: %w", sym, domain.ErrPriceUnavailable)
		}
		return 0, fmt.Errorf("quote.LastPrice %s: %w", sym, err)
	}
	if e := resp.Chart.Error; e != nil {
		return 0, fmt.Errorf("quote.LastPrice %s: %s: %w", sym, e.Description, domain.ErrPriceUnavailable)
	}
	if len(resp.Chart.Result) == 0 {
		return 0, fmt.Errorf("quote.LastPrice %s: empty result: %w", sym, domain.ErrPriceUnavailable)
	}

	r := resp.Chart.Result[0]
	price := r.Meta.RegularMarketPrice
	if price <= minSanePrice && len(r.Indicators.Quote) > 0 {
		closes := r.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if closes[i] != nil {
				price = *closes[i]
				break
			}
		}
	}
	if price <= minSanePrice {
		return 0, fmt.Errorf("quote.LastPrice %s: price %.4f: %w", sym, price, domain.ErrPriceUnavailable)
	}
	return price, nil
}

// Price implementa ports.PriceOracle: cualquier fallo es "sin precio este tick".
func (c *Client) Price(ctx context.Context, ticker string) (float64, bool) {
	price, err := c.LastPrice(ctx, ticker)
	if err != nil {
		slog.Debug("quote: price unavailable", "ticker", ticker, "err", err)
		return 0, false
	}
	return price, true
}

// Restart suelta las conexiones keep-alive acumuladas.
func (c *Client) Restart(_ context.Context) error {
	c.api.CloseIdle()
	slog.Debug("quote: idle connections closed")
	return nil
}
