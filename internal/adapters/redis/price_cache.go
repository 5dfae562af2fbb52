package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/alejandrodnm/sentibot/internal/domain"
	"github.com/alejandrodnm/sentibot/internal/ports"
	"github.com/redis/go-redis/v9"
)

// ErrMiss: no hay precio cacheado para el ticker.
var ErrMiss = errors.New("redis: price not cached")

const keyPrefix = "sentibot:price:"

// PriceCache guarda el último precio de cada ticker en un hash
// "sentibot:price:{TICKER}" con campos "price" y "ts" (Unix nanos).
// Las claves expiran solas tras ttl.
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache crea el cache sobre c.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	return &PriceCache{rdb: c.rdb, ttl: ttl}
}

func priceKey(ticker string) string {
	return keyPrefix + domain.NormalizeTicker(ticker)
}

// SetPrice guarda precio y timestamp.
func (pc *PriceCache) SetPrice(ctx context.Context, ticker string, price float64, ts time.Time) error {
	key := priceKey(ticker)
	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	})
	if pc.ttl > 0 {
		pipe.Expire(ctx, key, pc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s: %w", ticker, err)
	}
	return nil
}

// GetPrice lee precio y timestamp. Devuelve ErrMiss si no hay clave.
func (pc *PriceCache) GetPrice(ctx context.Context, ticker string) (float64, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(ticker)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", ticker, err)
	}
	priceStr, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, ErrMiss
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price %s: %w", ticker, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", ticker, err)
	}
	return price, time.Unix(0, tsNano), nil
}

// PriceStore es lo que necesita CachedOracle; PriceCache lo implementa.
type PriceStore interface {
	GetPrice(ctx context.Context, ticker string) (float64, time.Time, error)
	SetPrice(ctx context.Context, ticker string, price float64, ts time.Time) error
}

// CachedOracle decora un ports.PriceOracle: sirve precios de menos de maxAge desde
// el store y guarda cada precio nuevo. Si el store falla se va directo al oráculo.
type CachedOracle struct {
	store  PriceStore
	next   ports.PriceOracle
	maxAge time.Duration
	now    func() time.Time
}

// NewCachedOracle crea el decorador.
func NewCachedOracle(store PriceStore, next ports.PriceOracle, maxAge time.Duration) *CachedOracle {
	return &CachedOracle{store: store, next: next, maxAge: maxAge, now: time.Now}
}

// SetClock replaces the wall clock. Used by tests.
func (o *CachedOracle) SetClock(now func() time.Time) { o.now = now }

// Price implementa ports.PriceOracle.
func (o *CachedOracle) Price(ctx context.Context, ticker string) (float64, bool) {
	price, ts, err := o.store.GetPrice(ctx, ticker)
	switch {
	case err == nil && o.now().Sub(ts) <= o.maxAge:
		return price, true
	case err != nil && !errors.Is(err, ErrMiss):
		slog.Debug("price cache unavailable, asking oracle", "ticker", ticker, "err", err)
	}

	price, ok := o.next.Price(ctx, ticker)
	if !ok {
		return 0, false
	}
	if err := o.store.SetPrice(ctx, ticker, price, o.now()); err != nil {
		slog.Debug("price cache write failed", "ticker", ticker, "err", err)
	}
	return price, true
}

// Restart propaga el restart al oráculo decorado si lo soporta.
func (o *CachedOracle) Restart(ctx context.Context) error {
	if r, ok := o.next.(ports.Restarter); ok {
		return r.Restart(ctx)
	}
	return nil
}
