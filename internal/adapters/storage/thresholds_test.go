package storage_test

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/alejandrodnm/sentibot/internal/adapters/storage"
	"github.com/alejandrodnm/sentibot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdFile_MissingCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trading_config.json")
	f := storage.NewThresholdFile(path)

	cfg, err := f.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultThresholdConfig(), cfg)

	_, err = os.Stat(path)
	assert.NoError(t, err, "default config should be written")
}

func TestThresholdFile_RoundTripIsBitIdentical(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trading_config.json")
	f := storage.NewThresholdFile(path)
	ctx := context.Background()

	for _, v := range []float64{0.49, 0.525, 0.35, 0.85, 0.1 + 0.2, 0.551} {
		in := domain.ThresholdConfig{BuyThreshold: v, SellThreshold: v, Mode: domain.ModeAggressive}
		require.NoError(t, f.Save(ctx, in))

		out, err := f.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestThresholdFile_CorruptFallsBackToDefaults(t *testing.T) {
	cases := map[string]string{
		"not json":     "{buy_threshold: ???",
		"out of range": `{"buy_threshold": 3, "sell_threshold": 0.5, "mode": "NEUTRAL"}`,
		"bad mode":     `{"buy_threshold": 0.5, "sell_threshold": 0.5, "mode": "LUDICROUS"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "trading_config.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			cfg, err := storage.NewThresholdFile(path).Load(context.Background())
			assert.ErrorIs(t, err, domain.ErrConfigCorrupt)
			assert.Equal(t, domain.DefaultThresholdConfig(), cfg)
		})
	}
}

func TestThresholdFile_MissingFieldsKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trading_config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"buy_threshold": 0.6, "sell_threshold": 0.6}`), 0o644))

	cfg, err := storage.NewThresholdFile(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.6, cfg.BuyThreshold)
	assert.Equal(t, domain.ModeNeutral, cfg.Mode)
}

func TestThresholdFile_FailedSaveKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trading_config.json")
	f := storage.NewThresholdFile(path)
	ctx := context.Background()

	prev := domain.ThresholdConfig{BuyThreshold: 0.49, SellThreshold: 0.49, Mode: domain.ModeAggressive}
	require.NoError(t, f.Save(ctx, prev))

	// NaN no es JSON válido: Save falla antes de tocar el archivo
	bad := domain.ThresholdConfig{BuyThreshold: math.NaN(), SellThreshold: 0.5, Mode: domain.ModeNeutral}
	assert.Error(t, f.Save(ctx, bad))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk domain.ThresholdConfig
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, prev, onDisk)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
