package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alejandrodnm/sentibot/internal/domain"
)

// ThresholdFile implementa ports.ThresholdStore sobre un archivo JSON.
// Save escribe a un temporal en el mismo directorio y lo renombra encima del
// original, así un fallo a mitad de escritura deja intacta la config anterior.
type ThresholdFile struct {
	path string
}

// NewThresholdFile crea el store para la ruta dada.
func NewThresholdFile(path string) *ThresholdFile {
	return &ThresholdFile{path: path}
}

// Path devuelve la ruta del archivo.
func (f *ThresholdFile) Path() string { return f.path }

// Load lee la config. Si el archivo no existe lo crea con los defaults.
// Si está corrupto devuelve los defaults y un error que envuelve domain.ErrConfigCorrupt;
// el archivo corrupto no se toca hasta el siguiente Save.
func (f *ThresholdFile) Load(ctx context.Context) (domain.ThresholdConfig, error) {
	def := domain.DefaultThresholdConfig()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("no threshold config found, creating default", "path", f.path)
		if err := f.Save(ctx, def); err != nil {
			slog.Warn("could not write default threshold config", "path", f.path, "err", err)
		}
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("storage.ThresholdFile.Load: read %q: %w", f.path, err)
	}

	// Los campos ausentes conservan el default.
	cfg := def
	if err := json.Unmarshal(data, &cfg); err != nil {
		return def, fmt.Errorf("storage.ThresholdFile.Load: %w: %v", domain.ErrConfigCorrupt, err)
	}
	if err := cfg.Validate(); err != nil {
		return def, fmt.Errorf("storage.ThresholdFile.Load: %w: %v", domain.ErrConfigCorrupt, err)
	}
	return cfg, nil
}

// Save reemplaza la config de forma atómica (write-then-rename).
func (f *ThresholdFile) Save(_ context.Context, cfg domain.ThresholdConfig) error {
	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return fmt.Errorf("storage.ThresholdFile.Save: marshal: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("storage.ThresholdFile.Save: create temp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("storage.ThresholdFile.Save: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("storage.ThresholdFile.Save: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("storage.ThresholdFile.Save: close: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		cleanup()
		return fmt.Errorf("storage.ThresholdFile.Save: rename: %w", err)
	}
	return nil
}
