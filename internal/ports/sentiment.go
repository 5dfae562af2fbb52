package ports

import (
	"context"

	"github.com/alejandrodnm/sentibot/internal/domain"
)

// SentimentScorer es el modelo de lenguaje, opaco.
type SentimentScorer interface {
	// Score devuelve un valor en [-1, 1]. 0 es una clasificación neutral genuina;
	// un texto que el modelo no pudo clasificar devuelve error.
	Score(ctx context.Context, text string, kind domain.SourceKind) (float64, error)
}

// NewsSource obtiene titulares recientes de un ticker.
type NewsSource interface {
	Headlines(ctx context.Context, ticker string) ([]domain.Headline, error)
}

// SocialSource obtiene posts recientes para una búsqueda (cashtag).
type SocialSource interface {
	Search(ctx context.Context, query string, max int) ([]string, error)
}

// WatchList devuelve los candidatos a vigilar, ya filtrados por liquidez,
// precio y capitalización.
type WatchList interface {
	Candidates(ctx context.Context) ([]string, error)
}

// Restarter es un colaborador supervisado que libera recursos al reiniciarse.
type Restarter interface {
	Restart(ctx context.Context) error
}
