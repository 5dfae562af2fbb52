package domain

import (
	"strings"
	"time"
)

// Headline es un titular de noticias para un ticker.
type Headline struct {
	Published time.Time
	Title     string
	Source    string
	URL       string
}

// SourceKind selecciona el modelo de sentimiento: titulares formales o texto social.
type SourceKind string

const (
	SourceNews   SourceKind = "news"
	SourceSocial SourceKind = "social"
)

type verity struct {
	name   string // como aparece en el nombre de la fuente, sin espacios
	domain string
	weight float64
}

// Credibilidad por fuente. El orden importa: primero se busca por nombre de la
// fuente y luego por dominio en la URL.
var verityWeights = []verity{
	{"bloomberg", "bloomberg.com", 0.95},
	{"reuters", "reuters.com", 0.95},
	{"wsj", "wsj.com", 0.95},
	{"yahoo", "finance.yahoo.com", 0.9},
	{"marketbeat", "marketbeat.com", 0.7},
	{"benzinga", "benzinga.com", 0.6},
	{"seekingalpha", "seekingalpha.com", 0.6},
	{"motleyfool", "motleyfool.com", 0.4},
	{"twitter", "twitter.com", 0.2},
}

// DefaultVerity es el peso de una fuente desconocida.
const DefaultVerity = 0.5

// Verity devuelve el peso de credibilidad del titular.
func (h Headline) Verity() float64 {
	source := strings.ReplaceAll(strings.ToLower(h.Source), " ", "")
	if source != "" {
		for _, v := range verityWeights {
			if strings.Contains(source, v.name) {
				return v.weight
			}
		}
	}
	u := strings.ToLower(h.URL)
	for _, v := range verityWeights {
		if strings.Contains(u, v.domain) {
			return v.weight
		}
	}
	return DefaultVerity
}

// WeightedComposite es Σ(score×verity)/Σverity. Sin pesos devuelve 0.
func WeightedComposite(scores, weights []float64) float64 {
	var sum, total float64
	for i := range scores {
		if i >= len(weights) {
			break
		}
		sum += scores[i] * weights[i]
		total += weights[i]
	}
	if total == 0 {
		return 0
	}
	return sum / total
}
