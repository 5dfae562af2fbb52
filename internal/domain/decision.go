package domain

// Rule es la regla de la matriz de decisión que produjo una señal.
type Rule string

const (
	RuleSocialArbitrage Rule = "Social-Arbitrage"
	RuleRebellion       Rule = "Rebellion"
	RuleConsensus       Rule = "Consensus"
	RuleNoise           Rule = "Noise"
)

// DecisionRules son los cortes fijos de la matriz; el threshold T es dinámico.
type DecisionRules struct {
	DiversityCutoff float64 // diversidad mínima para confiar en social sin news
	NewsQuietCutoff float64 // |news| por debajo de esto = news en silencio
}

// DefaultDecisionRules: diversidad > 0.7 y |news| < 0.2.
func DefaultDecisionRules() DecisionRules {
	return DecisionRules{DiversityCutoff: 0.7, NewsQuietCutoff: 0.2}
}

// Decision es el resultado de clasificar las puntuaciones de un ticker.
type Decision struct {
	Kind     SignalKind
	Rule     Rule
	PricedIn bool // consenso: ambos superan T en la misma dirección
}

// Label devuelve la etiqueta que se escribe en el feed, p.ej. "BUY (Rebellion)".
func (d Decision) Label() string {
	if d.Kind == SignalHold {
		return string(d.Kind)
	}
	return string(d.Kind) + " (" + string(d.Rule) + ")"
}

// Classify aplica la matriz en orden; la primera regla que encaja gana.
//
//  1. Social-arbitrage: diversidad alta y news en silencio → sigue a social.
//  2. Rebellion-short: news > T y social < −T → SELL.
//  3. Rebellion-long: news < −T y social > T → BUY.
//  4. Resto → HOLD (consenso o ruido).
func (r DecisionRules) Classify(news, social, diversity, t float64) Decision {
	if diversity > r.DiversityCutoff && abs(news) < r.NewsQuietCutoff {
		d := Decision{Kind: SignalHold, Rule: RuleSocialArbitrage}
		switch {
		case social > t:
			d.Kind = SignalBuy
		case social < -t:
			d.Kind = SignalSell
		}
		return d
	}
	if news > t && social < -t {
		return Decision{Kind: SignalSell, Rule: RuleRebellion}
	}
	if news < -t && social > t {
		return Decision{Kind: SignalBuy, Rule: RuleRebellion}
	}
	sameDir := (news > t && social > t) || (news < -t && social < -t)
	if sameDir {
		return Decision{Kind: SignalHold, Rule: RuleConsensus, PricedIn: true}
	}
	return Decision{Kind: SignalHold, Rule: RuleNoise}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
