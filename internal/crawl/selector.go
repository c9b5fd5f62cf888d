package crawl

import "fmt"

// Selector converts an AnalysisRecord into a strategy choice with a
// confidence score. Select is a pure function of the record and the static
// configuration: no I/O, no failure modes, same input always yields the same
// decision.
type Selector struct {
	cfg Config
}

// NewSelector constructs a Selector over the immutable config snapshot.
func NewSelector(cfg Config) *Selector {
	return &Selector{cfg: cfg}
}

// Select scores each strategy and picks the strictly highest. Ties resolve to
// the first strategy in declaration order (basic, configurable, performance,
// format), which makes the choice deterministic.
func (s *Selector) Select(record AnalysisRecord) Decision {
	scores := map[Strategy]int{
		StrategyBasic:        1,
		StrategyConfigurable: 0,
		StrategyPerformance:  0,
		StrategyFormat:       0,
	}
	var reasoning []string

	if record.RequiresFormatting {
		scores[StrategyFormat] += 3
		reasoning = append(reasoning, "formatting requested: format +3")
	}
	if record.RequiresPerformance || record.EstimatedPages > 100 {
		scores[StrategyPerformance] += 2
		reasoning = append(reasoning, "large or high-concurrency target: performance +2")
	}
	if record.RequiresProxy || s.cfg.NonTrivialSelectors() {
		scores[StrategyConfigurable] += 2
		reasoning = append(reasoning, "proxy or custom selectors/headers: configurable +2")
	}
	if record.RequiresRetry || record.Complexity != ComplexitySimple {
		scores[StrategyConfigurable]++
		reasoning = append(reasoning, "retry needed or non-trivial complexity: configurable +1")
	}
	if record.EstimatedPages > 200 {
		scores[StrategyPerformance]++
		scores[StrategyFormat]--
		reasoning = append(reasoning, "very large target (>200 pages): performance +1, format -1")
	}

	chosen := Strategies[0]
	best := scores[chosen]
	for _, strategy := range Strategies[1:] {
		if scores[strategy] > best {
			chosen = strategy
			best = scores[strategy]
		}
	}
	reasoning = append(reasoning, fmt.Sprintf(
		"chose %s (scores basic=%d configurable=%d performance=%d format=%d; ties break in declaration order)",
		chosen,
		scores[StrategyBasic], scores[StrategyConfigurable],
		scores[StrategyPerformance], scores[StrategyFormat],
	))

	return Decision{
		Strategy:   chosen,
		Confidence: confidenceFor(record),
		Scores:     scores,
		Reasoning:  reasoning,
	}
}

func confidenceFor(record AnalysisRecord) float64 {
	confidence := 0.5
	if record.EstimatedPages > 0 {
		confidence += 0.2
	}
	if record.RequiresFormatting {
		confidence += 0.1
	}
	if record.RequiresPerformance {
		confidence += 0.1
	}
	if record.RequiresProxy {
		confidence += 0.1
	}
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}
