package scoring

import (
	"math"
	"strings"
)

// IdealRange is the agronomic target range for one soil reading
type IdealRange struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// Midpoint returns the centre of the range
func (r IdealRange) Midpoint() float64 {
	return (r.Lo + r.Hi) / 2
}

// Ideal ranges for the four scored readings
var (
	NitrogenRange    = IdealRange{Lo: 20, Hi: 140}
	PhosphorousRange = IdealRange{Lo: 10, Hi: 50}
	PotassiumRange   = IdealRange{Lo: 20, Hi: 200}
	PHRange          = IdealRange{Lo: 6.0, Hi: 7.5}
)

// componentWeight is the share of each reading in the aggregate score
const componentWeight = 0.25

// Advisory fragments, emitted in this order
const (
	AdviceNeedsImprovement = "Soil health needs improvement."
	AdviceAddLime          = "Consider adding lime to increase soil pH."
	AdviceAddSulfur        = "Consider adding sulfur to decrease soil pH."
	AdviceUrgentTreatment  = "Urgent soil treatment recommended."
	AdviceMonitor          = "Regular soil monitoring advised."
	AdviceGood             = "Soil conditions are generally good."
)

// ScoringEngine computes the soil health score and advisory text
type ScoringEngine struct {
	rules *RuleSet
}

// Option configures a ScoringEngine
type Option func(*ScoringEngine)

// WithAdvisoryRules adds operator-defined advisory rules evaluated after the
// built-in ones. A nil set is ignored.
func WithAdvisoryRules(rules *RuleSet) Option {
	return func(e *ScoringEngine) {
		e.rules = rules
	}
}

// NewScoringEngine creates a new scoring engine instance
func NewScoringEngine(opts ...Option) *ScoringEngine {
	e := &ScoringEngine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ScoreBreakdown holds the per-reading component scores behind an aggregate
type ScoreBreakdown struct {
	Nitrogen    float64 `json:"nitrogen"`
	Phosphorous float64 `json:"phosphorous"`
	Potassium   float64 `json:"potassium"`
	PH          float64 `json:"ph"`
	Total       float64 `json:"total"`
}

// ComponentScore is 100 at the range midpoint and falls linearly with the
// distance from it, measured in range widths. The penalty is capped at 100 so
// the score never drops below 0.
func ComponentScore(value float64, r IdealRange) float64 {
	penalty := math.Abs(value-r.Midpoint()) / (r.Hi - r.Lo) * 100
	return 100 - math.Min(100, penalty)
}

// Breakdown scores each reading and averages them with equal weights.
// The aggregate is not clamped again.
func (e *ScoringEngine) Breakdown(nitrogen, phosphorous, potassium, ph float64) ScoreBreakdown {
	b := ScoreBreakdown{
		Nitrogen:    ComponentScore(nitrogen, NitrogenRange),
		Phosphorous: ComponentScore(phosphorous, PhosphorousRange),
		Potassium:   ComponentScore(potassium, PotassiumRange),
		PH:          ComponentScore(ph, PHRange),
	}
	b.Total = b.Nitrogen*componentWeight +
		b.Phosphorous*componentWeight +
		b.Potassium*componentWeight +
		b.PH*componentWeight
	return b
}

// SoilHealthScore returns the aggregate soil health score
func (e *ScoringEngine) SoilHealthScore(nitrogen, phosphorous, potassium, ph float64) float64 {
	return e.Breakdown(nitrogen, phosphorous, potassium, ph).Total
}

// RulesFingerprint identifies the operator rules in effect; empty when only
// the built-in rules apply
func (e *ScoringEngine) RulesFingerprint() string {
	return e.rules.Fingerprint()
}

// Recommendations builds the built-in advisory text for a score and pH
// reading. Operator rules are not evaluated here; use RecommendationsFor.
func (e *ScoringEngine) Recommendations(score, ph float64) string {
	return joinAdvice(builtinAdvice(score, ph))
}

// RecommendationsFor builds the advisory text with the full set of readings
// available to operator rules. in.Score is overwritten with score.
func (e *ScoringEngine) RecommendationsFor(score float64, in RuleInput) string {
	fragments := builtinAdvice(score, in.PH)
	if e.rules != nil {
		in.Score = score
		fragments = append(fragments, e.rules.Evaluate(in)...)
	}
	return joinAdvice(fragments)
}

func builtinAdvice(score, ph float64) []string {
	var fragments []string

	if score < 60 {
		fragments = append(fragments, AdviceNeedsImprovement)
		if ph < PHRange.Lo {
			fragments = append(fragments, AdviceAddLime)
		} else if ph > PHRange.Hi {
			fragments = append(fragments, AdviceAddSulfur)
		}
	}

	if score < 40 {
		fragments = append(fragments, AdviceUrgentTreatment)
	} else if score < 70 {
		fragments = append(fragments, AdviceMonitor)
	}
	return fragments
}

func joinAdvice(fragments []string) string {
	if len(fragments) == 0 {
		return AdviceGood
	}
	return strings.Join(fragments, " ")
}
