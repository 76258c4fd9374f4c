// internal/quality/scorer.go
package quality

import (
	"fmt"
	"math"
	"sort"

	"github.com/ProfDian/water-qual-sub000/internal/data"
)

// Rule holds the regulatory and optimal bounds for one parameter.
// For ceiling-style parameters (tds, turbidity) the minimums are zero and
// only OptimalMax/HardMax matter.
type Rule struct {
	HardMin    float64 `mapstructure:"hard_min"`
	HardMax    float64 `mapstructure:"hard_max"`
	OptimalMin float64 `mapstructure:"optimal_min"`
	OptimalMax float64 `mapstructure:"optimal_max"`
}

// SeverityCutoffs bucket a deviation measure into low/medium/high/critical.
// The measure is an absolute deviation for band parameters (ph, temperature)
// and a value/threshold ratio minus one for ceiling parameters.
type SeverityCutoffs struct {
	Low    float64 `mapstructure:"low"`
	Medium float64 `mapstructure:"medium"`
	High   float64 `mapstructure:"high"`
}

// Config carries every tunable of the scoring and violation engine.
type Config struct {
	Rules    map[string]Rule            `mapstructure:"rules"`
	Weights  map[string]float64         `mapstructure:"weights"`
	Severity map[string]SeverityCutoffs `mapstructure:"severity"`
	// MinReduction is the minimum acceptable inlet->outlet percentage
	// reduction per comparison-checked parameter.
	MinReduction map[string]float64 `mapstructure:"min_reduction"`
}

// DefaultConfig returns the built-in regulatory rule set. A config file may
// override any part of it.
func DefaultConfig() Config {
	return Config{
		Rules: map[string]Rule{
			data.ParamPH:          {HardMin: 6.0, HardMax: 9.0, OptimalMin: 6.5, OptimalMax: 8.5},
			data.ParamTDS:         {HardMax: 1000, OptimalMax: 500},
			data.ParamTurbidity:   {HardMax: 50, OptimalMax: 10},
			data.ParamTemperature: {HardMin: 5, HardMax: 40, OptimalMin: 15, OptimalMax: 30},
		},
		Weights: map[string]float64{
			data.ParamPH:          0.25,
			data.ParamTDS:         0.25,
			data.ParamTurbidity:   0.30,
			data.ParamTemperature: 0.20,
		},
		Severity: map[string]SeverityCutoffs{
			data.ParamPH:          {Low: 0.3, Medium: 0.7, High: 1.5},
			data.ParamTemperature: {Low: 2, Medium: 5, High: 10},
			// Ratio-based: value/threshold - 1.
			data.ParamTDS:       {Low: 0.2, Medium: 0.5, High: 1.0},
			data.ParamTurbidity: {Low: 0.2, Medium: 0.5, High: 1.0},
		},
		MinReduction: map[string]float64{
			data.ParamTDS:       15,
			data.ParamTurbidity: 30,
		},
	}
}

// Scorer converts a complete reading's values into a 0-100 score, a status
// bucket and the list of hard-threshold violations. Scoring and violation
// detection use separate rule sets: the weighted score degrades inside the
// regulatory range, violations fire only past the hard bounds.
type Scorer struct {
	cfg Config
}

func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Analyze scores the outlet values, detects violations at both locations
// plus the treatment-effectiveness comparison, and derives recommendations.
func (s *Scorer) Analyze(inlet, outlet data.Parameters) data.QualityAnalysis {
	scores := map[string]float64{
		data.ParamPH:          s.scoreBand(data.ParamPH, outlet.PH),
		data.ParamTDS:         s.scoreCeiling(data.ParamTDS, outlet.TDS),
		data.ParamTurbidity:   s.scoreCeiling(data.ParamTurbidity, outlet.Turbidity),
		data.ParamTemperature: s.scoreBand(data.ParamTemperature, outlet.Temperature),
	}

	penalty := 0.0
	for param, score := range scores {
		penalty += s.cfg.Weights[param] * (100 - score)
	}
	overall := 100 - penalty
	if overall < 0 {
		overall = 0
	} else if overall > 100 {
		overall = 100
	}
	score := int(math.Round(overall))

	violations := s.detectViolations(inlet, outlet)

	return data.QualityAnalysis{
		Score:           score,
		Status:          statusFor(score),
		Violations:      violations,
		Recommendations: s.recommend(inlet, outlet, violations),
	}
}

// ParameterScore exposes a single per-parameter score. Used by tests and the
// diagnostic endpoints; Analyze is the production entrypoint.
func (s *Scorer) ParameterScore(param string, value float64) float64 {
	switch param {
	case data.ParamTDS, data.ParamTurbidity:
		return s.scoreCeiling(param, value)
	default:
		return s.scoreBand(param, value)
	}
}

// scoreBand scores parameters with an optimal band inside hard bounds:
// 100 inside the band, linear decay toward each hard bound, 0 at or past it.
func (s *Scorer) scoreBand(param string, v float64) float64 {
	r := s.cfg.Rules[param]
	switch {
	case v <= r.HardMin || v >= r.HardMax:
		return 0
	case v >= r.OptimalMin && v <= r.OptimalMax:
		return 100
	case v < r.OptimalMin:
		return 100 * (v - r.HardMin) / (r.OptimalMin - r.HardMin)
	default:
		return 100 * (r.HardMax - v) / (r.HardMax - r.OptimalMax)
	}
}

// scoreCeiling scores parameters where lower is better: 100 at or below the
// optimal ceiling, linear decay to 0 at the hard maximum.
func (s *Scorer) scoreCeiling(param string, v float64) float64 {
	r := s.cfg.Rules[param]
	switch {
	case v <= r.OptimalMax:
		return 100
	case v >= r.HardMax:
		return 0
	default:
		return 100 * (r.HardMax - v) / (r.HardMax - r.OptimalMax)
	}
}

func statusFor(score int) string {
	switch {
	case score >= 85:
		return data.QualityExcellent
	case score >= 70:
		return data.QualityGood
	case score >= 50:
		return data.QualityFair
	case score >= 30:
		return data.QualityPoor
	default:
		return data.QualityCritical
	}
}

func (s *Scorer) detectViolations(inlet, outlet data.Parameters) []data.Violation {
	var out []data.Violation
	out = append(out, s.checkLocation(data.LocationInlet, inlet)...)
	out = append(out, s.checkLocation(data.LocationOutlet, outlet)...)
	out = append(out, s.checkReductions(inlet, outlet)...)
	return out
}

// checkLocation tests one side's values against the hard regulatory bounds.
func (s *Scorer) checkLocation(location string, p data.Parameters) []data.Violation {
	values := map[string]float64{
		data.ParamPH:          p.PH,
		data.ParamTDS:         p.TDS,
		data.ParamTurbidity:   p.Turbidity,
		data.ParamTemperature: p.Temperature,
	}

	var out []data.Violation
	for _, param := range orderedParams(values) {
		v := values[param]
		r := s.cfg.Rules[param]
		switch {
		case v > r.HardMax:
			out = append(out, data.Violation{
				Parameter: param,
				Location:  location,
				Value:     v,
				Threshold: r.HardMax,
				Condition: data.ConditionAboveMaximum,
				Severity:  s.severityFor(param, v, r.HardMax),
				Message:   fmt.Sprintf("%s at %s is %.2f, above the maximum of %.2f", param, location, v, r.HardMax),
			})
		case hasLowerBound(param) && v < r.HardMin:
			out = append(out, data.Violation{
				Parameter: param,
				Location:  location,
				Value:     v,
				Threshold: r.HardMin,
				Condition: data.ConditionBelowMinimum,
				Severity:  s.severityFor(param, v, r.HardMin),
				Message:   fmt.Sprintf("%s at %s is %.2f, below the minimum of %.2f", param, location, v, r.HardMin),
			})
		}
	}
	return out
}

// checkReductions verifies treatment effectiveness: the percentage reduction
// from inlet to outlet must meet the per-parameter minimum.
func (s *Scorer) checkReductions(inlet, outlet data.Parameters) []data.Violation {
	pairs := map[string][2]float64{
		data.ParamTDS:       {inlet.TDS, outlet.TDS},
		data.ParamTurbidity: {inlet.Turbidity, outlet.Turbidity},
	}

	var out []data.Violation
	for _, param := range []string{data.ParamTDS, data.ParamTurbidity} {
		min, ok := s.cfg.MinReduction[param]
		if !ok {
			continue
		}
		in, outVal := pairs[param][0], pairs[param][1]
		if in <= 0 {
			// No meaningful reduction can be computed from a zero inlet.
			continue
		}
		reduction := (in - outVal) / in * 100
		if reduction >= min {
			continue
		}
		severity := data.SeverityMedium
		if reduction < min/2 {
			severity = data.SeverityHigh
		}
		out = append(out, data.Violation{
			Parameter: param,
			Location:  data.LocationComparison,
			Value:     reduction,
			Threshold: min,
			Condition: data.ConditionInsufficientReduction,
			Severity:  severity,
			Message:   fmt.Sprintf("%s reduction is %.1f%%, below the required %.1f%%", param, reduction, min),
		})
	}
	return out
}

// severityFor buckets the deviation from the breached threshold.
func (s *Scorer) severityFor(param string, value, threshold float64) string {
	cut := s.cfg.Severity[param]

	var measure float64
	switch param {
	case data.ParamTDS, data.ParamTurbidity:
		if threshold == 0 {
			return data.SeverityCritical
		}
		measure = value/threshold - 1
	default:
		measure = math.Abs(value - threshold)
	}

	switch {
	case measure < cut.Low:
		return data.SeverityLow
	case measure < cut.Medium:
		return data.SeverityMedium
	case measure < cut.High:
		return data.SeverityHigh
	default:
		return data.SeverityCritical
	}
}

var adviceFor = map[string]string{
	data.ParamPH:          "Adjust chemical dosing to bring pH back inside regulatory bounds",
	data.ParamTDS:         "Inspect membrane/filtration stages; TDS is outside regulatory bounds",
	data.ParamTurbidity:   "Check coagulation and filter media; turbidity is outside regulatory bounds",
	data.ParamTemperature: "Check heat-exchange and ambient control; temperature is outside regulatory bounds",
}

// recommend derives deterministic recommendations from the violation set
// plus the treatment-effectiveness check.
func (s *Scorer) recommend(inlet, outlet data.Parameters, violations []data.Violation) []string {
	if len(violations) == 0 {
		return []string{"All parameters within thresholds; maintain current treatment operation"}
	}

	var recs []string
	seen := map[string]bool{}
	for _, v := range violations {
		if v.Location == data.LocationComparison || seen[v.Parameter] {
			continue
		}
		seen[v.Parameter] = true
		recs = append(recs, adviceFor[v.Parameter])
	}

	for _, v := range violations {
		if v.Location == data.LocationComparison {
			recs = append(recs, fmt.Sprintf(
				"Treatment effectiveness for %s is degraded (%.1f%% reduction); schedule maintenance of the treatment train", v.Parameter, v.Value))
		}
	}
	return recs
}

func hasLowerBound(param string) bool {
	return param == data.ParamPH || param == data.ParamTemperature
}

func orderedParams(values map[string]float64) []string {
	out := make([]string, 0, len(values))
	for k := range values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
