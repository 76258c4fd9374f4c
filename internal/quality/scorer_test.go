// internal/quality/scorer_test.go
package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProfDian/water-qual-sub000/internal/data"
)

func cleanInlet() data.Parameters {
	return data.Parameters{PH: 7.2, TDS: 450, Turbidity: 25, Temperature: 28}
}

func cleanOutlet() data.Parameters {
	return data.Parameters{PH: 7.8, TDS: 320, Turbidity: 8, Temperature: 29}
}

func TestAnalyzeCleanReading(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	got := scorer.Analyze(cleanInlet(), cleanOutlet())

	assert.Equal(t, 100, got.Score)
	assert.Equal(t, data.QualityExcellent, got.Status)
	assert.Empty(t, got.Violations)
	require.Len(t, got.Recommendations, 1)
	assert.Contains(t, got.Recommendations[0], "maintain current treatment operation")
}

func TestAnalyzePHAboveMaximum(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	inlet := data.Parameters{PH: 7.0, TDS: 600, Turbidity: 40, Temperature: 25}
	outlet := data.Parameters{PH: 9.5, TDS: 400, Turbidity: 10, Temperature: 25}

	got := scorer.Analyze(inlet, outlet)

	require.Len(t, got.Violations, 1)
	v := got.Violations[0]
	assert.Equal(t, data.ParamPH, v.Parameter)
	assert.Equal(t, data.LocationOutlet, v.Location)
	assert.Equal(t, data.ConditionAboveMaximum, v.Condition)
	assert.Equal(t, 9.0, v.Threshold)
	// Deviation of 0.5 falls between the 0.3 and 0.7 cutoffs.
	assert.Equal(t, data.SeverityMedium, v.Severity)
}

func TestAnalyzeInsufficientReduction(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	inlet := data.Parameters{PH: 7.0, TDS: 500, Turbidity: 30, Temperature: 25}
	outlet := data.Parameters{PH: 7.2, TDS: 480, Turbidity: 10, Temperature: 25}

	got := scorer.Analyze(inlet, outlet)

	require.Len(t, got.Violations, 1)
	v := got.Violations[0]
	assert.Equal(t, data.ParamTDS, v.Parameter)
	assert.Equal(t, data.LocationComparison, v.Location)
	assert.Equal(t, data.ConditionInsufficientReduction, v.Condition)
	assert.InDelta(t, 4.0, v.Value, 0.01)
	// 4% is below half of the required 15%, so the comparison escalates.
	assert.Equal(t, data.SeverityHigh, v.Severity)
	require.NotEmpty(t, got.Recommendations)
	assert.Contains(t, got.Recommendations[len(got.Recommendations)-1], "Treatment effectiveness")
}

func TestParameterScoreMonotonicDecay(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	assert.Equal(t, 100.0, scorer.ParameterScore(data.ParamPH, 8.5))

	prev := 100.0
	for _, ph := range []float64{8.6, 8.7, 8.8, 8.9} {
		score := scorer.ParameterScore(data.ParamPH, ph)
		assert.Lessf(t, score, prev, "score must strictly decrease at ph=%.1f", ph)
		assert.Greater(t, score, 0.0)
		prev = score
	}

	assert.Equal(t, 0.0, scorer.ParameterScore(data.ParamPH, 9.0))
	assert.Equal(t, 0.0, scorer.ParameterScore(data.ParamPH, 9.3))
}

func TestCeilingScoreBounds(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	assert.Equal(t, 100.0, scorer.ParameterScore(data.ParamTDS, 500))
	assert.Equal(t, 50.0, scorer.ParameterScore(data.ParamTDS, 750))
	assert.Equal(t, 0.0, scorer.ParameterScore(data.ParamTDS, 1000))
	assert.Equal(t, 0.0, scorer.ParameterScore(data.ParamTurbidity, 80))
}

// A hard-bound breach in one parameter zeroes only that parameter's
// contribution; the violation list and the score move independently.
func TestViolationsIndependentOfScore(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	inlet := data.Parameters{PH: 7.0, TDS: 600, Turbidity: 40, Temperature: 25}
	outlet := data.Parameters{PH: 9.2, TDS: 300, Turbidity: 5, Temperature: 25}

	got := scorer.Analyze(inlet, outlet)

	require.Len(t, got.Violations, 1)
	assert.Equal(t, data.ParamPH, got.Violations[0].Parameter)
	// Everything except pH is perfect, so 100 minus the pH weight remains.
	assert.Equal(t, 75, got.Score)
	assert.Equal(t, data.QualityGood, got.Status)
}

func TestStatusBuckets(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{100, data.QualityExcellent},
		{85, data.QualityExcellent},
		{84, data.QualityGood},
		{70, data.QualityGood},
		{69, data.QualityFair},
		{50, data.QualityFair},
		{49, data.QualityPoor},
		{30, data.QualityPoor},
		{29, data.QualityCritical},
		{0, data.QualityCritical},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, statusFor(tc.score), "score %d", tc.score)
	}
}

func TestSeverityEscalation(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	cases := []struct {
		name   string
		outlet data.Parameters
		param  string
		want   string
	}{
		{"ph barely over", data.Parameters{PH: 9.2, TDS: 300, Turbidity: 5, Temperature: 25}, data.ParamPH, data.SeverityLow},
		{"ph far over", data.Parameters{PH: 11.0, TDS: 300, Turbidity: 5, Temperature: 25}, data.ParamPH, data.SeverityCritical},
		{"tds 30 percent over", data.Parameters{PH: 7.0, TDS: 1300, Turbidity: 5, Temperature: 25}, data.ParamTDS, data.SeverityMedium},
		{"turbidity double", data.Parameters{PH: 7.0, TDS: 300, Turbidity: 110, Temperature: 25}, data.ParamTurbidity, data.SeverityCritical},
	}

	inlet := data.Parameters{PH: 7.0, TDS: 9000, Turbidity: 900, Temperature: 25}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := scorer.Analyze(inlet, tc.outlet)
			found := false
			for _, v := range got.Violations {
				if v.Parameter == tc.param && v.Location == data.LocationOutlet {
					assert.Equal(t, tc.want, v.Severity)
					found = true
				}
			}
			assert.Truef(t, found, "expected an outlet violation for %s", tc.param)
		})
	}
}
