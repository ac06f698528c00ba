package scoring

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/ashureev/parley/internal/domain"
)

func conf(v float64) *float64 { return &v }

func segs(values ...float64) []domain.TranscriptSegment {
	out := make([]domain.TranscriptSegment, 0, len(values))
	for _, v := range values {
		out = append(out, domain.TranscriptSegment{Text: "x", Confidence: conf(v)})
	}
	return out
}

func TestComputeConfidenceMetricsEmpty(t *testing.T) {
	if m := ComputeConfidenceMetrics(nil); m != nil {
		t.Fatalf("expected nil for nil input, got %+v", m)
	}
	if m := ComputeConfidenceMetrics([]domain.TranscriptSegment{}); m != nil {
		t.Fatalf("expected nil for empty input, got %+v", m)
	}
}

func TestComputeConfidenceMetricsWithoutNumericConfidence(t *testing.T) {
	m := ComputeConfidenceMetrics([]domain.TranscriptSegment{
		{Text: "hello"},
		{Text: "world", Confidence: conf(math.NaN())},
	})
	if m == nil {
		t.Fatal("expected metrics")
	}
	if m.SegmentCount != 2 {
		t.Errorf("SegmentCount = %d, want 2", m.SegmentCount)
	}
	if m.BelowThresholdCount != 0 {
		t.Errorf("BelowThresholdCount = %d, want 0", m.BelowThresholdCount)
	}
	if m.AverageConfidence != nil || m.LowestConfidence != nil {
		t.Errorf("expected average and lowest to be omitted, got %+v", m)
	}
}

func TestComputeConfidenceMetrics(t *testing.T) {
	input := segs(0.95, 0.80, 0.90)
	input = append(input, domain.TranscriptSegment{Text: "no score"})

	m := ComputeConfidenceMetrics(input)
	if m.SegmentCount != 4 {
		t.Errorf("SegmentCount = %d, want 4", m.SegmentCount)
	}
	if got, want := *m.AverageConfidence, (0.95+0.80+0.90)/3; math.Abs(got-want) > 1e-9 {
		t.Errorf("AverageConfidence = %v, want %v", got, want)
	}
	if *m.LowestConfidence != 0.80 {
		t.Errorf("LowestConfidence = %v, want 0.80", *m.LowestConfidence)
	}
	if m.BelowThresholdCount != 1 {
		t.Errorf("BelowThresholdCount = %d, want 1", m.BelowThresholdCount)
	}
}

func TestComputeConfidenceMetricsThresholdIsStrict(t *testing.T) {
	m := ComputeConfidenceMetrics(segs(SegmentThreshold, SegmentThreshold))
	if m.BelowThresholdCount != 0 {
		t.Errorf("segments at exactly the threshold must not count, got %d", m.BelowThresholdCount)
	}
}

func TestAverageWithinBounds(t *testing.T) {
	cases := [][]float64{
		{0.5},
		{0.1, 0.99},
		{0.88, 0.88, 0.87, 1},
		{0, 0, 0.3},
	}
	for _, values := range cases {
		m := ComputeConfidenceMetrics(segs(values...))
		lo, hi := values[0], values[0]
		for _, v := range values {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if *m.AverageConfidence < lo-1e-12 || *m.AverageConfidence > hi+1e-12 {
			t.Errorf("average %v outside [%v, %v]", *m.AverageConfidence, lo, hi)
		}
	}
}

func TestCoerceVerdict(t *testing.T) {
	good := ComputeConfidenceMetrics(segs(0.97, 0.95, 0.99))

	tests := []struct {
		name        string
		provisional any
		score       any
		metrics     *domain.ConfidenceMetrics
		want        domain.Verdict
	}{
		{"correct with high score and no metrics", "correct", 95.0, nil, domain.VerdictCorrect},
		{"score rule fires before passthrough", "correct", 80.0, nil, domain.VerdictNeedsImprovement},
		{"lowest confidence overrides", "correct", 100.0, ComputeConfidenceMetrics(segs(0.99, 0.81, 0.99, 0.99)), domain.VerdictNeedsImprovement},
		{"average confidence overrides", "correct", 100.0, ComputeConfidenceMetrics(segs(0.85, 0.89, 0.90)), domain.VerdictNeedsImprovement},
		{"too many shaky segments", "correct", 100.0, &domain.ConfidenceMetrics{SegmentCount: 10, AverageConfidence: conf(0.95), LowestConfidence: conf(0.85), BelowThresholdCount: 4}, domain.VerdictNeedsImprovement},
		{"shaky segments within allowance", "correct", 100.0, &domain.ConfidenceMetrics{SegmentCount: 10, AverageConfidence: conf(0.95), LowestConfidence: conf(0.85), BelowThresholdCount: 3}, domain.VerdictCorrect},
		{"allowance is at least one", "correct", 100.0, &domain.ConfidenceMetrics{SegmentCount: 2, AverageConfidence: conf(0.95), LowestConfidence: conf(0.86), BelowThresholdCount: 1}, domain.VerdictCorrect},
		{"non-numeric score skips score rule", "correct", "95", good, domain.VerdictCorrect},
		{"missing score passes through", "correct", nil, good, domain.VerdictCorrect},
		{"model says needs improvement", "needs_improvement", 99.0, good, domain.VerdictNeedsImprovement},
		{"unknown provisional", "great", 99.0, good, domain.VerdictNeedsImprovement},
		{"missing provisional", nil, 99.0, good, domain.VerdictNeedsImprovement},
		{"score clamped above 100", "correct", 250.0, good, domain.VerdictCorrect},
		{"negative score clamped to 0", "correct", -5.0, good, domain.VerdictNeedsImprovement},
		{"json number score", "correct", json.Number("91"), good, domain.VerdictCorrect},
		{"score exactly at pass mark", "correct", 88, good, domain.VerdictCorrect},
		{"provisional is case-insensitive", " Correct ", 90.0, good, domain.VerdictCorrect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoerceVerdict(tt.provisional, tt.score, tt.metrics); got != tt.want {
				t.Errorf("CoerceVerdict() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCoerceVerdictNeverCorrectBelowLowestFloor(t *testing.T) {
	m := &domain.ConfidenceMetrics{SegmentCount: 1, AverageConfidence: conf(0.99), LowestConfidence: conf(0.819)}
	for _, provisional := range []any{"correct", domain.VerdictCorrect, nil} {
		for _, score := range []any{100.0, 0.0, nil, "x"} {
			if got := CoerceVerdict(provisional, score, m); got != domain.VerdictNeedsImprovement {
				t.Fatalf("CoerceVerdict(%v, %v) = %q, want needs_improvement", provisional, score, got)
			}
		}
	}
}

func TestNumericScore(t *testing.T) {
	if _, ok := NumericScore(math.NaN()); ok {
		t.Error("NaN must be treated as absent")
	}
	if _, ok := NumericScore("88"); ok {
		t.Error("strings must be treated as absent")
	}
	if s, ok := NumericScore(math.Inf(1)); !ok || s != 100 {
		t.Errorf("NumericScore(+Inf) = %v, %v; want 100, true", s, ok)
	}
}
