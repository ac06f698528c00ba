package scoring

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/ashureev/parley/internal/domain"
)

const (
	// LowestConfidenceFloor fails an answer if any segment is below it.
	LowestConfidenceFloor = 0.82
	// AverageConfidenceFloor fails an answer whose mean confidence is below it.
	AverageConfidenceFloor = 0.90
	// ShakySegmentFraction is the share of segments allowed under SegmentThreshold.
	ShakySegmentFraction = 0.3
	// PassingScore is the lowest model score that can still pass.
	PassingScore = 88
)

// CoerceVerdict decides the final verdict. Confidence evidence always wins
// over the model's own claim, and missing data never resolves to correct.
//
// Rules, first match wins:
//  1. lowest confidence < 0.82
//  2. average confidence < 0.90
//  3. shaky segments > max(1, floor(count*0.3))
//  4. score < 88
//  5. provisional verdict, if it is "correct"
func CoerceVerdict(provisional any, score any, m *domain.ConfidenceMetrics) domain.Verdict {
	if m != nil {
		if m.LowestConfidence != nil && *m.LowestConfidence < LowestConfidenceFloor {
			return domain.VerdictNeedsImprovement
		}
		if m.AverageConfidence != nil && *m.AverageConfidence < AverageConfidenceFloor {
			return domain.VerdictNeedsImprovement
		}
		allowed := int(math.Floor(float64(m.SegmentCount) * ShakySegmentFraction))
		if allowed < 1 {
			allowed = 1
		}
		if m.BelowThresholdCount > allowed {
			return domain.VerdictNeedsImprovement
		}
	}

	if s, ok := NumericScore(score); ok && s < PassingScore {
		return domain.VerdictNeedsImprovement
	}

	if v, ok := provisional.(string); ok && domain.Verdict(strings.ToLower(strings.TrimSpace(v))) == domain.VerdictCorrect {
		return domain.VerdictCorrect
	}
	if v, ok := provisional.(domain.Verdict); ok && v == domain.VerdictCorrect {
		return domain.VerdictCorrect
	}
	return domain.VerdictNeedsImprovement
}

// NumericScore extracts a score clamped to [0,100].
// Strings, NaN and non-numeric values report false.
func NumericScore(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case *float64:
		if n == nil {
			return 0, false
		}
		f = *n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return math.Max(0, math.Min(100, f)), true
}
