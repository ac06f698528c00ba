// Package scoring turns transcription confidence into pass/fail verdicts.
package scoring

import (
	"math"

	"github.com/ashureev/parley/internal/domain"
)

// SegmentThreshold is the confidence below which a segment counts as shaky.
const SegmentThreshold = 0.88

// ComputeConfidenceMetrics aggregates per-segment confidences.
// It returns nil for an empty list.
func ComputeConfidenceMetrics(segments []domain.TranscriptSegment) *domain.ConfidenceMetrics {
	if len(segments) == 0 {
		return nil
	}

	m := &domain.ConfidenceMetrics{SegmentCount: len(segments)}

	var (
		sum    float64
		lowest = math.Inf(1)
		scored int
	)
	for _, seg := range segments {
		c, ok := confidenceOf(seg)
		if !ok {
			continue
		}
		scored++
		sum += c
		if c < lowest {
			lowest = c
		}
		if c < SegmentThreshold {
			m.BelowThresholdCount++
		}
	}

	if scored == 0 {
		return m
	}

	avg := sum / float64(scored)
	m.AverageConfidence = &avg
	m.LowestConfidence = &lowest
	return m
}

func confidenceOf(seg domain.TranscriptSegment) (float64, bool) {
	if seg.Confidence == nil {
		return 0, false
	}
	c := *seg.Confidence
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0, false
	}
	return c, true
}
