package domain

// TranscriptSegment is one span produced by speech recognition.
// Confidence is in [0,1] when present; Start and End are seconds.
type TranscriptSegment struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
	Start      *float64 `json:"start,omitempty"`
	End        *float64 `json:"end,omitempty"`
}

// Transcription is the full result of recognizing one audio payload.
type Transcription struct {
	Text     string              `json:"text"`
	Language string              `json:"language,omitempty"`
	Segments []TranscriptSegment `json:"segments,omitempty"`
}

// ConfidenceMetrics summarizes segment confidences for one answer.
// AverageConfidence and LowestConfidence are nil when no segment carried a
// numeric confidence.
type ConfidenceMetrics struct {
	SegmentCount        int      `json:"segmentCount"`
	AverageConfidence   *float64 `json:"averageConfidence,omitempty"`
	LowestConfidence    *float64 `json:"lowestConfidence,omitempty"`
	BelowThresholdCount int      `json:"belowThresholdCount"`
}
