package conversation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// "Here is a possible answer: ..." and friends, through end of text.
	exampleClause = regexp.MustCompile(`(?is)\s*here(?:\s+is|'s|’s)\s+(?:an?\s+)?(?:simple\s+|possible\s+)?(?:example|answer)\s*:.*$`)
	// "Now please tell me ..." through end of text.
	tellMeClause = regexp.MustCompile(`(?is)\s*now\s+please\s+tell\s+me.*$`)

	// Leading acknowledgment token followed by separating punctuation or space.
	// Longer phrases come first so "That's great!" wins over "Great!".
	acknowledgment = regexp.MustCompile(`(?is)^\s*((?:that(?:'|’)s\s+excellent|that(?:'|’)s\s+great|good\s+answer|well\s+said|excellent|perfect|great|good)[!.]?)[\s,.!:;\-–—]+(\S.*)$`)
)

// SanitizeQuestion strips trailing example-answer and "Now please tell me"
// clauses so only the bare question reaches the learner.
func SanitizeQuestion(q string) string {
	raw := strings.TrimSpace(q)
	clean := exampleClause.ReplaceAllString(raw, "")
	clean = tellMeClause.ReplaceAllString(clean, "")
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return raw
	}
	return clean
}

// ExtractFeedback returns the part of message that precedes the first
// candidate question found in it. If no candidate occurs, the whole
// message is feedback. Empty feedback becomes DefaultFeedback.
func ExtractFeedback(message string, candidates ...string) string {
	msg := strings.TrimSpace(message)
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		idx := strings.Index(msg, c)
		if idx < 0 {
			idx = indexFold(msg, c)
		}
		if idx >= 0 {
			return orDefault(strings.TrimSpace(msg[:idx]), DefaultFeedback)
		}
	}
	return orDefault(msg, DefaultFeedback)
}

// indexFold is a case-insensitive strings.Index. The result is a byte offset
// into s, always on a rune boundary.
func indexFold(s, substr string) int {
	n := utf8.RuneCountInString(substr)
	if n == 0 {
		return 0
	}
	for i := range s {
		end, count := i, 0
		for end < len(s) && count < n {
			_, size := utf8.DecodeRuneInString(s[end:])
			end += size
			count++
		}
		if count < n {
			return -1
		}
		if strings.EqualFold(s[i:end], substr) {
			return i
		}
	}
	return -1
}

// SplitAcknowledgment separates a leading "Great!"-style token from the rest
// of a tutor message. ok is false when no token leads the message.
func SplitAcknowledgment(message string) (ack, rest string, ok bool) {
	m := acknowledgment.FindStringSubmatch(message)
	if m == nil {
		return "", "", false
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), true
}

// joinMessage builds "feedback question" with a single space.
func joinMessage(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}
