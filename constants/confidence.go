package constants

import "strings"

// Confidence grades how certain an extraction pass was about a field value.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

var confidenceRank = map[Confidence]int{
	ConfidenceLow:    1,
	ConfidenceMedium: 2,
	ConfidenceHigh:   3,
}

func ConfidencesAsStrings() []string {
	return []string{string(ConfidenceHigh), string(ConfidenceMedium), string(ConfidenceLow)}
}

// ParseConfidence normalizes a confidence label; unknown input reports low
// and false.
func ParseConfidence(input string) (Confidence, bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "high":
		return ConfidenceHigh, true
	case "medium", "med":
		return ConfidenceMedium, true
	case "low":
		return ConfidenceLow, true
	default:
		return ConfidenceLow, false
	}
}

// Rank orders confidences so callers can compare them; zero means unknown.
func (c Confidence) Rank() int {
	return confidenceRank[c]
}
