package extraction

import (
	"bytes"
	"regexp"
)

var codeFence = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// StripCodeFence unwraps a reply the model wrapped in a markdown code fence.
// This is the only repair applied to provider output: anything that still
// fails schema validation afterwards fails the pass.
func StripCodeFence(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if m := codeFence.FindSubmatch(trimmed); m != nil {
		return m[1]
	}
	return trimmed
}
