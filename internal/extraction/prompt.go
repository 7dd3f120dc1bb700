package extraction

import (
	"encoding/json"
	"strings"

	"github.com/guirra-byte/contracts-extractor/constants"
	"github.com/guirra-byte/contracts-extractor/internal/document"
	"github.com/guirra-byte/contracts-extractor/internal/reconcile"
)

// BuildSystemPrompt composes the shared extraction rules plus the task's
// field instructions.
func BuildSystemPrompt(task Task) string {
	parts := []string{
		"You are a real-estate contract parser. Return ONLY JSON that matches the provided JSON Schema.",
		"The user message carries the contract as a list of chunks, each with a chunk_id, page and text.",
		"Every unit MUST have a unique unitCode (number, string or complex identifier such as 'LOTE Nº 64 QUADRA D'); the same unitCode always means the same unit. Information with no unitCode is ignored.",
		"Group everything belonging to one unitCode into one record.",
		"For every extracted field add a source citation {field, chunk_id} pointing at the chunk the value came from; reuse a chunk_id when several fields share it.",
		"For computed values cite the synthetic chunk_id '" + reconcile.SyntheticChunkID + "'.",
		"Assign a confidence level (" + strings.Join(constants.ConfidencesAsStrings(), "/") + ") per field.",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"Never output null. If a field is not present, omit it.",
	}
	parts = append(parts, task.Instructions...)
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the document's chunks as the JSON payload the
// system prompt describes. Geometry stays out: the model cites chunk ids and
// the renderer resolves them later.
func BuildUserPrompt(doc *document.Document) string {
	type promptChunk struct {
		ChunkID     string `json:"chunk_id"`
		Page        int    `json:"page"`
		ElementType string `json:"element_type"`
		Text        string `json:"text"`
	}

	chunks := make([]promptChunk, 0, len(doc.Chunks))
	for _, c := range doc.Chunks {
		chunks = append(chunks, promptChunk{
			ChunkID:     c.ID,
			Page:        c.Page,
			ElementType: c.Type.String(),
			Text:        c.Text,
		})
	}
	payload, _ := json.MarshalIndent(chunks, "", "  ")

	var b strings.Builder
	b.WriteString("Contract chunks:\n")
	b.Write(payload)
	return b.String()
}
