package extraction

import (
	"github.com/guirra-byte/contracts-extractor/constants"
)

// BuildUnitJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. Every unit field is optional — passes cover different slices
// of the contract — but present values must carry the right type, the series
// and indexer enums are closed, and dates must be ISO-8601.
func BuildUnitJSONSchema() map[string]any {
	plan := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"totalInstallments": map[string]any{"type": "integer", "minimum": 1},
			"series": map[string]any{
				"type": "string",
				"enum": constants.SeriesTypesAsStrings(),
			},
			"indexerCode": map[string]any{
				"type": "string",
				"enum": constants.IndexersAsStrings(),
			},
			"firstDueDate":      dateProp(),
			"totalValue":        map[string]any{"type": "number"},
			"installmentAmount": map[string]any{"type": "number"},
		},
	}

	unit := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"unitCode":    map[string]any{"type": "string", "minLength": 1},
			"sellValue":   map[string]any{"type": "number"},
			"buyerName":   map[string]any{"type": "string", "minLength": 1},
			"areaM2":      map[string]any{"type": "number"},
			"pricePerM2":  map[string]any{"type": "number"},
			"signingDate": dateProp(),
			"installmentPlans": map[string]any{
				"type":  "array",
				"items": plan,
			},
		},
	}

	source := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"field":        map[string]any{"type": "string", "minLength": 1},
			"chunk_id":     map[string]any{"type": "string", "minLength": 1},
			"text_excerpt": map[string]any{"type": "string"},
		},
		"required": []string{"field", "chunk_id"},
	}

	record := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"unit":    unit,
			"sources": map[string]any{"type": "array", "items": source},
			"confidence": map[string]any{
				"type": "object",
				"additionalProperties": map[string]any{
					"type": "string",
					"enum": constants.ConfidencesAsStrings(),
				},
			},
		},
		"required": []string{"unit"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"units": map[string]any{"type": "array", "items": record},
		},
		"required": []string{"units"},
	}
}

func dateProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^\d{4}-\d{2}-\d{2}$`,
	}
}
