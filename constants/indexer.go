package constants

import "strings"

// Indexer is the monetary-correction index applied to an installment series.
type Indexer string

const (
	IndexerReal Indexer = "REAL" // fixed nominal values, no correction
	IndexerINCC Indexer = "INCC" // construction cost index
	IndexerIPCA Indexer = "IPCA" // consumer price index
)

var allIndexers = []Indexer{IndexerReal, IndexerINCC, IndexerIPCA}

func IndexersAsStrings() []string {
	result := make([]string, len(allIndexers))
	for i, ix := range allIndexers {
		result[i] = string(ix)
	}
	return result
}

// CanonicalizeIndexer maps free-form index labels to the canonical enum.
// Unqualified or unrecognized input defaults to REAL and reports false.
func CanonicalizeIndexer(input string) (Indexer, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(input))
	if normalized == "" {
		return IndexerReal, false
	}

	synonyms := map[string]Indexer{
		"INCC-M":     IndexerINCC,
		"INCC-DI":    IndexerINCC,
		"IPCA-E":     IndexerIPCA,
		"SEM INDICE": IndexerReal,
		"FIXO":       IndexerReal,
		"NOMINAL":    IndexerReal,
	}

	if ix, ok := synonyms[normalized]; ok {
		return ix, true
	}

	for _, ix := range allIndexers {
		if normalized == string(ix) {
			return ix, true
		}
	}

	return IndexerReal, false
}
