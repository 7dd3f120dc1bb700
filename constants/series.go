package constants

import (
	"strings"
)

// SeriesType classifies an installment series in a purchase contract.
type SeriesType string

const (
	SeriesMensal     SeriesType = "MENSAL"     // monthly installments
	SeriesChaves     SeriesType = "CHAVES"     // due at key delivery
	SeriesAto        SeriesType = "ATO"        // due at signing
	SeriesUnica      SeriesType = "UNICA"      // single payment
	SeriesTrimestral SeriesType = "TRIMESTRAL" // quarterly
	SeriesAnual      SeriesType = "ANUAL"      // annual balloon
	SeriesBimestral  SeriesType = "BIMESTRAL"  // every two months
	SeriesBienal     SeriesType = "BIENAL"     // every two years
)

var allSeriesTypes = []SeriesType{
	SeriesMensal,
	SeriesChaves,
	SeriesAto,
	SeriesUnica,
	SeriesTrimestral,
	SeriesAnual,
	SeriesBimestral,
	SeriesBienal,
}

func SeriesTypesAsStrings() []string {
	result := make([]string, len(allSeriesTypes))
	for i, s := range allSeriesTypes {
		result[i] = string(s)
	}
	return result
}

// CanonicalizeSeries maps free-form series labels from contract text to the
// canonical enum. Unrecognized input reports false.
func CanonicalizeSeries(input string) (SeriesType, bool) {
	if input == "" {
		return "", false
	}

	normalized := strings.ToUpper(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]SeriesType{
		"MENSAIS":          SeriesMensal,
		"PARCELA MENSAL":   SeriesMensal,
		"CHAVE":            SeriesChaves,
		"NA CHAVE":         SeriesChaves,
		"NAS CHAVES":       SeriesChaves,
		"ENTREGA":          SeriesChaves,
		"SINAL":            SeriesAto,
		"ENTRADA":          SeriesAto,
		"NO ATO":           SeriesAto,
		"PARCELA UNICA":    SeriesUnica,
		"AVISTA":           SeriesUnica,
		"A VISTA":          SeriesUnica,
		"TRIMESTRAIS":      SeriesTrimestral,
		"ANUAIS":           SeriesAnual,
		"BALAO":            SeriesAnual,
		"BALOES":           SeriesAnual,
		"BIMESTRAIS":       SeriesBimestral,
		"BIENAIS":          SeriesBienal,
		"PARCELAS BIENAIS": SeriesBienal,
	}

	if s, ok := synonyms[normalized]; ok {
		return s, true
	}

	for _, s := range allSeriesTypes {
		if normalized == string(s) {
			return s, true
		}
	}

	return "", false
}
