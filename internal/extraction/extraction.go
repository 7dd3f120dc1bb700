// Package extraction turns a segmented contract document into structured
// unit records by prompting an LLM provider and validating its JSON reply.
// Each provider client implements Pass; passes run independently and their
// outputs are merged downstream.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/guirra-byte/contracts-extractor/constants"
	"github.com/guirra-byte/contracts-extractor/internal/document"
	"github.com/guirra-byte/contracts-extractor/internal/reconcile"
)

// Pass extracts unit records from a segmented document. Implementations must
// return records that already passed schema validation; a Pass that cannot
// produce a valid payload returns an error and contributes nothing.
type Pass interface {
	Extract(ctx context.Context, doc *document.Document) ([]reconcile.Unit, PassMeta, error)
}

// PassMeta describes one finished pass for logging and run records.
type PassMeta struct {
	Name    string
	Model   string
	Elapsed time.Duration
}

// Task narrows a pass to one slice of the contract. The instructions are
// appended to the shared system prompt so every provider hunts for the same
// fields when given the same task.
type Task struct {
	Name         string
	Instructions []string
}

// ContractInformation covers per-unit commercial fields: identifier, buyer,
// price, area and signing date.
func ContractInformation() Task {
	return Task{
		Name: "contract_information",
		Instructions: []string{
			"Focus on: unitCode, sellValue, buyerName, areaM2, pricePerM2, signingDate.",
			"sellValue is the TOTAL property value ('Preço Total', 'Valor Total', 'Preço da Unidade'); never an installment, partial payment or commission.",
			"pricePerM2 = sellValue / areaM2 rounded to 2 decimals; compute it only when both operands are present and cite it with chunk_id 'calculated'.",
			"signingDate usually sits on the last pages next to the city/state line; output ISO-8601 (YYYY-MM-DD).",
			"If several buyers share one unit, keep the first buyerName only.",
			"Unless the contract says otherwise, a unit inherits buyerName, areaM2 and signingDate from the previous unit.",
		},
	}
}

// InstallmentSeries covers the payment schedule of each unit.
func InstallmentSeries() Task {
	return Task{
		Name: "installment_series",
		Instructions: []string{
			"Focus on: unitCode and installmentPlans (totalInstallments, series, indexerCode, firstDueDate, totalValue, installmentAmount).",
			"series is one of MENSAL, CHAVES, ATO, UNICA, TRIMESTRAL, ANUAL, BIMESTRAL, BIENAL; UNICA is a single payment after the recurring ones.",
			"indexerCode is one of REAL, INCC, IPCA; omit it when the plan names no correction index.",
			"A unit usually carries several plans (e.g. ATO down payment plus MENSAL series); list every plan you find.",
			"firstDueDate must be ISO-8601 (YYYY-MM-DD).",
		},
	}
}

// DecodeUnits unmarshals a validated provider payload into unit records and
// normalizes absent sources/confidence so merge never sees nil maps.
func DecodeUnits(raw []byte) ([]reconcile.Unit, error) {
	var payload struct {
		Units []reconcile.Unit `json:"units"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode units: %w", err)
	}
	for i := range payload.Units {
		if payload.Units[i].Fields == nil {
			payload.Units[i].Fields = map[string]any{}
		}
		if payload.Units[i].Confidence == nil {
			payload.Units[i].Confidence = map[string]constants.Confidence{}
		}
		normalizeUnit(&payload.Units[i])
	}
	return payload.Units, nil
}

// normalizeUnit canonicalizes enum-valued content after decoding:
// confidence labels and the series/indexer codes inside installment plans.
// Schema validation already pins providers to the canonical values; this
// keeps merge and reporting canonical when a synonym slips through a
// relaxed schema.
func normalizeUnit(u *reconcile.Unit) {
	for field, c := range u.Confidence {
		if canon, ok := constants.ParseConfidence(string(c)); ok {
			u.Confidence[field] = canon
		}
	}

	plans, ok := u.Fields["installmentPlans"].([]any)
	if !ok {
		return
	}
	for _, p := range plans {
		plan, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if s, ok := plan["series"].(string); ok {
			if canon, ok := constants.CanonicalizeSeries(s); ok {
				plan["series"] = string(canon)
			}
		}
		if s, ok := plan["indexerCode"].(string); ok {
			if canon, ok := constants.CanonicalizeIndexer(s); ok {
				plan["indexerCode"] = string(canon)
			}
		}
	}
}
