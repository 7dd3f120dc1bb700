package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/guirra-byte/contracts-extractor/internal/document"
	"github.com/guirra-byte/contracts-extractor/internal/extraction"
	"github.com/guirra-byte/contracts-extractor/internal/reconcile"
)

// Extract implements extraction.Pass using text-only chat/completions. The
// reply is validated strictly against the unit schema; a single fence-strip
// retry is allowed before the pass fails.
func (c *Client) Extract(ctx context.Context, doc *document.Document) ([]reconcile.Unit, extraction.PassMeta, error) {
	rid := uuid.New().String()
	start := time.Now()
	meta := extraction.PassMeta{Name: c.cfg.Task.Name, Model: c.cfg.Model}

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"task", c.cfg.Task.Name,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"chunks", len(doc.Chunks),
		"pages", doc.PageCount(),
	)

	schema := extraction.BuildUnitJSONSchema()
	sys := extraction.BuildSystemPrompt(c.cfg.Task)
	user := extraction.BuildUserPrompt(doc)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": sys},
			{"role": "user", "content": user + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, httpErr := c.post(ctx, endpoint, body)
	if httpErr != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, meta, httpErr
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, meta, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.extract.no_choices",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, meta, fmt.Errorf("no choices in openai response")
	}
	rawContent := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))

	// Validate strictly first.
	if err := extraction.ValidateJSONAgainstSchema(schema, rawContent); err != nil {
		cleaned := extraction.StripCodeFence(rawContent)
		if vErr := extraction.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			c.log.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", vErr, "content", string(rawContent),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return nil, meta, fmt.Errorf("schema validation failed: %w", vErr)
		}
		c.log.Warn("llm.extract.fence_strip_applied",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		rawContent = cleaned
	}

	units, err := extraction.DecodeUnits(rawContent)
	if err != nil {
		c.log.Error("llm.extract.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, meta, err
	}

	meta.Elapsed = time.Since(start)
	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"task", c.cfg.Task.Name,
		"units", len(units),
		"elapsed_ms", meta.Elapsed.Milliseconds(),
	)
	return units, meta, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.log.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(resp.Body)
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, buf.String())
	}

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	return buf.Bytes(), nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
