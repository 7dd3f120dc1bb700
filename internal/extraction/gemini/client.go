// Package gemini runs an extraction pass against the Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/guirra-byte/contracts-extractor/internal/document"
	"github.com/guirra-byte/contracts-extractor/internal/extraction"
	"github.com/guirra-byte/contracts-extractor/internal/reconcile"
)

// Config for the Gemini client.
type Config struct {
	APIKey      string // if empty, falls back to env GEMINI_API_KEY
	Model       string // default gemini-2.5-flash
	Temperature float32
	MaxRetries  int           // attempts on rate-limit errors
	RetryDelay  time.Duration // wait between rate-limited attempts
	Task        extraction.Task
}

type Client struct {
	cfg    Config
	client *genai.Client
	model  *genai.GenerativeModel
	log    *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 30 * time.Second
	}
	if cfg.Task.Name == "" {
		cfg.Task = extraction.InstallmentSeries()
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(cfg.Temperature)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(extraction.BuildSystemPrompt(cfg.Task))},
	}

	return &Client{cfg: cfg, client: client, model: model, log: logger}, nil
}

// Extract implements extraction.Pass. Rate-limited attempts are retried with
// a fixed delay; every other error fails the pass immediately.
func (c *Client) Extract(ctx context.Context, doc *document.Document) ([]reconcile.Unit, extraction.PassMeta, error) {
	rid := uuid.New().String()
	start := time.Now()
	meta := extraction.PassMeta{Name: c.cfg.Task.Name, Model: c.cfg.Model}

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"task", c.cfg.Task.Name,
		"model", c.cfg.Model,
		"chunks", len(doc.Chunks),
		"pages", doc.PageCount(),
	)

	schema := extraction.BuildUnitJSONSchema()
	prompt := extraction.BuildUserPrompt(doc) +
		"\n\nReturn ONLY JSON that matches this JSON Schema:\n" + mustJSON(schema)

	content, err := c.generate(ctx, rid, prompt)
	if err != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, meta, err
	}
	rawContent := []byte(strings.TrimSpace(content))

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

func (c *Client) generate(ctx context.Context, rid, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
		if err == nil {
			var parts []string
			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if text, ok := part.(genai.Text); ok {
						parts = append(parts, string(text))
					}
				}
			}
			if len(parts) == 0 {
				return "", fmt.Errorf("no text parts in gemini response")
			}
			return strings.Join(parts, "\n"), nil
		}

		lastErr = err
		if !isRateLimit(err) || attempt == c.cfg.MaxRetries-1 {
			return "", err
		}
		c.log.Warn("llm.extract.rate_limited",
			"req_id", rid,
			"attempt", attempt+1,
			"max_retries", c.cfg.MaxRetries,
			"retry_delay", c.cfg.RetryDelay.String(),
		)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.cfg.RetryDelay):
		}
	}
	return "", fmt.Errorf("gemini retries exhausted: %w", lastErr)
}

func isRateLimit(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "429") ||
		strings.Contains(s, "rate limit") ||
		strings.Contains(s, "quota") ||
		strings.Contains(s, "resource exhausted")
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// Close releases the underlying API client.
func (c *Client) Close() error {
	return c.client.Close()
}
