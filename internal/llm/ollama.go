package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/billscan/billscan/internal/common"
)

// maxPromptText caps how much document text is sent to the model.
const maxPromptText = 3000

// OllamaConfig configures the local-model extraction client.
type OllamaConfig struct {
	BaseURL string        // default http://localhost:11434
	Model   string        // default "mistral"
	Timeout time.Duration // per-call budget, default 30s
}

// OllamaClient implements FieldExtractor against an Ollama /api/generate
// endpoint, requesting structured JSON output.
type OllamaClient struct {
	cfg    OllamaConfig
	rest   *resty.Client
	logger *slog.Logger
}

func NewOllamaClient(cfg OllamaConfig, logger *slog.Logger) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "mistral"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	rest := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)
	return &OllamaClient{cfg: cfg, rest: rest, logger: logger}
}

func (c *OllamaClient) ExtractFields(ctx context.Context, req ExtractRequest) (map[string]ExtractedValue, error) {
	if len(req.Fields) == 0 {
		return map[string]ExtractedValue{}, nil
	}
	start := time.Now()

	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"model":  c.cfg.Model,
			"prompt": buildPrompt(req),
			"stream": false,
			"format": "json",
		}).
		Post("/api/generate")
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, common.RecognitionTimeout("model call exceeded its time budget", err)
		}
		return nil, common.ModelUnavailable("model endpoint unreachable", err)
	}
	if resp.StatusCode() != 200 {
		return nil, common.ModelUnavailable(
			fmt.Sprintf("model endpoint returned status %d", resp.StatusCode()), nil)
	}

	content := gjson.GetBytes(resp.Body(), "response").String()
	out, err := c.parseResponse(req.Fields, []byte(content))
	if err != nil {
		return nil, err
	}

	c.logger.Debug("model extraction ok",
		"model", c.cfg.Model,
		"fields", len(req.Fields),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (c *OllamaClient) parseResponse(fields []FieldSpec, raw []byte) (map[string]ExtractedValue, error) {
	schema, err := BuildFieldsSchema(fields)
	if err != nil {
		return nil, common.InternalError("build response schema", err)
	}
	if err := ValidateAgainstSchema(schema, raw); err != nil {
		return nil, common.ModelUnavailable("model response failed schema validation", err)
	}

	parsed := gjson.ParseBytes(raw)
	conf := parsed.Get("confidence").Float()

	out := make(map[string]ExtractedValue, len(fields))
	for _, f := range fields {
		v := parsed.Get(f.Key)
		if !v.Exists() || v.Type == gjson.Null || strings.TrimSpace(v.String()) == "" {
			out[f.Key] = ExtractedValue{}
			continue
		}
		val := strings.TrimSpace(v.String())
		out[f.Key] = ExtractedValue{Value: &val, Confidence: conf}
	}
	return out, nil
}

func buildPrompt(req ExtractRequest) string {
	labels := make(map[string]string, len(req.Fields))
	for _, f := range req.Fields {
		labels[f.Key] = f.Label
	}
	labelJSON, _ := json.MarshalIndent(labels, "", "  ")

	text := req.Text
	if len(text) > maxPromptText {
		text = text[:maxPromptText]
	}

	var b strings.Builder
	b.WriteString("Extract the following fields from this billing document text. ")
	b.WriteString("Return ONLY a valid JSON object with field keys and their extracted values. ")
	b.WriteString("If a field is not found, set its value to null.\n\n")
	b.WriteString("Fields to extract:\n")
	b.Write(labelJSON)
	b.WriteString("\n\nDocument text:\n---\n")
	b.WriteString(text)
	b.WriteString("\n---\n\nReturn ONLY valid JSON like: {\"invoice_number\": \"INV-001\", \"date\": \"2024-01-15\"}")
	return b.String()
}
