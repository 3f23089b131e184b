// Package genai wraps the Anthropic client with the retry, timeout, and
// output-handling behavior every pipeline call site needs: prompts are
// capped, attempts time out individually, transient failures are
// retried with backoff, and structured output is parsed and validated
// before it reaches the caller.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/account-intel/internal/config"
	"github.com/sells-group/account-intel/internal/metrics"
	"github.com/sells-group/account-intel/internal/resilience"
	"github.com/sells-group/account-intel/pkg/anthropic"
)

// ErrEmptyResponse is returned when the provider replies with no
// extractable text. An empty completion is never a usable result.
var ErrEmptyResponse = errors.New("genai: empty response")

// ErrMalformedOutput wraps structured-output parse and validation
// failures. Callers treat it as recoverable: log, skip the document,
// move on.
var ErrMalformedOutput = errors.New("genai: malformed structured output")

// truncationMarker is appended whenever a prompt is cut to length.
const truncationMarker = "\n\n[content truncated]"

var validate = validator.New()

// Generator issues generation calls with capping, per-attempt timeouts,
// and retries.
type Generator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	policy    resilience.Policy
}

// New builds a Generator from the Anthropic section of the config.
func New(client anthropic.Client, cfg config.AnthropicConfig) *Generator {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	policy := resilience.DefaultPolicy()
	if cfg.MaxRetries > 0 {
		policy.MaxRetries = cfg.MaxRetries
	}
	policy.OnRetry = func(retry int, err error) {
		metrics.GenerationRetries.Inc()
		resilience.RetryLogger("anthropic", "create_message")(retry, err)
	}
	return &Generator{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   timeout,
		policy:    policy,
	}
}

// GenerateText sends the prompt and returns the extracted completion
// text. Transient provider failures are retried; an empty completion
// after a successful call is a hard error.
func (g *Generator) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	resp, err := resilience.Retry(ctx, g.policy, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return g.client.CreateMessage(attemptCtx, anthropic.MessageRequest{
			Model:     g.model,
			MaxTokens: g.maxTokens,
			System:    system,
			Messages: []anthropic.Message{
				{Role: "user", Content: prompt},
			},
		})
	})
	if err != nil {
		return "", eris.Wrap(err, "genai: create message")
	}

	resp.Usage.LogCost(g.model, "generate")

	text := extractText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// GenerateJSON sends the prompt, cleans the completion down to a JSON
// object, unmarshals it into out, and validates out's `validate` tags.
// Parse and validation failures return ErrMalformedOutput so callers
// can skip rather than abort.
func (g *Generator) GenerateJSON(ctx context.Context, system, prompt string, out any) error {
	text, err := g.GenerateText(ctx, system, prompt)
	if err != nil {
		return err
	}

	cleaned := cleanJSON(text)
	if cleaned == "" {
		return eris.Wrap(ErrMalformedOutput, "no JSON object in response")
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		zap.L().Debug("unparseable model output",
			zap.String("model", g.model),
			zap.Int("response_len", len(text)))
		return eris.Wrapf(ErrMalformedOutput, "unmarshal: %v", err)
	}
	if err := validate.Struct(out); err != nil {
		return eris.Wrapf(ErrMalformedOutput, "validate: %v", err)
	}
	return nil
}

// CapPrompt truncates s to at most maxChars runes, appending a marker
// when anything was cut. Truncation is rune-safe and deterministic.
func CapPrompt(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars]) + truncationMarker
}

// extractText prefers the flat convenience field, then falls back to
// joining nested text blocks.
func extractText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	if strings.TrimSpace(resp.Text) != "" {
		return resp.Text
	}
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

// cleanJSON strips markdown code fences and trims the string to the
// outermost JSON object. Returns "" when no object is present.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
