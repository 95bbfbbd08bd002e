package compact

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/steveyegge/mcp-tasks/internal/telemetry"
	"github.com/steveyegge/mcp-tasks/internal/types"
)

const (
	defaultModel    = "claude-3-5-haiku-20241022"
	maxRetries      = 3
	initialBackoff  = 1 * time.Second
	maxDigestTokens = 1024
)

// ErrAPIKeyRequired is returned when no API key is configured.
var ErrAPIKeyRequired = errors.New("API key required")

// haikuClient calls the Anthropic API to produce design digests.
type haikuClient struct {
	client         anthropic.Client
	model          anthropic.Model
	tmpl           *template.Template
	maxRetries     int
	initialBackoff time.Duration
}

// newHaikuClient builds the API client. ANTHROPIC_API_KEY takes precedence
// over the explicit key; extra options let tests point at a local server.
func newHaikuClient(apiKey, model string, opts ...option.RequestOption) (*haikuClient, error) {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set the ANTHROPIC_API_KEY environment variable", ErrAPIKeyRequired)
	}
	if model == "" {
		model = defaultModel
	}

	tmpl, err := template.New("digest").Parse(digestPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing digest template: %w", err)
	}

	aiMetricsOnce.Do(initAIMetrics)

	return &haikuClient{
		client:         anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...),
		model:          anthropic.Model(model),
		tmpl:           tmpl,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
	}, nil
}

// Summarize renders the digest prompt for the task and runs it through the
// model with bounded retries.
func (h *haikuClient) Summarize(ctx context.Context, task *types.Task) (string, error) {
	prompt, err := h.renderPrompt(task)
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return h.callWithRetry(ctx, prompt)
}

// aiMetrics holds lazily-initialized instruments for Anthropic API calls.
var aiMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

var aiMetricsOnce sync.Once

func initAIMetrics() {
	m := telemetry.Meter("github.com/steveyegge/mcp-tasks/ai")
	aiMetrics.inputTokens, _ = m.Int64Counter("mcptasks.ai.input_tokens",
		metric.WithDescription("Anthropic API input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.outputTokens, _ = m.Int64Counter("mcptasks.ai.output_tokens",
		metric.WithDescription("Anthropic API output tokens generated"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.duration, _ = m.Float64Histogram("mcptasks.ai.request.duration",
		metric.WithDescription("Anthropic API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

func (h *haikuClient) callWithRetry(ctx context.Context, prompt string) (string, error) {
	tracer := telemetry.Tracer("github.com/steveyegge/mcp-tasks/ai")
	ctx, span := tracer.Start(ctx, "anthropic.messages.new")
	defer span.End()
	span.SetAttributes(
		attribute.String("mcptasks.ai.model", string(h.model)),
		attribute.String("mcptasks.ai.operation", "digest"),
	)

	params := anthropic.MessageNewParams{
		Model:     h.model,
		MaxTokens: maxDigestTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	var lastErr error
	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := h.initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		t0 := time.Now()
		message, err := h.client.Messages.New(ctx, params)
		ms := float64(time.Since(t0).Milliseconds())

		if err == nil {
			modelAttr := attribute.String("mcptasks.ai.model", string(h.model))
			if aiMetrics.inputTokens != nil {
				aiMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
				aiMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
				aiMetrics.duration.Record(ctx, ms, metric.WithAttributes(modelAttr))
			}
			span.SetAttributes(
				attribute.Int64("mcptasks.ai.input_tokens", message.Usage.InputTokens),
				attribute.Int64("mcptasks.ai.output_tokens", message.Usage.OutputTokens),
				attribute.Int("mcptasks.ai.attempts", attempt+1),
			)

			if len(message.Content) == 0 {
				return "", fmt.Errorf("unexpected response format: no content blocks")
			}
			content := message.Content[0]
			if content.Type != "text" {
				return "", fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type)
			}
			return content.Text, nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", fmt.Errorf("non-retryable error: %w", err)
		}
	}

	if lastErr != nil {
		span.RecordError(lastErr)
		span.SetStatus(codes.Error, lastErr.Error())
	}
	return "", fmt.Errorf("failed after %d attempts: %w", h.maxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	return false
}

type digestData struct {
	Title       string
	Description string
	Design      string
	Context     []string
}

func (h *haikuClient) renderPrompt(task *types.Task) (string, error) {
	var buf strings.Builder
	data := digestData{
		Title:       task.Title,
		Description: task.Description,
		Design:      task.Design,
		Context:     task.SharedContext,
	}
	if err := h.tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const digestPromptTemplate = `You are distilling the accumulated working material of a software task into a short design note. The note MUST be significantly shorter than the material while keeping every decision that constrains future work.

**Task:** {{.Title}}

{{if .Description}}**Description:**
{{.Description}}
{{end}}
{{if .Design}}**Previous design note:**
{{.Design}}
{{end}}
{{if .Context}}**Shared context (oldest first):**
{{range .Context}}- {{.}}
{{end}}{{end}}
Write the note in this exact format:

**Approach:** [2-3 concise sentences on the chosen approach and why]

**Decisions:** [brief bullet points, only decisions that constrain future work]

**Open items:** [bullet points of unresolved questions, or "None"]

IMPORTANT: Be concise. Drop dead ends and superseded decisions.`
