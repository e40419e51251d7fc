package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

const (
	maxPromptTasks = 3
	maxRecentHints = 3
	ellipsis       = "..."
)

// CompletionRequest is what the generation service receives.
type CompletionRequest struct {
	Instructions string
	MaxTokens    int
}

// Completer is the external text-completion service.
type Completer interface {
	// Available reports whether the service is configured at all. It is
	// checked before every request so a missing credential never costs a call.
	Available() bool
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// GenerationInput carries everything the prompt is built from.
type GenerationInput struct {
	Persona Persona
	Kind    Kind
	Style   Style
	Time    TimeContext
	Tasks   []Task
	Recent  []string
}

// Content is the rendered body and whether it came from the service.
type Content struct {
	Text      string
	Generated bool
}

type Generator struct {
	completer Completer
	maxTokens int
	logger    *slog.Logger
}

func NewGenerator(completer Completer, maxTokens int, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{completer: completer, maxTokens: maxTokens, logger: logger}
}

// Generate always returns usable content: any failure on the generation path
// yields the persona fallback with Generated=false.
func (g *Generator) Generate(ctx context.Context, in GenerationInput) (content Content) {
	fallback := Content{Text: in.Persona.Fallback, Generated: false}

	defer func() {
		if r := recover(); r != nil {
			g.logger.ErrorContext(ctx, "content generation panicked", "panic", fmt.Sprint(r))
			content = fallback
		}
	}()

	text, err := g.generate(ctx, in)
	if err != nil {
		g.logger.WarnContext(ctx, "using fallback content", "persona", in.Persona.Name, "error", err)
		return fallback
	}
	return Content{Text: text, Generated: true}
}

func (g *Generator) generate(ctx context.Context, in GenerationInput) (string, error) {
	if g.completer == nil || !g.completer.Available() {
		return "", ErrGenerationUnavailable
	}

	instructions, err := RenderPrompt(in)
	if err != nil {
		return "", err
	}

	raw, err := g.completer.Complete(ctx, CompletionRequest{
		Instructions: instructions,
		MaxTokens:    g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}

	text := CleanGenerated(raw)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", ErrGenerationUnavailable)
	}
	return text, nil
}

// CleanGenerated trims whitespace, removes one pair of wrapping quotes and
// enforces MaxBodyLength.
func CleanGenerated(raw string) string {
	text := strings.TrimSpace(raw)
	text = stripQuotes(text)
	return truncate(text, MaxBodyLength)
}

var quotePairs = [][2]string{
	{`"`, `"`},
	{`'`, `'`},
	{"“", "”"},
}

func stripQuotes(s string) string {
	for _, q := range quotePairs {
		if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			return strings.TrimSpace(s[len(q[0]) : len(s)-len(q[1])])
		}
	}
	return s
}

// truncate counts runes, not bytes; an over-long text becomes exactly limit
// runes ending in an ellipsis.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-len(ellipsis)]) + ellipsis
}
