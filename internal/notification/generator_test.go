package notification

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInput() GenerationInput {
	return GenerationInput{
		Persona: Personas["p1"],
		Kind:    KindFunctional,
		Style:   StyleHeckler,
		Time:    TimeContext{Hour: 9, DayOfWeek: "Tuesday", Period: PeriodMorning, Location: "UTC"},
		Tasks: []Task{
			{Description: "File taxes", Priority: "high"},
			{Description: "Call mom", Priority: "medium"},
		},
		Recent: []string{"Sir, the taxes remain unfiled."},
	}
}

func TestGenerator_Generate(t *testing.T) {
	longText := strings.Repeat("á", 150)

	tests := []struct {
		name          string
		completer     Completer
		wantText      string
		wantGenerated bool
	}{
		{
			name: "success",
			completer: &MockCompleter{CompleteFunc: func(ctx context.Context, req CompletionRequest) (string, error) {
				return "  Sir, the taxes will not file themselves.  ", nil
			}},
			wantText:      "Sir, the taxes will not file themselves.",
			wantGenerated: true,
		},
		{
			name: "strips double quotes",
			completer: &MockCompleter{CompleteFunc: func(ctx context.Context, req CompletionRequest) (string, error) {
				return `"Do the thing."`, nil
			}},
			wantText:      "Do the thing.",
			wantGenerated: true,
		},
		{
			name: "strips curly quotes",
			completer: &MockCompleter{CompleteFunc: func(ctx context.Context, req CompletionRequest) (string, error) {
				return "“Do the thing.”", nil
			}},
			wantText:      "Do the thing.",
			wantGenerated: true,
		},
		{
			name: "truncates long output",
			completer: &MockCompleter{CompleteFunc: func(ctx context.Context, req CompletionRequest) (string, error) {
				return longText, nil
			}},
			wantText:      strings.Repeat("á", 117) + "...",
			wantGenerated: true,
		},
		{
			name:          "unavailable",
			completer:     &MockCompleter{AvailableFunc: func() bool { return false }},
			wantText:      Personas["p1"].Fallback,
			wantGenerated: false,
		},
		{
			name:          "nil completer",
			completer:     nil,
			wantText:      Personas["p1"].Fallback,
			wantGenerated: false,
		},
		{
			name: "service error",
			completer: &MockCompleter{CompleteFunc: func(ctx context.Context, req CompletionRequest) (string, error) {
				return "", errors.New("API error (500)")
			}},
			wantText:      Personas["p1"].Fallback,
			wantGenerated: false,
		},
		{
			name: "empty after cleanup",
			completer: &MockCompleter{CompleteFunc: func(ctx context.Context, req CompletionRequest) (string, error) {
				return `  ""  `, nil
			}},
			wantText:      Personas["p1"].Fallback,
			wantGenerated: false,
		},
		{
			name: "panic is contained",
			completer: &MockCompleter{CompleteFunc: func(ctx context.Context, req CompletionRequest) (string, error) {
				panic("boom")
			}},
			wantText:      Personas["p1"].Fallback,
			wantGenerated: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(tt.completer, 60, nil)
			got := g.Generate(context.Background(), testInput())
			assert.Equal(t, tt.wantText, got.Text)
			assert.Equal(t, tt.wantGenerated, got.Generated)
		})
	}
}

func TestGenerator_PassesMaxTokens(t *testing.T) {
	var got CompletionRequest
	g := NewGenerator(&MockCompleter{CompleteFunc: func(ctx context.Context, req CompletionRequest) (string, error) {
		got = req
		return "ok", nil
	}}, 60, nil)

	g.Generate(context.Background(), testInput())
	assert.Equal(t, 60, got.MaxTokens)
	assert.Contains(t, got.Instructions, "You are Alfred.")
}

func TestCleanGenerated_Length(t *testing.T) {
	exact := strings.Repeat("x", MaxBodyLength)
	assert.Equal(t, exact, CleanGenerated(exact))

	over := CleanGenerated(strings.Repeat("x", MaxBodyLength+1))
	assert.Equal(t, MaxBodyLength, utf8.RuneCountInString(over))
	assert.True(t, strings.HasSuffix(over, "..."))
}

func TestRenderPrompt(t *testing.T) {
	t.Run("functional morning with tasks and history", func(t *testing.T) {
		out, err := RenderPrompt(testInput())
		require.NoError(t, err)

		assert.Contains(t, out, "You are Alfred. British butler")
		assert.Contains(t, out, "PERSONA LORE: Served the Wayne family")
		assert.Contains(t, out, "Time: Tuesday morning")
		assert.Contains(t, out, `Top tasks: "File taxes" (high), "Call mom" (medium)`)
		assert.Contains(t, out, styleDirectives[StyleHeckler])
		assert.Contains(t, out, kindDirectives[KindFunctional])
		assert.Contains(t, out, "Mention the day ahead.")
		assert.NotContains(t, out, "winding down")
		assert.Contains(t, out, `- "Sir, the taxes remain unfiled."`)
		assert.Contains(t, out, "MAX 120 characters")
	})

	t.Run("flavor evening without tasks or history", func(t *testing.T) {
		in := testInput()
		in.Kind = KindFlavor
		in.Style = StyleCompanion
		in.Time.Period = PeriodEvening
		in.Tasks = nil
		in.Recent = nil

		out, err := RenderPrompt(in)
		require.NoError(t, err)

		assert.Contains(t, out, "No pending tasks.")
		assert.Contains(t, out, kindDirectives[KindFlavor])
		assert.Contains(t, out, styleDirectives[StyleCompanion])
		assert.Contains(t, out, "Mention wrapping up or winding down.")
		assert.NotContains(t, out, "Mention the day ahead.")
		assert.Contains(t, out, "- (none)")
	})

	t.Run("caps tasks and history at three", func(t *testing.T) {
		in := testInput()
		in.Tasks = []Task{{"a", "high"}, {"b", "high"}, {"c", "low"}, {"d", "low"}}
		in.Recent = []string{"r1", "r2", "r3", "r4"}

		out, err := RenderPrompt(in)
		require.NoError(t, err)

		assert.Contains(t, out, `"c" (low)`)
		assert.NotContains(t, out, `"d" (low)`)
		assert.Contains(t, out, `- "r3"`)
		assert.NotContains(t, out, `- "r4"`)
	})
}

func TestLookupPersona(t *testing.T) {
	assert.Equal(t, "Alfred", LookupPersona("p1").Name)
	assert.Equal(t, DefaultPersona, LookupPersona(""))
	assert.Equal(t, DefaultPersona, LookupPersona("p99"))
	for id, p := range Personas {
		assert.NotEmpty(t, p.Fallback, "persona %s", id)
	}
}
