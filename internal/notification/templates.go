package notification

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// MaxBodyLength is the hard ceiling on notification body characters.
const MaxBodyLength = 120

var styleDirectives = map[Style]string{
	StyleHeckler:    "Be playfully teasing, mock their procrastination, use sarcasm",
	StyleStrategist: "Analyze their progress, give tactical advice, be analytical",
	StyleCompanion:  "Share persona lore/trivia, be warm, reference your backstory",
}

var kindDirectives = map[Kind]string{
	KindFunctional: "Reference their actual tasks. Push them to take action.",
	KindFlavor:     "Share character lore, give encouragement, or banter. Don't focus on tasks.",
}

const promptTemplate = `You are {{.Persona.Name}}. {{.Persona.Traits}}.

PERSONA LORE: {{.Persona.Lore}}

Generate a PWA push notification (MAX {{.MaxLength}} characters, must be under this limit).

CONTEXT:
- Time: {{.Time.DayOfWeek}} {{.Time.Period}}
- {{.TaskSummary}}
- Style: {{.StyleDirective}}
- {{.KindDirective}}
{{if eq .Time.Period "morning"}}
Mention the day ahead.
{{else if eq .Time.Period "evening"}}
Mention wrapping up or winding down.
{{end}}
DO NOT repeat these recent messages:
{{- range .Recent}}
- "{{.}}"
{{- else}}
- (none)
{{- end}}

Reply with ONLY the notification text. No quotes, no explanation. Max {{.MaxLength}} chars.`

var prompt = template.Must(template.New("nudge_prompt").Parse(promptTemplate))

type promptData struct {
	Persona        Persona
	Time           TimeContext
	TaskSummary    string
	StyleDirective string
	KindDirective  string
	Recent         []string
	MaxLength      int
}

// RenderPrompt builds the generation instruction for one subscriber.
func RenderPrompt(in GenerationInput) (string, error) {
	data := promptData{
		Persona:        in.Persona,
		Time:           in.Time,
		TaskSummary:    summarizeTasks(in.Tasks),
		StyleDirective: styleDirectives[in.Style],
		KindDirective:  kindDirectives[in.Kind],
		Recent:         firstN(in.Recent, maxRecentHints),
		MaxLength:      MaxBodyLength,
	}

	var buf bytes.Buffer
	if err := prompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

func summarizeTasks(tasks []Task) string {
	if len(tasks) == 0 {
		return "No pending tasks."
	}
	parts := make([]string, 0, maxPromptTasks)
	for _, t := range firstN(tasks, maxPromptTasks) {
		parts = append(parts, fmt.Sprintf("%q (%s)", t.Description, t.Priority))
	}
	return "Top tasks: " + strings.Join(parts, ", ")
}

func firstN[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
