package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

const alertLayout = `
<!DOCTYPE html>
<html>
<head>
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
    <style>
        body { background-color: #f6f9fc; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Arial, sans-serif; font-size: 15px; line-height: 1.5; margin: 0; padding: 0; }
        .container { margin: 0 auto; max-width: 640px; padding: 16px; }
        .main { background: #ffffff; border-radius: 8px; border: 1px solid #e1e9ee; padding: 20px; }
        h1 { font-size: 20px; margin: 0 0 16px 0; color: #32325d; }
        p { margin: 0 0 12px 0; color: #525f7f; }
        table.counts td { padding: 4px 12px 4px 0; }
        .error { background: #fff4f4; border-radius: 4px; color: #a12a2a; font-family: monospace; padding: 12px; }
        table.items { border-collapse: collapse; width: 100%; margin-top: 12px; }
        table.items th, table.items td { border-bottom: 1px solid #e1e9ee; font-size: 13px; padding: 6px; text-align: left; }
    </style>
</head>
<body>
    <div class="container">
        <div class="main">
            <h1>Nudge dispatch {{if .Error}}failed{{else}}degraded{{end}}</h1>
            <p>Run <code>{{.RunID}}</code> finished at {{.FinishedAt}}.</p>
            {{if .Error}}<div class="error">{{.Error}}</div>{{end}}
            <table class="counts">
                <tr><td>Total</td><td>{{.Total}}</td></tr>
                <tr><td>Sent</td><td>{{.Sent}}</td></tr>
                <tr><td>Failed</td><td>{{.Failed}}</td></tr>
                <tr><td>Skipped</td><td>{{.Skipped}}</td></tr>
            </table>
            {{if .Failures}}
            <table class="items">
                <tr><th>User</th><th>Outcome</th><th>Error</th></tr>
                {{range .Failures}}<tr><td>{{.Subscriber}}</td><td>{{.Outcome}}</td><td>{{.Error}}</td></tr>
                {{end}}
            </table>
            {{end}}
        </div>
    </div>
</body>
</html>
`

// maxAlertRows caps the per-item failure table.
const maxAlertRows = 20

var alertTmpl = template.Must(template.New("alert").Parse(alertLayout))

// RenderAlert returns the subject and HTML body for an operator alert.
func RenderAlert(summary *Summary, runErr error) (string, string, error) {
	if summary == nil {
		summary = &Summary{}
	}

	data := map[string]interface{}{
		"RunID":      summary.RunID,
		"FinishedAt": summary.FinishedAt.UTC().Format(time.RFC3339),
		"Total":      summary.Total,
		"Sent":       summary.Sent,
		"Failed":     summary.Failed,
		"Skipped":    summary.Skipped,
	}
	if runErr != nil {
		data["Error"] = runErr.Error()
	}

	var failures []Result
	for _, r := range summary.Results {
		if r.Outcome == OutcomeFailed || r.Outcome == OutcomeDeactivated {
			failures = append(failures, r)
		}
	}
	data["Failures"] = firstN(failures, maxAlertRows)

	var buf bytes.Buffer
	if err := alertTmpl.Execute(&buf, data); err != nil {
		return "", "", err
	}

	subject := fmt.Sprintf("[nudge] %d of %d deliveries failed", summary.Failed, summary.Sent+summary.Failed)
	if runErr != nil {
		subject = "[nudge] dispatch run failed"
	}
	return subject, buf.String(), nil
}
