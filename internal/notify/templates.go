package notify

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/brokeshield/brokeshield/internal/markdown"
	"github.com/brokeshield/brokeshield/internal/model"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates/*.md
var templateFS embed.FS

// emailTemplate is a Markdown body with its subject line in front matter.
type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

type templateData struct {
	GoalID         string
	Description    string
	Deadline       string
	AmountSaved    string
	AmountRequired string
	AppName        string
}

var (
	parser    = markdown.NewParser()
	printer   = message.NewPrinter(language.English)
	templates = mustLoadTemplates(model.NotificationExpired, model.NotificationAccomplished)
)

func mustLoadTemplates(kinds ...string) map[string]emailTemplate {
	loaded := make(map[string]emailTemplate, len(kinds))
	for _, kind := range kinds {
		source, err := templateFS.ReadFile("templates/" + kind + ".md")
		if err != nil {
			panic(fmt.Sprintf("email template %s: %v", kind, err))
		}

		subject, _ := parser.ExtractFrontmatter(source)["subject"].(string)
		if subject == "" {
			panic(fmt.Sprintf("email template %s has no subject", kind))
		}

		loaded[kind] = emailTemplate{
			subject: template.Must(template.New(kind + "-subject").Parse(subject)),
			body:    template.Must(template.New(kind).Parse(string(markdown.StripFrontmatter(source)))),
		}
	}
	return loaded
}

// ExpiredEvent builds the notice sent when a goal's deadline passes without
// the goal being met.
func ExpiredEvent(goal *model.Goal, recipient, appName string) (model.NotificationEvent, error) {
	return render(model.NotificationExpired, goal, recipient, appName)
}

// AccomplishedEvent builds the congratulations sent when a completed goal is
// promoted.
func AccomplishedEvent(goal *model.Goal, recipient, appName string) (model.NotificationEvent, error) {
	return render(model.NotificationAccomplished, goal, recipient, appName)
}

func render(kind string, goal *model.Goal, recipient, appName string) (model.NotificationEvent, error) {
	tmpl := templates[kind]
	data := templateData{
		GoalID:         goal.ID,
		Description:    goal.Description,
		Deadline:       goal.Deadline.Format("2 January 2006"),
		AmountSaved:    formatAmount(goal.AmountSaved),
		AmountRequired: formatAmount(goal.AmountRequired),
		AppName:        appName,
	}

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return model.NotificationEvent{}, fmt.Errorf("failed to render %s subject: %w", kind, err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return model.NotificationEvent{}, fmt.Errorf("failed to render %s body: %w", kind, err)
	}

	html, err := parser.Parse(body.Bytes())
	if err != nil {
		return model.NotificationEvent{}, fmt.Errorf("failed to render %s html: %w", kind, err)
	}

	return model.NotificationEvent{
		Kind:           kind,
		GoalID:         goal.ID,
		RecipientEmail: recipient,
		Subject:        strings.TrimSpace(subject.String()),
		Body:           body.String(),
		HTML:           string(html),
	}, nil
}

// formatAmount renders m with thousands grouping, e.g. 12,345.67.
func formatAmount(m model.Money) string {
	sign := ""
	if m < 0 {
		sign = "-"
		m = -m
	}
	return sign + printer.Sprintf("%d", int64(m)/100) + fmt.Sprintf(".%02d", int64(m)%100)
}
