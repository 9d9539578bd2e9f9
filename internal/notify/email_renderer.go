package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

const defaultEmailSubject = "Watchlist alert"

// NotificationData is what the email template renders: a subject line and the report lines under it.
type NotificationData struct {
	Subject string
	Lines   []string
}

// NewNotificationData splits a message body into subject and lines. When title is set
// and the first line is the header carrying it, that line becomes the subject.
// Otherwise the subject is the title, or a generic one, and every line is kept.
func NewNotificationData(text, title string) NotificationData {
	lines := strings.Split(strings.TrimRight(text, lineSeparator), lineSeparator)
	if title != "" && len(lines) > 1 && strings.Contains(lines[0], title) {
		return NotificationData{Subject: lines[0], Lines: lines[1:]}
	}

	subject := title
	if subject == "" {
		subject = defaultEmailSubject
	}
	return NotificationData{Subject: subject, Lines: lines}
}

type emailRow struct {
	Text  string
	Trend string
}

type emailView struct {
	Subject string
	Rows    []emailRow
}

// rowTrend picks the row class from the line's leading trend glyph.
func rowTrend(line string) string {
	switch {
	case strings.HasPrefix(line, "▲"):
		return "up"
	case strings.HasPrefix(line, "▼"):
		return "down"
	default:
		return "flat"
	}
}

// RenderedMessage is an email body in both formats.
type RenderedMessage struct {
	Subject string
	Text    string
	HTML    string
}

// HTMLEmailRenderer renders notifications as HTML emails with a plain text fallback.
type HTMLEmailRenderer struct {
	tmpl *template.Template
}

// NewHTMLEmailRenderer creates a renderer with the default email template.
func NewHTMLEmailRenderer() *HTMLEmailRenderer {
	t := template.Must(template.New("email").Parse(emailHTMLTemplate))
	return &HTMLEmailRenderer{tmpl: t}
}

// Render produces an HTML email with plain text alternative.
func (r *HTMLEmailRenderer) Render(data NotificationData) (*RenderedMessage, error) {
	view := emailView{Subject: data.Subject}
	for _, line := range data.Lines {
		view.Rows = append(view.Rows, emailRow{Text: line, Trend: rowTrend(line)})
	}

	var htmlBuf bytes.Buffer
	if err := r.tmpl.Execute(&htmlBuf, view); err != nil {
		return nil, fmt.Errorf("failed to render HTML template: %w", err)
	}

	return &RenderedMessage{
		Subject: data.Subject,
		Text:    renderPlainText(data),
		HTML:    htmlBuf.String(),
	}, nil
}

func renderPlainText(data NotificationData) string {
	var sb strings.Builder

	sb.WriteString(data.Subject + "\n")
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")
	for _, line := range data.Lines {
		sb.WriteString(line + "\n")
	}

	return sb.String()
}
