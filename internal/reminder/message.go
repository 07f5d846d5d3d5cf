package reminder

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/dukerupert/jobtrack/internal/email"
)

//go:embed templates/*
var templateFS embed.FS

// Reminder is the rendering context for one interview reminder.
type Reminder struct {
	To              string
	UserName        string
	Company         string
	Position        string
	InterviewType   string
	Location        string
	InterviewerName string
	When            string
	TimeUntil       string
	URL             string
}

// Subject returns the reminder email subject line.
func (r Reminder) Subject() string {
	return fmt.Sprintf("Interview Reminder: %s - %s", r.Company, r.InterviewType)
}

// Renderer turns a reminder into an email message.
type Renderer interface {
	Render(r Reminder) (email.Message, error)
}

// TemplateRenderer renders reminders with the embedded text and HTML templates.
type TemplateRenderer struct {
	text *texttemplate.Template
	html *htmltemplate.Template
}

func NewTemplateRenderer() (*TemplateRenderer, error) {
	text, err := texttemplate.ParseFS(templateFS, "templates/interview_reminder.txt")
	if err != nil {
		return nil, fmt.Errorf("parse text template: %w", err)
	}
	html, err := htmltemplate.ParseFS(templateFS, "templates/interview_reminder.html")
	if err != nil {
		return nil, fmt.Errorf("parse html template: %w", err)
	}
	return &TemplateRenderer{text: text, html: html}, nil
}

func (tr *TemplateRenderer) Render(r Reminder) (email.Message, error) {
	var text, html bytes.Buffer
	if err := tr.text.Execute(&text, r); err != nil {
		return email.Message{}, fmt.Errorf("render text body: %w", err)
	}
	if err := tr.html.Execute(&html, r); err != nil {
		return email.Message{}, fmt.Errorf("render html body: %w", err)
	}
	return email.Message{
		To:       r.To,
		Subject:  r.Subject(),
		TextBody: text.String(),
		HTMLBody: html.String(),
	}, nil
}
