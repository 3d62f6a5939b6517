package core

import (
	"bytes"
	"fmt"
	htmltmpl "html/template"
	"net/mail"
	"path/filepath"
	"strings"
	"sync"
	texttmpl "text/template"
)

var (
	textTemplates *texttmpl.Template
	htmlTemplates *htmltmpl.Template
	tmplInit      sync.Once
)

type (
	EmailMessage struct {
		To      []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// ContextData is the data passed to email templates.
	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails.
	EmailService interface {
		// SendMessages sends messages concurrently.
		SendMessages(messages ...*EmailMessage)
	}
)

// ParseEmailTemplates loads all email templates from the assets dir.
// Parsing failures are reported and the templated contents stay empty.
func ParseEmailTemplates(conf *Config, logger Logger) {
	tmplInit.Do(func() {
		root := filepath.Join(conf.WorkDir, "assets", "templates", "email")

		var err error
		if textTemplates, err = texttmpl.ParseGlob(filepath.Join(root, "*.txt")); err != nil {
			logger.Error(fmt.Sprintf("core.ParseEmailTemplates: %v", err), err)
		}
		if htmlTemplates, err = htmltmpl.ParseGlob(filepath.Join(root, "*.gohtml")); err != nil {
			logger.Error(fmt.Sprintf("core.ParseEmailTemplates: %v", err), err)
		}
	})
}

func (m *EmailMessage) Render(conf *Config) error {
	data := ContextData{FrontendBaseURL: conf.FrontendBaseURL, Data: m.TemplateData}

	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	} else if m.TemplateName != "" && textTemplates != nil {
		var buff bytes.Buffer
		if err := textTemplates.ExecuteTemplate(&buff, m.TemplateName+".txt", data); err != nil {
			return err
		}
		m.TextContent = buff.String()
	}

	if m.TemplateName != "" && htmlTemplates != nil {
		if tmpl := htmlTemplates.Lookup(m.TemplateName + ".gohtml"); tmpl != nil {
			var buff bytes.Buffer
			if err := tmpl.Execute(&buff, data); err != nil {
				return err
			}
			m.HTMLContent = buff.String()
		}
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }

func (m *EmailMessage) RecipientsString() string {
	addrs := make([]string, 0, len(m.To))
	for _, addr := range m.To {
		addrs = append(addrs, addr.String())
	}
	return strings.Join(addrs, ", ")
}
