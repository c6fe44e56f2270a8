package email

import (
	"bytes"
	"edu-go/pkg/config"
	"embed"
	"fmt"
	"html/template"
	"net/smtp"
)

//go:embed templates/*.html
var builtin embed.FS

type EmailData struct {
	Code       string `json:"code"`
	CourseName string `json:"course_name"`
	Rating     int    `json:"rating"`
	ReviewLink string `json:"review_link"`
}

type Mailer struct {
	host      string
	addr      string
	from      string
	pass      string
	templates *template.Template
	send      func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New parses the built-in templates, then any overrides found under cfg.PathToHTML.
func New(cfg *config.Config) (*Mailer, error) {
	tmpl, err := template.ParseFS(builtin, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse built-in templates: %w", err)
	}
	if cfg.PathToHTML != "" {
		if overrides, err := tmpl.ParseGlob(cfg.PathToHTML + "*.html"); err == nil {
			tmpl = overrides
		}
	}
	return &Mailer{
		host:      cfg.SMTPHost,
		addr:      cfg.SMTPAddr,
		from:      cfg.Email,
		pass:      cfg.EmailPass,
		templates: tmpl,
		send:      smtp.SendMail,
	}, nil
}

func (m *Mailer) GenerateEmailHTML(name string, data EmailData) (string, error) {
	var buf bytes.Buffer
	if err := m.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}

func (m *Mailer) SendEmail(to []string, subject, html string) error {
	if m.addr == "" {
		return fmt.Errorf("smtp is not configured")
	}
	auth := smtp.PlainAuth("", m.from, m.pass, m.host)
	headers := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";"
	message := "Subject: " + subject + "\n" + headers + "\n\n" + html
	return m.send(m.addr, auth, m.from, to, []byte(message))
}

func (m *Mailer) SendCode(to, code string) error {
	html, err := m.GenerateEmailHTML("EmailCode.html", EmailData{Code: code})
	if err != nil {
		return err
	}
	return m.SendEmail([]string{to}, "Your verification code", html)
}

func (m *Mailer) SendNewReview(to, courseName string, rating int, link string) error {
	html, err := m.GenerateEmailHTML("NewReview.html", EmailData{CourseName: courseName, Rating: rating, ReviewLink: link})
	if err != nil {
		return err
	}
	return m.SendEmail([]string{to}, "New review for "+courseName, html)
}
