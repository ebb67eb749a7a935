package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// Subjects of the account emails.
const (
	SubjectVerification  = "Verify your email"
	SubjectPasswordReset = "Reset your password"
	SubjectWelcome       = "Welcome to Our Platform!"
)

// Composer renders account emails from the embedded templates.
type Composer struct {
	appURL    string
	templates *template.Template
}

// NewComposer parses the templates. appURL prefixes reset links.
func NewComposer(appURL string) (*Composer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("mail: parse templates: %w", err)
	}
	return &Composer{appURL: strings.TrimRight(appURL, "/"), templates: tmpl}, nil
}

// ResetLink builds APP_URL/auth/reset-password/<token>.
func (c *Composer) ResetLink(token string) string {
	return c.appURL + "/auth/reset-password/" + url.PathEscape(token)
}

// Verification renders the six digit code email.
func (c *Composer) Verification(to, code string) (Message, error) {
	return c.render(KindVerification, to, SubjectVerification, "verification.html", map[string]string{"Code": code})
}

// PasswordReset renders the reset link email.
func (c *Composer) PasswordReset(to, token string) (Message, error) {
	return c.render(KindPasswordReset, to, SubjectPasswordReset, "password_reset.html", map[string]string{"Link": c.ResetLink(token)})
}

// Welcome renders the post-verification greeting.
func (c *Composer) Welcome(to string) (Message, error) {
	return c.render(KindWelcome, to, SubjectWelcome, "welcome.html", nil)
}

func (c *Composer) render(kind, to, subject, name string, data any) (Message, error) {
	var buf bytes.Buffer
	if err := c.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return Message{}, fmt.Errorf("mail: render %s: %w", name, err)
	}
	return Message{Kind: kind, To: to, Subject: subject, HTML: buf.String()}, nil
}
