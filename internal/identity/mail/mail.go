package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"net/url"

	"go.uber.org/zap"

	"github.com/example/animewatch/internal/platform/config"
)

var verifyTmpl = template.Must(template.New("verify").Parse(`<html>
<body style="font-family: sans-serif;">
  <h2>Welcome to AnimeWatch, {{.Username}}!</h2>
  <p>Confirm your email address to finish setting up your account.</p>
  <p><a href="{{.Link}}">Verify my email</a></p>
  <p>The link expires in 24 hours. If you did not sign up, ignore this message.</p>
</body>
</html>`))

// Sender delivers transactional mail over SMTP. With an incomplete SMTP
// config every send becomes a logged no-op, so local setups work
// without a mail server.
type Sender struct {
	cfg     config.SMTPConfig
	baseURL string
	log     *zap.Logger
}

func New(cfg config.SMTPConfig, baseURL string, log *zap.Logger) *Sender {
	return &Sender{cfg: cfg, baseURL: baseURL, log: log}
}

// SendVerification emails the signup confirmation link. Delivery runs
// in the background; registration never waits on the mail server.
func (s *Sender) SendVerification(email, username, token string) {
	if s == nil || email == "" {
		return
	}
	if !s.cfg.Enabled() {
		s.log.Info("mail disabled, skipping verification email", zap.String("email", email))
		return
	}

	link := fmt.Sprintf("%s/api/auth/verify?token=%s", s.baseURL, url.QueryEscape(token))

	var body bytes.Buffer
	if err := verifyTmpl.Execute(&body, struct {
		Username string
		Link     string
	}{Username: username, Link: link}); err != nil {
		s.log.Error("mail: render verification template", zap.Error(err))
		return
	}

	go func() {
		if err := s.send(email, "Verify your AnimeWatch account", body.Bytes()); err != nil {
			s.log.Warn("mail: verification email failed", zap.String("email", email), zap.Error(err))
			return
		}
		s.log.Info("mail: verification email sent", zap.String("email", email))
	}()
}

func (s *Sender) send(to, subject string, htmlBody []byte) error {
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.Write(htmlBody)

	addr := s.cfg.Host + ":" + s.cfg.Port
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, msg.Bytes())
}
