package mailer

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/rs/zerolog"
	gomail "gopkg.in/gomail.v2"

	"masterclass/internal/model"
)

//go:embed ticket_email.html
var ticketEmailHTML string

var ticketTmpl = template.Must(template.New("ticket_email").Parse(ticketEmailHTML))

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Mailer struct {
	cfg Config
	log *zerolog.Logger
}

func New(cfg Config, log *zerolog.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log}
}

type ticketEmailData struct {
	Name           string
	RegistrationID int
	ProgramName    string
	EventDate      string
}

// ComposeTicketBody renders the HTML confirmation body.
func ComposeTicketBody(reg *model.Registration) (string, error) {
	var buf bytes.Buffer
	err := ticketTmpl.Execute(&buf, ticketEmailData{
		Name:           reg.Name,
		RegistrationID: reg.ID,
		ProgramName:    reg.ProgramName,
		EventDate:      reg.EventDate.Format("2006-01-02"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render ticket email: %w", err)
	}
	return buf.String(), nil
}

// SendTicketEmail delivers the registration confirmation with the QR
// ticket attached as a PNG.
func (m *Mailer) SendTicketEmail(reg *model.Registration, qrPNG []byte) error {
	body, err := ComposeTicketBody(reg)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", reg.Email)
	msg.SetHeader("Subject", "Registration Confirmation")
	msg.SetHeader("Date", time.Now().Format(time.RFC1123Z))
	msg.SetBody("text/html", body)
	msg.Attach("registration_qr.png",
		gomail.SetHeader(map[string][]string{"Content-Type": {"image/png"}}),
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(qrPNG)
			return err
		}),
	)

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	if err := dialer.DialAndSend(msg); err != nil {
		m.log.Warn().Err(err).Str("email", reg.Email).Msg("failed to send ticket email")
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Str("email", reg.Email).Int("registration_id", reg.ID).Msg("ticket email sent")
	return nil
}
