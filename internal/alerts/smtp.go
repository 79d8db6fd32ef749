package alerts

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// SMTPSender sends alerts via email
type SMTPSender struct {
	host     string
	port     int
	user     string
	password string
	from     string
	to       []string

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender creates a new SMTP sender
func NewSMTPSender(host string, port int, user, password, from string, to []string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		from:     from,
		to:       to,
		sendMail: smtp.SendMail,
	}
}

// Send sends the alert via email
func (s *SMTPSender) Send(ctx context.Context, payload *AlertPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("[%s] %s scored %.1f (%s)", payload.Severity, payload.EventTitle, payload.Score, payload.Label)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(s.to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(buildEmailBody(payload))

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.password, s.host)
	}
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	if err := s.sendMail(addr, auth, s.from, s.to, []byte(msg.String())); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	return nil
}

func buildEmailBody(payload *AlertPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "POLYWATCH ALERT - %s\n", payload.Severity)
	b.WriteString("═══════════════════════════════════════\n\n")
	b.WriteString("EVENT\n")
	b.WriteString("─────────────────────────────────────\n")
	fmt.Fprintf(&b, "Title:          %s\n", payload.EventTitle)
	fmt.Fprintf(&b, "Slug:           %s\n", payload.Slug)
	fmt.Fprintf(&b, "URL:            %s\n", payload.EventURL)
	fmt.Fprintf(&b, "Window:         %s\n", payload.Lookback)
	fmt.Fprintf(&b, "Trades:         %d\n", payload.TradeCount)
	fmt.Fprintf(&b, "Score:          %.1f (%s)\n\n", payload.Score, payload.Label)

	if len(payload.Rationale) > 0 {
		b.WriteString("SIGNALS\n")
		b.WriteString("─────────────────────────────────────\n")
		for _, r := range payload.Rationale {
			fmt.Fprintf(&b, "- %s\n", r)
		}
		b.WriteString("\n")
	}

	if len(payload.Outcomes) > 0 {
		b.WriteString("OUTCOMES\n")
		b.WriteString("─────────────────────────────────────\n")
		for _, o := range payload.Outcomes {
			fmt.Fprintf(&b, "%-40s %5.1f %-10s trades=%d\n", truncate(o.Label, 40), o.Score, o.Verdict, o.Trades)
		}
		b.WriteString("\n")
	}

	b.WriteString("═══════════════════════════════════════\n")
	fmt.Fprintf(&b, "Environment: %s\n", payload.Environment)
	fmt.Fprintf(&b, "Generated: %s\n", payload.Timestamp.UTC().Format(time.RFC3339))
	b.WriteString("\nNote: these heuristics flag unusual trading patterns;\n")
	b.WriteString("they do NOT prove manipulation.\n")

	return b.String()
}
