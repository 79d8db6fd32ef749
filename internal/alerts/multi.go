package alerts

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/polywatch/internal/config"
)

// MultiSender sends alerts to multiple destinations
type MultiSender struct {
	senders []Sender
}

// NewMultiSender creates a new multi-sender
func NewMultiSender(senders ...Sender) *MultiSender {
	return &MultiSender{
		senders: senders,
	}
}

// Len returns the number of configured senders
func (s *MultiSender) Len() int {
	return len(s.senders)
}

// Send sends the alert to all configured senders. Every sender is tried even
// when an earlier one fails.
func (s *MultiSender) Send(ctx context.Context, payload *AlertPayload) error {
	var errs []error
	for i, sender := range s.senders {
		if err := sender.Send(ctx, payload); err != nil {
			errs = append(errs, fmt.Errorf("sender %d: %w", i, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("multi-sender errors: %w", errors.Join(errs...))
	}

	return nil
}

// New builds the sender for the configured alert modes
func New(cfg *config.Config, log *logrus.Logger) *MultiSender {
	var senders []Sender
	for _, mode := range cfg.AlertModes() {
		switch mode {
		case "log":
			senders = append(senders, NewLogSender(log))
		case "discord":
			senders = append(senders, NewDiscordSender(cfg.DiscordWebhookURLs, cfg.AlertRPS))
		case "smtp":
			senders = append(senders, NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom, cfg.SMTPTo))
		}
	}
	return NewMultiSender(senders...)
}
