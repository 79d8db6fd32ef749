package alerts

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogSender sends alerts to the logger
type LogSender struct {
	log *logrus.Logger
}

// NewLogSender creates a new log sender
func NewLogSender(log *logrus.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send logs the alert
func (s *LogSender) Send(ctx context.Context, payload *AlertPayload) error {
	s.log.WithFields(logrus.Fields{
		"severity":  payload.Severity,
		"slug":      payload.Slug,
		"event":     payload.EventTitle,
		"label":     payload.Label,
		"score":     payload.Score,
		"trades":    payload.TradeCount,
		"rationale": strings.Join(payload.Rationale, "; "),
	}).Warn("Alert generated")
	return nil
}
