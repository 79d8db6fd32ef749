package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamashdown/polywatch/internal/config"
	"github.com/liamashdown/polywatch/internal/model"
)

func samplePayload() *AlertPayload {
	result := &model.AggregateScore{
		Event:     model.EventMetadata{ID: 9, Title: "Who wins?", Slug: "who-wins"},
		Trades:    make([]model.Trade, 12),
		Score:     71.5,
		Label:     model.LabelSuspicious,
		Rationale: []string{"ping-pong wallets=67%", "round trips=75%"},
	}
	for i := 0; i < 7; i++ {
		result.Outcomes = append(result.Outcomes, model.GroupScore{Label: "Yes", Score: float64(70 - i), Verdict: model.LabelSuspicious})
	}
	return NewPayload(result, "who-wins", time.Hour, "test", time.Unix(1700000000, 0))
}

func TestNewPayload(t *testing.T) {
	p := samplePayload()

	assert.Equal(t, SeverityAlert, p.Severity)
	assert.Equal(t, "https://polymarket.com/event/who-wins", p.EventURL)
	assert.Equal(t, 12, p.TradeCount)
	assert.Len(t, p.Outcomes, maxOutcomes)
	assert.Equal(t, 70.0, p.Outcomes[0].Score)

	untitled := NewPayload(&model.AggregateScore{Label: model.LabelWatch}, "slug-only", 0, "", time.Now())
	assert.Equal(t, "slug-only", untitled.EventTitle)
	assert.Equal(t, SeverityWarn, untitled.Severity)
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		label model.Label
		want  Severity
	}{
		{model.LabelSuspicious, SeverityAlert},
		{model.LabelWatch, SeverityWarn},
		{model.LabelNormal, SeverityInfo},
		{"other", SeverityInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SeverityFor(tt.label), string(tt.label))
	}
}

func TestDiscordSenderPostsEmbed(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender([]string{srv.URL}, 1000)
	require.NoError(t, s.Send(context.Background(), samplePayload()))

	embeds := got["embeds"].([]interface{})
	require.Len(t, embeds, 1)
	embed := embeds[0].(map[string]interface{})
	assert.Equal(t, "https://polymarket.com/event/who-wins", embed["url"])
	assert.Contains(t, embed["description"], "71.5/100")
	assert.Equal(t, float64(0xFF0000), embed["color"])
}

func TestDiscordSenderTripsBreaker(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewDiscordSender([]string{srv.URL}, 1000)
	for i := 0; i < 3; i++ {
		err := s.Send(context.Background(), samplePayload())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected status 500")
	}

	err := s.Send(context.Background(), samplePayload())
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDiscordSenderFansOut(t *testing.T) {
	var ok, failed int32
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&ok, 1)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&failed, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer bad.Close()

	s := NewDiscordSender([]string{bad.URL, good.URL}, 1000)
	err := s.Send(context.Background(), samplePayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook 0")
	assert.Equal(t, int32(1), atomic.LoadInt32(&ok))
	assert.Equal(t, int32(1), atomic.LoadInt32(&failed))
}

func TestSMTPSender(t *testing.T) {
	s := NewSMTPSender("mail.local", 2525, "", "", "polywatch@example.com", []string{"ops@example.com", "oncall@example.com"})

	var gotAddr string
	var gotMsg string
	var gotAuth smtp.Auth
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotAuth = a
		gotMsg = string(msg)
		assert.Len(t, to, 2)
		return nil
	}

	require.NoError(t, s.Send(context.Background(), samplePayload()))
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Nil(t, gotAuth)
	assert.Contains(t, gotMsg, "To: ops@example.com, oncall@example.com\r\n")
	assert.Contains(t, gotMsg, "Subject: [ALERT] Who wins? scored 71.5 (suspicious)")
	assert.Contains(t, gotMsg, "- ping-pong wallets=67%\n")
	assert.True(t, strings.HasSuffix(gotMsg, "they do NOT prove manipulation.\n"))
}

type fakeSender struct {
	err   error
	calls int
}

func (f *fakeSender) Send(ctx context.Context, payload *AlertPayload) error {
	f.calls++
	return f.err
}

func TestMultiSender(t *testing.T) {
	first := &fakeSender{err: errors.New("down")}
	second := &fakeSender{}

	err := NewMultiSender(first, second).Send(context.Background(), samplePayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sender 0: down")
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)

	assert.NoError(t, NewMultiSender(second).Send(context.Background(), samplePayload()))
}

func TestNewFromConfig(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	cfg := &config.Config{
		AlertMode:          "log, discord,smtp",
		AlertRPS:           1,
		DiscordWebhookURLs: []string{"http://localhost/hook"},
		SMTPHost:           "mail.local",
		SMTPTo:             []string{"ops@example.com"},
	}
	assert.Equal(t, 3, New(cfg, log).Len())

	cfg.AlertMode = ""
	assert.Equal(t, 0, New(cfg, log).Len())
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"short", "Who wins?", 20, "Who wins?"},
		{"ascii cut", "abcdefghij", 8, "abcde..."},
		{"multibyte kept whole", "Élection présidentielle", 10, "Électio..."},
		{"emoji", "🚨🚨🚨🚨🚨🚨", 5, "🚨🚨..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.maxLen)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, utf8.RuneCountInString(got), tt.maxLen)
		})
	}
}
