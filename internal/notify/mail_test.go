package notify

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/DeafMist/news-collector/internal/config"
)

type recordingSender struct {
	sent []*gomail.Message
	err  error
}

func (r *recordingSender) DialAndSend(m ...*gomail.Message) error {
	r.sent = append(r.sent, m...)
	return r.err
}

func summary() Summary {
	return Summary{Keywords: []string{"반도체", "스마트폰"}, OutputPath: "news_results.csv", Fetched: 10, Stored: 42}
}

func TestBodyNamesKeywords(t *testing.T) {
	body := Body(summary())
	require.Contains(t, body, "반도체, 스마트폰")
	require.Contains(t, body, "news_results.csv")
	require.Contains(t, body, "42")
}

func TestNotifyComposesPlainTextMessage(t *testing.T) {
	rec := &recordingSender{}
	m := &Mailer{from: "bot@naver.com", to: "me@example.com", dialer: rec}

	require.NoError(t, m.Notify(context.Background(), summary()))
	require.Len(t, rec.sent, 1)

	msg := rec.sent[0]
	require.Equal(t, []string{"bot@naver.com"}, msg.GetHeader("From"))
	require.Equal(t, []string{"me@example.com"}, msg.GetHeader("To"))
	require.Equal(t, []string{Subject}, msg.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "text/plain")
}

func TestNotifyWrapsSendError(t *testing.T) {
	rec := &recordingSender{err: errors.New("535 authentication failed")}
	m := &Mailer{from: "bot@naver.com", to: "me@example.com", dialer: rec}

	err := m.Notify(context.Background(), summary())
	require.Error(t, err)
	require.ErrorIs(t, err, rec.err)
}

func TestNotifyRelayUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	require.NoError(t, l.Close())
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	m := NewMailer(config.Mail{Host: host, Port: port, Username: "bot@naver.com", Password: "x", To: "me@example.com"})

	err = m.Notify(context.Background(), summary())
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "send notification"))
}

func TestNotifyCanceledContext(t *testing.T) {
	rec := &recordingSender{}
	m := &Mailer{from: "a", to: "b", dialer: rec}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, m.Notify(ctx, summary()), context.Canceled)
	require.Empty(t, rec.sent)
}
