package mail

import (
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTransport struct {
	mu      sync.Mutex
	sent    []Message
	err     error
	started chan struct{}
	release chan struct{}
}

func (r *recordingTransport) Send(ctx context.Context, msg Message) error {
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

func (r *recordingTransport) Name() string { return "recording" }

func (r *recordingTransport) messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

type captureQueue struct{ msgs []Message }

func (c *captureQueue) Enqueue(msg Message) bool {
	c.msgs = append(c.msgs, msg)
	return true
}

func TestRenderVerificationEscapesValues(t *testing.T) {
	body, err := RenderVerification("http://app/verify-email?token=a&b", "<tok>", "24 hours")
	require.NoError(t, err)
	assert.Contains(t, body, "Verify Email")
	assert.Contains(t, body, "&lt;tok&gt;")
	assert.Contains(t, body, "24 hours")
	assert.NotContains(t, body, "<tok>")
}

func TestRenderPasswordReset(t *testing.T) {
	body, err := RenderPasswordReset("http://app/reset-password?token=x", "15 minutes")
	require.NoError(t, err)
	assert.Contains(t, body, "Reset Password")
	assert.Contains(t, body, "15 minutes")
}

func TestMailerBuildsLinks(t *testing.T) {
	q := &captureQueue{}
	m := NewMailer(q, "http://localhost:3000/", 24*time.Hour, 15*time.Minute)

	require.NoError(t, m.SendVerification(context.Background(), "a@x.io", "tok.en"))
	require.NoError(t, m.SendPasswordReset(context.Background(), "a@x.io", "reset"))
	require.Len(t, q.msgs, 2)

	verify := q.msgs[0]
	assert.Equal(t, []string{"a@x.io"}, verify.To)
	assert.Equal(t, verificationSubject, verify.Subject)
	assert.Equal(t, KindVerification, verify.Kind)
	assert.Contains(t, verify.HTML, "http://localhost:3000/verify-email?token=tok.en")
	assert.Contains(t, verify.HTML, "24 hours")

	reset := q.msgs[1]
	assert.Equal(t, passwordResetSubject, reset.Subject)
	assert.Equal(t, KindPasswordReset, reset.Kind)
	assert.Contains(t, reset.HTML, "http://localhost:3000/reset-password?token=reset")
	assert.Contains(t, reset.HTML, "15 minutes")
}

func TestHumanDuration(t *testing.T) {
	cases := map[time.Duration]string{
		time.Hour:        "1 hour",
		24 * time.Hour:   "24 hours",
		15 * time.Minute: "15 minutes",
		time.Minute:      "1 minute",
		90 * time.Second: "1m30s",
		0:                "a short time",
	}
	for in, want := range cases {
		assert.Equal(t, want, humanDuration(in), in.String())
	}
}

func TestDispatcherDeliversAndDrains(t *testing.T) {
	tr := &recordingTransport{}
	d := NewDispatcher(tr, 10, 2, zerolog.Nop())

	for i := 0; i < 5; i++ {
		assert.True(t, d.Enqueue(Message{To: []string{"a@x.io"}, Kind: KindVerification}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	assert.Len(t, tr.messages(), 5)

	assert.False(t, d.Enqueue(Message{Kind: KindVerification}), "closed dispatcher must reject")
	require.NoError(t, d.Close(ctx), "close is idempotent")
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	tr := &recordingTransport{started: make(chan struct{}, 1), release: make(chan struct{})}
	d := NewDispatcher(tr, 1, 1, zerolog.Nop())

	require.True(t, d.Enqueue(Message{Kind: "first"}))
	<-tr.started

	assert.True(t, d.Enqueue(Message{Kind: "second"}))
	assert.False(t, d.Enqueue(Message{Kind: "third"}))

	close(tr.release)
	require.NoError(t, d.Close(context.Background()))

	kinds := []string{}
	for _, m := range tr.messages() {
		kinds = append(kinds, m.Kind)
	}
	assert.Equal(t, []string{"first", "second"}, kinds)
}

func TestDispatcherSurvivesTransportErrors(t *testing.T) {
	tr := &recordingTransport{err: errors.New("relay down")}
	d := NewDispatcher(tr, 2, 1, zerolog.Nop())
	assert.True(t, d.Enqueue(Message{Kind: KindPasswordReset}))
	assert.True(t, d.Enqueue(Message{Kind: KindPasswordReset}))
	require.NoError(t, d.Close(context.Background()))
	assert.Len(t, tr.messages(), 2)
}

func TestSMTPTransportComposesHTMLMessage(t *testing.T) {
	tr, err := NewSMTPTransport(SMTPConfig{
		Host: "smtp.example.com", Port: 587,
		Username: "user", Password: "secret",
		From: "noreply@example.com", FromName: "AI LMS",
	})
	require.NoError(t, err)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody []byte
	var gotAuth smtp.Auth
	tr.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotBody = addr, a, from, to, msg
		return nil
	}

	msg := Message{To: []string{"a@x.io"}, Subject: "Hi", HTML: "<p>hello</p>"}
	require.NoError(t, tr.Send(context.Background(), msg))

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"a@x.io"}, gotTo)
	body := string(gotBody)
	assert.Contains(t, body, `From: "AI LMS" <noreply@example.com>`)
	assert.Contains(t, body, "Subject: Hi\r\n")
	assert.Contains(t, body, "Content-Type: text/html; charset=UTF-8")
	assert.Contains(t, body, "<p>hello</p>")
}

func TestSMTPTransportWrapsErrors(t *testing.T) {
	tr, err := NewSMTPTransport(SMTPConfig{Host: "localhost", Port: 25, From: "a@b.c"})
	require.NoError(t, err)
	tr.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}
	err = tr.Send(context.Background(), Message{To: []string{"x@y.z"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNewSMTPTransportRequiresHostAndFrom(t *testing.T) {
	_, err := NewSMTPTransport(SMTPConfig{From: "a@b.c"})
	require.Error(t, err)
	_, err = NewSMTPTransport(SMTPConfig{Host: "h"})
	require.Error(t, err)
}

func TestEncodeJob(t *testing.T) {
	pub, err := encodeJob(Message{To: []string{"a@x.io"}, Subject: "s", HTML: "<b>", Kind: KindVerification})
	require.NoError(t, err)
	assert.Equal(t, "application/json", pub.ContentType)
	assert.Equal(t, amqp.Persistent, pub.DeliveryMode)
	assert.Equal(t, "mail.verification", pub.Type)

	var decoded Message
	require.NoError(t, json.Unmarshal(pub.Body, &decoded))
	assert.Equal(t, "<b>", decoded.HTML)
	assert.Equal(t, []string{"a@x.io"}, decoded.To)

	assert.Equal(t, "mail.generic", routingKey(Message{}))
}
