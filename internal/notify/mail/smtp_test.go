package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"

	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

type fakeSender struct {
	sent []*gomail.Msg
	err  error
}

func (f *fakeSender) DialAndSendWithContext(_ context.Context, messages ...*gomail.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, messages...)
	return nil
}

func TestSendBuildsMessage(t *testing.T) {
	t.Parallel()

	fake := &fakeSender{}
	ch := NewWithSender(Config{From: "alerts@example.com"}, fake, nil)

	err := ch.Send(context.Background(), "user@example.com", "New Jobs in bank", "# hi", "<h1>hi</h1>")
	require.NoError(t, err)
	require.Len(t, fake.sent, 1)

	msg := fake.sent[0]
	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	require.Equal(t, []string{"user@example.com"}, rcpts)
	require.Equal(t, []string{"New Jobs in bank"}, msg.GetGenHeader(gomail.HeaderSubject))

	from := msg.GetFrom()
	require.Len(t, from, 1)
	require.Equal(t, "Notify", from[0].Name)
	require.Equal(t, "alerts@example.com", from[0].Address)
}

func TestSendWrapsFailures(t *testing.T) {
	t.Parallel()

	ch := NewWithSender(Config{From: "alerts@example.com", FromName: "Jobs"}, &fakeSender{err: errors.New("550 mailbox unavailable")}, nil)
	err := ch.Send(context.Background(), "user@example.com", "s", "t", "")
	require.ErrorIs(t, err, posting.ErrChannel)
	require.ErrorContains(t, err, "550")

	err = ch.Send(context.Background(), "not an address", "s", "t", "")
	require.ErrorIs(t, err, posting.ErrChannel)
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{From: "a@example.com"}, nil)
	require.Error(t, err)
	_, err = New(Config{Host: "smtp.example.com"}, nil)
	require.Error(t, err)

	ch, err := New(Config{Host: "smtp.example.com", Port: 587, From: "a@example.com", Username: "u", Password: "p", TLS: "mandatory"}, nil)
	require.NoError(t, err)
	require.Equal(t, "Notify", ch.cfg.FromName)
}

func TestTLSPolicy(t *testing.T) {
	t.Parallel()

	require.Equal(t, gomail.NoTLS, tlsPolicy("none"))
	require.Equal(t, gomail.TLSMandatory, tlsPolicy("Mandatory"))
	require.Equal(t, gomail.TLSOpportunistic, tlsPolicy(""))
}
