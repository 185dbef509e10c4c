package mailer

import (
	"context"
	"errors"
	"net/http"
	"time"

	mg "github.com/mailgun/mailgun-go/v4"
)

// Sender delivers one rendered email.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

type Mailgun struct {
	client *mg.MailgunImpl
	sender string
}

func NewMailgun(domain, apiKey, sender string) *Mailgun {
	return &Mailgun{client: mg.NewMailgun(domain, apiKey), sender: sender}
}

func (m *Mailgun) Send(ctx context.Context, to, subject, text, html string) error {
	msg := m.client.NewMessage(m.sender, subject, text, to)
	if html != "" {
		msg.SetHtml(html)
	}
	c, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, _, err := m.client.Send(c, msg)
	return classifySendError(err)
}

// ErrPermanent marks a send failure that will not succeed on retry.
var ErrPermanent = errors.New("permanent send failure")

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() []error { return []error{ErrPermanent, e.err} }

// Permanent wraps err so the worker drops the job instead of requeueing it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// classifySendError treats Mailgun 4xx responses other than 429 as
// permanent: the request itself was rejected (bad recipient, bad domain).
func classifySendError(err error) error {
	if err == nil {
		return nil
	}
	var resp *mg.UnexpectedResponseError
	if errors.As(err, &resp) && resp.Actual >= 400 && resp.Actual < 500 && resp.Actual != http.StatusTooManyRequests {
		return Permanent(err)
	}
	return err
}
