package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Outcome is what the consumer should do with a delivery.
type Outcome int

const (
	Ack Outcome = iota
	Requeue
	Drop
)

var errBadJob = errors.New("email job has no recipient or content")

type Worker struct {
	sender      Sender
	sendTimeout time.Duration
	logger      *slog.Logger
}

func NewWorker(sender Sender, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{sender: sender, sendTimeout: 15 * time.Second, logger: logger}
}

// Handle renders and sends one job. Malformed jobs are dropped; send
// failures are requeued.
func (w *Worker) Handle(ctx context.Context, body []byte) Outcome {
	var job EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		w.logger.Warn("dropping malformed email job", "error", err)
		return Drop
	}

	subject, text, html, err := prepare(job)
	if err != nil {
		w.logger.Warn("dropping email job", "template", job.Template, "error", err)
		return Drop
	}

	c, cancel := context.WithTimeout(ctx, w.sendTimeout)
	defer cancel()
	if err := w.sender.Send(c, job.To, subject, text, html); err != nil {
		if errors.Is(err, ErrPermanent) {
			w.logger.Warn("dropping email job rejected by provider", "template", job.Template, "error", err)
			return Drop
		}
		w.logger.Error("email send failed", "template", job.Template, "error", err)
		return Requeue
	}
	return Ack
}

// settle bounds redelivery: a job that already came back once is dropped
// rather than requeued again.
func settle(o Outcome, redelivered bool) Outcome {
	if o == Requeue && redelivered {
		return Drop
	}
	return o
}

func prepare(job EmailJob) (subject, text, html string, err error) {
	if strings.TrimSpace(job.To) == "" {
		return "", "", "", errBadJob
	}
	if job.Template != "" {
		return Render(job.Template, job.Data)
	}
	if job.Subject == "" || (job.Text == "" && job.HTML == "") {
		return "", "", "", errBadJob
	}
	return job.Subject, job.Text, job.HTML, nil
}

// Consume processes deliveries until ctx is cancelled or the channel closes.
func (w *Worker) Consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			outcome := settle(w.Handle(ctx, d.Body), d.Redelivered)
			if outcome == Drop && d.Redelivered {
				w.logger.Warn("dropping redelivered email job", "delivery_tag", d.DeliveryTag)
			}
			switch outcome {
			case Ack:
				_ = d.Ack(false)
			case Requeue:
				_ = d.Nack(false, true)
			case Drop:
				_ = d.Nack(false, false)
			}
		}
	}
}
