package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joshua-takyi/campus-events/internal/models"
)

// JobPublisher puts one job on the email queue.
type JobPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

type SubscriberFinder interface {
	FindNotificationSubscribers(ctx context.Context, category string) ([]*models.User, error)
}

type AnnouncementRecorder interface {
	ObserveAnnouncement(result string, n int)
}

// Announcer queues an email for every user who opted in to notifications
// for a new event's category.
type Announcer struct {
	users     SubscriberFinder
	publisher JobPublisher
	appURL    string
	recorder  AnnouncementRecorder
	logger    *slog.Logger
}

func NewAnnouncer(users SubscriberFinder, publisher JobPublisher, appURL string, recorder AnnouncementRecorder, logger *slog.Logger) *Announcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Announcer{
		users:     users,
		publisher: publisher,
		appURL:    strings.TrimRight(appURL, "/"),
		recorder:  recorder,
		logger:    logger,
	}
}

// AnnounceEvent returns how many jobs were queued. Publishing stops at the
// first failure.
func (a *Announcer) AnnounceEvent(ctx context.Context, event *models.Event) (int, error) {
	subscribers, err := a.users.FindNotificationSubscribers(ctx, event.Category)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, u := range subscribers {
		job := EmailJob{
			To:       u.Email,
			Template: TemplateEventAnnouncement,
			Data:     AnnouncementData(u, event, a.appURL),
		}
		if err := a.publisher.PublishJSON(ctx, job); err != nil {
			a.observe("failed", len(subscribers)-queued)
			return queued, fmt.Errorf("publish announcement for %s: %w", u.ID.Hex(), err)
		}
		queued++
	}
	a.observe("queued", queued)
	if queued > 0 {
		a.logger.Info("event announcement queued", "event_id", event.ID.Hex(), "category", event.Category, "recipients", queued)
	}
	return queued, nil
}

func (a *Announcer) observe(result string, n int) {
	if a.recorder != nil && n > 0 {
		a.recorder.ObserveAnnouncement(result, n)
	}
}

func AnnouncementData(u *models.User, e *models.Event, appURL string) map[string]any {
	return map[string]any{
		"Name":        u.Name,
		"EventName":   e.Name,
		"Description": e.Description,
		"Date":        e.Date,
		"Time":        e.Time,
		"Location":    e.Location,
		"Category":    e.Category,
		"Capacity":    e.Capacity,
		"EventURL":    appURL + "/events/" + e.ID.Hex(),
	}
}
