package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joshua-takyi/campus-events/internal/models"
	"github.com/joshua-takyi/campus-events/internal/notifier"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Broadcaster pushes change notifications to connected clients.
type Broadcaster interface {
	BroadcastAll(event string, data any)
	BroadcastRoom(room, event string, data any)
}

// Announcer tells interested users about a newly created event.
type Announcer interface {
	AnnounceEvent(ctx context.Context, event *models.Event) (int, error)
}

type RSVPObserver interface {
	ObserveRSVP(action, outcome string)
}

const announceTimeout = 10 * time.Second

// RSVPUpdate is the payload of rsvp_updated notifications.
type RSVPUpdate struct {
	EventID        string `json:"eventId"`
	RemainingSeats int    `json:"remaining_seats"`
	Capacity       int    `json:"capacity"`
	Registrations  int    `json:"registrations"`
}

type EventService struct {
	eventRepo   models.EventRepo
	userRepo    models.UserRepo
	broadcaster Broadcaster
	announcer   Announcer
	observer    RSVPObserver
	logger      *slog.Logger
}

type EventOption func(*EventService)

func WithBroadcaster(b Broadcaster) EventOption {
	return func(s *EventService) { s.broadcaster = b }
}

func WithAnnouncer(a Announcer) EventOption {
	return func(s *EventService) { s.announcer = a }
}

func WithRSVPObserver(o RSVPObserver) EventOption {
	return func(s *EventService) { s.observer = o }
}

func NewEventService(eventRepo models.EventRepo, userRepo models.UserRepo, logger *slog.Logger, opts ...EventOption) *EventService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &EventService{
		eventRepo: eventRepo,
		userRepo:  userRepo,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (es *EventService) ListEvents(ctx context.Context) ([]*models.Event, error) {
	return es.eventRepo.ListEvents(ctx)
}

func (es *EventService) GetEvent(ctx context.Context, id primitive.ObjectID) (*models.Event, error) {
	return es.eventRepo.GetEventByID(ctx, id)
}

func (es *EventService) CreateEvent(ctx context.Context, createdBy primitive.ObjectID, in models.EventInput) (*models.Event, error) {
	if err := models.ValidateStruct(in); err != nil {
		return nil, err
	}
	event, err := es.eventRepo.CreateEvent(ctx, models.NewEventFromInput(in, createdBy))
	if err != nil {
		return nil, err
	}
	es.logger.Info("event created", "event_id", event.ID.Hex(), "created_by", createdBy.Hex(), "capacity", event.Capacity)

	es.broadcastAll(notifier.EventCreated, event)
	es.announce(ctx, event)
	return event, nil
}

// announce runs detached from request cancellation and never fails the
// create.
func (es *EventService) announce(ctx context.Context, event *models.Event) {
	if es.announcer == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), announceTimeout)
	defer cancel()
	if _, err := es.announcer.AnnounceEvent(actx, event); err != nil {
		es.logger.Warn("event announcement failed", "event_id", event.ID.Hex(), "error", err)
	}
}

func (es *EventService) UpdateEvent(ctx context.Context, id primitive.ObjectID, update models.EventUpdate) (*models.Event, error) {
	if update.IsEmpty() {
		return nil, models.NewValidationError("no fields to update")
	}
	if err := models.ValidateStruct(update); err != nil {
		return nil, err
	}
	if update.Capacity != nil && *update.Capacity < 1 {
		return nil, models.NewValidationError("capacity must be at least 1")
	}
	event, err := es.eventRepo.UpdateEvent(ctx, id, update)
	if err != nil {
		return nil, err
	}
	es.broadcastRoom(event.ID, notifier.EventUpdated, event)
	return event, nil
}

// DeleteEvent removes the event and detaches it from every user's
// registered list.
func (es *EventService) DeleteEvent(ctx context.Context, id primitive.ObjectID) error {
	if err := es.eventRepo.DeleteEvent(ctx, id); err != nil {
		return err
	}
	if err := es.userRepo.RemoveEventFromAllUsers(ctx, id); err != nil {
		es.logger.Warn("failed to detach deleted event from users", "event_id", id.Hex(), "error", err)
	}
	es.logger.Info("event deleted", "event_id", id.Hex())
	es.broadcastAll(notifier.EventRemoved, map[string]string{"eventId": id.Hex()})
	return nil
}

// RSVP reserves one seat for userID. The seat check and decrement are a
// single conditional write in the store.
func (es *EventService) RSVP(ctx context.Context, eventID, userID primitive.ObjectID) (*models.Event, error) {
	event, err := es.eventRepo.Reserve(ctx, eventID, userID)
	if err != nil {
		es.observe("reserve", outcomeFor(err))
		return nil, err
	}

	if err := es.userRepo.AddRegisteredEvent(ctx, userID, eventID); err != nil {
		// give the seat back so the two records stay in step
		if _, _, rerr := es.eventRepo.Release(context.WithoutCancel(ctx), eventID, userID); rerr != nil {
			es.logger.Error("failed to roll back reservation", "event_id", eventID.Hex(), "user_id", userID.Hex(), "error", rerr)
		}
		es.observe("reserve", "error")
		return nil, err
	}

	es.observe("reserve", "reserved")
	es.broadcastRoom(event.ID, notifier.RSVPUpdated, rsvpUpdate(event))
	return event, nil
}

// CancelRSVP releases userID's seat. Cancelling without a reservation is a
// no-op that still succeeds.
func (es *EventService) CancelRSVP(ctx context.Context, eventID, userID primitive.ObjectID) (*models.Event, error) {
	event, released, err := es.eventRepo.Release(ctx, eventID, userID)
	if err != nil {
		es.observe("cancel", outcomeFor(err))
		return nil, err
	}
	if err := es.userRepo.RemoveRegisteredEvent(ctx, userID, eventID); err != nil {
		es.logger.Warn("failed to remove event from user", "event_id", eventID.Hex(), "user_id", userID.Hex(), "error", err)
	}
	if !released {
		es.observe("cancel", "noop")
		return event, nil
	}

	es.observe("cancel", "released")
	es.broadcastRoom(event.ID, notifier.RSVPUpdated, rsvpUpdate(event))
	return event, nil
}

func rsvpUpdate(e *models.Event) RSVPUpdate {
	return RSVPUpdate{
		EventID:        e.ID.Hex(),
		RemainingSeats: e.RemainingSeats,
		Capacity:       e.Capacity,
		Registrations:  len(e.Registrants),
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, models.ErrEventFull):
		return "full"
	case errors.Is(err, models.ErrAlreadyRegistered):
		return "duplicate"
	case models.IsKind(err, models.KindNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func (es *EventService) observe(action, outcome string) {
	if es.observer != nil {
		es.observer.ObserveRSVP(action, outcome)
	}
}

func (es *EventService) broadcastAll(event string, data any) {
	if es.broadcaster != nil {
		es.broadcaster.BroadcastAll(event, data)
	}
}

func (es *EventService) broadcastRoom(id primitive.ObjectID, event string, data any) {
	if es.broadcaster != nil {
		es.broadcaster.BroadcastRoom(notifier.RoomForEvent(id.Hex()), event, data)
	}
}
