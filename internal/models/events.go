package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Event struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name            string               `bson:"name" json:"name"`
	Description     string               `bson:"description" json:"description"`
	Date            string               `bson:"date" json:"date"` // YYYY-MM-DD
	Time            string               `bson:"time" json:"time"` // HH:MM, 24h
	Location        string               `bson:"location" json:"location"`
	Capacity        int                  `bson:"capacity" json:"capacity"`
	RemainingSeats  int                  `bson:"remaining_seats" json:"remaining_seats"`
	Category        string               `bson:"category" json:"category"`
	EventImage      string               `bson:"event_image,omitempty" json:"event_image,omitempty"`
	BackgroundImage string               `bson:"background_image,omitempty" json:"background_image,omitempty"`
	Registrants     []primitive.ObjectID `bson:"registrants" json:"registrants"`
	CreatedBy       primitive.ObjectID   `bson:"created_by" json:"created_by"`
	CreatedAt       time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time            `bson:"updated_at" json:"updated_at"`
}

// EventInput is the payload accepted when an administrator creates an event.
type EventInput struct {
	Name            string `json:"name" validate:"required,min=3,max=200"`
	Description     string `json:"description" validate:"required,min=10,max=5000"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	Time            string `json:"time" validate:"required,datetime=15:04"`
	Location        string `json:"location" validate:"required,min=3,max=200"`
	Capacity        int    `json:"capacity" validate:"gte=1,max=100000"`
	Category        string `json:"category" validate:"required,oneof=workshop seminar club sports academic social career other"`
	EventImage      string `json:"event_image" validate:"omitempty,max=2048"`
	BackgroundImage string `json:"background_image" validate:"omitempty,max=2048"`
}

// EventUpdate is a partial edit; nil fields are left untouched.
type EventUpdate struct {
	Name            *string `json:"name" validate:"omitempty,min=3,max=200"`
	Description     *string `json:"description" validate:"omitempty,min=10,max=5000"`
	Date            *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Time            *string `json:"time" validate:"omitempty,datetime=15:04"`
	Location        *string `json:"location" validate:"omitempty,min=3,max=200"`
	Capacity        *int    `json:"capacity" validate:"omitempty,gte=1,max=100000"`
	Category        *string `json:"category" validate:"omitempty,oneof=workshop seminar club sports academic social career other"`
	EventImage      *string `json:"event_image" validate:"omitempty,max=2048"`
	BackgroundImage *string `json:"background_image" validate:"omitempty,max=2048"`
}

func (u EventUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.Date == nil && u.Time == nil &&
		u.Location == nil && u.Capacity == nil && u.Category == nil &&
		u.EventImage == nil && u.BackgroundImage == nil
}

// NewEventFromInput seeds remaining seats from capacity.
func NewEventFromInput(in EventInput, createdBy primitive.ObjectID) *Event {
	now := time.Now().UTC()
	return &Event{
		ID:              primitive.NewObjectID(),
		Name:            in.Name,
		Description:     in.Description,
		Date:            in.Date,
		Time:            in.Time,
		Location:        in.Location,
		Capacity:        in.Capacity,
		RemainingSeats:  in.Capacity,
		Category:        in.Category,
		EventImage:      in.EventImage,
		BackgroundImage: in.BackgroundImage,
		Registrants:     []primitive.ObjectID{},
		CreatedBy:       createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (e *Event) IsRegistered(userID primitive.ObjectID) bool {
	for _, id := range e.Registrants {
		if id == userID {
			return true
		}
	}
	return false
}

type EventStats struct {
	Events             int64 `bson:"events" json:"events"`
	TotalCapacity      int64 `bson:"total_capacity" json:"total_capacity"`
	TotalRegistrations int64 `bson:"total_registrations" json:"total_registrations"`
}
