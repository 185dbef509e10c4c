package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Preferences struct {
	EventTypes    []string `bson:"event_types" json:"event_types"`
	Notifications bool     `bson:"notifications" json:"notifications"`
}

type User struct {
	ID               primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name             string               `bson:"name" json:"name"`
	Email            string               `bson:"email" json:"email"`
	PasswordHash     string               `bson:"password_hash" json:"-"`
	IsAdmin          bool                 `bson:"is_admin" json:"is_admin"`
	Preferences      Preferences          `bson:"preferences" json:"preferences"`
	RegisteredEvents []primitive.ObjectID `bson:"registered_events" json:"registered_events"`
	LastLogin        time.Time            `bson:"last_login,omitempty" json:"last_login,omitzero"`
	CreatedAt        time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time            `bson:"updated_at" json:"updated_at"`
}

func (u *User) BeforeCreate() {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Email = NormalizeEmail(u.Email)
	if u.Preferences.EventTypes == nil {
		u.Preferences.EventTypes = []string{}
	}
	if u.RegisteredEvents == nil {
		u.RegisteredEvents = []primitive.ObjectID{}
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
}

// HasRegistered reports whether eventID is mirrored in the user's list.
func (u *User) HasRegistered(eventID primitive.ObjectID) bool {
	for _, id := range u.RegisteredEvents {
		if id == eventID {
			return true
		}
	}
	return false
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ProfileUpdate carries the optional fields a user may change on their own
// record. Nil means unchanged.
type ProfileUpdate struct {
	Name  *string
	Email *string
}

func (p ProfileUpdate) IsEmpty() bool {
	return p.Name == nil && p.Email == nil
}
