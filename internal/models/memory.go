package models

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRepo implements UserRepo and EventRepo in process. It backs the
// "memory" store driver used for local development and tests, and mirrors
// the Mongo repo's semantics including the conditional seat updates.
type MemoryRepo struct {
	mu     sync.RWMutex
	users  map[primitive.ObjectID]*User
	emails map[string]primitive.ObjectID
	events map[primitive.ObjectID]*Event
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		users:  make(map[primitive.ObjectID]*User),
		emails: make(map[string]primitive.ObjectID),
		events: make(map[primitive.ObjectID]*Event),
	}
}

func copyIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, len(ids))
	copy(out, ids)
	return out
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) ([]primitive.ObjectID, bool) {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...), true
		}
	}
	return ids, false
}

func cloneUser(u *User) *User {
	c := *u
	c.RegisteredEvents = copyIDs(u.RegisteredEvents)
	c.Preferences.EventTypes = append([]string{}, u.Preferences.EventTypes...)
	return &c
}

func cloneEvent(e *Event) *Event {
	c := *e
	c.Registrants = copyIDs(e.Registrants)
	return &c
}

func (m *MemoryRepo) Ping(context.Context) error { return nil }

func (m *MemoryRepo) CreateUser(_ context.Context, user *User) (*User, error) {
	user.BeforeCreate()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.emails[user.Email]; taken {
		return nil, ErrDuplicateEmail
	}
	m.users[user.ID] = cloneUser(user)
	m.emails[user.Email] = user.ID
	return cloneUser(user), nil
}

func (m *MemoryRepo) GetUserByID(_ context.Context, id primitive.ObjectID) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, NewNotFoundError("user")
	}
	return cloneUser(u), nil
}

func (m *MemoryRepo) GetUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.emails[NormalizeEmail(email)]
	if !ok {
		return nil, NewNotFoundError("user")
	}
	return cloneUser(m.users[id]), nil
}

func (m *MemoryRepo) UpdateUser(_ context.Context, id primitive.ObjectID, update ProfileUpdate) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, NewNotFoundError("user")
	}
	if update.Email != nil {
		email := NormalizeEmail(*update.Email)
		if owner, taken := m.emails[email]; taken && owner != id {
			return nil, ErrDuplicateEmail
		}
		delete(m.emails, u.Email)
		u.Email = email
		m.emails[email] = id
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	u.UpdatedAt = time.Now().UTC()
	return cloneUser(u), nil
}

func (m *MemoryRepo) UpdatePreferences(_ context.Context, id primitive.ObjectID, prefs Preferences) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, NewNotFoundError("user")
	}
	u.Preferences = Preferences{
		EventTypes:    append([]string{}, prefs.EventTypes...),
		Notifications: prefs.Notifications,
	}
	u.UpdatedAt = time.Now().UTC()
	return cloneUser(u), nil
}

func (m *MemoryRepo) TouchLastLogin(_ context.Context, id primitive.ObjectID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.LastLogin = at.UTC()
	}
	return nil
}

func (m *MemoryRepo) SetAdmin(_ context.Context, id primitive.ObjectID, isAdmin bool) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, NewNotFoundError("user")
	}
	u.IsAdmin = isAdmin
	u.UpdatedAt = time.Now().UTC()
	return cloneUser(u), nil
}

func (m *MemoryRepo) AddRegisteredEvent(_ context.Context, userID, eventID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.HasRegistered(eventID) {
		return nil
	}
	u.RegisteredEvents = append(u.RegisteredEvents, eventID)
	return nil
}

func (m *MemoryRepo) RemoveRegisteredEvent(_ context.Context, userID, eventID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.RegisteredEvents, _ = removeID(u.RegisteredEvents, eventID)
	}
	return nil
}

func (m *MemoryRepo) RemoveEventFromAllUsers(_ context.Context, eventID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		u.RegisteredEvents, _ = removeID(u.RegisteredEvents, eventID)
	}
	return nil
}

func (m *MemoryRepo) sortedUsers(keep func(*User) bool) []*User {
	out := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		if keep == nil || keep(u) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() < out[j].ID.Hex()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *MemoryRepo) ListUsers(context.Context) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedUsers(nil), nil
}

func (m *MemoryRepo) CountUsers(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.users)), nil
}

func (m *MemoryRepo) FindNotificationSubscribers(_ context.Context, category string) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedUsers(func(u *User) bool {
		if !u.Preferences.Notifications {
			return false
		}
		for _, c := range u.Preferences.EventTypes {
			if c == category {
				return true
			}
		}
		return false
	}), nil
}

func (m *MemoryRepo) CreateEvent(_ context.Context, event *Event) (*Event, error) {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Registrants == nil {
		event.Registrants = []primitive.ObjectID{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.ID] = cloneEvent(event)
	return cloneEvent(event), nil
}

func (m *MemoryRepo) GetEventByID(_ context.Context, id primitive.ObjectID) (*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return nil, NewNotFoundError("event")
	}
	return cloneEvent(e), nil
}

func (m *MemoryRepo) sortedEvents(keep func(*Event) bool) []*Event {
	out := make([]*Event, 0, len(m.events))
	for _, e := range m.events {
		if keep == nil || keep(e) {
			out = append(out, cloneEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out
}

func (m *MemoryRepo) ListEvents(context.Context) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedEvents(nil), nil
}

func (m *MemoryRepo) ListEventsByIDs(_ context.Context, ids []primitive.ObjectID) ([]*Event, error) {
	want := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedEvents(func(e *Event) bool {
		_, ok := want[e.ID]
		return ok
	}), nil
}

func (m *MemoryRepo) UpdateEvent(_ context.Context, id primitive.ObjectID, u EventUpdate) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, NewNotFoundError("event")
	}
	if u.Capacity != nil && *u.Capacity < len(e.Registrants) {
		return nil, ErrCapacityTooLow
	}
	if u.Name != nil {
		e.Name = *u.Name
	}
	if u.Description != nil {
		e.Description = *u.Description
	}
	if u.Date != nil {
		e.Date = *u.Date
	}
	if u.Time != nil {
		e.Time = *u.Time
	}
	if u.Location != nil {
		e.Location = *u.Location
	}
	if u.Category != nil {
		e.Category = *u.Category
	}
	if u.EventImage != nil {
		e.EventImage = *u.EventImage
	}
	if u.BackgroundImage != nil {
		e.BackgroundImage = *u.BackgroundImage
	}
	if u.Capacity != nil {
		e.Capacity = *u.Capacity
		e.RemainingSeats = e.Capacity - len(e.Registrants)
	}
	e.UpdatedAt = time.Now().UTC()
	return cloneEvent(e), nil
}

func (m *MemoryRepo) DeleteEvent(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return NewNotFoundError("event")
	}
	delete(m.events, id)
	return nil
}

func (m *MemoryRepo) Reserve(_ context.Context, eventID, userID primitive.ObjectID) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok {
		return nil, NewNotFoundError("event")
	}
	if e.IsRegistered(userID) {
		return nil, ErrAlreadyRegistered
	}
	if e.RemainingSeats <= 0 {
		return nil, ErrEventFull
	}
	e.Registrants = append(e.Registrants, userID)
	e.RemainingSeats--
	e.UpdatedAt = time.Now().UTC()
	return cloneEvent(e), nil
}

func (m *MemoryRepo) Release(_ context.Context, eventID, userID primitive.ObjectID) (*Event, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok {
		return nil, false, NewNotFoundError("event")
	}
	var removed bool
	e.Registrants, removed = removeID(e.Registrants, userID)
	if !removed {
		return cloneEvent(e), false, nil
	}
	e.RemainingSeats++
	e.UpdatedAt = time.Now().UTC()
	return cloneEvent(e), true, nil
}

func (m *MemoryRepo) Stats(context.Context) (EventStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var s EventStats
	for _, e := range m.events {
		s.Events++
		s.TotalCapacity += int64(e.Capacity)
		s.TotalRegistrations += int64(len(e.Registrants))
	}
	return s, nil
}
