package models

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EventRepo is the event store. Reserve and Release are single-document
// conditional updates, so the seat counter stays within [0, capacity] no
// matter how many requests race for the same event.
type EventRepo interface {
	CreateEvent(ctx context.Context, event *Event) (*Event, error)
	GetEventByID(ctx context.Context, id primitive.ObjectID) (*Event, error)
	ListEvents(ctx context.Context) ([]*Event, error)
	ListEventsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*Event, error)
	UpdateEvent(ctx context.Context, id primitive.ObjectID, update EventUpdate) (*Event, error)
	DeleteEvent(ctx context.Context, id primitive.ObjectID) error
	Reserve(ctx context.Context, eventID, userID primitive.ObjectID) (*Event, error)
	Release(ctx context.Context, eventID, userID primitive.ObjectID) (*Event, bool, error)
	Stats(ctx context.Context) (EventStats, error)
}

func reserveFilter(eventID, userID primitive.ObjectID) bson.M {
	return bson.M{
		"_id":             eventID,
		"remaining_seats": bson.M{"$gt": 0},
		"registrants":     bson.M{"$ne": userID},
	}
}

func reserveUpdate(userID primitive.ObjectID, now time.Time) bson.M {
	return bson.M{
		"$push": bson.M{"registrants": userID},
		"$inc":  bson.M{"remaining_seats": -1},
		"$set":  bson.M{"updated_at": now},
	}
}

func releaseFilter(eventID, userID primitive.ObjectID) bson.M {
	return bson.M{
		"_id":         eventID,
		"registrants": userID,
	}
}

func releaseUpdate(userID primitive.ObjectID, now time.Time) bson.M {
	return bson.M{
		"$pull": bson.M{"registrants": userID},
		"$inc":  bson.M{"remaining_seats": 1},
		"$set":  bson.M{"updated_at": now},
	}
}

// literal keeps user supplied strings from being read as field paths
// inside an aggregation pipeline update.
func literal(v any) bson.M {
	return bson.M{"$literal": v}
}

// eventUpdatePipeline builds the filter and pipeline for a partial edit.
// A capacity change only matches while capacity >= len(registrants) and
// recomputes remaining_seats from the registrant count.
func eventUpdatePipeline(id primitive.ObjectID, u EventUpdate, now time.Time) (bson.M, mongo.Pipeline) {
	filter := bson.M{"_id": id}
	set := bson.M{"updated_at": literal(now)}

	if u.Name != nil {
		set["name"] = literal(*u.Name)
	}
	if u.Description != nil {
		set["description"] = literal(*u.Description)
	}
	if u.Date != nil {
		set["date"] = literal(*u.Date)
	}
	if u.Time != nil {
		set["time"] = literal(*u.Time)
	}
	if u.Location != nil {
		set["location"] = literal(*u.Location)
	}
	if u.Category != nil {
		set["category"] = literal(*u.Category)
	}
	if u.EventImage != nil {
		set["event_image"] = literal(*u.EventImage)
	}
	if u.BackgroundImage != nil {
		set["background_image"] = literal(*u.BackgroundImage)
	}
	if u.Capacity != nil {
		capacity := *u.Capacity
		registered := bson.M{"$size": bson.M{"$ifNull": bson.A{"$registrants", bson.A{}}}}
		filter["$expr"] = bson.M{"$lte": bson.A{registered, capacity}}
		set["capacity"] = literal(capacity)
		set["remaining_seats"] = bson.M{"$subtract": bson.A{capacity, registered}}
	}

	return filter, mongo.Pipeline{{{Key: "$set", Value: set}}}
}

func (mdb *MongodbRepo) events() (*mongo.Collection, error) {
	col, err := mdb.GetCollection(EventsColName)
	if err != nil {
		return nil, NewInternalError("error getting events collection", err)
	}
	return col, nil
}

func (mdb *MongodbRepo) CreateEvent(ctx context.Context, event *Event) (*Event, error) {
	col, err := mdb.events()
	if err != nil {
		return nil, err
	}
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Registrants == nil {
		event.Registrants = []primitive.ObjectID{}
	}
	if _, err := col.InsertOne(ctx, event); err != nil {
		return nil, NewInternalError("failed to insert event", err)
	}
	return event, nil
}

func (mdb *MongodbRepo) GetEventByID(ctx context.Context, id primitive.ObjectID) (*Event, error) {
	col, err := mdb.events()
	if err != nil {
		return nil, err
	}
	var event Event
	if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&event); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NewNotFoundError("event")
		}
		return nil, NewInternalError("failed to find event", err)
	}
	return &event, nil
}

func (mdb *MongodbRepo) findEvents(ctx context.Context, filter bson.M) ([]*Event, error) {
	col, err := mdb.events()
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}})
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, NewInternalError("error finding events", err)
	}
	defer cursor.Close(ctx)

	events := make([]*Event, 0)
	if err := cursor.All(ctx, &events); err != nil {
		return nil, NewInternalError("error decoding events", err)
	}
	return events, nil
}

func (mdb *MongodbRepo) ListEvents(ctx context.Context) ([]*Event, error) {
	return mdb.findEvents(ctx, bson.M{})
}

func (mdb *MongodbRepo) ListEventsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*Event, error) {
	if len(ids) == 0 {
		return []*Event{}, nil
	}
	return mdb.findEvents(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (mdb *MongodbRepo) UpdateEvent(ctx context.Context, id primitive.ObjectID, update EventUpdate) (*Event, error) {
	col, err := mdb.events()
	if err != nil {
		return nil, err
	}
	filter, pipeline := eventUpdatePipeline(id, update, time.Now().UTC())
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var result Event
	err = col.FindOneAndUpdate(ctx, filter, pipeline, opts).Decode(&result)
	if err == nil {
		return &result, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, NewInternalError("failed to update event", err)
	}
	// either the event is gone or the capacity guard rejected the edit
	if _, getErr := mdb.GetEventByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrCapacityTooLow
}

func (mdb *MongodbRepo) DeleteEvent(ctx context.Context, id primitive.ObjectID) error {
	col, err := mdb.events()
	if err != nil {
		return err
	}
	res, err := col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return NewInternalError("failed to delete event", err)
	}
	if res.DeletedCount == 0 {
		return NewNotFoundError("event")
	}
	return nil
}

func (mdb *MongodbRepo) Reserve(ctx context.Context, eventID, userID primitive.ObjectID) (*Event, error) {
	col, err := mdb.events()
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var result Event
	err = col.FindOneAndUpdate(ctx, reserveFilter(eventID, userID), reserveUpdate(userID, time.Now().UTC()), opts).Decode(&result)
	if err == nil {
		return &result, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, NewInternalError("failed to reserve seat", err)
	}

	current, getErr := mdb.GetEventByID(ctx, eventID)
	if getErr != nil {
		return nil, getErr
	}
	if current.IsRegistered(userID) {
		return nil, ErrAlreadyRegistered
	}
	return nil, ErrEventFull
}

// Release removes userID from the event. The boolean reports whether a seat
// was actually given back; releasing a user who holds no seat is a no-op.
func (mdb *MongodbRepo) Release(ctx context.Context, eventID, userID primitive.ObjectID) (*Event, bool, error) {
	col, err := mdb.events()
	if err != nil {
		return nil, false, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var result Event
	err = col.FindOneAndUpdate(ctx, releaseFilter(eventID, userID), releaseUpdate(userID, time.Now().UTC()), opts).Decode(&result)
	if err == nil {
		return &result, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, NewInternalError("failed to release seat", err)
	}

	current, getErr := mdb.GetEventByID(ctx, eventID)
	if getErr != nil {
		return nil, false, getErr
	}
	return current, false, nil
}

func (mdb *MongodbRepo) Stats(ctx context.Context) (EventStats, error) {
	col, err := mdb.events()
	if err != nil {
		return EventStats{}, err
	}
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":                 nil,
			"events":              bson.M{"$sum": 1},
			"total_capacity":      bson.M{"$sum": "$capacity"},
			"total_registrations": bson.M{"$sum": bson.M{"$size": bson.M{"$ifNull": bson.A{"$registrants", bson.A{}}}}},
		}}},
	}
	cursor, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return EventStats{}, NewInternalError("failed to aggregate event stats", err)
	}
	defer cursor.Close(ctx)

	var rows []EventStats
	if err := cursor.All(ctx, &rows); err != nil {
		return EventStats{}, NewInternalError("failed to decode event stats", err)
	}
	if len(rows) == 0 {
		return EventStats{}, nil
	}
	return rows[0], nil
}
