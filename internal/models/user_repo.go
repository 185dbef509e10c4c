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

// UserRepo is the credential store.
type UserRepo interface {
	CreateUser(ctx context.Context, user *User) (*User, error)
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, id primitive.ObjectID, update ProfileUpdate) (*User, error)
	UpdatePreferences(ctx context.Context, id primitive.ObjectID, prefs Preferences) (*User, error)
	TouchLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error
	SetAdmin(ctx context.Context, id primitive.ObjectID, isAdmin bool) (*User, error)
	AddRegisteredEvent(ctx context.Context, userID, eventID primitive.ObjectID) error
	RemoveRegisteredEvent(ctx context.Context, userID, eventID primitive.ObjectID) error
	RemoveEventFromAllUsers(ctx context.Context, eventID primitive.ObjectID) error
	ListUsers(ctx context.Context) ([]*User, error)
	CountUsers(ctx context.Context) (int64, error)
	FindNotificationSubscribers(ctx context.Context, category string) ([]*User, error)
}

func (mdb *MongodbRepo) users() (*mongo.Collection, error) {
	col, err := mdb.GetCollection(UsersColName)
	if err != nil {
		return nil, NewInternalError("error getting users collection", err)
	}
	return col, nil
}

func (mdb *MongodbRepo) CreateUser(ctx context.Context, user *User) (*User, error) {
	col, err := mdb.users()
	if err != nil {
		return nil, err
	}
	user.BeforeCreate()

	if _, err := col.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, NewInternalError("failed to insert user", err)
	}
	return user, nil
}

func (mdb *MongodbRepo) findOneUser(ctx context.Context, filter bson.M) (*User, error) {
	col, err := mdb.users()
	if err != nil {
		return nil, err
	}
	var user User
	if err := col.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NewNotFoundError("user")
		}
		return nil, NewInternalError("failed to find user", err)
	}
	return &user, nil
}

func (mdb *MongodbRepo) GetUserByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	return mdb.findOneUser(ctx, bson.M{"_id": id})
}

func (mdb *MongodbRepo) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return mdb.findOneUser(ctx, bson.M{"email": NormalizeEmail(email)})
}

// updateUser applies update to a single user and returns the stored result.
func (mdb *MongodbRepo) updateUser(ctx context.Context, id primitive.ObjectID, update bson.M) (*User, error) {
	col, err := mdb.users()
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var result User
	err = col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, NewNotFoundError("user")
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, NewInternalError("failed to update user", err)
	}
	return &result, nil
}

func (mdb *MongodbRepo) UpdateUser(ctx context.Context, id primitive.ObjectID, update ProfileUpdate) (*User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Email != nil {
		set["email"] = NormalizeEmail(*update.Email)
	}
	return mdb.updateUser(ctx, id, bson.M{"$set": set})
}

func (mdb *MongodbRepo) UpdatePreferences(ctx context.Context, id primitive.ObjectID, prefs Preferences) (*User, error) {
	if prefs.EventTypes == nil {
		prefs.EventTypes = []string{}
	}
	return mdb.updateUser(ctx, id, bson.M{"$set": bson.M{
		"preferences": prefs,
		"updated_at":  time.Now().UTC(),
	}})
}

func (mdb *MongodbRepo) SetAdmin(ctx context.Context, id primitive.ObjectID, isAdmin bool) (*User, error) {
	return mdb.updateUser(ctx, id, bson.M{"$set": bson.M{
		"is_admin":   isAdmin,
		"updated_at": time.Now().UTC(),
	}})
}

func (mdb *MongodbRepo) TouchLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	col, err := mdb.users()
	if err != nil {
		return err
	}
	if _, err := col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"last_login": at.UTC()}}); err != nil {
		return NewInternalError("failed to record last login", err)
	}
	return nil
}

func (mdb *MongodbRepo) AddRegisteredEvent(ctx context.Context, userID, eventID primitive.ObjectID) error {
	col, err := mdb.users()
	if err != nil {
		return err
	}
	_, err = col.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		"$addToSet": bson.M{"registered_events": eventID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return NewInternalError("failed to add registered event", err)
	}
	return nil
}

func (mdb *MongodbRepo) RemoveRegisteredEvent(ctx context.Context, userID, eventID primitive.ObjectID) error {
	col, err := mdb.users()
	if err != nil {
		return err
	}
	_, err = col.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		"$pull": bson.M{"registered_events": eventID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return NewInternalError("failed to remove registered event", err)
	}
	return nil
}

func (mdb *MongodbRepo) RemoveEventFromAllUsers(ctx context.Context, eventID primitive.ObjectID) error {
	col, err := mdb.users()
	if err != nil {
		return err
	}
	_, err = col.UpdateMany(ctx,
		bson.M{"registered_events": eventID},
		bson.M{"$pull": bson.M{"registered_events": eventID}},
	)
	if err != nil {
		return NewInternalError("failed to detach event from users", err)
	}
	return nil
}

func (mdb *MongodbRepo) findUsers(ctx context.Context, filter bson.M) ([]*User, error) {
	col, err := mdb.users()
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, NewInternalError("error finding users", err)
	}
	defer cursor.Close(ctx)

	users := make([]*User, 0)
	for cursor.Next(ctx) {
		var u User
		if err := cursor.Decode(&u); err != nil {
			return nil, NewInternalError("error decoding user", err)
		}
		users = append(users, &u)
	}
	if err := cursor.Err(); err != nil {
		return nil, NewInternalError("cursor error", err)
	}
	return users, nil
}

func (mdb *MongodbRepo) ListUsers(ctx context.Context) ([]*User, error) {
	return mdb.findUsers(ctx, bson.M{})
}

func (mdb *MongodbRepo) CountUsers(ctx context.Context) (int64, error) {
	col, err := mdb.users()
	if err != nil {
		return 0, err
	}
	n, err := col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, NewInternalError("failed to count users", err)
	}
	return n, nil
}

func (mdb *MongodbRepo) FindNotificationSubscribers(ctx context.Context, category string) ([]*User, error) {
	if category == "" {
		return []*User{}, nil
	}
	return mdb.findUsers(ctx, bson.M{
		"preferences.notifications": true,
		"preferences.event_types":   category,
	})
}
