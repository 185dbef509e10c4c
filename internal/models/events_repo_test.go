package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestReserveFilterRequiresFreeSeatAndNewRegistrant(t *testing.T) {
	eventID, userID := primitive.NewObjectID(), primitive.NewObjectID()

	f := reserveFilter(eventID, userID)

	assert.Equal(t, eventID, f["_id"])
	assert.Equal(t, bson.M{"$gt": 0}, f["remaining_seats"])
	assert.Equal(t, bson.M{"$ne": userID}, f["registrants"])
}

func TestReserveAndReleaseUpdatesMoveOneSeat(t *testing.T) {
	userID := primitive.NewObjectID()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	reserve := reserveUpdate(userID, now)
	assert.Equal(t, bson.M{"remaining_seats": -1}, reserve["$inc"])
	assert.Equal(t, bson.M{"registrants": userID}, reserve["$push"])

	release := releaseUpdate(userID, now)
	assert.Equal(t, bson.M{"remaining_seats": 1}, release["$inc"])
	assert.Equal(t, bson.M{"registrants": userID}, release["$pull"])
}

func TestReleaseFilterOnlyMatchesCurrentRegistrant(t *testing.T) {
	eventID, userID := primitive.NewObjectID(), primitive.NewObjectID()

	f := releaseFilter(eventID, userID)

	assert.Equal(t, bson.M{"_id": eventID, "registrants": userID}, f)
}

func TestEventUpdatePipelineWithoutCapacity(t *testing.T) {
	id := primitive.NewObjectID()
	name := "$registrants"
	now := time.Now().UTC()

	filter, pipeline := eventUpdatePipeline(id, EventUpdate{Name: &name}, now)

	assert.Equal(t, bson.M{"_id": id}, filter)
	require.Len(t, pipeline, 1)
	set, ok := pipeline[0][0].Value.(bson.M)
	require.True(t, ok)
	// field path lookalikes must stay literal strings
	assert.Equal(t, bson.M{"$literal": "$registrants"}, set["name"])
	assert.NotContains(t, set, "capacity")
	assert.NotContains(t, set, "remaining_seats")
}

func TestEventUpdatePipelineGuardsCapacity(t *testing.T) {
	id := primitive.NewObjectID()
	capacity := 3

	filter, pipeline := eventUpdatePipeline(id, EventUpdate{Capacity: &capacity}, time.Now())

	require.Contains(t, filter, "$expr")
	set := pipeline[0][0].Value.(bson.M)
	assert.Equal(t, bson.M{"$literal": 3}, set["capacity"])
	remaining, ok := set["remaining_seats"].(bson.M)
	require.True(t, ok)
	assert.Contains(t, remaining, "$subtract")
}

func TestEventUpdateIsEmpty(t *testing.T) {
	assert.True(t, EventUpdate{}.IsEmpty())
	loc := "Main Hall"
	assert.False(t, EventUpdate{Location: &loc}.IsEmpty())
}

func TestNewEventFromInputSeedsRemainingSeats(t *testing.T) {
	creator := primitive.NewObjectID()
	e := NewEventFromInput(EventInput{Name: "Go Meetup", Capacity: 40, Category: "club"}, creator)

	assert.Equal(t, 40, e.RemainingSeats)
	assert.Equal(t, creator, e.CreatedBy)
	assert.NotNil(t, e.Registrants)
	assert.False(t, e.ID.IsZero())
}
