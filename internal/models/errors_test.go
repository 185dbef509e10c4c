package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", NewValidationError("name is required"), KindValidation},
		{"not found", NewNotFoundError("event"), KindNotFound},
		{"wrapped conflict", fmt.Errorf("rsvp: %w", ErrEventFull), KindConflict},
		{"duplicate", ErrDuplicateEmail, KindDuplicateEmail},
		{"untagged", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestInternalErrorUnwraps(t *testing.T) {
	cause := errors.New("socket closed")
	err := NewInternalError("failed to insert user", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsKind(err, KindInternal))
	assert.False(t, IsKind(nil, KindInternal))
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	err := ValidateStruct(EventInput{
		Name:        "Go",
		Description: "A long enough description",
		Date:        "2025-05-01",
		Time:        "18:30",
		Location:    "Library",
		Capacity:    10,
		Category:    "club",
	})

	assert.True(t, IsKind(err, KindValidation))
	assert.Equal(t, "name must be at least 3 characters long", err.Error())
}

func TestValidateStructRejectsBadDate(t *testing.T) {
	err := ValidateStruct(EventInput{
		Name:        "Go Meetup",
		Description: "A long enough description",
		Date:        "01/05/2025",
		Time:        "18:30",
		Location:    "Library",
		Capacity:    10,
		Category:    "club",
	})

	assert.EqualError(t, err, "date must match the format 2006-01-02")
}
