package helpers

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joshua-takyi/campus-events/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	id := primitive.NewObjectID().Hex()

	token, expires, err := m.Generate(id)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.Subject)
	assert.Equal(t, id, claims.UserID)
}

func TestJWTRejectsTamperedAndExpired(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	token, _, err := m.Generate("abc")
	require.NoError(t, err)

	other := NewJWTManager("another-secret", time.Hour)
	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewJWTManager("test-secret", -time.Minute)
	stale, _, err := expired.Generate("abc")
	require.NoError(t, err)
	_, err = m.Validate(stale)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Validate("  ")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestJWTRejectsNoneAlgorithm(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "abc",
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Validate(s)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenFromHeader(t *testing.T) {
	tok, err := TokenFromHeader("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	tok, err = TokenFromHeader("bearer   xyz")
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)

	for _, h := range []string{"", "Bearer", "Basic abc", "Bearer a b"} {
		_, err := TokenFromHeader(h)
		assert.ErrorIs(t, err, ErrMissingToken, h)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.False(t, strings.Contains(hash, "s3cret!"))
	assert.True(t, CheckPassword(hash, "s3cret!"))
	assert.False(t, CheckPassword(hash, "S3cret!"))
	assert.False(t, CheckPassword("not-a-hash", "s3cret!"))
}

func TestParseObjectID(t *testing.T) {
	want := primitive.NewObjectID()
	got, err := ParseObjectID(want.Hex(), "event")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = ParseObjectID("not-an-id", "event")
	assert.True(t, models.IsKind(err, models.KindNotFound))
	assert.EqualError(t, err, "event not found")
}
