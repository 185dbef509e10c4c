package helpers

import (
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joshua-takyi/campus-events/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// context keys set by the auth middleware
const (
	ClaimsKey = "user"
	UserIDKey = "user_id"
)

type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// UserIDFromContext returns the authenticated caller's id. It fails with an
// unauthorized error when the route was not behind the auth middleware.
func UserIDFromContext(c *gin.Context) (primitive.ObjectID, error) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return primitive.NilObjectID, models.NewUnauthorizedError("authentication required")
	}
	id, ok := v.(primitive.ObjectID)
	if !ok || id.IsZero() {
		return primitive.NilObjectID, models.NewUnauthorizedError("authentication required")
	}
	return id, nil
}
