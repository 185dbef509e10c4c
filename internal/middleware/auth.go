package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/campus-events/internal/helpers"
	"github.com/joshua-takyi/campus-events/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Authenticator interface {
	Authenticate(token string) (*helpers.Claims, primitive.ObjectID, error)
}

type UserLookup interface {
	GetProfile(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

const CurrentUserKey = "current_user"

// AuthMiddleware requires a valid bearer token and stores the caller's
// claims and id on the context.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := helpers.TokenFromHeader(c.GetHeader("Authorization"))
		if err != nil {
			c.Error(models.NewUnauthorizedError("no token, authorization denied"))
			c.Abort()
			return
		}
		claims, userID, err := auth.Authenticate(token)
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}
		c.Set(helpers.ClaimsKey, claims)
		c.Set(helpers.UserIDKey, userID)
		c.Next()
	}
}

// AdminOnly loads the caller's record and rejects non-administrators. The
// flag is read from the store on every request, so a revoked admin loses
// access immediately.
func AdminOnly(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := helpers.UserIDFromContext(c)
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}
		user, err := users.GetProfile(c.Request.Context(), userID)
		if err != nil {
			if models.IsKind(err, models.KindNotFound) {
				err = models.NewUnauthorizedError("user no longer exists")
			}
			c.Error(err)
			c.Abort()
			return
		}
		if !user.IsAdmin {
			c.Error(models.NewForbiddenError("admin access required"))
			c.Abort()
			return
		}
		c.Set(CurrentUserKey, user)
		c.Next()
	}
}

// QueryToken lets browser websocket clients, which cannot set headers,
// pass the bearer token as ?token=.
func QueryToken(c *gin.Context) string {
	if t, err := helpers.TokenFromHeader(c.GetHeader("Authorization")); err == nil {
		return t
	}
	return strings.TrimSpace(c.Query("token"))
}
