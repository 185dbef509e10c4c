package handlers

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/campus-events/internal/helpers"
	"github.com/joshua-takyi/campus-events/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// bindJSON decodes the request body into dst. Decoding failures are
// reported as validation errors; field rules are checked by the services.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return models.NewValidationError("request body is required")
		}
		return models.NewValidationError("invalid request payload")
	}
	return nil
}

func eventIDParam(c *gin.Context) (primitive.ObjectID, error) {
	return helpers.ParseObjectID(c.Param("id"), "event")
}
