package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/campus-events/internal/helpers"
	"github.com/joshua-takyi/campus-events/internal/models"
	"github.com/joshua-takyi/campus-events/internal/services"
)

func ListEvents(e *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := e.ListEvents(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, events)
	}
}

func GetEvent(e *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := eventIDParam(c)
		if err != nil {
			c.Error(err)
			return
		}
		event, err := e.GetEvent(c.Request.Context(), id)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, event)
	}
}

func CreateEvent(e *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := helpers.UserIDFromContext(c)
		if err != nil {
			c.Error(err)
			return
		}
		var in models.EventInput
		if err := bindJSON(c, &in); err != nil {
			c.Error(err)
			return
		}
		event, err := e.CreateEvent(c.Request.Context(), userID, in)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, event)
	}
}

func UpdateEvent(e *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := eventIDParam(c)
		if err != nil {
			c.Error(err)
			return
		}
		var update models.EventUpdate
		if err := bindJSON(c, &update); err != nil {
			c.Error(err)
			return
		}
		event, err := e.UpdateEvent(c.Request.Context(), id, update)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, event)
	}
}

func DeleteEvent(e *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := eventIDParam(c)
		if err != nil {
			c.Error(err)
			return
		}
		if err := e.DeleteEvent(c.Request.Context(), id); err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "event deleted", "id": id.Hex()})
	}
}

func RSVP(e *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := helpers.UserIDFromContext(c)
		if err != nil {
			c.Error(err)
			return
		}
		id, err := eventIDParam(c)
		if err != nil {
			c.Error(err)
			return
		}
		event, err := e.RSVP(c.Request.Context(), id, userID)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "RSVP successful", "event": event})
	}
}

func CancelRSVP(e *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := helpers.UserIDFromContext(c)
		if err != nil {
			c.Error(err)
			return
		}
		id, err := eventIDParam(c)
		if err != nil {
			c.Error(err)
			return
		}
		event, err := e.CancelRSVP(c.Request.Context(), id, userID)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "RSVP cancelled", "event": event})
	}
}
