package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/campus-events/internal/helpers"
	"github.com/joshua-takyi/campus-events/internal/models"
	"github.com/joshua-takyi/campus-events/internal/services"
)

func ListUsers(a *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := a.ListUsers(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

func AdminStats(a *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := a.Stats(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func SetAdmin(a *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := helpers.UserIDFromContext(c)
		if err != nil {
			c.Error(err)
			return
		}
		target, err := helpers.ParseObjectID(c.Param("id"), "user")
		if err != nil {
			c.Error(err)
			return
		}
		var req struct {
			IsAdmin *bool `json:"is_admin"`
		}
		if err := bindJSON(c, &req); err != nil {
			c.Error(err)
			return
		}
		if req.IsAdmin == nil {
			c.Error(models.NewValidationError("is_admin is required"))
			return
		}
		user, err := a.SetAdmin(c.Request.Context(), actor, target, *req.IsAdmin)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}
