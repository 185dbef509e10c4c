package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/campus-events/internal/helpers"
	"github.com/joshua-takyi/campus-events/internal/services"
)

func Register(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.RegisterInput
		if err := bindJSON(c, &in); err != nil {
			c.Error(err)
			return
		}
		res, err := u.Register(c.Request.Context(), in)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, res)
	}
}

func Login(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.LoginInput
		if err := bindJSON(c, &in); err != nil {
			c.Error(err)
			return
		}
		res, err := u.Login(c.Request.Context(), in)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func GetProfile(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := helpers.UserIDFromContext(c)
		if err != nil {
			c.Error(err)
			return
		}
		user, err := u.GetProfile(c.Request.Context(), userID)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func UpdateProfile(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := helpers.UserIDFromContext(c)
		if err != nil {
			c.Error(err)
			return
		}
		var in services.ProfileInput
		if err := bindJSON(c, &in); err != nil {
			c.Error(err)
			return
		}
		user, err := u.UpdateProfile(c.Request.Context(), userID, in)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func UpdatePreferences(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := helpers.UserIDFromContext(c)
		if err != nil {
			c.Error(err)
			return
		}
		var in services.PreferencesInput
		if err := bindJSON(c, &in); err != nil {
			c.Error(err)
			return
		}
		prefs, err := u.UpdatePreferences(c.Request.Context(), userID, in)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, prefs)
	}
}

func RegisteredEvents(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := helpers.UserIDFromContext(c)
		if err != nil {
			c.Error(err)
			return
		}
		events, err := u.RegisteredEvents(c.Request.Context(), userID)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, events)
	}
}
