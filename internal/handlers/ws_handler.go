package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/joshua-takyi/campus-events/internal/middleware"
	"github.com/joshua-takyi/campus-events/internal/models"
	"github.com/joshua-takyi/campus-events/internal/notifier"
	"github.com/joshua-takyi/campus-events/internal/services"
)

// originChecker accepts requests without an Origin header (non-browser
// clients) and browser requests from one of the allowed origins.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}

// ServeWS upgrades to a notifier connection. A token is optional; without
// one the connection can only follow rooms.
func ServeWS(hub *notifier.Hub, u *services.UserService, allowedOrigins []string, logger *slog.Logger) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return func(c *gin.Context) {
		var identity notifier.Identity
		if token := middleware.QueryToken(c); token != "" {
			_, userID, err := u.Authenticate(token)
			if err != nil {
				c.Error(err)
				return
			}
			user, err := u.GetProfile(c.Request.Context(), userID)
			if err != nil {
				if models.IsKind(err, models.KindNotFound) {
					err = models.NewUnauthorizedError("user no longer exists")
				}
				c.Error(err)
				return
			}
			identity = notifier.Identity{UserID: user.ID.Hex(), IsAdmin: user.IsAdmin}
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// the upgrader has already written the error response
			logger.Debug("websocket upgrade failed", "error", err)
			return
		}
		notifier.NewClient(hub, conn, identity).Serve()
	}
}
