package routes

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/campus-events/internal/container"
	"github.com/joshua-takyi/campus-events/internal/handlers"
	"github.com/joshua-takyi/campus-events/internal/metrics"
	"github.com/joshua-takyi/campus-events/internal/middleware"
)

// SetupRoutes configures all routes with the dependency container
func SetupRoutes(container *container.Container) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	cfg := container.Config

	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURLs,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "Retry-After"},
		AllowCredentials: true,
	}))

	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(container.Logger))
	r.Use(middleware.ErrorHandler(container.Logger))
	if cfg.MetricsEnabled {
		r.Use(metrics.GinMiddleware())
	}
	r.Use(gin.Recovery())

	serveStatic := cfg.IsProduction() && cfg.StaticDir != ""
	if !serveStatic {
		r.GET("/", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "Welcome to the Campus Events API"})
		})
	}
	if cfg.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	r.GET("/ws", handlers.ServeWS(container.Hub, container.UserService, cfg.FrontendURLs, container.Logger))

	api := r.Group("/api")
	api.Use(middleware.RateLimit(container.PublicLimiter, "public", container.Logger))
	api.GET("/health", health(container))

	authenticated := middleware.AuthMiddleware(container.UserService)
	adminOnly := middleware.AdminOnly(container.UserService)

	auth := api.Group("/auth")
	{
		limited := auth.Group("", middleware.RateLimit(container.AuthLimiter, "auth", container.Logger))
		limited.POST("/register", handlers.Register(container.UserService))
		limited.POST("/login", handlers.Login(container.UserService))

		protected := auth.Group("", authenticated)
		protected.GET("/profile", handlers.GetProfile(container.UserService))
		protected.PUT("/profile", handlers.UpdateProfile(container.UserService))
		protected.PUT("/preferences", handlers.UpdatePreferences(container.UserService))
		protected.GET("/registered-events", handlers.RegisteredEvents(container.UserService))
	}

	events := api.Group("/events")
	{
		events.GET("", handlers.ListEvents(container.EventService))
		events.GET("/:id", handlers.GetEvent(container.EventService))

		events.POST("/:id/rsvp", authenticated, handlers.RSVP(container.EventService))
		events.DELETE("/:id/rsvp", authenticated, handlers.CancelRSVP(container.EventService))

		events.POST("", authenticated, adminOnly, handlers.CreateEvent(container.EventService))
		events.PUT("/:id", authenticated, adminOnly, handlers.UpdateEvent(container.EventService))
		events.DELETE("/:id", authenticated, adminOnly, handlers.DeleteEvent(container.EventService))
	}

	admin := api.Group("/admin", authenticated, adminOnly)
	{
		admin.GET("/users", handlers.ListUsers(container.AdminService))
		admin.PUT("/users/:id", handlers.SetAdmin(container.AdminService))
		admin.GET("/stats", handlers.AdminStats(container.AdminService))
	}

	r.NoRoute(notFound(cfg.StaticDir, serveStatic))

	return r
}

func health(container *container.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := container.Store.Ping(ctx); err != nil {
			container.Logger.Warn("Health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unavailable",
				"service": "campus-events-api",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "OK",
			"service":     "campus-events-api",
			"connections": container.Hub.ConnectionCount(),
		})
	}
}

// notFound serves the single page app for non-API paths when static assets
// are configured, and a JSON 404 otherwise.
func notFound(staticDir string, serveStatic bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		isAPI := strings.HasPrefix(p, "/api/") || p == "/api" || p == "/ws"
		if serveStatic && !isAPI && (c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead) {
			file := filepath.Join(staticDir, filepath.FromSlash(path.Clean("/"+p)))
			if info, err := os.Stat(file); err == nil && !info.IsDir() {
				c.File(file)
				return
			}
			c.File(filepath.Join(staticDir, "index.html"))
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found", "path": p})
	}
}
