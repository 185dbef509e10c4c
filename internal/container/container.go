package container

import (
	"context"
	"log/slog"
	"time"

	"github.com/joshua-takyi/campus-events/internal/config"
	"github.com/joshua-takyi/campus-events/internal/helpers"
	"github.com/joshua-takyi/campus-events/internal/mailer"
	"github.com/joshua-takyi/campus-events/internal/metrics"
	"github.com/joshua-takyi/campus-events/internal/middleware"
	"github.com/joshua-takyi/campus-events/internal/models"
	"github.com/joshua-takyi/campus-events/internal/notifier"
	"github.com/joshua-takyi/campus-events/internal/services"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store is what the container needs from a storage backend.
type Store interface {
	models.UserRepo
	models.EventRepo
	Ping(ctx context.Context) error
}

// Clients are the already connected external clients. Any of them may be
// nil; the matching feature is then disabled or falls back to memory.
type Clients struct {
	MongoDB   *mongo.Client
	Redis     *redis.Client
	Publisher mailer.JobPublisher
}

// Container holds all application dependencies
type Container struct {
	Logger *slog.Logger
	Config *config.Config
	Store  Store

	Tokens       *helpers.JWTManager
	UserService  *services.UserService
	EventService *services.EventService
	AdminService *services.AdminService

	Hub    *notifier.Hub
	Bridge *notifier.RedisBridge

	AuthLimiter   middleware.Limiter
	PublicLimiter middleware.Limiter

	stoppers []func()
}

// NewContainer creates a new dependency injection container
func NewContainer(logger *slog.Logger, cfg *config.Config, clients Clients) *Container {
	c := &Container{Logger: logger, Config: cfg}

	if cfg.StoreDriver == config.StoreMemory || clients.MongoDB == nil {
		logger.Warn("Using in-memory store, data will not survive a restart")
		c.Store = models.NewMemoryRepo()
	} else {
		c.Store = models.MongodbNewRepo(clients.MongoDB, cfg.MongoDBDatabase)
	}

	var recorder metrics.Recorder

	hubOpts := []notifier.Option{notifier.WithRecorder(recorder)}
	if clients.Redis != nil {
		c.Bridge = notifier.NewRedisBridge(clients.Redis, cfg.RedisChannel, logger)
		hubOpts = append(hubOpts, notifier.WithFanout(c.Bridge))
	}
	c.Hub = notifier.NewHub(logger, hubOpts...)
	if c.Bridge != nil {
		c.Bridge.Attach(c.Hub)
	}

	c.Tokens = helpers.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	c.UserService = services.NewUserService(c.Store, c.Store, c.Tokens, logger)
	c.AdminService = services.NewAdminService(c.Store, c.Store, logger)

	eventOpts := []services.EventOption{
		services.WithBroadcaster(c.Hub),
		services.WithRSVPObserver(recorder),
	}
	if clients.Publisher != nil {
		appURL := ""
		if len(cfg.FrontendURLs) > 0 {
			appURL = cfg.FrontendURLs[0]
		}
		eventOpts = append(eventOpts, services.WithAnnouncer(
			mailer.NewAnnouncer(c.Store, clients.Publisher, appURL, recorder, logger),
		))
	}
	c.EventService = services.NewEventService(c.Store, c.Store, logger, eventOpts...)

	c.AuthLimiter = c.limiter(clients.Redis, cfg.RateLimitAuthPerMinute)
	c.PublicLimiter = c.limiter(clients.Redis, cfg.RateLimitPublicPerMinute)

	return c
}

// limiter returns nil when perMinute disables limiting.
func (c *Container) limiter(rdb *redis.Client, perMinute int) middleware.Limiter {
	if perMinute <= 0 {
		return nil
	}
	if rdb != nil {
		return middleware.NewRedisLimiter(rdb, perMinute, time.Minute)
	}
	l := middleware.NewMemoryLimiter(perMinute)
	c.stoppers = append(c.stoppers, l.Stop)
	return l
}

// Close stops background goroutines owned by the container. External
// clients are closed by whoever connected them.
func (c *Container) Close() {
	for _, stop := range c.stoppers {
		stop()
	}
	c.stoppers = nil
}
