package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joshua-takyi/campus-events/internal/config"
	"github.com/joshua-takyi/campus-events/internal/connect"
	"github.com/joshua-takyi/campus-events/internal/container"
	"github.com/joshua-takyi/campus-events/internal/mailer"
	"github.com/joshua-takyi/campus-events/internal/models"
	"github.com/joshua-takyi/campus-events/internal/routes"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Info("Starting campus events API server", "environment", cfg.Environment, "store", cfg.StoreDriver)

	clients, cleanup, err := connectClients(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// Initialize dependency container
	app := container.NewContainer(logger, cfg, clients)
	defer app.Close()

	if repo, ok := app.Store.(*models.MongodbRepo); ok {
		if err := repo.EnsureIndexes(context.Background()); err != nil {
			return err
		}
	}

	router := routes.SetupRoutes(app)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if app.Bridge != nil {
		g.Go(func() error {
			return app.Bridge.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Server is shutting down...")

		// Give outstanding requests 30 seconds to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", "error", err)
		return err
	}
	logger.Info("Server exited")
	return nil
}

// connectClients opens the external connections the configuration asks
// for. The returned cleanup closes whatever was opened.
func connectClients(cfg *config.Config, logger *slog.Logger) (container.Clients, func(), error) {
	var clients container.Clients
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.StoreDriver == config.StoreMongo {
		mongoClient, err := connect.MongoDBConnect(cfg)
		if err != nil {
			return clients, cleanup, err
		}
		logger.Info("Connected to MongoDB successfully")
		clients.MongoDB = mongoClient
		closers = append(closers, func() {
			if err := connect.MongoDBDisconnect(); err != nil {
				logger.Error("Error disconnecting from MongoDB", "error", err)
			}
		})
	}

	rdb, err := connect.RedisConnect(cfg, logger)
	if err != nil {
		cleanup()
		return clients, func() {}, err
	}
	if rdb != nil {
		clients.Redis = rdb
		closers = append(closers, func() { _ = connect.RedisDisconnect() })
	}

	if cfg.RabbitMQURL != "" {
		publisher, err := mailer.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if err != nil {
			// announcements are optional, the API still serves without them
			logger.Warn("RabbitMQ unavailable, event announcements disabled", "error", err)
		} else {
			logger.Info("Connected to RabbitMQ", "queue", cfg.RabbitMQEmailQueue)
			clients.Publisher = publisher
			closers = append(closers, publisher.Close)
		}
	}

	return clients, cleanup, nil
}
