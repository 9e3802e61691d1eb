package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-storefront/config"
	"go-storefront/controllers"
	"go-storefront/middleware"
	"go-storefront/routes"
	"go-storefront/utils"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/time/rate"
)

// setupLogging configures the global logrus logger.
func setupLogging(cfg *config.Config) {
	if cfg.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg)
	return cfg, nil
}

func connect(ctx context.Context, cfg *config.Config) (*mongo.Client, *mongo.Database, error) {
	client, err := utils.ConnectDB(ctx, cfg.Database.URI)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	return client, client.Database(cfg.Database.Name), nil
}

func runPromoteAdmin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	client, db, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	if err := controllers.PromoteAdmin(ctx, db.Collection(utils.UsersCollection), promoteEmail); err != nil {
		if utils.IsNotFound(err) {
			return fmt.Errorf("no user registered with email %s", promoteEmail)
		}
		return err
	}
	logrus.WithField("email", promoteEmail).Info("user promoted to admin")
	return nil
}

func newCache(ctx context.Context, cfg *config.Config) (utils.Cache, func()) {
	if cfg.Redis.Addr == "" {
		logrus.Info("REDIS_URL not set, caching disabled")
		return utils.NopCache{}, func() {}
	}
	rc, err := utils.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password)
	if err != nil {
		logrus.WithError(err).Warn("Redis unavailable, caching disabled")
		return utils.NopCache{}, func() {}
	}
	return rc, func() { rc.Close() }
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, db, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logrus.WithError(err).Error("failed to disconnect from MongoDB")
		}
	}()

	if err := utils.EnsureIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	transport, err := utils.NewTransport(cfg.Email.Provider, cfg.MailAPIKey(), cfg.Email.Sender)
	if err != nil {
		return fmt.Errorf("mail transport: %w", err)
	}
	emailService := utils.NewEmailService(transport, cfg.Frontend.BaseURL)

	cache, closeCache := newCache(ctx, cfg)
	defer closeCache()

	tokens := utils.NewTokenManager(cfg.JWT.SecretKey, cfg.SessionTTL())
	images := utils.NewImageStore(cfg.Server.UploadDir, "/uploads")

	proxies, err := middleware.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}
	authLimiter := middleware.NewRateLimiter(rate.Every(12*time.Second), 5, proxies)
	go authLimiter.Run(ctx)

	router := mux.NewRouter()
	routes.RegisterRoutes(router, routes.Deps{
		Users:      controllers.NewUserController(db, emailService, tokens, utils.NewGoogleVerifier(cfg.Google.ClientID), cfg.Pagination.Limit, cfg.IsProduction()),
		Products:   controllers.NewProductController(db, cache, cfg.Pagination.AdminLimit),
		Categories: controllers.NewCategoryController(db, cache, cfg.Pagination.Limit),
		Carts:      controllers.NewCartController(db),
		Orders:     controllers.NewOrderController(db, emailService, cfg.Pagination.AdminLimit),
		Revenue:    controllers.NewRevenueController(db),
		Uploads:    controllers.NewUploadController(images),
		Config:     controllers.NewConfigController(cfg.PayPal.ClientID),

		Auth:          middleware.NewAuth(db, tokens),
		Visits:        middleware.NewVisitTracker(db),
		AuthLimiter:   authLimiter,
		UploadDir:     images.Dir(),
		StaticDir:     cfg.Server.StaticDir,
		ServeFrontend: cfg.IsProduction(),
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           middleware.Logging(proxies, corsHandler),
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{"port": cfg.Server.Port, "env": cfg.Environment}).Info("Server is running")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logrus.Info("Shutdown signal received; shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logrus.Info("Server stopped cleanly")
	return nil
}
