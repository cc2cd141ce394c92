package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/tomaskub292929/to-korea-sub000/api/controllers"
	"github.com/tomaskub292929/to-korea-sub000/api/routes"
	"github.com/tomaskub292929/to-korea-sub000/internal/applications"
	"github.com/tomaskub292929/to-korea-sub000/internal/authctx"
	"github.com/tomaskub292929/to-korea-sub000/internal/authprovider"
	"github.com/tomaskub292929/to-korea-sub000/internal/payments"
	"github.com/tomaskub292929/to-korea-sub000/internal/realtime"
	"github.com/tomaskub292929/to-korea-sub000/internal/users"
	"github.com/tomaskub292929/to-korea-sub000/pkg/auth/session"
	"github.com/tomaskub292929/to-korea-sub000/pkg/config"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db"
	"github.com/tomaskub292929/to-korea-sub000/pkg/db/models"
	"github.com/tomaskub292929/to-korea-sub000/pkg/logger"
	"github.com/tomaskub292929/to-korea-sub000/pkg/metrics"
	"github.com/tomaskub292929/to-korea-sub000/pkg/migrate"
	"github.com/tomaskub292929/to-korea-sub000/pkg/outbox"
	"github.com/tomaskub292929/to-korea-sub000/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	var google, facebook authprovider.SocialVerifier
	if cfg.Google.ClientID != "" {
		verifier, err := authprovider.NewGoogleVerifier(ctx, cfg.Google)
		if err != nil {
			return err
		}
		google = verifier
	} else {
		logg.Warn(ctx, "google sign-in disabled: no client id configured")
	}
	fbVerifier, err := authprovider.NewFacebookVerifier(cfg.Facebook, &http.Client{Timeout: cfg.Facebook.Timeout})
	if err != nil {
		return err
	}
	facebook = fbVerifier

	actionTokens, err := session.NewActionTokens(redisClient, cfg.EmailAction)
	if err != nil {
		return err
	}

	provider, err := authprovider.NewProvider(authprovider.ProviderParams{
		Identities:     authprovider.NewRepository(dbClient.DB()),
		Sessions:       sessionManager,
		Google:         google,
		Facebook:       facebook,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Actions:        actionTokens,
		Mailer:         authprovider.NewLogMailer(logg),
		EmailAction:    cfg.EmailAction,
		Logger:         logg,
	})
	if err != nil {
		return err
	}

	userManager, err := users.NewManager(users.ManagerParams{
		Repo:   users.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		return err
	}

	sessions, err := authctx.NewFactory(provider, userManager, logg)
	if err != nil {
		return err
	}

	var feed realtime.Feed
	if cfg.Realtime.UsesRedis() {
		redisFeed, err := realtime.NewRedisFeed(ctx, redisClient, cfg.Realtime.Channel, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, redisFeed.Close()) }()
		feed = redisFeed
	} else {
		feed = realtime.NewLocalFeed()
	}

	var emitter outbox.Emitter
	if cfg.FeatureFlags.EmitOutboxEvents {
		emitter = outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	}

	applicationService, err := applications.NewService(applications.ServiceParams{
		Repo:               applications.NewRepository(dbClient.DB()),
		Tx:                 dbClient,
		Outbox:             emitter,
		Changes:            feed,
		Logger:             logg,
		EnforceTransitions: cfg.FeatureFlags.EnforceStatusTransitions,
	})
	if err != nil {
		return err
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Applications: applicationService,
		Gateway:      payments.NewSimulatedGateway(cfg.Payment),
		Metrics:      metrics.NewPaymentMetrics(registry),
		Logger:       logg,
	})
	if err != nil {
		return err
	}

	hub, err := realtime.NewHub(realtime.HubParams[models.Application]{
		Feed:    feed,
		Loader:  applicationService.Load,
		Logger:  logg,
		Metrics: metrics.NewRealtimeMetrics(registry),
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
		"feed":     cfg.Realtime.Feed,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			map[string]controllers.Pinger{"postgres": dbClient, "redis": redisClient},
			redisClient,
			registry,
			metrics.NewHTTPMetrics(registry),
			sessions,
			provider,
			userManager,
			applicationService,
			paymentService,
			hub,
		),
		ReadHeaderTimeout: 10 * time.Second,
		// streams end with the signal context instead of holding Shutdown open
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
