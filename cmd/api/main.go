// Command api runs the storefront HTTP API.
//
// @title                       Storefront API
// @version                     1.0
// @description                 Accounts, sessions and catalog administration for the storefront.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/storefront/storefront-api/internal/api"
	"github.com/storefront/storefront-api/internal/api/handler"
	"github.com/storefront/storefront-api/internal/core/service"
	mongostore "github.com/storefront/storefront-api/internal/infrastructure/db/mongo"
	redisstore "github.com/storefront/storefront-api/internal/infrastructure/db/redis"
	"github.com/storefront/storefront-api/internal/infrastructure/queue"
	"github.com/storefront/storefront-api/internal/infrastructure/security"
	"github.com/storefront/storefront-api/internal/pkg/config"
	"github.com/storefront/storefront-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		zlog.Fatal().Err(err).Msg("storefront-api stopped")
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "storefront-api",
	})
	if cfg.Auth.UsingInsecureSecret {
		log.Warn().Msg("JWT_SECRET not set: signing tokens with the built-in insecure default")
	}

	// --- Storage ---
	mongoClient, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	rdb, err := redisstore.Connect(ctx, redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()

	users := mongostore.NewUserRepository(db)
	products := mongostore.NewProductRepository(db)
	if err := mongostore.EnsureIndexes(ctx, users, products); err != nil {
		return err
	}

	// --- Security ---
	pool := queue.NewWorkerPool(cfg.Auth.HashWorkers, logger.Component("hash_pool"))
	pool.Start(ctx)
	defer pool.Stop()

	hasher := security.NewBcryptHasher(cfg.Auth.BcryptCost, pool)
	tokens, err := security.NewTokenManager(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}

	// --- Services ---
	authService, err := service.NewAuthService(ctx, users, hasher, tokens, service.TokenTTLs{
		Register: cfg.Auth.RegisterTokenTTL,
		Login:    cfg.Auth.LoginTokenTTL,
	}, logger.Component("auth"))
	if err != nil {
		return err
	}
	productService := service.NewProductService(
		products,
		redisstore.NewProductCache(rdb, cfg.Redis.ProductCacheTTL),
		logger.Component("catalog"),
	)

	e := api.NewRouter(api.Dependencies{
		Auth:     authService,
		Products: productService,
		Verifier: tokens,
		Checks: map[string]handler.CheckFunc{
			"mongodb": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
			"redis":   func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		Logger: logger.Component("http"),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("port", cfg.Port).
			Int("hash_workers", pool.Size()).
			Int("bcrypt_cost", hasher.Cost()).
			Msg("storefront-api listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
