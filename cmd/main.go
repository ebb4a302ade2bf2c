package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	httpctx "github.com/dtroode/flavourmarket/internal/api/http/context"
	"github.com/dtroode/flavourmarket/internal/api/http/handler"
	"github.com/dtroode/flavourmarket/internal/api/http/middleware"
	"github.com/dtroode/flavourmarket/internal/api/http/router"
	httpServer "github.com/dtroode/flavourmarket/internal/api/http/server"
	"github.com/dtroode/flavourmarket/internal/backend/supabase"
	"github.com/dtroode/flavourmarket/internal/client"
	"github.com/dtroode/flavourmarket/internal/config"
	"github.com/dtroode/flavourmarket/internal/logger"
	"github.com/dtroode/flavourmarket/internal/metrics"
	"github.com/dtroode/flavourmarket/internal/model"
	"github.com/dtroode/flavourmarket/internal/repository/postgres"
	"github.com/dtroode/flavourmarket/internal/server"
	"github.com/dtroode/flavourmarket/internal/service"
	"github.com/dtroode/flavourmarket/internal/storage/memory"
	storage "github.com/dtroode/flavourmarket/internal/storage/minio"
	"github.com/dtroode/flavourmarket/internal/storage/redis"
	"github.com/dtroode/flavourmarket/internal/token"
	"github.com/dtroode/flavourmarket/internal/validation"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

const (
	backendTimeout  = 15 * time.Second
	sweepInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

// backend is the data side of the remote backend contract.
type backend struct {
	listings   model.ListingStore
	profiles   model.ProfileStore
	procedures model.Procedures
	close      func() error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("failed to load .env: %v", err)
	}
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.NewWithWriter(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	ctxMgr := httpctx.NewManager()
	tokenManager := token.NewJWT(cfg.Session.Secret, cfg.Supabase.JWTSecret)

	restClient, err := supabase.New(supabase.Config{
		URL:        cfg.Supabase.URL,
		APIKey:     cfg.Supabase.AnonKey,
		HTTPClient: &http.Client{Timeout: backendTimeout},
	}, ctxMgr)
	if err != nil {
		logger.Fatal("failed to create backend client", "error", err)
	}

	data, err := newBackend(ctx, cfg, restClient, tokenManager, ctxMgr)
	if err != nil {
		logger.Fatal("failed to initialize data backend", "error", err, "backend", cfg.Backend)
	}
	defer data.close()

	sessionStore, closeStore, err := newSessionStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize session store", "error", err)
	}
	defer closeStore()

	imageStorage, err := newImageStorage(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize image storage", "error", err)
	}
	if imageStorage == nil {
		logger.Info("image uploads disabled, MINIO_ENDPOINT is not set")
	}

	appMetrics := metrics.New()
	authProvider := supabase.NewAuth(restClient)

	registry := client.NewRegistry(client.Deps{
		Auth:       authProvider,
		Store:      sessionStore,
		CtxManager: ctxMgr,
		Metrics:    appMetrics,
		Logger:     logger,
		StaleTime:  cfg.Cache.StaleTime,
		SessionTTL: cfg.Session.TTL,
	}, cfg.Session.IdleTimeout)
	defer registry.Close()

	var listingStorage model.ImageStorage
	if imageStorage != nil {
		listingStorage = imageStorage
	}
	services := handler.Services{
		Auth:     service.NewAuth(authProvider, data.profiles, logger),
		Listings: service.NewListing(data.listings, listingStorage, logger),
		Wallet:   service.NewWallet(data.profiles, data.procedures, logger),
		Purchase: service.NewPurchase(data.procedures, logger),
		Activity: service.NewActivity(data.procedures),
	}

	renderer, err := handler.NewRenderer(logger)
	if err != nil {
		logger.Fatal("failed to parse templates", "error", err)
	}
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.AuthPerSecond, cfg.RateLimit.AuthBurst, logger)
	session := middleware.NewSession(
		service.NewTokenService(tokenManager, cfg.Session.TTL),
		registry,
		ctxMgr,
		cfg.Session.CookieName,
		cfg.HTTP.EnableHTTPS,
		logger,
	)
	h := handler.New(services, validation.New(), renderer, ctxMgr, logger)
	routes := router.New(h, session, rateLimiter, appMetrics, ctxMgr, logger).Register()

	webServer := httpServer.NewHTTPServer(routes, cfg.HTTPAddress())

	var sl model.SecurityLayer

	if cfg.HTTP.EnableHTTPS {
		sl = server.NewTLSListener(cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		registry.Run(ctx, sweepInterval)
	}()
	go func() {
		defer wg.Done()
		rateLimiter.Run(ctx, sweepInterval)
	}()
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address(), "backend", cfg.Backend)
		if err := s.Start(sl); err != nil {
			logger.Error("failed to start server", "error", err)
			stop()
		}
	}(webServer)

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := webServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", webServer.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}

// newBackend selects where listings, profiles and procedures are read from.
// Authentication always goes through the hosted auth service.
func newBackend(
	ctx context.Context,
	cfg *config.Config,
	restClient *supabase.Client,
	tokens model.TokenManager,
	ctxMgr model.ContextManager,
) (*backend, error) {
	if cfg.Backend == config.BackendPostgres {
		if cfg.Supabase.JWTSecret == "" {
			return nil, errors.New("SUPABASE_JWT_SECRET is required for the postgres backend")
		}
		db, err := postgres.NewConnection(ctx, cfg.Database.DSN, cfg.Database.Migrate, tokens, ctxMgr)
		if err != nil {
			return nil, err
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return &backend{
			listings:   postgres.NewListingRepository(db),
			profiles:   postgres.NewProfileRepository(db),
			procedures: postgres.NewProcedureRepository(db),
			close:      db.Close,
		}, nil
	}

	return &backend{
		listings:   supabase.NewListings(restClient),
		profiles:   supabase.NewProfiles(restClient),
		procedures: supabase.NewProcedures(restClient),
		close:      func() error { return nil },
	}, nil
}

// newSessionStore keeps backend tokens in Redis when configured, in memory otherwise.
func newSessionStore(ctx context.Context, cfg *config.Config) (model.SessionStore, func() error, error) {
	if cfg.Redis.Addr == "" {
		return memory.NewSessionStore(), func() error { return nil }, nil
	}

	store, rdb, err := redis.NewSessionStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	return store, rdb.Close, nil
}

// newImageStorage returns nil when no object storage endpoint is configured.
func newImageStorage(ctx context.Context, cfg *config.Config) (*storage.Client, error) {
	if cfg.Storage.Endpoint == "" {
		return nil, nil
	}

	minioClient, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return storage.NewClient(ctx, minioClient, cfg.Storage.Bucket, cfg.Storage.PublicURL)
}
