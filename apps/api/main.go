package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	companieshandler "github.com/motorline/dealerdesk/domains/companies/be/handler"
	companiesrepo "github.com/motorline/dealerdesk/domains/companies/be/repo"
	companiesservice "github.com/motorline/dealerdesk/domains/companies/be/service"
	dealershandler "github.com/motorline/dealerdesk/domains/dealers/be/handler"
	dealersrepo "github.com/motorline/dealerdesk/domains/dealers/be/repo"
	dealersservice "github.com/motorline/dealerdesk/domains/dealers/be/service"
	hierarchyhandler "github.com/motorline/dealerdesk/domains/hierarchy/be/handler"
	hierarchyrepo "github.com/motorline/dealerdesk/domains/hierarchy/be/repo"
	hierarchyservice "github.com/motorline/dealerdesk/domains/hierarchy/be/service"
	identityrepo "github.com/motorline/dealerdesk/domains/identity/be/repo"
	identityservice "github.com/motorline/dealerdesk/domains/identity/be/service"
	usershandler "github.com/motorline/dealerdesk/domains/users/be/handler"
	usersrepo "github.com/motorline/dealerdesk/domains/users/be/repo"
	usersservice "github.com/motorline/dealerdesk/domains/users/be/service"
	"github.com/motorline/dealerdesk/platform/go/cache"
	"github.com/motorline/dealerdesk/platform/go/geo"
	platformlogging "github.com/motorline/dealerdesk/platform/go/logging"
	platformmiddleware "github.com/motorline/dealerdesk/platform/go/middleware"
	"github.com/motorline/dealerdesk/platform/go/persistence"
	principalmw "github.com/motorline/dealerdesk/platform/go/principal/middleware"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	AuthProvider    string        `env:"AUTH_PROVIDER" envDefault:"firebase"` // firebase | dev
	CacheURL        string        `env:"CACHE_URL"`                           // optional redis; empty disables invalidation
	GeocoderURL     string        `env:"GEOCODER_URL" envDefault:"https://nominatim.openstreetmap.org"`
	PrincipalTTL    time.Duration `env:"PRINCIPAL_CACHE_TTL" envDefault:"1m"`
}

// globalPrefixes lists the cached resources shared across tenants. Everything
// else gets a per-company tag.
var globalPrefixes = cache.NewGlobalPrefixes("technical-sites")

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	var tagCache cache.Cache = cache.NopInvalidator{}
	if cfg.CacheURL != "" {
		opts, err := redis.ParseURL(cfg.CacheURL)
		if err != nil {
			logger.Fatal("parse cache url", zap.Error(err))
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		tagCache = cache.NewRedisInvalidator(redisClient)
	} else {
		logger.Warn("no CACHE_URL configured; caching and invalidation disabled")
	}

	userStore, err := persistence.NewUserStore(pool)
	if err != nil {
		logger.Fatal("init user store", zap.Error(err))
	}
	dealerStore, err := persistence.NewDealerStore(pool)
	if err != nil {
		logger.Fatal("init dealer store", zap.Error(err))
	}
	companyStore, err := persistence.NewCompanyStore(pool)
	if err != nil {
		logger.Fatal("init company store", zap.Error(err))
	}

	identityService := identityservice.New(identityrepo.NewPostgresRepository(userStore))

	userService := usersservice.New(usersrepo.NewPostgresRepository(userStore), tagCache, globalPrefixes, logger)
	userHTTPHandler := usershandler.New(userService, logger)

	hierarchyService := hierarchyservice.New(hierarchyrepo.NewPostgresRepository(userStore), tagCache, globalPrefixes, logger)
	hierarchyHTTPHandler := hierarchyhandler.New(hierarchyService, logger)

	geocoder := geo.NewHTTPGeocoder(cfg.GeocoderURL, nil)
	dealerService := dealersservice.New(dealersrepo.NewPostgresRepository(dealerStore), geocoder, tagCache, globalPrefixes, logger)
	dealerHTTPHandler := dealershandler.New(dealerService, logger)

	companyService := companiesservice.New(companiesrepo.NewPostgresRepository(companyStore))
	companyHTTPHandler := companieshandler.New(companyService, logger)

	authMiddleware := buildAuthMiddleware(ctx, cfg, logger)

	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.DefaultCORS(),
	)

	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	apiRouter := chi.NewRouter()
	apiRouter.Use(authMiddleware)
	apiRouter.Use(platformmiddleware.RequestTrace)
	apiRouter.Use(principalmw.WithPrincipal(identityService, principalmw.Config{
		CacheTTL: cfg.PrincipalTTL,
	}))

	apiRouter.Mount("/users", userHTTPHandler.Routes())
	apiRouter.Mount("/hierarchy", hierarchyHTTPHandler.Routes())
	apiRouter.Mount("/dealers", dealerHTTPHandler.Routes())
	apiRouter.Mount("/company", companyHTTPHandler.Routes())

	rootRouter.Mount("/api/v1", apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
