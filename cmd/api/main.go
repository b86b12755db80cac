package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	server "recipe_feedback/internal/adapters/http_server"
	"recipe_feedback/internal/adapters/observability"
	"recipe_feedback/internal/adapters/persistence"
	"recipe_feedback/internal/adapters/recommend"
	redisad "recipe_feedback/internal/adapters/redis"
	"recipe_feedback/internal/app"
	"recipe_feedback/internal/domain"
	"recipe_feedback/internal/shared"
	mongostore "recipe_feedback/internal/storage/mongo"
	mysqlrepo "recipe_feedback/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, refs := buildStore(ctx, cfg)
	rec := recommend.New(cfg.RecommendBase, cfg.OutboundRPS)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	svc := app.NewFeedbackService(repo, refs, rec, cache, cfg.CacheTTL, cfg.ForwardLimit)

	srv := server.New()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Svc: svc})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Str("backend", cfg.StoreBackend).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("shutdown complete")
}

// buildStore wires the repository selected by STORE_BACKEND, plus the
// reference checker when create-time existence checks are enabled.
func buildStore(ctx context.Context, cfg shared.Config) (domain.FeedbackRepository, domain.ReferenceChecker) {
	var repo domain.FeedbackRepository
	var refs domain.ReferenceChecker

	switch cfg.StoreBackend {
	case "mongo":
		db, err := mongostore.Connect(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Fatal().Err(err).Msg("mongo connect failed")
		}
		r := mongostore.New(db)
		if err := r.EnsureIndexes(ctx); err != nil {
			log.Fatal().Err(err).Msg("mongo index creation failed")
		}
		log.Info().Msg("mongo connection ok")
		repo = r

	case "remote":
		client := persistence.New(cfg.PersistenceBase, cfg.OutboundRPS)
		repo = client
		if cfg.ReferenceChecks {
			refs = client
		}
		return repo, refs

	default: // mysql
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		if err := db.Ping(); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("database connection ok")
		repo = mysqlrepo.New(db)
	}

	if cfg.ReferenceChecks {
		refs = persistence.New(cfg.PersistenceBase, cfg.OutboundRPS)
	}
	return repo, refs
}
