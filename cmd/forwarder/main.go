// The forwarder is a one-shot operator tool: it loads the configured store,
// pushes the most recent feedback batch to the recommendation service and
// exits. Exit status is non-zero on failure so a cron job or operator can
// rerun it; forwards are never retried in-process.
package main

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"recipe_feedback/internal/adapters/observability"
	"recipe_feedback/internal/adapters/persistence"
	"recipe_feedback/internal/adapters/recommend"
	"recipe_feedback/internal/app"
	"recipe_feedback/internal/domain"
	"recipe_feedback/internal/shared"
	mongostore "recipe_feedback/internal/storage/mongo"
	mysqlrepo "recipe_feedback/internal/storage/mysql"
)

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Str("backend", cfg.StoreBackend).
		Str("target", cfg.RecommendBase).
		Int("limit", cfg.ForwardLimit).
		Msg("forwarder starting")

	var repo domain.FeedbackRepository
	switch cfg.StoreBackend {
	case "mongo":
		db, err := mongostore.Connect(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Fatal().Err(err).Msg("mongo connect failed")
		}
		repo = mongostore.New(db)
	case "remote":
		repo = persistence.New(cfg.PersistenceBase, cfg.OutboundRPS)
	default:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		if err := db.Ping(); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		repo = mysqlrepo.New(db)
	}

	rec := recommend.New(cfg.RecommendBase, cfg.OutboundRPS)
	svc := app.NewFeedbackService(repo, nil, rec, nil, cfg.CacheTTL, cfg.ForwardLimit)

	count, err := svc.ForwardRecent(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("forward failed")
	}
	log.Info().Int("count", count).Msg("forward completed")
}
