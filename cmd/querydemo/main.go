// Command querydemo is a tiny CLI driver that exercises the Query Composer
// (C13) against a live database: no HTTP server, no scheduler, just three
// calls against real storage so the cache wrapper can be poked at by hand.
// It shares cmd/worker's exact storage wiring (same DB_PATH, same
// migrations) since both binaries read the same database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"kybuzz/internal/infra/adapter/persistence/sqlite"
	"kybuzz/internal/infra/db"
	"kybuzz/internal/infra/storage"
	"kybuzz/internal/observability/logging"
	"kybuzz/internal/pkg/config"
	"kybuzz/internal/repository"
	"kybuzz/internal/usecase/query"
)

func main() {
	logger := logging.NewLogger()

	mode := flag.String("mode", "ticker", "query to run: ticker | coverage | list")
	category := flag.String("category", "", "ItemFilter.Category, only used with -mode=list")
	limit := flag.Int("limit", 20, "result limit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPath := config.LoadEnvString("DB_PATH", "kybuzz.db")
	sqlxDB, err := db.Open(ctx, dbPath, db.ConnectionConfigFromEnv())
	if err != nil {
		logger.Error("open database failed", slog.String("error", logging.SanitizeError(err)))
		os.Exit(1)
	}
	defer func() { _ = sqlxDB.Close() }()

	gw := storage.New(sqlxDB)
	queryRepo := sqlite.NewQueryRepo(gw)
	composer := query.New(queryRepo, newRedisClient(logger, config.LoadEnvString("REDIS_URL", "")))

	var result interface{}
	switch *mode {
	case "ticker":
		result, err = composer.BreakingTicker(ctx, *limit)
	case "coverage":
		result, err = composer.CoverageReport(ctx)
	case "list":
		items, nextCursor, hasMore, listErr := composer.ListItems(ctx, repository.ItemFilter{
			Category: *category,
			Limit:    *limit,
		})
		err = listErr
		result = map[string]interface{}{
			"items":       items,
			"next_cursor": nextCursor,
			"has_more":    hasMore,
		}
	default:
		logger.Error("unknown -mode", slog.String("mode", *mode))
		os.Exit(1)
	}
	if err != nil {
		logger.Error("query failed", slog.String("mode", *mode), slog.Any("error", err))
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRedisClient(logger *slog.Logger, rawURL string) *redis.Client {
	if rawURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		logger.Warn("invalid REDIS_URL, query cache disabled", slog.Any("error", err))
		return nil
	}
	return redis.NewClient(opts)
}
