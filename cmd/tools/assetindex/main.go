// Command assetindex scans an image directory and loads the derived keyword
// rows into the asset table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/taleforge/internal/config"
	"github.com/zhouzirui/taleforge/internal/logger"
	assetService "github.com/zhouzirui/taleforge/internal/service/asset"
	"github.com/zhouzirui/taleforge/internal/storage/sqlite"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load configuration", zap.Error(err))
	}

	dir := flag.String("dir", cfg.Assets.Dir, "image directory to scan")
	dbPath := flag.String("db", cfg.Assets.DBPath, "sqlite database to populate")
	timeout := flag.Duration("timeout", time.Minute, "overall timeout")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Encoding: "console"})
	if err != nil {
		zap.NewExample().Fatal("failed to build logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	if envErr != nil {
		log.Debug("no .env file loaded", zap.Error(envErr))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	stats, err := run(ctx, *dir, *dbPath)
	if err != nil {
		log.Fatal("asset indexing failed", zap.String("dir", *dir), zap.String("db", *dbPath), zap.Error(err))
	}
	log.Info("asset table updated",
		zap.String("dir", *dir),
		zap.String("db", *dbPath),
		zap.Int("files", stats.files),
		zap.Int("entries", stats.entries),
		zap.Int("added", stats.added),
		zap.Int("total", stats.total),
	)
}

type indexStats struct {
	files   int
	entries int
	added   int
	total   int
}

func run(ctx context.Context, dir, dbPath string) (indexStats, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return indexStats{}, fmt.Errorf("read image dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	rows := assetService.DeriveEntries(names)

	store, err := sqlite.Open(dbPath)
	if err != nil {
		return indexStats{}, err
	}
	defer func() { _ = store.Close() }()

	added, err := store.Insert(ctx, rows)
	if err != nil {
		return indexStats{}, err
	}
	total, err := store.Count(ctx)
	if err != nil {
		return indexStats{}, err
	}

	return indexStats{files: len(names), entries: len(rows), added: added, total: total}, nil
}
