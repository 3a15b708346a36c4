package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/gatekeeper/core/logger"
)

const migrateComponent = "db.migrate"

// readyTimeout bounds how long migrations wait for the server.
const readyTimeout = 30 * time.Second

// RunMigrations applies every pending up migration from cfg.MigrationsDir.
// A relative directory is resolved against the working directory.
func RunMigrations(cfg Config) error {
	ctx := context.Background()
	if err := WaitForPostgres(ctx, cfg.DSN(), readyTimeout); err != nil {
		logger.Error(ctx, migrateComponent, "db.not_ready",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return err
	}

	dir, err := filepath.Abs(cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("resolve migrations dir: %w", err)
	}
	files := upFiles(dir)
	logger.Debug(ctx, migrateComponent, "migrate.resolve", previewAttrs(files,
		slog.String("path", dir),
	)...)

	m, err := migrate.New("file://"+dir, cfg.URL())
	if err != nil {
		logger.Error(ctx, migrateComponent, "migrate.init",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	from, _, _ := m.Version()
	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error(ctx, migrateComponent, "migrate.apply",
			slog.String("status", "fail"),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("apply migrations: %w", err)
	}
	to, _, _ := m.Version()

	applied := appliedBetween(files, uint64(from), uint64(to))
	if len(applied) > 0 {
		logger.Debug(ctx, migrateComponent, "migrate.applied", previewAttrs(applied)...)
	}
	logger.Info(ctx, migrateComponent, "migrate.summary",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

func previewAttrs(files []string, extra ...slog.Attr) []slog.Attr {
	attrs := append(extra, slog.Int("files_total", len(files)))
	preview, truncated := logger.SummarizeStrings(files, 6)
	if preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
	}
	if truncated {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	return attrs
}

// upFiles lists the *.up.sql files in dir sorted by name.
func upFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// fileVersion parses the numeric prefix of a migration file name.
func fileVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

// appliedBetween returns the files with a version in (from, to].
func appliedBetween(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := fileVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
