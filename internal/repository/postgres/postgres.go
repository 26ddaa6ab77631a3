package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/affirmstudio/api/internal/config"
	"github.com/affirmstudio/api/internal/repository"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Connect opens a pgx pool and verifies it with a ping.
func Connect(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Migrate applies the embedded schema files in name order. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(body)); err != nil {
			return fmt.Errorf("failed to apply %s: %w", name, err)
		}
		log.Debug().Str("migration", name).Msg("applied")
	}
	return nil
}

// NewRepositories wires every Postgres repository onto one pool.
func NewRepositories(pool *pgxpool.Pool) repository.Repositories {
	return repository.Repositories{
		Jobs:         NewJobRepository(pool),
		Purchases:    NewPurchaseRepository(pool),
		VoiceSamples: NewVoiceSampleRepository(pool),
		Projects:     NewProjectRepository(pool),
	}
}

// Open connects, optionally migrates, and returns the repositories with a close func.
func Open(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (repository.Repositories, func(), error) {
	pool, err := Connect(ctx, cfg.URL, cfg.MaxConns)
	if err != nil {
		return repository.Repositories{}, nil, err
	}
	if cfg.Migrate {
		if err := Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return repository.Repositories{}, nil, fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return NewRepositories(pool), pool.Close, nil
}
