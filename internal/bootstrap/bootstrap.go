// Package bootstrap assembles the job store, object store and runner from
// configuration for the commands.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"albumpress/internal/adapter/repo"
	"albumpress/internal/domain"
	"albumpress/internal/infra"
	"albumpress/internal/publish"
	"albumpress/internal/render"
	"albumpress/internal/runner"
	"albumpress/internal/storage"
)

type Deps struct {
	Store   domain.AlbumJobStore
	Objects storage.ObjectStore
	Runner  *runner.Runner
	// Ping is nil for stores without a connection to check.
	Ping func(ctx context.Context) error

	closers []func()
}

// Build wires every dependency. Nothing touches the queue here, so a
// configuration problem surfaces before any job is claimed.
func Build(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Deps, error) {
	deps := &Deps{}

	store, err := deps.buildStore(ctx, cfg, logger)
	if err != nil {
		deps.Close()
		return nil, err
	}
	objects, err := buildObjectStore(ctx, cfg)
	if err != nil {
		deps.Close()
		return nil, err
	}

	renderer := render.NewChromeRenderer(render.ChromeOptions{
		Bin:        cfg.BrowserBin,
		NoSandbox:  cfg.BrowserNoSandbox,
		IdleWindow: cfg.RenderIdleWindow,
	}, logger)

	deps.Store = store
	deps.Objects = objects
	deps.Runner = runner.New(store, renderer, publish.NewPublisher(objects), logger, runner.Options{
		FailureTimeout: cfg.FailureMarkTimeout,
	})
	return deps, nil
}

// Close releases pooled connections.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

func (d *Deps) buildStore(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (domain.AlbumJobStore, error) {
	switch cfg.StoreDriver {
	case infra.StoreDriverPostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: connect database: %w", err)
		}
		d.closers = append(d.closers, pool.Close)
		d.Ping = pool.Ping
		return repo.NewAlbumJobRepository(infra.NewSQLRunner(pool, logger)), nil
	case infra.StoreDriverMemory:
		logger.Warn().Msg("using in-memory job store; jobs are lost on exit")
		return repo.NewAlbumJobRepositoryMemory(), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown store driver %q", cfg.StoreDriver)
	}
}

func buildObjectStore(ctx context.Context, cfg *infra.Config) (storage.ObjectStore, error) {
	switch cfg.StorageDriver {
	case infra.StorageDriverS3:
		store, err := storage.NewS3Store(ctx, storage.S3Options{
			Bucket:          cfg.StorageBucket,
			Region:          cfg.StorageRegion,
			Endpoint:        cfg.StorageEndpoint,
			AccessKeyID:     cfg.StorageAccessKey,
			SecretAccessKey: cfg.StorageSecretKey,
			UsePathStyle:    cfg.StoragePathStyle,
			KeyPrefix:       cfg.StorageKeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: configure s3: %w", err)
		}
		return store, nil
	case infra.StorageDriverFilesystem:
		store, err := storage.NewFileStore(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: configure filesystem storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown storage driver %q", cfg.StorageDriver)
	}
}
