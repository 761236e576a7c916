package bootstrap

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"albumpress/internal/adapter/repo"
	"albumpress/internal/infra"
	"albumpress/internal/storage"
)

func TestBuildMemoryAndFilesystem(t *testing.T) {
	cfg := &infra.Config{
		StoreDriver:   infra.StoreDriverMemory,
		StorageDriver: infra.StorageDriverFilesystem,
		StoragePath:   t.TempDir(),
	}

	deps, err := Build(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer deps.Close()

	assert.IsType(t, &repo.AlbumJobRepositoryMemory{}, deps.Store)
	assert.IsType(t, &storage.FileStore{}, deps.Objects)
	require.NotNil(t, deps.Runner)

	summary, err := deps.Runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
}

func TestBuildRejectsUnknownDrivers(t *testing.T) {
	_, err := Build(context.Background(), &infra.Config{StoreDriver: "sqlite"}, zerolog.Nop())
	assert.ErrorContains(t, err, "store driver")

	_, err = Build(context.Background(), &infra.Config{
		StoreDriver:   infra.StoreDriverMemory,
		StorageDriver: "gcs",
	}, zerolog.Nop())
	assert.ErrorContains(t, err, "storage driver")
}
