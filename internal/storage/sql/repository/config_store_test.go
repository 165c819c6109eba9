package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/application/queue"
)

func TestConfigStore_SeededByMigration(t *testing.T) {
	store := openTestStore(t)
	all, err := store.Config().All(context.Background())
	require.NoError(t, err)
	require.Equal(t, "3", all["max_retries"])
	require.Equal(t, "2", all["backoff_base"])
	require.Equal(t, "0.5", all["poll_interval"])
	require.Equal(t, "120", all["job_timeout"])
}

func TestConfigStore_SetUpserts(t *testing.T) {
	store := openTestStore(t)
	cfg := store.Config()
	ctx := context.Background()

	require.NoError(t, cfg.Set(ctx, "max_retries", "10"))
	v, err := cfg.Get(ctx, "max_retries")
	require.NoError(t, err)
	require.Equal(t, "10", v)

	require.NoError(t, cfg.Set(ctx, "max_retries", "7"))
	v, err = cfg.Get(ctx, "max_retries")
	require.NoError(t, err)
	require.Equal(t, "7", v)
}

func TestConfigStore_Get_UnknownKeyIsNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Config().Get(context.Background(), "does_not_exist")
	require.True(t, queue.IsNotFound(err))
}
