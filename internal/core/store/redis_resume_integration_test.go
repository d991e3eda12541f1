//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/itemtally/itemtally/internal/core"
)

func setupRedisResume(t *testing.T) *RedisResume {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start redis container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	resume := &RedisResume{
		Client: redis.NewClient(&redis.Options{Addr: endpoint}),
		Prefix: "itemtally-test:",
	}
	t.Cleanup(func() { _ = resume.Close() })

	require.NoError(t, resume.EnsureResumeSchema(ctx))
	return resume
}

func TestRedisResume_Integration_RoundTrip(t *testing.T) {
	ctx := context.Background()
	resume := setupRedisResume(t)

	_, ok, err := resume.LoadResume(ctx, "anilist-anime")
	require.NoError(t, err)
	require.False(t, ok)

	stamp := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, resume.SaveResume(ctx, core.ResumeRecord{
		Collection: "anilist-anime", LastPage: 412, PageSize: 50, UpdatedAt: stamp,
	}))
	require.NoError(t, resume.SaveResume(ctx, core.ResumeRecord{
		Collection: "anilist-anime", LastPage: 415, PageSize: 50, UpdatedAt: stamp,
	}))

	record, ok, err := resume.LoadResume(ctx, "anilist-anime")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, core.ResumeRecord{Collection: "anilist-anime", LastPage: 415, PageSize: 50, UpdatedAt: stamp}, record)

	fields, err := resume.Client.HGetAll(ctx, "itemtally-test:resume:anilist-anime").Result()
	require.NoError(t, err)
	require.Equal(t, "415", fields["last_page"])
}

func TestRedisResume_Integration_Admin(t *testing.T) {
	ctx := context.Background()
	resume := setupRedisResume(t)

	for i, collection := range []string{"anilist-anime", "anilist-manga", "anilist*", "mal-anime"} {
		require.NoError(t, resume.SaveResume(ctx, core.ResumeRecord{Collection: collection, LastPage: i + 1, PageSize: 50}))
	}

	records, err := resume.ListResume(ctx, ResumeQuery{All: true})
	require.NoError(t, err)
	require.Len(t, records, 4)

	count, err := resume.CountResume(ctx, ResumeQuery{Collection: "anilist*"})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	count, err = resume.CountResume(ctx, ResumeQuery{Prefix: "anilist-"})
	require.NoError(t, err)
	require.Equal(t, 2, count)

	deleted, err := resume.ResetResume(ctx, ResumeQuery{Prefix: "anilist"})
	require.NoError(t, err)
	require.Equal(t, int64(3), deleted)

	records, err = resume.ListResume(ctx, ResumeQuery{All: true})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "mal-anime", records[0].Collection)
}
