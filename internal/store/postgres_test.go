package store

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/folio/internal/models"
)

func newTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("FOLIO_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("Skipping Postgres tests: FOLIO_TEST_DATABASE_URL not set")
	}
	_, file, _, _ := runtime.Caller(0)
	migrations := filepath.Join(filepath.Dir(file), "..", "..", "migrations")
	require.NoError(t, EnsurePgvector(dsn))
	require.NoError(t, RunMigrations(dsn, "file://"+migrations))

	ctx := context.Background()
	pg, err := NewPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pg.Close)
	_, err = pg.pool.Exec(ctx, `TRUNCATE channels, blocks, block_embeddings`)
	require.NoError(t, err)
	return pg
}

func TestPostgres_SnapshotLifecycle(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()

	ch := &models.Channel{ID: 7, Slug: "influences", Title: "Influences", Status: "public", Length: 2}
	blocks := []models.Block{
		{ID: 2, Position: 1, Content: models.TextContent{Content: "first"}},
		{ID: 1, Position: 2, Content: models.ChannelContent{Slug: "nested", Length: 3}},
	}

	id, err := pg.SaveSnapshot(ctx, ch, blocks)
	require.NoError(t, err)
	assert.NotZero(t, id)

	snap, err := pg.GetSnapshot(ctx, "influences")
	require.NoError(t, err)
	assert.Equal(t, "Influences", snap.Channel.Title)
	require.Len(t, snap.Blocks, 2)
	assert.Equal(t, int64(2), snap.Blocks[0].ID)
	assert.Equal(t, models.ChannelContent{Slug: "nested", Length: 3}, snap.Blocks[1].Content)

	// Resaving replaces blocks and keeps the row id.
	again, err := pg.SaveSnapshot(ctx, ch, blocks[:1])
	require.NoError(t, err)
	assert.Equal(t, id, again)

	list, err := pg.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].BlockCount)
	assert.Equal(t, int64(7), list[0].ArenaID)

	require.NoError(t, pg.DeleteSnapshot(ctx, "influences"))
	_, err = pg.GetSnapshot(ctx, "influences")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, pg.DeleteSnapshot(ctx, "influences"), ErrNotFound)
}

func TestPostgres_EmptySnapshot(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()

	_, err := pg.SaveSnapshot(ctx, &models.Channel{ID: 9, Slug: "empty"}, nil)
	require.NoError(t, err)

	snap, err := pg.GetSnapshot(ctx, "empty")
	require.NoError(t, err)
	assert.NotNil(t, snap.Blocks)
	assert.Empty(t, snap.Blocks)
}

func TestPostgres_SearchBlocks(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()

	a, err := pg.SaveSnapshot(ctx, &models.Channel{ID: 1, Slug: "a"}, []models.Block{
		{ID: 10, Content: models.TextContent{Content: "north"}},
		{ID: 11, Content: models.TextContent{Content: "east"}},
	})
	require.NoError(t, err)
	b, err := pg.SaveSnapshot(ctx, &models.Channel{ID: 2, Slug: "b"}, []models.Block{
		{ID: 20, Content: models.TextContent{Content: "north-ish"}},
	})
	require.NoError(t, err)

	require.NoError(t, pg.SaveEmbeddings(ctx, a, "test", []BlockEmbedding{
		{BlockID: 10, Vector: []float32{1, 0}},
		{BlockID: 11, Vector: []float32{0, 1}},
	}))
	require.NoError(t, pg.SaveEmbeddings(ctx, b, "test", []BlockEmbedding{
		{BlockID: 20, Vector: []float32{0.9, 0.1}},
	}))

	matches, err := pg.SearchBlocks(ctx, []float32{1, 0}, SearchOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, int64(10), matches[0].Block.ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.Equal(t, "b", matches[1].Channel)

	matches, err = pg.SearchBlocks(ctx, []float32{1, 0}, SearchOptions{Channel: "a"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, int64(11), matches[1].Block.ID)
}
