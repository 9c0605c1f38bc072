package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/voyagen/folio/internal/models"
)

// Postgres implements Store using PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ Store       = (*Postgres)(nil)
	_ VectorStore = (*Postgres)(nil)
)

const defaultSearchLimit = 20

// NewPostgres creates a Postgres store from a DSN. The pgvector extension
// must exist (see EnsurePgvector). Caller must call Close when done.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Ping checks the database connection.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// SaveSnapshot upserts the channel row and swaps its blocks in one transaction.
func (p *Postgres) SaveSnapshot(ctx context.Context, ch *models.Channel, blocks []models.Block) (int64, error) {
	meta := *ch
	meta.Contents = nil
	channelJSON, err := json.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("marshal channel: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO channels (arena_id, slug, title, status, length, payload, taken_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (slug) DO UPDATE SET
		   arena_id = EXCLUDED.arena_id, title = EXCLUDED.title, status = EXCLUDED.status,
		   length = EXCLUDED.length, payload = EXCLUDED.payload, taken_at = NOW()
		 RETURNING id`,
		ch.ID, ch.Slug, ch.Title, ch.Status, ch.Length, channelJSON,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert channel: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM blocks WHERE channel_id = $1`, id); err != nil {
		return 0, fmt.Errorf("delete blocks: %w", err)
	}

	rows := make([][]any, 0, len(blocks))
	for i, b := range blocks {
		payload, err := json.Marshal(b)
		if err != nil {
			return 0, fmt.Errorf("marshal block %d: %w", b.ID, err)
		}
		rows = append(rows, []any{id, b.ID, i, b.Position, string(b.Class()), payload, b.ConnectedAt})
	}
	if len(rows) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"blocks"},
			[]string{"channel_id", "arena_id", "ordinal", "position", "class", "payload", "connected_at"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return 0, fmt.Errorf("copy blocks: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// GetSnapshot loads a channel and its blocks in drain order.
func (p *Postgres) GetSnapshot(ctx context.Context, slug string) (*Snapshot, error) {
	var (
		id          int64
		channelJSON []byte
		snap        Snapshot
	)
	err := p.pool.QueryRow(ctx,
		`SELECT id, payload, taken_at FROM channels WHERE slug = $1`, slug,
	).Scan(&id, &channelJSON, &snap.TakenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("GetSnapshot: %w", err)
	}
	if err := json.Unmarshal(channelJSON, &snap.Channel); err != nil {
		return nil, fmt.Errorf("unmarshal channel %s: %w", slug, err)
	}

	rows, err := p.pool.Query(ctx,
		`SELECT payload FROM blocks WHERE channel_id = $1 ORDER BY ordinal`, id)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()

	snap.Blocks = []models.Block{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		var b models.Block
		if err := json.Unmarshal(payload, &b); err != nil {
			return nil, fmt.Errorf("unmarshal block: %w", err)
		}
		snap.Blocks = append(snap.Blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return &snap, nil
}

// ListSnapshots returns every stored channel, most recent snapshot first.
func (p *Postgres) ListSnapshots(ctx context.Context) ([]SnapshotSummary, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT c.arena_id, c.slug, c.title, c.status, c.length, c.taken_at,
		        (SELECT COUNT(*) FROM blocks b WHERE b.channel_id = c.id)
		 FROM channels c
		 ORDER BY c.taken_at DESC, c.slug`)
	if err != nil {
		return nil, fmt.Errorf("ListSnapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotSummary
	for rows.Next() {
		var s SnapshotSummary
		if err := rows.Scan(&s.ArenaID, &s.Slug, &s.Title, &s.Status, &s.Length, &s.TakenAt, &s.BlockCount); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSnapshot removes a channel; blocks go with it via ON DELETE CASCADE.
func (p *Postgres) DeleteSnapshot(ctx context.Context, slug string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM channels WHERE slug = $1`, slug)
	if err != nil {
		return fmt.Errorf("DeleteSnapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveEmbeddings swaps a channel's block vectors in one transaction.
func (p *Postgres) SaveEmbeddings(ctx context.Context, channelID int64, model string, embs []BlockEmbedding) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM block_embeddings WHERE channel_id = $1`, channelID); err != nil {
		return fmt.Errorf("delete embeddings: %w", err)
	}

	seen := make(map[int64]bool, len(embs))
	rows := make([][]any, 0, len(embs))
	for _, e := range embs {
		if len(e.Vector) == 0 || seen[e.BlockID] {
			continue
		}
		seen[e.BlockID] = true
		rows = append(rows, []any{channelID, e.BlockID, model, pgvector.NewVector(e.Vector)})
	}
	if len(rows) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"block_embeddings"},
			[]string{"channel_id", "arena_id", "model", "embedding"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("copy embeddings: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SearchBlocks ranks stored blocks by cosine distance to vec.
func (p *Postgres) SearchBlocks(ctx context.Context, vec []float32, opts SearchOptions) ([]BlockMatch, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	rows, err := p.pool.Query(ctx,
		`SELECT DISTINCT ON (e.embedding <=> $1, e.channel_id, e.arena_id)
		        c.slug, b.payload, 1 - (e.embedding <=> $1) AS score
		 FROM block_embeddings e
		 JOIN channels c ON c.id = e.channel_id
		 JOIN blocks b ON b.channel_id = e.channel_id AND b.arena_id = e.arena_id
		 WHERE ($2 = '' OR c.slug = $2)
		 ORDER BY e.embedding <=> $1, e.channel_id, e.arena_id
		 LIMIT $3`,
		pgvector.NewVector(vec), opts.Channel, limit)
	if err != nil {
		return nil, fmt.Errorf("SearchBlocks: %w", err)
	}
	defer rows.Close()

	out := []BlockMatch{}
	for rows.Next() {
		var (
			m       BlockMatch
			payload []byte
		)
		if err := rows.Scan(&m.Channel, &payload, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if err := json.Unmarshal(payload, &m.Block); err != nil {
			return nil, fmt.Errorf("unmarshal block: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
