package store

import (
	"context"
	"errors"
	"time"

	"github.com/voyagen/folio/internal/models"
)

// ErrNotFound is returned when no snapshot exists for a slug.
var ErrNotFound = errors.New("not found")

// Store persists drained channel snapshots.
type Store interface {
	// SaveSnapshot replaces the stored snapshot of ch with blocks and
	// returns the channel's row id.
	SaveSnapshot(ctx context.Context, ch *models.Channel, blocks []models.Block) (int64, error)
	// GetSnapshot returns the stored channel and its blocks in position order.
	GetSnapshot(ctx context.Context, slug string) (*Snapshot, error)
	// ListSnapshots returns a summary of every stored channel, most recent first.
	ListSnapshots(ctx context.Context) ([]SnapshotSummary, error)
	// DeleteSnapshot removes a channel and its blocks.
	DeleteSnapshot(ctx context.Context, slug string) error
}

// Snapshot is a channel and its full contents as of TakenAt.
type Snapshot struct {
	Channel models.Channel `json:"channel"`
	Blocks  []models.Block `json:"blocks"`
	TakenAt time.Time      `json:"taken_at"`
}

// SnapshotSummary describes a stored snapshot without its blocks.
type SnapshotSummary struct {
	ArenaID    int64     `json:"arena_id"`
	Slug       string    `json:"slug"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	Length     int       `json:"length"`
	BlockCount int       `json:"block_count"`
	TakenAt    time.Time `json:"taken_at"`
}

// VectorStore keeps block embeddings next to their snapshot.
type VectorStore interface {
	// SaveEmbeddings replaces the embeddings of a stored channel.
	SaveEmbeddings(ctx context.Context, channelID int64, model string, embs []BlockEmbedding) error
	// SearchBlocks returns the stored blocks nearest to vec, optionally
	// restricted to one channel slug.
	SearchBlocks(ctx context.Context, vec []float32, opts SearchOptions) ([]BlockMatch, error)
}

// BlockEmbedding is the vector of one block, keyed by its Are.na id.
type BlockEmbedding struct {
	BlockID int64
	Vector  []float32
}

// SearchOptions narrows SearchBlocks. Zero Limit means 20.
type SearchOptions struct {
	Channel string
	Limit   int
}

// BlockMatch is a search hit. Score is cosine similarity in [-1, 1].
type BlockMatch struct {
	Channel string       `json:"channel"`
	Block   models.Block `json:"block"`
	Score   float64      `json:"score"`
}
