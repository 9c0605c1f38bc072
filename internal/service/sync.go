package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/voyagen/folio/internal/arena"
	"github.com/voyagen/folio/internal/cache"
	"github.com/voyagen/folio/internal/embedding"
	"github.com/voyagen/folio/internal/models"
	"github.com/voyagen/folio/internal/store"
)

var (
	// ErrSyncInProgress is returned when another sync holds the channel's lock.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrQueueUnavailable is returned by Enqueue when Redis is not configured.
	ErrQueueUnavailable = errors.New("job queue unavailable")
)

const (
	lockTTL     = 5 * time.Minute
	dequeueWait = 5 * time.Second
	retryDelay  = 2 * time.Second
)

// Invalidator is implemented by API wrappers that cache channel responses.
type Invalidator interface {
	Invalidate(ctx context.Context, slugOrID string)
}

// Embedder turns texts into vectors. *embedding.Client implements it.
type Embedder interface {
	Embed(ctx context.Context, texts []string, inputType string) ([][]float32, error)
	EmbedBatch(ctx context.Context, texts []string, inputType string, batchSize int, onProgress embedding.ProgressFunc) ([][]float32, error)
	Model() string
}

// SyncResult summarises one completed snapshot.
type SyncResult struct {
	ChannelID int64         `json:"channel_id"`
	Slug      string        `json:"slug"`
	Blocks    int           `json:"blocks"`
	Embedded  int           `json:"embedded"`
	Duration  time.Duration `json:"duration_ns"`
}

// Syncer drains Are.na channels into the snapshot store. Redis is optional:
// without it syncs are not locked and Enqueue is unavailable.
type Syncer struct {
	api      arena.API
	store    store.Store
	rds      *cache.Redis
	logger   *slog.Logger
	embedder Embedder
	vectors  store.VectorStore
}

// SyncerOption configures a Syncer.
type SyncerOption func(*Syncer)

// WithEmbeddings indexes every saved snapshot for semantic search.
func WithEmbeddings(e Embedder, vs store.VectorStore) SyncerOption {
	return func(s *Syncer) {
		s.embedder = e
		s.vectors = vs
	}
}

// NewSyncer returns a Syncer. rds and logger may be nil.
func NewSyncer(api arena.API, s store.Store, rds *cache.Redis, logger *slog.Logger, opts ...SyncerOption) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	sy := &Syncer{api: api, store: s, rds: rds, logger: logger}
	for _, opt := range opts {
		opt(sy)
	}
	return sy
}

func lockKey(slug string) string {
	return "folio:lock:snapshot:" + slug
}

// Sync fetches the channel, drains every page of its contents and replaces
// the stored snapshot. slugOrID may be a numeric channel id; the snapshot,
// the lock and the result are keyed on the channel's slug. A failed drain
// leaves the previous snapshot untouched.
func (s *Syncer) Sync(ctx context.Context, slugOrID string, per int) (*SyncResult, error) {
	if slugOrID == "" {
		return nil, fmt.Errorf("channel slug is required")
	}
	start := time.Now()

	// Snapshots must reflect upstream, not whatever the cache holds.
	s.invalidate(ctx, slugOrID)
	ch, err := s.api.GetChannel(ctx, slugOrID)
	if err != nil {
		return nil, fmt.Errorf("get channel %s: %w", slugOrID, err)
	}
	slug := resolvedSlug(ch, slugOrID)

	if s.rds != nil {
		unlock, err := cache.TryLock(ctx, s.rds, lockKey(slug), lockTTL)
		if err != nil {
			if errors.Is(err, cache.ErrLocked) {
				return nil, ErrSyncInProgress
			}
			return nil, err
		}
		defer unlock()
	}
	if slug != slugOrID {
		s.invalidate(ctx, slug)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sync cancelled: %w", err)
	}

	blocks, err := s.api.GetAllChannelContents(ctx, slug, per)
	if err != nil {
		return nil, err
	}

	id, err := s.store.SaveSnapshot(ctx, ch, blocks)
	if err != nil {
		return nil, fmt.Errorf("SaveSnapshot: %w", err)
	}

	res := &SyncResult{ChannelID: id, Slug: slug, Blocks: len(blocks)}

	// The snapshot stands even when indexing fails; search just lags behind.
	if s.embedder != nil && s.vectors != nil {
		n, err := s.index(ctx, id, res.Slug, blocks)
		if err != nil {
			s.logger.Error("snapshot indexing failed", "slug", res.Slug, "error", err)
		}
		res.Embedded = n
	}

	res.Duration = time.Since(start)
	s.logger.Info("snapshot saved", "slug", res.Slug, "blocks", res.Blocks, "embedded", res.Embedded, "duration", res.Duration)
	return res, nil
}

// index embeds every block that has text and stores the vectors.
func (s *Syncer) index(ctx context.Context, channelID int64, slug string, blocks []models.Block) (int, error) {
	var (
		texts []string
		ids   []int64
	)
	for _, b := range blocks {
		if t := b.SearchText(); t != "" {
			texts = append(texts, t)
			ids = append(ids, b.ID)
		}
	}

	vecs, err := s.embedder.EmbedBatch(ctx, texts, embedding.InputDocument, 0, func(i, n int) {
		s.logger.Debug("embedding snapshot", "slug", slug, "batch", i, "of", n)
	})
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}

	embs := make([]store.BlockEmbedding, 0, len(vecs))
	for i, v := range vecs {
		if len(v) > 0 {
			embs = append(embs, store.BlockEmbedding{BlockID: ids[i], Vector: v})
		}
	}
	if err := s.vectors.SaveEmbeddings(ctx, channelID, s.embedder.Model(), embs); err != nil {
		return 0, fmt.Errorf("SaveEmbeddings: %w", err)
	}
	return len(embs), nil
}

// Syncing reports whether a sync currently holds the channel's lock.
func (s *Syncer) Syncing(ctx context.Context, slug string) bool {
	if s.rds == nil {
		return false
	}
	return cache.IsLocked(ctx, s.rds, lockKey(slug))
}

// Enqueue resolves the channel and schedules a background sync for the
// worker. It returns the slug the snapshot will be stored under.
func (s *Syncer) Enqueue(ctx context.Context, slugOrID string, per int) (string, error) {
	if s.rds == nil {
		return "", ErrQueueUnavailable
	}
	if slugOrID == "" {
		return "", fmt.Errorf("channel slug is required")
	}
	ch, err := s.api.GetChannel(ctx, slugOrID)
	if err != nil {
		return "", fmt.Errorf("get channel %s: %w", slugOrID, err)
	}
	slug := resolvedSlug(ch, slugOrID)
	err = cache.Enqueue(ctx, s.rds, cache.DefaultQueue, cache.SnapshotJob{
		Slug:        slug,
		Per:         per,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	return slug, nil
}

func (s *Syncer) invalidate(ctx context.Context, slugOrID string) {
	if inv, ok := s.api.(Invalidator); ok {
		inv.Invalidate(ctx, slugOrID)
	}
}

func resolvedSlug(ch *models.Channel, fallback string) string {
	if ch.Slug == "" {
		return fallback
	}
	return ch.Slug
}

// Work dequeues snapshot jobs until ctx is cancelled. It is a no-op
// without Redis.
func (s *Syncer) Work(ctx context.Context) {
	if s.rds == nil {
		return
	}
	s.logger.Info("snapshot worker started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("snapshot worker stopping")
			return
		default:
		}

		job, err := cache.Dequeue(ctx, s.rds, cache.DefaultQueue, dequeueWait)
		if err != nil {
			s.logger.Error("snapshot worker: dequeue", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(retryDelay):
			}
			continue
		}
		if job == nil {
			continue
		}

		s.logger.Info("snapshot worker: processing job", "slug", job.Slug, "per", job.Per,
			"queued_for", time.Since(job.RequestedAt))
		if _, err := s.Sync(ctx, job.Slug, job.Per); err != nil {
			if errors.Is(err, ErrSyncInProgress) {
				s.logger.Info("snapshot worker: skipped, sync in progress", "slug", job.Slug)
				continue
			}
			s.logger.Error("snapshot worker: sync failed", "slug", job.Slug, "error", err)
		}
	}
}
