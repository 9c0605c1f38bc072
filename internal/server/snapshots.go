package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/voyagen/folio/internal/service"
	"github.com/voyagen/folio/internal/store"
)

var (
	errSnapshotsDisabled = errors.New("snapshots are not configured (DATABASE_URL not set)")
	errSearchDisabled    = errors.New("semantic search is not configured (VOYAGE_API_KEY not set)")
)

func (s *Server) snapshotsEnabled(w http.ResponseWriter) bool {
	if s.deps.Store == nil || s.deps.Syncer == nil {
		writeErr(w, http.StatusServiceUnavailable, errSnapshotsDisabled)
		return false
	}
	return true
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if !s.snapshotsEnabled(w) {
		return
	}
	list, err := s.deps.Store.ListSnapshots(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []store.SnapshotSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleCreateSnapshot queues a sync when a worker is available and
// otherwise drains inline. ?wait=true forces an inline sync.
func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.snapshotsEnabled(w) {
		return
	}
	slug := r.PathValue("slug")
	per, err := queryInt(r, "per")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if per > maxPer {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("per must be at most %d", maxPer))
		return
	}

	if r.URL.Query().Get("wait") != "true" {
		queued, err := s.deps.Syncer.Enqueue(r.Context(), slug, per)
		if err == nil {
			writeJSON(w, http.StatusAccepted, map[string]any{"slug": queued, "queued": true})
			return
		}
		if !errors.Is(err, service.ErrQueueUnavailable) {
			writeUpstreamErr(w, err, "channel "+slug)
			return
		}
	}

	res, err := s.deps.Syncer.Sync(r.Context(), slug, per)
	if err != nil {
		if errors.Is(err, service.ErrSyncInProgress) {
			writeErr(w, http.StatusConflict, fmt.Errorf("channel %s: %w", slug, err))
			return
		}
		writeUpstreamErr(w, err, "channel "+slug)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.snapshotsEnabled(w) {
		return
	}
	slug := r.PathValue("slug")
	snap, err := s.deps.Store.GetSnapshot(r.Context(), slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeErr(w, http.StatusNotFound, fmt.Errorf("snapshot %s not found", slug))
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"channel":  snap.Channel,
		"blocks":   snap.Blocks,
		"taken_at": snap.TakenAt,
		"syncing":  s.deps.Syncer.Syncing(r.Context(), slug),
	})
}

func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.snapshotsEnabled(w) {
		return
	}
	slug := r.PathValue("slug")
	if err := s.deps.Store.DeleteSnapshot(r.Context(), slug); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeErr(w, http.StatusNotFound, fmt.Errorf("snapshot %s not found", slug))
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeNoContent(w)
}

func (s *Server) handleSearchSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.deps.Search == nil {
		writeErr(w, http.StatusServiceUnavailable, errSearchDisabled)
		return
	}
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("q parameter is required"))
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	s.logger.Debug("snapshot search", "q", query, "channel", q.Get("channel"), "limit", limit)
	matches, err := s.deps.Search.Search(r.Context(), query, store.SearchOptions{Channel: q.Get("channel"), Limit: limit})
	if err != nil {
		writeErr(w, http.StatusBadGateway, fmt.Errorf("search: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"matches": matches,
		"query":   query,
	})
}
