package server

import (
	"fmt"
	"net/http"

	"github.com/voyagen/folio/internal/arena"
)

const maxPer = 100

func pageOptions(r *http.Request) (arena.PageOptions, error) {
	page, err := queryInt(r, "page")
	if err != nil {
		return arena.PageOptions{}, err
	}
	per, err := queryInt(r, "per")
	if err != nil {
		return arena.PageOptions{}, err
	}
	if per > maxPer {
		return arena.PageOptions{}, fmt.Errorf("per must be at most %d", maxPer)
	}
	return arena.PageOptions{Page: page, Per: per}, nil
}

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ch, err := s.deps.Arena.GetChannel(r.Context(), id)
	if err != nil {
		writeUpstreamErr(w, err, "channel "+id)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (s *Server) handleGetChannelContents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	po, err := pageOptions(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	q := r.URL.Query()
	opts := arena.ContentsOptions{
		Page:      po.Page,
		Per:       po.Per,
		Sort:      arena.Sort(q.Get("sort")),
		Direction: arena.Direction(q.Get("direction")),
	}
	if !opts.Sort.Valid() {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid sort: %s (use position or updated_at)", opts.Sort))
		return
	}
	if !opts.Direction.Valid() {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid direction: %s (use asc or desc)", opts.Direction))
		return
	}

	page, err := s.deps.Arena.GetChannelContents(r.Context(), id, opts)
	if err != nil {
		writeUpstreamErr(w, err, "channel "+id)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetAllChannelContents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	per, err := queryInt(r, "per")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if per > maxPer {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("per must be at most %d", maxPer))
		return
	}

	blocks, err := s.deps.Arena.GetAllChannelContents(r.Context(), id, per)
	if err != nil {
		writeUpstreamErr(w, err, "channel "+id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"channel":  id,
		"contents": blocks,
		"length":   len(blocks),
	})
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	b, err := s.deps.Arena.GetBlock(r.Context(), id)
	if err != nil {
		writeUpstreamErr(w, err, fmt.Sprintf("block %d", id))
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleSearchChannels(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("q parameter is required"))
		return
	}
	opts, err := pageOptions(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	list, err := s.deps.Arena.SearchChannels(r.Context(), query, opts)
	if err != nil {
		writeUpstreamErr(w, err, "search")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	u, err := s.deps.Arena.GetUser(r.Context(), slug)
	if err != nil {
		writeUpstreamErr(w, err, "user "+slug)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleGetUserChannels(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	opts, err := pageOptions(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	list, err := s.deps.Arena.GetUserChannels(r.Context(), slug, opts)
	if err != nil {
		writeUpstreamErr(w, err, "user "+slug)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
