package server

import (
	"fmt"
	"net/http"

	"github.com/voyagen/folio/internal/datefmt"
	"github.com/voyagen/folio/internal/models"
	"github.com/voyagen/folio/internal/shuffle"
)

func (s *Server) handleListMedia(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := models.MediaKind(q.Get("type"))
	if kind != "" && kind != models.MediaKindImage && kind != models.MediaKindVideo {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid type: %s (use image or video)", kind))
		return
	}
	shuffled := false
	switch q.Get("shuffle") {
	case "", "false", "0":
	case "true", "1":
		shuffled = true
	default:
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid shuffle: %s (use true or false)", q.Get("shuffle")))
		return
	}

	media, err := s.deps.CMS.ListMedia(r.Context())
	if err != nil {
		writeUpstreamErr(w, err, "media")
		return
	}

	items := make([]models.Media, 0, len(media))
	for _, m := range media {
		if kind == "" || m.MediaType == kind {
			items = append(items, m)
		}
	}

	resp := map[string]any{"media": items, "total": len(items)}
	if shuffled {
		seed := s.deps.Seed.Value()
		resp["media"] = shuffle.Shuffle(items, seed)
		resp["seed"] = seed
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetMedia(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	m, err := s.deps.CMS.GetMedia(r.Context(), slug)
	if err != nil {
		writeUpstreamErr(w, err, "media "+slug)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// logView is a Log with its date pre-formatted for display.
type logView struct {
	models.Log
	DateDisplay  string `json:"date_display"`
	DateRelative string `json:"date_relative"`
}

func newLogView(l models.Log) logView {
	return logView{
		Log:          l,
		DateDisplay:  datefmt.FormatDate(l.Date, datefmt.Long()),
		DateRelative: datefmt.RelativeTime(l.Date),
	}
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.deps.CMS.ListLogs(r.Context())
	if err != nil {
		writeUpstreamErr(w, err, "logs")
		return
	}
	out := make([]logView, 0, len(logs))
	for _, l := range logs {
		out = append(out, newLogView(l))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	l, err := s.deps.CMS.GetLog(r.Context(), slug)
	if err != nil {
		writeUpstreamErr(w, err, "log "+slug)
		return
	}
	writeJSON(w, http.StatusOK, newLogView(*l))
}

func (s *Server) handleReshuffle(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int64{"seed": s.deps.Seed.Reshuffle()})
}
