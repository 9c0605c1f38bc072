package server

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/voyagen/folio/internal/mediaurl"
)

const defaultImageWidth = 1200

func (s *Server) handleImageSrcset(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	base := q.Get("url")
	switch {
	case base != "" && q.Get("ref") != "":
		writeErr(w, http.StatusBadRequest, fmt.Errorf("pass either url or ref, not both"))
		return
	case base != "":
		if u, err := url.ParseRequestURI(base); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("url must be a valid http or https URL"))
			return
		}
	case q.Get("ref") != "":
		resolved, err := s.deps.CMS.ImageURLFor(q.Get("ref"))
		if err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		base = resolved
	default:
		writeErr(w, http.StatusBadRequest, fmt.Errorf("url or ref parameter is required"))
		return
	}

	var opts mediaurl.ImageOptions
	var err error
	if opts.Width, err = queryInt(r, "width"); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if opts.Height, err = queryInt(r, "height"); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if opts.Quality, err = queryInt(r, "quality"); err != nil || opts.Quality > 100 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid quality: %s (1-100)", q.Get("quality")))
		return
	}
	if opts.DPR, err = queryFloat(r, "dpr"); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	opts.Fit = mediaurl.Fit(q.Get("fit"))
	if opts.Fit != "" && !opts.Fit.Valid() {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid fit: %s", opts.Fit))
		return
	}
	if opts.Width == 0 {
		opts.Width = defaultImageWidth
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"src":    mediaurl.ImageURL(base, opts),
		"srcset": mediaurl.Srcset(base, mediaurl.SrcsetWidths, opts),
	})
}

func (s *Server) handleMuxURLs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("playbackId")
	q := r.URL.Query()

	width, err := queryInt(r, "width")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	height, err := queryInt(r, "height")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	at, err := queryFloat(r, "time")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	fps, err := queryInt(r, "fps")
	if err != nil || fps > 30 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid fps: %s (1-30)", q.Get("fps")))
		return
	}

	square := height > 0 && height == width
	writeJSON(w, http.StatusOK, map[string]string{
		"thumbnail":        mediaurl.MuxThumbnailURL(id, mediaurl.ThumbnailOptions{Width: width, Height: height, Time: at}),
		"thumbnail_srcset": mediaurl.MuxThumbnailSrcset(id, []int{320, 640, 960, 1280, 1920}, square),
		"poster":           mediaurl.MuxPosterURL(id, mediaurl.PosterOptions{Width: width, Height: height, Time: at}),
		"animated":         mediaurl.MuxAnimatedURL(id, mediaurl.AnimatedOptions{Width: width, FPS: fps}),
		"stream":           mediaurl.MuxStreamURL(id, mediaurl.StreamOptions{DefaultSubtitleLang: q.Get("lang")}),
	})
}
