package mediaurl

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	muxImageHost  = "https://image.mux.com"
	muxStreamHost = "https://stream.mux.com"
)

// ThumbnailOptions controls a Mux thumbnail. Zero Width means 640; a
// non-zero Height crops to exactly Width x Height.
type ThumbnailOptions struct {
	Width  int
	Height int
	Time   float64 // seconds into the video
}

// MuxThumbnailURL returns a still frame of a Mux video.
func MuxThumbnailURL(playbackID string, opts ThumbnailOptions) string {
	width := opts.Width
	if width == 0 {
		width = 640
	}
	u := fmt.Sprintf("%s/%s/thumbnail.jpg?width=%d&time=%s", muxImageHost, playbackID, width, formatSeconds(opts.Time))
	if opts.Height > 0 {
		u += fmt.Sprintf("&height=%d&fit_mode=crop", opts.Height)
	}
	return u
}

// MuxThumbnailSrcset builds a thumbnail srcset. square crops every candidate
// to width x width.
func MuxThumbnailSrcset(playbackID string, widths []int, square bool) string {
	parts := make([]string, 0, len(widths))
	for _, w := range widths {
		opts := ThumbnailOptions{Width: w}
		if square {
			opts.Height = w
		}
		parts = append(parts, MuxThumbnailURL(playbackID, opts)+" "+strconv.Itoa(w)+"w")
	}
	return strings.Join(parts, ", ")
}

// PosterOptions controls a fixed-size poster frame. Zero values mean 640x360 at 0s.
type PosterOptions struct {
	Width  int
	Height int
	Time   float64
}

// MuxPosterURL returns a poster frame scaled to the given box without cropping.
func MuxPosterURL(playbackID string, opts PosterOptions) string {
	width, height := opts.Width, opts.Height
	if width == 0 {
		width = 640
	}
	if height == 0 {
		height = 360
	}
	return fmt.Sprintf("%s/%s/thumbnail.jpg?width=%d&height=%d&time=%s",
		muxImageHost, playbackID, width, height, formatSeconds(opts.Time))
}

// AnimatedOptions controls an animated preview. Zero values mean 320px at 15fps.
type AnimatedOptions struct {
	Width int
	FPS   int
}

// MuxAnimatedURL returns an animated GIF preview of a Mux video.
func MuxAnimatedURL(playbackID string, opts AnimatedOptions) string {
	width, fps := opts.Width, opts.FPS
	if width == 0 {
		width = 320
	}
	if fps == 0 {
		fps = 15
	}
	return fmt.Sprintf("%s/%s/animated.gif?width=%d&fps=%d", muxImageHost, playbackID, width, fps)
}

// StreamOptions controls the HLS stream URL.
type StreamOptions struct {
	DefaultSubtitleLang string
}

// MuxStreamURL returns the HLS playlist of a Mux video.
func MuxStreamURL(playbackID string, opts StreamOptions) string {
	u := muxStreamHost + "/" + playbackID + ".m3u8"
	if opts.DefaultSubtitleLang != "" {
		u += "?default_subtitles_lang=" + url.QueryEscape(opts.DefaultSubtitleLang)
	}
	return u
}

// formatSeconds prints 0, 2 or 2.5 rather than fixed-precision floats.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
