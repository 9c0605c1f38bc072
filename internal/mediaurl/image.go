// Package mediaurl builds CDN URLs for CMS images and Mux videos.
//
// Nothing here performs I/O or validates identifiers: a malformed asset URL
// or playback id produces a malformed, but well-formed, URL and the CDN
// reports the failure.
package mediaurl

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Fit is the image CDN resize mode.
type Fit string

const (
	FitClip    Fit = "clip"
	FitCrop    Fit = "crop"
	FitFill    Fit = "fill"
	FitFillMax Fit = "fillmax"
	FitMax     Fit = "max"
	FitScale   Fit = "scale"
	FitMin     Fit = "min"
)

// Valid reports whether f is a mode the CDN accepts.
func (f Fit) Valid() bool {
	switch f {
	case FitClip, FitCrop, FitFill, FitFillMax, FitMax, FitScale, FitMin:
		return true
	}
	return false
}

// SrcsetWidths are the candidate widths used for every responsive image,
// from small phones to 4K. Keep them fixed: they are part of the CDN cache keys.
var SrcsetWidths = []int{400, 600, 800, 1200, 1600, 2000, 2400, 3200, 4000}

// ImageOptions controls a single image URL. Width is required; zero
// Height, Quality and DPR are omitted or derived, empty Fit means clip.
type ImageOptions struct {
	Width   int
	Height  int
	Quality int
	DPR     float64
	Fit     Fit
}

// Quality picks the compression quality for a rendered width. Wider images
// get more quality; denser screens hide artifacts so they get less. The
// result is always in [60, 90].
func Quality(width int, dpr float64) int {
	var q int
	switch {
	case width <= 600:
		q = 75
	case width <= 1200:
		q = 80
	case width <= 2000:
		q = 85
	default:
		q = 90
	}

	switch {
	case dpr >= 3:
		q -= 10
	case dpr >= 2:
		q -= 5
	}

	return max(q, 60)
}

// EffectiveDPR rounds dpr up to a whole ratio in [1, 3]. Zero means 1.
func EffectiveDPR(dpr float64) int {
	switch {
	case dpr <= 0 || math.IsNaN(dpr):
		return 1
	case dpr >= 3:
		return 3
	}
	return max(int(math.Ceil(dpr)), 1)
}

// ImageURL appends the CDN parameters to an image asset URL. Parameters are
// always written in the same order (w, auto, q, fit, h, dpr) so identical
// requests share a cache entry. dpr is only sent above 1; the CDN then
// multiplies w itself.
func ImageURL(base string, opts ImageOptions) string {
	dpr := EffectiveDPR(opts.DPR)
	q := opts.Quality
	if q == 0 {
		q = Quality(opts.Width, float64(dpr))
	}
	fit := opts.Fit
	if fit == "" {
		fit = FitClip
	}

	var b strings.Builder
	b.WriteString(base)
	fmt.Fprintf(&b, "?w=%d&auto=format&q=%d&fit=%s", opts.Width, q, fit)
	if opts.Height > 0 {
		b.WriteString("&h=" + strconv.Itoa(opts.Height))
	}
	if dpr > 1 {
		b.WriteString("&dpr=" + strconv.Itoa(dpr))
	}
	return b.String()
}

// Srcset builds a srcset attribute with one candidate per width. Unless
// opts.Quality is set, each candidate's quality follows its own width at a
// ratio of 1; opts.Width is ignored.
func Srcset(base string, widths []int, opts ImageOptions) string {
	parts := make([]string, 0, len(widths))
	for _, w := range widths {
		o := opts
		o.Width = w
		if o.Quality == 0 {
			o.Quality = Quality(w, 1)
		}
		parts = append(parts, ImageURL(base, o)+" "+strconv.Itoa(w)+"w")
	}
	return strings.Join(parts, ", ")
}
