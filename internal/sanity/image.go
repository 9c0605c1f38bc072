package sanity

import (
	"fmt"
	"strconv"
	"strings"
)

// ImageRef is a parsed image asset reference such as
// "image-Tb9Ew8CXIwaY6R1kjMvI0uRR-2000x3000-jpg".
type ImageRef struct {
	ID     string
	Width  int
	Height int
	Format string
}

// ParseImageRef splits an image asset reference into its parts.
func ParseImageRef(ref string) (ImageRef, error) {
	parts := strings.Split(ref, "-")
	if len(parts) != 4 || parts[0] != "image" || parts[1] == "" || parts[3] == "" {
		return ImageRef{}, fmt.Errorf("malformed image reference %q", ref)
	}
	w, h, ok := strings.Cut(parts[2], "x")
	if !ok {
		return ImageRef{}, fmt.Errorf("malformed image dimensions in %q", ref)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return ImageRef{}, fmt.Errorf("malformed image width in %q", ref)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return ImageRef{}, fmt.Errorf("malformed image height in %q", ref)
	}
	return ImageRef{ID: parts[1], Width: width, Height: height, Format: parts[3]}, nil
}

// URL is the asset's CDN URL, without transformation parameters.
func (r ImageRef) URL(projectID, dataset string) string {
	return fmt.Sprintf("%s/%s/%s/%s-%dx%d.%s", imageCDN, projectID, dataset, r.ID, r.Width, r.Height, r.Format)
}

// AspectRatio is width over height.
func (r ImageRef) AspectRatio() float64 {
	return float64(r.Width) / float64(r.Height)
}
