package models

import (
	"encoding/json"
	"time"
)

// MediaKind is the type discriminator of a Media document.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// Slug is the CMS slug object.
type Slug struct {
	Current string `json:"current"`
}

// Reference points at another CMS document or asset.
type Reference struct {
	Ref  string `json:"_ref"`
	Type string `json:"_type,omitempty"`
}

// Hotspot is the focal area chosen in the CMS editor.
type Hotspot struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Height float64 `json:"height"`
	Width  float64 `json:"width"`
}

// SanityImage is an image field: an asset reference plus optional hotspot.
type SanityImage struct {
	Type    string    `json:"_type"`
	Asset   Reference `json:"asset"`
	Hotspot *Hotspot  `json:"hotspot,omitempty"`
}

// MuxAsset is the resolved Mux asset behind a video field.
type MuxAsset struct {
	Ref        string `json:"_ref,omitempty"`
	PlaybackID string `json:"playbackId"`
	Status     string `json:"status"`
}

// MuxVideo is a video field backed by Mux.
type MuxVideo struct {
	Type  string   `json:"_type"`
	Asset MuxAsset `json:"asset"`
}

// Term is a tag, category or client document.
type Term struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
	Slug Slug   `json:"slug"`
}

// Dimensions are the pixel dimensions of an image asset.
type Dimensions struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspectRatio"`
}

// ImageMetadata is resolved from the image asset document.
type ImageMetadata struct {
	Dimensions *Dimensions `json:"dimensions,omitempty"`
}

// VideoMetadata is resolved from the Mux asset. AspectRatio is "16:9" style.
type VideoMetadata struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

// Media is a photo or video entry. ImageURL, ImageMeta, VideoMeta and
// MuxPlaybackID are filled by the query projection, not stored on the document.
type Media struct {
	ID            string            `json:"_id"`
	Type          string            `json:"_type"`
	CreatedAt     *time.Time        `json:"_createdAt,omitempty"`
	Title         string            `json:"title"`
	Slug          Slug              `json:"slug"`
	MediaType     MediaKind         `json:"mediaType"`
	Image         *SanityImage      `json:"image,omitempty"`
	Video         *MuxVideo         `json:"video,omitempty"`
	Alt           string            `json:"alt,omitempty"`
	Caption       []json.RawMessage `json:"caption,omitempty"`
	Categories    []Term            `json:"categories,omitempty"`
	Tags          []Term            `json:"tags,omitempty"`
	Clients       []Term            `json:"clients,omitempty"`
	Autoplay      bool              `json:"autoplay,omitempty"`
	DateTaken     string            `json:"dateTaken,omitempty"`
	LocationName  string            `json:"locationName,omitempty"`
	Camera        string            `json:"camera,omitempty"`
	Lens          string            `json:"lens,omitempty"`
	FocalLength   string            `json:"focalLength,omitempty"`
	Aperture      string            `json:"aperture,omitempty"`
	ShutterSpeed  string            `json:"shutterSpeed,omitempty"`
	ISO           int               `json:"iso,omitempty"`
	ImageURL      string            `json:"imageUrl,omitempty"`
	ImageMeta     *ImageMetadata    `json:"imageMeta,omitempty"`
	VideoMeta     *VideoMetadata    `json:"videoMeta,omitempty"`
	MuxPlaybackID string            `json:"muxPlaybackId,omitempty"`
}

// IsVideo reports whether the entry should be rendered through Mux.
func (m Media) IsVideo() bool {
	return m.MediaType == MediaKindVideo && m.MuxPlaybackID != ""
}

// Log is a dated journal entry with portable-text content.
type Log struct {
	ID      string            `json:"_id"`
	Type    string            `json:"_type"`
	Title   string            `json:"title"`
	Slug    Slug              `json:"slug"`
	Date    string            `json:"date"`
	Content []json.RawMessage `json:"content,omitempty"`
}
