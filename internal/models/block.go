package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// BlockClass is the content-kind discriminator Are.na sends as "class".
type BlockClass string

const (
	ClassImage      BlockClass = "Image"
	ClassText       BlockClass = "Text"
	ClassLink       BlockClass = "Link"
	ClassMedia      BlockClass = "Media"
	ClassAttachment BlockClass = "Attachment"
	ClassChannel    BlockClass = "Channel"
)

// Source describes where a link or media block was pulled from.
type Source struct {
	URL      string    `json:"url,omitempty"`
	Title    string    `json:"title,omitempty"`
	Provider *Provider `json:"provider,omitempty"`
}

// Provider is the site a Source belongs to.
type Provider struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ImageVersion is a single rendition URL.
type ImageVersion struct {
	URL string `json:"url"`
}

// OriginalImage is the uploaded file behind an Image.
type OriginalImage struct {
	URL             string `json:"url"`
	FileSize        int64  `json:"file_size"`
	FileSizeDisplay string `json:"file_size_display"`
}

// Image is the image descriptor attached to image, link, media and attachment blocks.
type Image struct {
	Filename    string        `json:"filename"`
	ContentType string        `json:"content_type"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Thumb       ImageVersion  `json:"thumb"`
	Square      ImageVersion  `json:"square"`
	Display     ImageVersion  `json:"display"`
	Large       ImageVersion  `json:"large"`
	Original    OriginalImage `json:"original"`
}

// Embed is the oEmbed-style payload of a media block.
type Embed struct {
	Type         string `json:"type"`
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	AuthorURL    string `json:"author_url"`
	SourceURL    string `json:"source_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	HTML         string `json:"html"`
}

// Attachment is the uploaded file of an attachment block.
type Attachment struct {
	URL             string `json:"url"`
	FileName        string `json:"file_name"`
	FileSize        int64  `json:"file_size"`
	FileSizeDisplay string `json:"file_size_display"`
	ContentType     string `json:"content_type"`
	Extension       string `json:"extension"`
}

// BlockContent is the kind-specific payload of a Block. The concrete types
// below are the only implementations.
type BlockContent interface {
	Class() BlockClass
	isBlockContent()
}

// ImageContent is an uploaded image. Image is nil while Are.na is still
// processing the upload.
type ImageContent struct {
	Image *Image
}

// TextContent is a markdown text block.
type TextContent struct {
	Content     string
	ContentHTML string
}

// LinkContent is a bookmarked URL with an optional screenshot.
type LinkContent struct {
	Source *Source
	Image  *Image
}

// MediaContent is an embedded player (video, audio, tweet...). Embed is nil
// until the provider has been resolved.
type MediaContent struct {
	Embed  *Embed
	Source *Source
	Image  *Image
}

// AttachmentContent is an uploaded non-image file. Attachment is nil while
// the upload is processing.
type AttachmentContent struct {
	Attachment *Attachment
	Image      *Image
}

// ChannelContent is a channel connected inside another channel.
type ChannelContent struct {
	Slug   string
	Length int
	Status string
}

func (ImageContent) Class() BlockClass      { return ClassImage }
func (TextContent) Class() BlockClass       { return ClassText }
func (LinkContent) Class() BlockClass       { return ClassLink }
func (MediaContent) Class() BlockClass      { return ClassMedia }
func (AttachmentContent) Class() BlockClass { return ClassAttachment }
func (ChannelContent) Class() BlockClass    { return ClassChannel }

func (ImageContent) isBlockContent()      {}
func (TextContent) isBlockContent()       {}
func (LinkContent) isBlockContent()       {}
func (MediaContent) isBlockContent()      {}
func (AttachmentContent) isBlockContent() {}
func (ChannelContent) isBlockContent()    {}

// Block is one item of a channel. Position and ConnectedAt describe its
// connection to the channel it was fetched through.
type Block struct {
	ID                int64
	Title             *string
	GeneratedTitle    string
	Description       *string
	DescriptionHTML   *string
	State             string
	Visibility        string
	CommentCount      int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	User              *User
	Position          int
	ConnectedAt       *time.Time
	ConnectedByUserID int64
	Content           BlockContent
}

// Class returns the kind of the block's content.
func (b Block) Class() BlockClass {
	if b.Content == nil {
		return ""
	}
	return b.Content.Class()
}

// blockWire is the flat JSON shape Are.na uses for every block kind.
type blockWire struct {
	ID                int64       `json:"id"`
	Title             *string     `json:"title"`
	UpdatedAt         time.Time   `json:"updated_at"`
	CreatedAt         time.Time   `json:"created_at"`
	State             string      `json:"state,omitempty"`
	CommentCount      int         `json:"comment_count"`
	GeneratedTitle    string      `json:"generated_title,omitempty"`
	ContentHTML       *string     `json:"content_html"`
	DescriptionHTML   *string     `json:"description_html"`
	Visibility        string      `json:"visibility,omitempty"`
	Content           *string     `json:"content"`
	Description       *string     `json:"description"`
	Source            *Source     `json:"source"`
	Image             *Image      `json:"image"`
	Embed             *Embed      `json:"embed"`
	Attachment        *Attachment `json:"attachment,omitempty"`
	BaseClass         string      `json:"base_class"`
	Class             BlockClass  `json:"class"`
	User              *User       `json:"user,omitempty"`
	Position          int         `json:"position"`
	ConnectedAt       *time.Time  `json:"connected_at"`
	ConnectedByUserID int64       `json:"connected_by_user_id,omitempty"`
	Slug              string      `json:"slug,omitempty"`
	Length            int         `json:"length,omitempty"`
	Status            string      `json:"status,omitempty"`
}

// UnmarshalJSON decodes the flat API shape into the kind-specific content.
// Payloads may be null on blocks that are still processing; an unknown kind
// is an error.
func (b *Block) UnmarshalJSON(data []byte) error {
	var w blockWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	var content BlockContent
	switch w.Class {
	case ClassImage:
		content = ImageContent{Image: w.Image}
	case ClassText:
		content = TextContent{Content: deref(w.Content), ContentHTML: deref(w.ContentHTML)}
	case ClassLink:
		content = LinkContent{Source: w.Source, Image: w.Image}
	case ClassMedia:
		content = MediaContent{Embed: w.Embed, Source: w.Source, Image: w.Image}
	case ClassAttachment:
		content = AttachmentContent{Attachment: w.Attachment, Image: w.Image}
	case ClassChannel:
		content = ChannelContent{Slug: w.Slug, Length: w.Length, Status: w.Status}
	default:
		return fmt.Errorf("block %d: unknown class %q", w.ID, w.Class)
	}

	*b = Block{
		ID:                w.ID,
		Title:             w.Title,
		GeneratedTitle:    w.GeneratedTitle,
		Description:       w.Description,
		DescriptionHTML:   w.DescriptionHTML,
		State:             w.State,
		Visibility:        w.Visibility,
		CommentCount:      w.CommentCount,
		CreatedAt:         w.CreatedAt,
		UpdatedAt:         w.UpdatedAt,
		User:              w.User,
		Position:          w.Position,
		ConnectedAt:       w.ConnectedAt,
		ConnectedByUserID: w.ConnectedByUserID,
		Content:           content,
	}
	return nil
}

// MarshalJSON writes the block back in the flat API shape so cached and
// stored blocks decode the same way as fresh ones.
func (b Block) MarshalJSON() ([]byte, error) {
	w := blockWire{
		ID:                b.ID,
		Title:             b.Title,
		UpdatedAt:         b.UpdatedAt,
		CreatedAt:         b.CreatedAt,
		State:             b.State,
		CommentCount:      b.CommentCount,
		GeneratedTitle:    b.GeneratedTitle,
		DescriptionHTML:   b.DescriptionHTML,
		Visibility:        b.Visibility,
		Description:       b.Description,
		BaseClass:         "Block",
		User:              b.User,
		Position:          b.Position,
		ConnectedAt:       b.ConnectedAt,
		ConnectedByUserID: b.ConnectedByUserID,
	}

	switch c := b.Content.(type) {
	case ImageContent:
		w.Image = c.Image
	case TextContent:
		w.Content = &c.Content
		w.ContentHTML = &c.ContentHTML
	case LinkContent:
		w.Source = c.Source
		w.Image = c.Image
	case MediaContent:
		w.Embed = c.Embed
		w.Source = c.Source
		w.Image = c.Image
	case AttachmentContent:
		w.Attachment = c.Attachment
		w.Image = c.Image
	case ChannelContent:
		w.BaseClass = "Channel"
		w.Slug = c.Slug
		w.Length = c.Length
		w.Status = c.Status
	default:
		return nil, fmt.Errorf("block %d: no content", b.ID)
	}
	w.Class = b.Content.Class()

	return json.Marshal(w)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
