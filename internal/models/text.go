package models

import "strings"

// SearchText joins the human-readable parts of a block into one string for
// embedding. Blocks with nothing to say return "".
func (b Block) SearchText() string {
	var parts []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}

	if b.Title != nil {
		add(*b.Title)
	} else {
		add(b.GeneratedTitle)
	}
	if b.Description != nil {
		add(*b.Description)
	}

	switch c := b.Content.(type) {
	case TextContent:
		add(c.Content)
	case LinkContent:
		if c.Source != nil {
			add(c.Source.Title)
			add(c.Source.URL)
		}
	case MediaContent:
		if c.Embed != nil {
			add(c.Embed.Title)
			add(c.Embed.AuthorName)
		}
		if c.Source != nil {
			add(c.Source.URL)
		}
	case AttachmentContent:
		if c.Attachment != nil {
			add(c.Attachment.FileName)
		}
	case ChannelContent:
		add(c.Slug)
	case ImageContent:
		if c.Image != nil && b.Title == nil && b.GeneratedTitle == "" {
			add(c.Image.Filename)
		}
	}
	return strings.Join(parts, "\n")
}
