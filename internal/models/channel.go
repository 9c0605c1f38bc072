package models

import "time"

// User is an Are.na account as embedded in channel and block payloads.
type User struct {
	ID          int64       `json:"id"`
	Slug        string      `json:"slug"`
	Username    string      `json:"username"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	FullName    string      `json:"full_name"`
	Avatar      string      `json:"avatar"`
	AvatarImage AvatarImage `json:"avatar_image"`
}

// AvatarImage holds the avatar renditions served by Are.na.
type AvatarImage struct {
	Thumb   string `json:"thumb"`
	Display string `json:"display"`
}

// ChannelMetadata is the free-form metadata block of a channel.
type ChannelMetadata struct {
	Description *string `json:"description"`
}

// Channel is an ordered collection of blocks. Contents is only populated
// when the API expands it (contents endpoints, channel pages).
type Channel struct {
	ID            int64            `json:"id"`
	Title         string           `json:"title"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	AddedToAt     time.Time        `json:"added_to_at"`
	Published     bool             `json:"published"`
	Open          bool             `json:"open"`
	Collaboration bool             `json:"collaboration"`
	Slug          string           `json:"slug"`
	Length        int              `json:"length"`
	Kind          string           `json:"kind"`
	Status        string           `json:"status"`
	UserID        int64            `json:"user_id"`
	Metadata      *ChannelMetadata `json:"metadata"`
	Contents      []Block          `json:"contents,omitempty"`
	User          User             `json:"user"`
}

// ChannelPage is one page of a channel's contents. TotalPages is
// authoritative for draining.
type ChannelPage struct {
	Channel
	BaseClass   string `json:"base_class"`
	Page        int    `json:"page"`
	Per         int    `json:"per"`
	CurrentPage int    `json:"current_page"`
	TotalPages  int    `json:"total_pages"`
}

// ChannelList is the envelope returned by channel search and user channel listings.
type ChannelList struct {
	Channels    []Channel `json:"channels"`
	TotalPages  int       `json:"total_pages"`
	CurrentPage int       `json:"current_page,omitempty"`
	Length      int       `json:"length,omitempty"`
}
