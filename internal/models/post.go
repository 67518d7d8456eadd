// Package models contains data structures for the feed's domain models.
package models

import (
	"time"

	"gorm.io/datatypes"
)

// MaxMediaPerPost caps the number of attachments a single post may carry.
const MaxMediaPerPost = 4

// MediaKind classifies the attachments of a post.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
	MediaKindMixed MediaKind = "mixed"
)

// MediaItem is a single stored attachment.
type MediaItem struct {
	URL  string    `json:"url"`
	Kind MediaKind `json:"kind"`
}

// Post is a top-level post, a reply (ParentPostID set) or a derived retweet row
// (IsRetweet set).
type Post struct {
	ID       uint                           `gorm:"primaryKey" json:"id"`
	Username string                         `gorm:"size:50;not null;index;uniqueIndex:idx_posts_retweet_origin_user,where:is_retweet" json:"username"`
	Content  *string                        `gorm:"type:text" json:"content"`
	Media    datatypes.JSONSlice[MediaItem] `json:"media"`
	// MediaKind is derived from Media and never set on its own.
	MediaKind     *MediaKind `gorm:"size:20" json:"media_kind"`
	LikesCount    int        `gorm:"not null;default:0" json:"likes_count"`
	RetweetsCount int        `gorm:"not null;default:0" json:"retweets_count"`
	RepliesCount  int        `gorm:"not null;default:0" json:"replies_count"`

	IsRetweet        bool    `gorm:"not null;default:false" json:"is_retweet"`
	OriginalPostID   *uint   `gorm:"index;uniqueIndex:idx_posts_retweet_origin_user,where:is_retweet" json:"original_post_id"`
	OriginalUsername *string `gorm:"size:50" json:"original_username"`
	Original         *Post   `gorm:"foreignKey:OriginalPostID;constraint:OnDelete:SET NULL" json:"-"`

	ParentPostID *uint `gorm:"index" json:"parent_post_id"`
	Parent       *Post `gorm:"foreignKey:ParentPostID;constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`

	// Viewer flags are projected by feed queries and never stored.
	ViewerHasLiked     bool `gorm:"->;-:migration" json:"viewer_has_liked"`
	ViewerHasRetweeted bool `gorm:"->;-:migration" json:"viewer_has_retweeted"`
}

// PostWithInteractions is a post plus live counts taken from the ledger tables.
type PostWithInteractions struct {
	Post
	Likes    int64 `json:"likes"`
	Retweets int64 `json:"retweets"`
	Replies  int64 `json:"replies"`
}

// IsReply reports whether the post belongs to another post's thread.
func (p *Post) IsReply() bool {
	return p.ParentPostID != nil
}

// DeriveMediaKind returns mixed when both kinds are present, the single kind
// otherwise, or nil for no media.
func DeriveMediaKind(items []MediaItem) *MediaKind {
	var hasImage, hasVideo bool
	for _, item := range items {
		switch item.Kind {
		case MediaKindImage:
			hasImage = true
		case MediaKindVideo:
			hasVideo = true
		}
	}

	var kind MediaKind
	switch {
	case hasImage && hasVideo:
		kind = MediaKindMixed
	case hasImage:
		kind = MediaKindImage
	case hasVideo:
		kind = MediaKindVideo
	default:
		return nil
	}
	return &kind
}
