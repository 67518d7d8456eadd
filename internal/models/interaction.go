package models

import "time"

// PostLike records that a user liked a post. At most one row per (post, user).
type PostLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_post_likes_post_user" json:"post_id"`
	Username  string    `gorm:"size:50;not null;uniqueIndex:idx_post_likes_post_user" json:"username"`
	Post      *Post     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for PostLike.
func (PostLike) TableName() string {
	return "post_likes"
}

// Retweet records that a user retweeted a post. At most one row per (post, user).
type Retweet struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_retweets_post_user" json:"post_id"`
	Username  string    `gorm:"size:50;not null;uniqueIndex:idx_retweets_post_user" json:"username"`
	Post      *Post     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Retweet.
func (Retweet) TableName() string {
	return "retweets"
}

// CounterField names one of the denormalised counters on posts.
type CounterField string

const (
	CounterLikes    CounterField = "likes_count"
	CounterRetweets CounterField = "retweets_count"
	CounterReplies  CounterField = "replies_count"
)

// Valid reports whether f is one of the known counter columns.
func (f CounterField) Valid() bool {
	switch f {
	case CounterLikes, CounterRetweets, CounterReplies:
		return true
	}
	return false
}
