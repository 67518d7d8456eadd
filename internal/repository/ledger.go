package repository

import (
	"context"

	"xclone/internal/models"
	"xclone/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InteractionLedger records which users liked or retweeted which posts.
// It never touches the denormalised counters on posts.
type InteractionLedger interface {
	HasLiked(ctx context.Context, postID uint, username string) (bool, error)
	AddLike(ctx context.Context, postID uint, username string) error
	RemoveLike(ctx context.Context, postID uint, username string) (bool, error)
	HasRetweeted(ctx context.Context, postID uint, username string) (bool, error)
	AddRetweet(ctx context.Context, postID uint, username string) error
	RemoveRetweet(ctx context.Context, postID uint, username string) (bool, error)
}

type interactionLedger struct {
	db *gorm.DB
}

// NewInteractionLedger creates a ledger bound to db (or a transaction).
func NewInteractionLedger(db *gorm.DB) InteractionLedger {
	return &interactionLedger{db: db}
}

func (l *interactionLedger) HasLiked(ctx context.Context, postID uint, username string) (bool, error) {
	return l.exists(ctx, &models.PostLike{}, postID, username)
}

// AddLike inserts the like row. An existing row yields a CONFLICT error.
func (l *interactionLedger) AddLike(ctx context.Context, postID uint, username string) error {
	return l.insert(ctx, &models.PostLike{PostID: postID, Username: username}, "post_likes")
}

func (l *interactionLedger) RemoveLike(ctx context.Context, postID uint, username string) (bool, error) {
	return l.remove(ctx, &models.PostLike{}, postID, username, "post_likes")
}

func (l *interactionLedger) HasRetweeted(ctx context.Context, postID uint, username string) (bool, error) {
	return l.exists(ctx, &models.Retweet{}, postID, username)
}

// AddRetweet inserts the retweet row. An existing row yields a CONFLICT error.
func (l *interactionLedger) AddRetweet(ctx context.Context, postID uint, username string) error {
	return l.insert(ctx, &models.Retweet{PostID: postID, Username: username}, "retweets")
}

func (l *interactionLedger) RemoveRetweet(ctx context.Context, postID uint, username string) (bool, error) {
	return l.remove(ctx, &models.Retweet{}, postID, username, "retweets")
}

func (l *interactionLedger) exists(ctx context.Context, model interface{}, postID uint, username string) (bool, error) {
	var count int64
	err := l.db.WithContext(ctx).
		Model(model).
		Where("post_id = ? AND username = ?", postID, username).
		Count(&count).Error
	if err != nil {
		return false, ClassifyError(err)
	}
	return count > 0, nil
}

func (l *interactionLedger) insert(ctx context.Context, row interface{}, table string) error {
	defer observability.TrackQuery("insert", table)()
	res := l.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row)
	if res.Error != nil {
		return ClassifyError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewConflictError("Interaction already recorded", nil)
	}
	return nil
}

func (l *interactionLedger) remove(ctx context.Context, model interface{}, postID uint, username, table string) (bool, error) {
	defer observability.TrackQuery("delete", table)()
	res := l.db.WithContext(ctx).
		Where("post_id = ? AND username = ?", postID, username).
		Delete(model)
	if res.Error != nil {
		return false, ClassifyError(res.Error)
	}
	return res.RowsAffected > 0, nil
}
