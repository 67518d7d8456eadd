package repository

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"xclone/internal/middleware"
	"xclone/internal/models"
	"xclone/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetForUpdate(ctx context.Context, id uint) (*models.Post, error)
	GetWithInteractions(ctx context.Context, id uint) (*models.PostWithInteractions, error)
	Feed(ctx context.Context, viewer string) iter.Seq2[*models.Post, error]
	ListFeed(ctx context.Context, viewer string) ([]*models.Post, error)
	AdjustCounter(ctx context.Context, postID uint, field models.CounterField, delta int) error
	DeleteDerivedRetweet(ctx context.Context, originalID uint, username string) (int64, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository. Pass a transaction handle to
// make every call part of that transaction.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", "posts")()
	if post.Media == nil {
		post.Media = []models.MediaItem{}
	}
	post.MediaKind = models.DeriveMediaKind(post.Media)
	post.LikesCount, post.RetweetsCount, post.RepliesCount = 0, 0, 0
	return ClassifyError(r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error)
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	defer observability.TrackQuery("get", "posts")()
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, notFoundOr(err, id)
	}
	return &post, nil
}

// GetForUpdate loads the post and holds its row lock until the surrounding
// transaction ends. SQLite has no row locks; its single writer gives the same
// serialisation.
func (r *postRepository) GetForUpdate(ctx context.Context, id uint) (*models.Post, error) {
	defer observability.TrackQuery("get_for_update", "posts")()
	q := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var post models.Post
	if err := q.First(&post, id).Error; err != nil {
		return nil, notFoundOr(err, id)
	}
	return &post, nil
}

func (r *postRepository) GetWithInteractions(ctx context.Context, id uint) (*models.PostWithInteractions, error) {
	defer observability.TrackQuery("get_with_interactions", "posts")()
	var result models.PostWithInteractions
	res := r.db.WithContext(ctx).
		Table("posts").
		Select(`posts.*,
			(SELECT COUNT(*) FROM post_likes WHERE post_likes.post_id = posts.id) AS likes,
			(SELECT COUNT(*) FROM retweets WHERE retweets.post_id = posts.id) AS retweets,
			(SELECT COUNT(*) FROM posts AS replies WHERE replies.parent_post_id = posts.id) AS replies`).
		Where("posts.id = ?", id).
		Limit(1).
		Scan(&result)
	if res.Error != nil {
		return nil, ClassifyError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError("Post", id)
	}
	return &result, nil
}

// Feed lazily yields top-level posts, newest first, each annotated with the
// viewer's like and retweet flags. Iteration stops at the first error.
func (r *postRepository) Feed(ctx context.Context, viewer string) iter.Seq2[*models.Post, error] {
	return func(yield func(*models.Post, error) bool) {
		defer observability.TrackQuery("feed", "posts")()

		rows, err := r.db.WithContext(ctx).
			Model(&models.Post{}).
			Select(`posts.*,
				EXISTS (SELECT 1 FROM post_likes pl WHERE pl.post_id = posts.id AND pl.username = ?) AS viewer_has_liked,
				EXISTS (SELECT 1 FROM retweets rt WHERE rt.post_id = posts.id AND rt.username = ?) AS viewer_has_retweeted`,
				viewer, viewer).
			Where("posts.parent_post_id IS NULL").
			Order("posts.created_at DESC").
			Order("posts.id DESC").
			Rows()
		if err != nil {
			yield(nil, ClassifyError(err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var post models.Post
			if err := r.db.ScanRows(rows, &post); err != nil {
				yield(nil, ClassifyError(err))
				return
			}
			if !yield(&post, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, ClassifyError(err))
		}
	}
}

func (r *postRepository) ListFeed(ctx context.Context, viewer string) ([]*models.Post, error) {
	posts := []*models.Post{}
	for post, err := range r.Feed(ctx, viewer) {
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// AdjustCounter adds delta (+1 or -1) to one counter in a single guarded UPDATE.
// The guard refuses any write that would leave the counter negative.
func (r *postRepository) AdjustCounter(ctx context.Context, postID uint, field models.CounterField, delta int) error {
	if !field.Valid() {
		return models.NewInvariantViolationError("unknown counter " + string(field))
	}
	if delta != 1 && delta != -1 {
		return models.NewInvariantViolationError("counter delta must be +1 or -1")
	}
	defer observability.TrackQuery("adjust_counter", "posts")()

	column := string(field)
	res := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ? AND "+column+" + ? >= 0", postID, delta).
		UpdateColumn(column, gorm.Expr(column+" + ?", delta))
	if res.Error != nil {
		return ClassifyError(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).Count(&count).Error; err != nil {
		return ClassifyError(err)
	}
	if count == 0 {
		return models.NewNotFoundError("Post", postID)
	}
	return models.NewInvariantViolationError(column + " would become negative")
}

// DeleteDerivedRetweet removes the retweet row(s) username created from originalID.
func (r *postRepository) DeleteDerivedRetweet(ctx context.Context, originalID uint, username string) (int64, error) {
	defer observability.TrackQuery("delete_derived_retweet", "posts")()
	res := r.db.WithContext(ctx).
		Where("is_retweet = ? AND original_post_id = ? AND username = ?", true, originalID, username).
		Delete(&models.Post{})
	if res.Error != nil {
		return 0, ClassifyError(res.Error)
	}
	if res.RowsAffected > 1 {
		middleware.Logger.WarnContext(ctx, "removed duplicate derived retweets",
			slog.Uint64("original_post_id", uint64(originalID)),
			slog.String("username", username),
			slog.Int64("rows", res.RowsAffected),
		)
	}
	return res.RowsAffected, nil
}

func notFoundOr(err error, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError("Post", id)
	}
	return ClassifyError(err)
}
