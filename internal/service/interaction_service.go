package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"xclone/internal/models"
	"xclone/internal/observability"
	"xclone/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// InteractionService runs likes, retweets and replies. Each operation is one
// transaction that first locks the target post row, so per-post sequences are
// serialised and the counters always match the ledger.
type InteractionService struct {
	db *gorm.DB
}

type InteractionInput struct {
	PostID   uint   `validate:"required"`
	Username string `validate:"required,max=50"`
}

type ReplyInput struct {
	ParentID uint   `validate:"required"`
	Username string `validate:"required,max=50"`
	Content  string `validate:"required,max=50000"`
}

// LikeResult is the state after a like toggle.
type LikeResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

// RetweetResult is the state after a retweet toggle.
type RetweetResult struct {
	Retweeted     bool  `json:"retweeted"`
	RetweetsCount int   `json:"retweets_count"`
	DerivedPostID *uint `json:"derived_post_id,omitempty"`
}

func NewInteractionService(db *gorm.DB) *InteractionService {
	return &InteractionService{db: db}
}

type txRepos struct {
	posts  repository.PostRepository
	ledger repository.InteractionLedger
}

// inTx runs fn in a transaction and records the outcome it reports.
func (s *InteractionService) inTx(ctx context.Context, op string, postID uint, fn func(context.Context, txRepos) (string, error)) error {
	start := time.Now()
	span, ctx := observability.NewSpan(ctx, "interaction."+op, attribute.Int64("post.id", int64(postID)))

	var outcome string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		outcome, err = fn(ctx, txRepos{
			posts:  repository.NewPostRepository(tx),
			ledger: repository.NewInteractionLedger(tx),
		})
		return err
	})
	if err != nil {
		err = repository.ClassifyError(err)
		outcome = "error"
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			outcome = strings.ToLower(appErr.Code)
		}
	}

	observability.ObserveInteraction(op, outcome, start)
	span.AddAttributes(attribute.String("outcome", outcome))
	span.End(err)
	return err
}

// ToggleLike flips username's like on the post and keeps likes_count in step.
func (s *InteractionService) ToggleLike(ctx context.Context, in InteractionInput) (*LikeResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var result LikeResult
	err := s.inTx(ctx, "toggle_like", in.PostID, func(ctx context.Context, r txRepos) (string, error) {
		post, err := r.posts.GetForUpdate(ctx, in.PostID)
		if err != nil {
			return "", err
		}
		result.LikesCount = post.LikesCount

		liked, err := r.ledger.HasLiked(ctx, in.PostID, in.Username)
		if err != nil {
			return "", err
		}
		if !liked {
			err := r.ledger.AddLike(ctx, in.PostID, in.Username)
			switch {
			case err == nil:
				if err := r.posts.AdjustCounter(ctx, in.PostID, models.CounterLikes, 1); err != nil {
					return "", err
				}
				result.Liked = true
				result.LikesCount++
				return "liked", nil
			case !models.HasCode(err, models.CodeConflict):
				return "", err
			}
			// The row appeared after the membership check: it is liked, so unlike.
		}

		removed, err := r.ledger.RemoveLike(ctx, in.PostID, in.Username)
		if err != nil {
			return "", err
		}
		if removed {
			if err := r.posts.AdjustCounter(ctx, in.PostID, models.CounterLikes, -1); err != nil {
				return "", err
			}
			result.LikesCount--
		}
		result.Liked = false
		return "unliked", nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ToggleRetweet flips username's retweet of the post. Retweeting also creates
// the derived post shown in the feed; un-retweeting deletes it.
func (s *InteractionService) ToggleRetweet(ctx context.Context, in InteractionInput) (*RetweetResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var result RetweetResult
	err := s.inTx(ctx, "toggle_retweet", in.PostID, func(ctx context.Context, r txRepos) (string, error) {
		original, err := r.posts.GetForUpdate(ctx, in.PostID)
		if err != nil {
			return "", err
		}
		result.RetweetsCount = original.RetweetsCount

		retweeted, err := r.ledger.HasRetweeted(ctx, in.PostID, in.Username)
		if err != nil {
			return "", err
		}
		if !retweeted {
			err := r.ledger.AddRetweet(ctx, in.PostID, in.Username)
			switch {
			case err == nil:
				if err := r.posts.AdjustCounter(ctx, in.PostID, models.CounterRetweets, 1); err != nil {
					return "", err
				}
				derived := derivedRetweet(original, in.Username)
				if err := r.posts.Create(ctx, derived); err != nil {
					return "", err
				}
				result.Retweeted = true
				result.RetweetsCount++
				result.DerivedPostID = &derived.ID
				return "retweeted", nil
			case !models.HasCode(err, models.CodeConflict):
				return "", err
			}
		}

		removed, err := r.ledger.RemoveRetweet(ctx, in.PostID, in.Username)
		if err != nil {
			return "", err
		}
		if removed {
			if err := r.posts.AdjustCounter(ctx, in.PostID, models.CounterRetweets, -1); err != nil {
				return "", err
			}
			result.RetweetsCount--
		}
		if _, err := r.posts.DeleteDerivedRetweet(ctx, in.PostID, in.Username); err != nil {
			return "", err
		}
		result.Retweeted = false
		return "unretweeted", nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Reply creates a reply under the parent post and bumps its replies_count.
func (s *InteractionService) Reply(ctx context.Context, in ReplyInput) (*models.Post, error) {
	in.Username = strings.TrimSpace(in.Username)
	if strings.TrimSpace(in.Content) == "" {
		in.Content = ""
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var reply *models.Post
	err := s.inTx(ctx, "reply", in.ParentID, func(ctx context.Context, r txRepos) (string, error) {
		parent, err := r.posts.GetForUpdate(ctx, in.ParentID)
		if err != nil {
			return "", err
		}

		content := in.Content
		reply = &models.Post{
			Username:     in.Username,
			Content:      &content,
			ParentPostID: &parent.ID,
		}
		if err := r.posts.Create(ctx, reply); err != nil {
			return "", err
		}
		if err := r.posts.AdjustCounter(ctx, parent.ID, models.CounterReplies, 1); err != nil {
			return "", err
		}
		return "replied", nil
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

func derivedRetweet(original *models.Post, username string) *models.Post {
	originalID := original.ID
	originalUsername := original.Username
	derived := &models.Post{
		Username:         username,
		IsRetweet:        true,
		OriginalPostID:   &originalID,
		OriginalUsername: &originalUsername,
	}
	if original.Content != nil {
		content := *original.Content
		derived.Content = &content
	}
	derived.Media = append([]models.MediaItem{}, original.Media...)
	return derived
}
