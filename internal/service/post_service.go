package service

import (
	"context"
	"log/slog"
	"strings"

	"xclone/internal/middleware"
	"xclone/internal/models"
	"xclone/internal/repository"
)

// PostService creates posts and serves read views of them.
type PostService struct {
	posts repository.PostRepository
	media *MediaService
}

type CreatePostInput struct {
	Username string         `validate:"required,max=50"`
	Content  string         `validate:"max=50000"`
	Files    []UploadedFile `validate:"-"`
}

func NewPostService(posts repository.PostRepository, media *MediaService) *PostService {
	return &PostService{
		posts: posts,
		media: media,
	}
}

// CreatePost stores the attachments and inserts the post. If the insert fails
// the stored files are removed again.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if len(in.Files) > models.MaxMediaPerPost {
		return nil, models.NewValidationError("At most 4 media files are allowed")
	}

	var content *string
	if strings.TrimSpace(in.Content) != "" {
		content = &in.Content
	}
	if content == nil && len(in.Files) == 0 {
		return nil, models.NewValidationError("Post must have content or media")
	}

	accepted, err := s.media.Accept(ctx, in.Files)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		Username:  in.Username,
		Content:   content,
		Media:     accepted.Items,
		MediaKind: accepted.Kind,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		s.media.Release(accepted)
		middleware.Logger.WarnContext(ctx, "post insert failed, released media",
			slog.String("username", in.Username),
			slog.Int("files", len(accepted.Items)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return post, nil
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	return s.posts.GetByID(ctx, id)
}

func (s *PostService) GetPostWithInteractions(ctx context.Context, id uint) (*models.PostWithInteractions, error) {
	return s.posts.GetWithInteractions(ctx, id)
}

// ListFeed returns every top-level post, newest first, flagged for viewer.
func (s *PostService) ListFeed(ctx context.Context, viewer string) ([]*models.Post, error) {
	viewer = strings.TrimSpace(viewer)
	if viewer == "" {
		viewer = AnonymousViewer
	}
	if len(viewer) > maxUsernameLen {
		return nil, models.NewValidationError("username must be at most 50 characters")
	}
	return s.posts.ListFeed(ctx, viewer)
}
