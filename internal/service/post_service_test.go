package service

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"xclone/internal/models"
	"xclone/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn   func(context.Context, *models.Post) error
	getByIDFn  func(context.Context, uint) (*models.Post, error)
	listFeedFn func(context.Context, string) ([]*models.Post, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) GetForUpdate(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) GetWithInteractions(_ context.Context, _ uint) (*models.PostWithInteractions, error) {
	return nil, errors.New("not implemented")
}
func (s *postRepoStub) Feed(_ context.Context, _ string) iter.Seq2[*models.Post, error] {
	return func(func(*models.Post, error) bool) {}
}
func (s *postRepoStub) ListFeed(ctx context.Context, viewer string) ([]*models.Post, error) {
	return s.listFeedFn(ctx, viewer)
}
func (s *postRepoStub) AdjustCounter(_ context.Context, _ uint, _ models.CounterField, _ int) error {
	return nil
}
func (s *postRepoStub) DeleteDerivedRetweet(_ context.Context, _ uint, _ string) (int64, error) {
	return 0, nil
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:   func(_ context.Context, p *models.Post) error { p.ID = 1; return nil },
		getByIDFn:  func(_ context.Context, id uint) (*models.Post, error) { return &models.Post{ID: id}, nil },
		listFeedFn: func(_ context.Context, _ string) ([]*models.Post, error) { return nil, nil },
	}
}

func TestPostService_CreatePostValidation(t *testing.T) {
	dir := t.TempDir()
	svc := NewPostService(noopPostRepo(), NewMediaService(dir, 1))

	five := make([]UploadedFile, 5)
	for i := range five {
		five[i] = memFile("p.png", "image/png", pngBytes)
	}

	tests := []struct {
		name    string
		input   CreatePostInput
		message string
	}{
		{"missing username", CreatePostInput{Username: "  ", Content: "hi"}, "username is required"},
		{"long username", CreatePostInput{Username: strings.Repeat("u", 51), Content: "hi"}, "username must be at most 50 characters"},
		{"long content", CreatePostInput{Username: "alice", Content: strings.Repeat("x", 50001)}, "content must be at most 50000 characters"},
		{"empty post", CreatePostInput{Username: "alice", Content: "   "}, "Post must have content or media"},
		{"too many files", CreatePostInput{Username: "alice", Content: "hi", Files: five}, "At most 4 media files are allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post, err := svc.CreatePost(context.Background(), tt.input)
			assert.Nil(t, post)
			var appErr *models.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, models.CodeValidation, appErr.Code)
			assert.Equal(t, tt.message, appErr.Message)
		})
	}
	assert.Equal(t, 0, countFiles(t, dir))
}

func TestPostService_CreatePostReleasesMediaOnInsertFailure(t *testing.T) {
	dir := t.TempDir()
	repo := noopPostRepo()
	repo.createFn = func(_ context.Context, _ *models.Post) error {
		return models.NewStoreUnavailableError(errors.New("connection refused"))
	}
	svc := NewPostService(repo, NewMediaService(dir, 1))

	post, err := svc.CreatePost(context.Background(), CreatePostInput{
		Username: "alice",
		Files:    []UploadedFile{memFile("a.png", "image/png", pngBytes), memFile("b.png", "image/png", pngBytes)},
	})
	assert.Nil(t, post)
	assert.True(t, models.HasCode(err, models.CodeStoreUnavailable))
	assert.Equal(t, 0, countFiles(t, dir))
}

func TestPostService_CreatePostPersists(t *testing.T) {
	db := setupTestDB(t)
	dir := t.TempDir()
	svc := NewPostService(repository.NewPostRepository(db), NewMediaService(dir, 1))
	ctx := context.Background()

	mediaOnly, err := svc.CreatePost(ctx, CreatePostInput{
		Username: " alice ",
		Files:    []UploadedFile{memFile("a.png", "image/png", pngBytes)},
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", mediaOnly.Username)
	assert.Nil(t, mediaOnly.Content)
	require.Len(t, mediaOnly.Media, 1)
	require.NotNil(t, mediaOnly.MediaKind)
	assert.Equal(t, models.MediaKindImage, *mediaOnly.MediaKind)
	assert.Equal(t, 1, countFiles(t, dir))

	textOnly, err := svc.CreatePost(ctx, CreatePostInput{Username: "bob", Content: "hello"})
	require.NoError(t, err)
	require.NotNil(t, textOnly.Content)
	assert.Equal(t, "hello", *textOnly.Content)
	assert.Empty(t, textOnly.Media)
	assert.Nil(t, textOnly.MediaKind)

	got, err := svc.GetPost(ctx, mediaOnly.ID)
	require.NoError(t, err)
	assert.Equal(t, mediaOnly.Media[0].URL, got.Media[0].URL)

	feed, err := svc.ListFeed(ctx, "")
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, textOnly.ID, feed[0].ID)
}

func TestPostService_ListFeedViewer(t *testing.T) {
	var seen string
	repo := noopPostRepo()
	repo.listFeedFn = func(_ context.Context, viewer string) ([]*models.Post, error) {
		seen = viewer
		return []*models.Post{}, nil
	}
	svc := NewPostService(repo, NewMediaService(t.TempDir(), 1))

	_, err := svc.ListFeed(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, AnonymousViewer, seen)

	_, err = svc.ListFeed(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, "carol", seen)

	_, err = svc.ListFeed(context.Background(), strings.Repeat("v", 51))
	assert.True(t, models.HasCode(err, models.CodeValidation))
}
