// Package seed fills the database with a demo feed. Everything goes through
// the services, so counters and ledgers stay consistent.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"xclone/internal/middleware"
	"xclone/internal/models"
	"xclone/internal/repository"
	"xclone/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
}

// Summary counts what a run created.
type Summary struct {
	Posts    int
	Likes    int
	Retweets int
	Replies  int
}

type Seeder struct {
	db           *gorm.DB
	posts        *service.PostService
	interactions *service.InteractionService
	faker        *gofakeit.Faker
}

// NewSeeder builds a seeder whose generated feed is reproducible for a given
// seed; zero picks a random one.
func NewSeeder(db *gorm.DB, seed int64) *Seeder {
	return &Seeder{
		db: db,
		// Seed posts carry no files, so the media service never touches disk.
		posts:        service.NewPostService(repository.NewPostRepository(db), service.NewMediaService("", 0)),
		interactions: service.NewInteractionService(db),
		faker:        gofakeit.New(seed),
	}
}

// ClearAll removes every post and interaction.
func (s *Seeder) ClearAll(ctx context.Context) error {
	for _, model := range []interface{}{&models.PostLike{}, &models.Retweet{}, &models.Post{}} {
		if err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	return nil
}

// Usernames returns n distinct demo usernames.
func (s *Seeder) Usernames(n int) []string {
	seen := make(map[string]bool, n)
	users := make([]string, 0, n)
	for len(users) < n {
		name := strings.ToLower(s.faker.Username())
		if len(name) > 40 {
			name = name[:40]
		}
		if seen[name] {
			name = fmt.Sprintf("%s%d", name, s.faker.Number(100, 999))
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		users = append(users, name)
	}
	return users
}

// Run seeds opts.NumPosts posts by opts.NumUsers users and a random spread of
// likes, retweets and replies on them.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.NumUsers <= 0 || opts.NumPosts < 0 {
		return nil, fmt.Errorf("invalid options: users=%d posts=%d", opts.NumUsers, opts.NumPosts)
	}
	if opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, err
		}
	}

	users := s.Usernames(opts.NumUsers)
	summary := &Summary{}

	for i := 0; i < opts.NumPosts; i++ {
		author := users[s.faker.Number(0, len(users)-1)]
		post, err := s.posts.CreatePost(ctx, service.CreatePostInput{
			Username: author,
			Content:  s.faker.Sentence(s.faker.Number(4, 20)),
		})
		if err != nil {
			return summary, fmt.Errorf("create post %d: %w", i, err)
		}
		summary.Posts++

		if err := s.interact(ctx, post, users, summary); err != nil {
			return summary, err
		}
	}

	middleware.Logger.Info("seed complete",
		slog.Int("posts", summary.Posts),
		slog.Int("likes", summary.Likes),
		slog.Int("retweets", summary.Retweets),
		slog.Int("replies", summary.Replies),
	)
	return summary, nil
}

func (s *Seeder) interact(ctx context.Context, post *models.Post, users []string, summary *Summary) error {
	for _, user := range users {
		if user == post.Username {
			continue
		}
		if s.faker.Number(1, 100) <= 30 {
			if _, err := s.interactions.ToggleLike(ctx, service.InteractionInput{PostID: post.ID, Username: user}); err != nil {
				return fmt.Errorf("like post %d: %w", post.ID, err)
			}
			summary.Likes++
		}
		if s.faker.Number(1, 100) <= 5 {
			if _, err := s.interactions.ToggleRetweet(ctx, service.InteractionInput{PostID: post.ID, Username: user}); err != nil {
				return fmt.Errorf("retweet post %d: %w", post.ID, err)
			}
			summary.Retweets++
		}
		if s.faker.Number(1, 100) <= 10 {
			if _, err := s.interactions.Reply(ctx, service.ReplyInput{
				ParentID: post.ID,
				Username: user,
				Content:  s.faker.Sentence(s.faker.Number(3, 12)),
			}); err != nil {
				return fmt.Errorf("reply to post %d: %w", post.ID, err)
			}
			summary.Replies++
		}
	}
	return nil
}
