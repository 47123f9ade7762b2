// Package seed fills a database with demo data. Posts, comments and votes
// go through the ledger so counters and XP are as consistent as real traffic
// would leave them.
package seed

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"hushfeed/internal/ledger"
	"hushfeed/internal/models"
	"hushfeed/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

var topics = []string{"night", "work", "love", "family", "money", "school", "confession", "dreams"}

// Options sizes a seeding run.
type Options struct {
	Users           int
	Posts           int
	MaxComments     int
	VoteProbability float64
	DownvoteShare   float64
	// Seed fixes the generated content; 0 picks a random one.
	Seed int64
}

// DefaultOptions is a small but lively demo feed.
func DefaultOptions() Options {
	return Options{Users: 25, Posts: 60, MaxComments: 4, VoteProbability: 0.3, DownvoteShare: 0.25}
}

// Summary counts what a run created.
type Summary struct {
	Users    int
	Posts    int
	Comments int
	Votes    int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d users, %d posts, %d comments, %d votes", s.Users, s.Posts, s.Comments, s.Votes)
}

// Seeder generates content with gofakeit and commits it through the ledger.
type Seeder struct {
	users  repository.UserRepository
	ledger *ledger.Ledger
	faker  *gofakeit.Faker
	opts   Options
}

func NewSeeder(db *gorm.DB, l *ledger.Ledger, opts Options) *Seeder {
	return &Seeder{
		users:  repository.NewUserRepository(db),
		ledger: l,
		faker:  gofakeit.New(opts.Seed),
		opts:   opts,
	}
}

// Run creates users, then posts with comments, then votes.
func (s *Seeder) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	users := make([]uint, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		u := &models.User{Handle: fmt.Sprintf("%s%d", strings.ToLower(s.faker.Username()), i)}
		if err := s.users.Create(ctx, u); err != nil {
			return sum, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u.ID)
		sum.Users++
	}
	if len(users) == 0 {
		return sum, nil
	}

	refs := make([]models.ItemRef, 0, s.opts.Posts)
	for i := 0; i < s.opts.Posts; i++ {
		author := users[s.faker.IntRange(0, len(users)-1)]
		post, err := s.ledger.CreatePost(ctx, author, ledger.PostInput{
			Topic:   s.faker.RandomString(topics),
			Content: clip(s.faker.Sentence(s.faker.IntRange(6, 30)), ledger.MaxPostLength),
		})
		if err != nil {
			return sum, fmt.Errorf("create post: %w", err)
		}
		refs = append(refs, post.Post.Ref())
		sum.Posts++

		for j := s.faker.IntRange(0, s.opts.MaxComments); j > 0; j-- {
			commenter := users[s.faker.IntRange(0, len(users)-1)]
			comment, err := s.ledger.CreateComment(ctx, commenter, post.Post.ID,
				clip(s.faker.Sentence(s.faker.IntRange(3, 15)), ledger.MaxCommentLength))
			if err != nil {
				return sum, fmt.Errorf("create comment: %w", err)
			}
			refs = append(refs, comment.Comment.Ref())
			sum.Comments++
		}
	}

	for _, voter := range users {
		for _, ref := range refs {
			if s.faker.Float64() >= s.opts.VoteProbability {
				continue
			}
			dir := models.VoteUp
			if s.faker.Float64() < s.opts.DownvoteShare {
				dir = models.VoteDown
			}
			if _, err := s.ledger.SetVote(ctx, voter, ref, dir); err != nil {
				return sum, fmt.Errorf("vote on %s: %w", ref, err)
			}
			sum.Votes++
		}
	}
	return sum, nil
}

// ClearAll removes every ledger-owned row, children first.
func ClearAll(db *gorm.DB) error {
	tx := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, m := range []interface{}{&models.XPEvent{}, &models.Vote{}, &models.Comment{}, &models.Post{}, &models.User{}} {
		if err := tx.Delete(m).Error; err != nil {
			return fmt.Errorf("clear %T: %w", m, err)
		}
	}
	return nil
}

func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
