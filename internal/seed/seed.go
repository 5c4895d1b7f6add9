package seed

import (
	"context"
	"fmt"
	"log"
	"time"

	"agora/internal/database"
	"agora/internal/models"
	"agora/internal/repository"
	"agora/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Summary counts what a run created.
type Summary struct {
	Users    int
	Threads  int
	Replies  int
	Votes    int
	Comments int
	Follows  int
}

// Seeder writes through the same repositories and ledger the API uses, so seeded
// data obeys the same rules as real traffic.
type Seeder struct {
	db       *gorm.DB
	plan     Plan
	faker    *gofakeit.Faker
	hashCost int
	now      func() time.Time

	users    repository.UserRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	follows  repository.FollowRepository
	ledger   *service.VoteLedger
}

// NewSeeder builds a seeder. A zero seed picks a random one.
func NewSeeder(db *gorm.DB, plan Plan, seed int64) *Seeder {
	return &Seeder{
		db:       db,
		plan:     plan,
		faker:    gofakeit.New(seed),
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
		users:    repository.NewUserRepository(db),
		posts:    repository.NewPostRepository(db),
		comments: repository.NewCommentRepository(db),
		follows:  repository.NewFollowRepository(db),
		ledger:   service.NewVoteLedger(repository.NewVoteRepository(db)),
	}
}

// ClearAll deletes every row, dependents first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	tables := database.PersistentModels()
	for i := len(tables) - 1; i >= 0; i-- {
		if err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(tables[i]).Error; err != nil {
			return fmt.Errorf("clear %T: %w", tables[i], err)
		}
	}
	return nil
}

// Run executes the plan.
func (s *Seeder) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	if s.plan.Clean {
		if err := s.ClearAll(ctx); err != nil {
			return sum, err
		}
	}

	users, err := s.seedUsers(ctx)
	if err != nil {
		return sum, err
	}
	sum.Users = len(users)
	log.Printf("seed: %d users", sum.Users)

	if sum.Follows, err = s.seedFollows(ctx, users); err != nil {
		return sum, err
	}

	threads, err := s.seedThreads(ctx, users)
	if err != nil {
		return sum, err
	}
	sum.Threads = len(threads)

	replies, err := s.seedReplies(ctx, users, threads)
	if err != nil {
		return sum, err
	}
	sum.Replies = len(replies)
	log.Printf("seed: %d threads, %d replies", sum.Threads, sum.Replies)

	for _, post := range append(threads, replies...) {
		n, err := s.seedVotes(ctx, users, post)
		if err != nil {
			return sum, err
		}
		sum.Votes += n

		n, err = s.seedComments(ctx, users, post)
		if err != nil {
			return sum, err
		}
		sum.Comments += n
	}
	log.Printf("seed: %d votes, %d comments", sum.Votes, sum.Comments)

	return sum, nil
}

func (s *Seeder) seedUsers(ctx context.Context) ([]*models.User, error) {
	// one hash for everyone keeps large plans fast
	hash, err := bcrypt.GenerateFromPassword([]byte(s.plan.Password), s.hashCost)
	if err != nil {
		return nil, err
	}

	runID := s.now().Unix() % 100000
	users := make([]*models.User, 0, s.plan.Users)
	for i := range s.plan.Users {
		base := service.NormalizeUsername(s.faker.Username())
		if base == "" {
			base = "user"
		}
		username := fmt.Sprintf("%s%d_%d", truncate(base, 16), runID, i)
		user := &models.User{
			FullName: s.faker.Name(),
			Username: username,
			Email:    username + "@example.com",
			Password: string(hash),
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("create user %s: %w", username, err)
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Seeder) seedFollows(ctx context.Context, users []*models.User) (int, error) {
	count := 0
	for i, follower := range users {
		for k := 1; k <= min(s.plan.FollowsPerUser, len(users)-1); k++ {
			target := users[(i+k)%len(users)]
			if err := s.follows.Follow(ctx, follower.ID, target.ID); err != nil {
				return count, fmt.Errorf("follow: %w", err)
			}
			count++
		}
	}
	return count, nil
}

func (s *Seeder) seedThreads(ctx context.Context, users []*models.User) ([]*models.Post, error) {
	threads := make([]*models.Post, 0, len(users)*s.plan.PostsPerUser)
	for _, author := range users {
		for range s.plan.PostsPerUser {
			created := s.randomTime()
			post := &models.Post{
				UserID:    author.ID,
				Content:   s.faker.Paragraph(1, 2, 12, "\n"),
				CreatedAt: created,
				UpdatedAt: created,
			}
			if err := s.posts.Create(ctx, post, nil); err != nil {
				return nil, fmt.Errorf("create thread: %w", err)
			}
			threads = append(threads, post)
		}
	}
	return threads, nil
}

func (s *Seeder) seedReplies(ctx context.Context, users []*models.User, threads []*models.Post) ([]*models.Post, error) {
	replies := make([]*models.Post, 0, len(threads)*s.plan.RepliesPerPost)
	for _, thread := range threads {
		for range s.plan.RepliesPerPost {
			created := s.after(thread.CreatedAt)
			threadID := thread.ID
			reply := &models.Post{
				UserID:    s.pick(users).ID,
				Content:   s.faker.Sentence(s.faker.Number(4, 16)),
				ThreadID:  &threadID,
				CreatedAt: created,
				UpdatedAt: created,
			}
			if err := s.posts.Create(ctx, reply, nil); err != nil {
				return nil, fmt.Errorf("create reply: %w", err)
			}
			replies = append(replies, reply)
		}
	}
	return replies, nil
}

// seedVotes casts up to VotesPerPost votes from distinct users.
func (s *Seeder) seedVotes(ctx context.Context, users []*models.User, post *models.Post) (int, error) {
	n := min(s.plan.VotesPerPost, len(users))
	start := s.faker.Number(0, len(users)-1)
	for k := range n {
		voter := users[(start+k)%len(users)]
		voteType := models.VoteUp
		// roughly one vote in four is a downvote
		if s.faker.Number(1, 4) == 1 {
			voteType = models.VoteDown
		}
		if _, err := s.ledger.CastVote(ctx, post.ID, voter.ID, voteType); err != nil {
			return k, fmt.Errorf("vote on post %d: %w", post.ID, err)
		}
	}
	return n, nil
}

func (s *Seeder) seedComments(ctx context.Context, users []*models.User, post *models.Post) (int, error) {
	for k := range s.plan.CommentsPerPost {
		created := s.after(post.CreatedAt)
		comment := &models.Comment{
			UserID:    s.pick(users).ID,
			PostID:    post.ID,
			Content:   truncate(s.faker.Sentence(s.faker.Number(3, 12)), service.MaxCommentLen),
			CreatedAt: created,
			UpdatedAt: created,
		}
		if err := s.comments.Create(ctx, comment); err != nil {
			return k, fmt.Errorf("comment on post %d: %w", post.ID, err)
		}
	}
	return s.plan.CommentsPerPost, nil
}

func (s *Seeder) pick(users []*models.User) *models.User {
	return users[s.faker.Number(0, len(users)-1)]
}

// randomTime is a moment within the last MaxDays days.
func (s *Seeder) randomTime() time.Time {
	minutes := s.faker.Number(0, s.plan.MaxDays*24*60)
	return s.now().Add(-time.Duration(minutes) * time.Minute).UTC()
}

// after is a moment between t and now.
func (s *Seeder) after(t time.Time) time.Time {
	span := s.now().Sub(t)
	if span <= time.Minute {
		return t
	}
	return t.Add(time.Duration(s.faker.Number(1, int(span/time.Minute))) * time.Minute).UTC()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
