package repository

import (
	"context"
	"errors"

	"agora/internal/models"
	"agora/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoteDecider picks the transition for the vote currently stored for a (post, voter)
// pair; current is nil when the voter has not voted.
type VoteDecider func(current *models.Vote) models.VoteAction

// VoteRepository defines the interface for vote data operations
type VoteRepository interface {
	Get(ctx context.Context, postID, userID uint) (*models.Vote, error)
	Apply(ctx context.Context, postID, userID uint, requested models.VoteType, decide VoteDecider) (models.VoteAction, *models.Vote, error)
	Reputation(ctx context.Context, postID uint) (int64, error)
}

type voteRepository struct {
	db *gorm.DB
}

// NewVoteRepository creates a new vote repository
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

// Get returns nil, nil when the user has not voted on the post.
func (r *voteRepository) Get(ctx context.Context, postID, userID uint) (*models.Vote, error) {
	var vote models.Vote
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Take(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

// Apply reads the current vote under a row lock, asks decide for the transition and
// performs at most one write, all in one transaction. A first vote that loses an
// insert race to a concurrent request is retried once, and the retry sees the winner's row.
// The returned vote is the row written, or the row deleted for VoteRemoved.
func (r *voteRepository) Apply(ctx context.Context, postID, userID uint, requested models.VoteType, decide VoteDecider) (models.VoteAction, *models.Vote, error) {
	action, vote, err := r.applyOnce(ctx, postID, userID, requested, decide)
	if err != nil && IsUniqueViolation(err) {
		observability.VoteRetries.Inc()
		action, vote, err = r.applyOnce(ctx, postID, userID, requested, decide)
	}
	return action, vote, err
}

func (r *voteRepository) applyOnce(ctx context.Context, postID, userID uint, requested models.VoteType, decide VoteDecider) (models.VoteAction, *models.Vote, error) {
	var (
		action models.VoteAction
		result *models.Vote
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := r.lockCurrent(tx, postID, userID)
		if err != nil {
			return err
		}

		action = decide(current)
		switch action {
		case models.VoteCreated:
			vote := &models.Vote{PostID: postID, UserID: userID, Type: requested}
			if err := tx.Omit(clause.Associations).Create(vote).Error; err != nil {
				return translateVoteInsertError(err)
			}
			result = vote
		case models.VoteSwitched:
			if err := tx.Model(current).Update("type", requested).Error; err != nil {
				return err
			}
			current.Type = requested
			result = current
		case models.VoteRemoved:
			if err := tx.Delete(current).Error; err != nil {
				return err
			}
			result = current
		case models.VoteUnchanged:
			result = current
		default:
			return errors.New("unknown vote action " + string(action))
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return action, result, nil
}

func (r *voteRepository) lockCurrent(tx *gorm.DB, postID, userID uint) (*models.Vote, error) {
	q := tx.Where("post_id = ? AND user_id = ?", postID, userID)
	// SQLite serializes writers itself and has no FOR UPDATE
	if isPostgres(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var vote models.Vote
	err := q.Take(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

func translateVoteInsertError(err error) error {
	if !IsForeignKeyViolation(err) {
		return err
	}
	if containsUser(violatedConstraint(err)) {
		return ErrUserNotFound
	}
	return ErrPostNotFound
}

// Reputation is upvotes minus downvotes, computed from the vote rows.
func (r *voteRepository) Reputation(ctx context.Context, postID uint) (int64, error) {
	var reputation int64
	err := r.db.WithContext(ctx).
		Model(&models.Vote{}).
		Select("COALESCE(SUM(type), 0)").
		Where("post_id = ?", postID).
		Scan(&reputation).Error
	return reputation, err
}
