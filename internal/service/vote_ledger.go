package service

import (
	"context"
	"errors"

	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// VoteResult reports the transition applied by a cast and the post's reputation after it.
type VoteResult struct {
	Action     models.VoteAction `json:"action"`
	Vote       *models.Vote      `json:"vote"`
	PostID     uint              `json:"post_id"`
	Reputation int64             `json:"reputation"`
}

// VoteLedger owns the per-(post, voter) vote state.
type VoteLedger struct {
	voteRepo repository.VoteRepository
}

func NewVoteLedger(voteRepo repository.VoteRepository) *VoteLedger {
	return &VoteLedger{voteRepo: voteRepo}
}

// nextVoteAction is the toggle table: repeating a vote removes it, the opposite vote
// switches it and NEUTRAL clears whatever is there.
func nextVoteAction(current *models.Vote, requested models.VoteType) models.VoteAction {
	if current == nil {
		if requested == models.VoteNone {
			return models.VoteUnchanged
		}
		return models.VoteCreated
	}
	if requested == models.VoteNone || current.Type == requested {
		return models.VoteRemoved
	}
	return models.VoteSwitched
}

// CastVote applies one vote request atomically and returns the resulting state.
func (l *VoteLedger) CastVote(ctx context.Context, postID, voterID uint, voteType models.VoteType) (result *VoteResult, err error) {
	ctx, span := observability.StartSpan(ctx, "vote_ledger", "cast_vote",
		attribute.Int("post.id", int(postID)),
		attribute.String("vote.type", voteType.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	if !voteType.Valid() {
		return nil, models.NewValidationError("Vote type must be UPVOTE, DOWNVOTE or NEUTRAL")
	}
	if postID == 0 {
		return nil, models.NewValidationError("Invalid post ID")
	}

	decide := func(current *models.Vote) models.VoteAction {
		return nextVoteAction(current, voteType)
	}

	action, vote, err := l.voteRepo.Apply(ctx, postID, voterID, voteType, decide)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPostNotFound):
			return nil, models.NewNotFoundError("Post", postID)
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, models.NewUnauthorizedError("Voter no longer exists")
		}
		return nil, models.NewInternalError(err)
	}
	observability.VotesCast.WithLabelValues(string(action)).Inc()

	reputation, err := l.voteRepo.Reputation(ctx, postID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	return &VoteResult{
		Action:     action,
		Vote:       vote,
		PostID:     postID,
		Reputation: reputation,
	}, nil
}

// GetVote returns nil, nil when the voter has not voted on the post.
func (l *VoteLedger) GetVote(ctx context.Context, postID, voterID uint) (*models.Vote, error) {
	vote, err := l.voteRepo.Get(ctx, postID, voterID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return vote, nil
}
