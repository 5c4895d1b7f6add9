package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// VoteType is the state of one user's vote on one post.
// VoteNone is never stored; it is the absence of a row.
type VoteType int8

const (
	VoteDown VoteType = -1
	VoteNone VoteType = 0
	VoteUp   VoteType = 1
)

func (v VoteType) String() string {
	switch v {
	case VoteUp:
		return "UPVOTE"
	case VoteDown:
		return "DOWNVOTE"
	case VoteNone:
		return "NEUTRAL"
	}
	return fmt.Sprintf("VoteType(%d)", int8(v))
}

// Valid reports whether v is one of the three known states.
func (v VoteType) Valid() bool {
	return v == VoteUp || v == VoteDown || v == VoteNone
}

// ParseVoteType accepts the wire names and their short aliases.
func ParseVoteType(s string) (VoteType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UPVOTE", "UP", "1":
		return VoteUp, nil
	case "DOWNVOTE", "DOWN", "-1":
		return VoteDown, nil
	case "NEUTRAL", "NONE", "0":
		return VoteNone, nil
	}
	return VoteNone, fmt.Errorf("unknown vote type %q", s)
}

func (v VoteType) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON accepts either a vote name or one of the integers 1, -1, 0.
func (v *VoteType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		parsed, err := ParseVoteType(name)
		if err != nil {
			return err
		}
		*v = parsed
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("vote type must be a string or integer: %w", err)
	}
	if n < -1 || n > 1 {
		return fmt.Errorf("unknown vote type %d", n)
	}
	*v = VoteType(n)
	return nil
}

// Vote is a user's up or down vote on a post.
// The combination of PostID and UserID must be unique.
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_vote_post_user" json:"post_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_vote_post_user;index" json:"user_id"`
	Type      VoteType  `gorm:"type:smallint;not null" json:"type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Post *Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// VoteAction is the transition the ledger applied for one cast.
type VoteAction string

const (
	VoteCreated   VoteAction = "created"
	VoteSwitched  VoteAction = "switched"
	VoteRemoved   VoteAction = "removed"
	VoteUnchanged VoteAction = "unchanged"
)
