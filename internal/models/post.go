package models

import "time"

// Post is either a thread (ThreadID nil) or a reply to one.
// Replies cannot themselves be replied to.
type Post struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Content  string `gorm:"type:text;not null" json:"content"`
	UserID   uint   `gorm:"not null;index" json:"user_id"`
	User     User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	ThreadID *uint  `gorm:"index" json:"thread_id,omitempty"`
	Thread   *Post  `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"-"`

	// Reputation is not persisted; computed at query time as upvotes minus downvotes
	Reputation int64 `gorm:"->" json:"reputation"`
	// ReplyCount is not persisted; always zero for replies
	ReplyCount int64 `gorm:"->" json:"reply_count"`
	// MyVote is the requesting user's vote on this post (computed)
	MyVote VoteType `gorm:"->" json:"my_vote"`

	// Media is attached in a batch after the post query
	Media []Media `gorm:"-" json:"media"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsReply reports whether p belongs to a thread.
func (p *Post) IsReply() bool {
	return p.ThreadID != nil
}

// PostView is the denormalized representation returned by every post read.
type PostView struct {
	ID          uint        `json:"id"`
	Content     string      `json:"content"`
	ContentHTML string      `json:"content_html"`
	ThreadID    *uint       `json:"thread_id,omitempty"`
	Author      UserSummary `json:"author"`
	Reputation  int64       `json:"reputation"`
	ReplyCount  int64       `json:"reply_count"`
	Media       []MediaView `json:"media"`
	MyVote      *VoteType   `json:"my_vote,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
