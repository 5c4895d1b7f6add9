// Package notifications delivers realtime events to websocket clients.
package notifications

import (
	"time"

	"agora/internal/models"
)

// Event types streamed on /api/ws.
const (
	EventPostCreated           = "post_created"
	EventPostDeleted           = "post_deleted"
	EventPostReputationUpdated = "post_reputation_updated"
	EventCommentCreated        = "comment_created"
)

// Event is the envelope written to every client.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// PostDeletedPayload identifies a removed post.
type PostDeletedPayload struct {
	PostID    uint      `json:"post_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// ReputationPayload is sent after every vote that changed a post's score.
type ReputationPayload struct {
	PostID     uint              `json:"post_id"`
	Reputation int64             `json:"reputation"`
	Action     models.VoteAction `json:"action"`
}

func PostCreated(view *models.PostView) Event {
	return Event{Type: EventPostCreated, Payload: view}
}

func PostDeleted(postID uint) Event {
	return Event{Type: EventPostDeleted, Payload: PostDeletedPayload{PostID: postID, DeletedAt: time.Now().UTC()}}
}

func ReputationUpdated(postID uint, reputation int64, action models.VoteAction) Event {
	return Event{Type: EventPostReputationUpdated, Payload: ReputationPayload{PostID: postID, Reputation: reputation, Action: action}}
}

func CommentCreated(comment *models.CommentView) Event {
	return Event{Type: EventCommentCreated, Payload: comment}
}
