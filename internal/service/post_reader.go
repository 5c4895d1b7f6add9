package service

import (
	"context"
	"errors"
	"strings"

	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const (
	DefaultPage         = 1
	DefaultFeedLimit    = 100
	DefaultProfileLimit = 10
	DefaultRepliesLimit = 100
	MaxPageSize         = 100
)

var (
	FeedSort    = repository.PostSort{Field: repository.SortByCreatedAt, Desc: true}
	RepliesSort = repository.PostSort{Field: repository.SortByReputation, Desc: false}
)

// ListPostsInput is one page request. Empty SortBy/SortDir fall back to the
// listing's default ordering.
type ListPostsInput struct {
	Page     int
	PageSize int
	SortBy   string
	SortDir  string
	ViewerID uint
}

// PostReader composes denormalized post views.
type PostReader struct {
	postRepo  repository.PostRepository
	mediaRepo repository.MediaRepository
}

func NewPostReader(postRepo repository.PostRepository, mediaRepo repository.MediaRepository) *PostReader {
	return &PostReader{postRepo: postRepo, mediaRepo: mediaRepo}
}

// GetFullPost returns the aggregated view of one post.
func (r *PostReader) GetFullPost(ctx context.Context, postID, viewerID uint) (view *models.PostView, err error) {
	ctx, span := observability.StartSpan(ctx, "post_reader", "get_full_post", attribute.Int("post.id", int(postID)))
	defer func() { observability.EndSpan(span, err) }()
	observability.PostReads.WithLabelValues("single").Inc()

	post, err := r.postRepo.GetByID(ctx, postID, viewerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", postID)
		}
		return nil, models.NewInternalError(err)
	}

	views, err := r.compose(ctx, []*models.Post{post}, viewerID)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// GetPosts lists every post, threads and replies alike.
func (r *PostReader) GetPosts(ctx context.Context, in ListPostsInput) ([]*models.PostView, error) {
	return r.list(ctx, "feed", repository.PostQuery{}, in, FeedSort)
}

// GetPostsByAuthor lists the posts written by authorID.
func (r *PostReader) GetPostsByAuthor(ctx context.Context, authorID uint, in ListPostsInput) ([]*models.PostView, error) {
	if authorID == 0 {
		return nil, models.NewValidationError("userId is required")
	}
	return r.list(ctx, "author", repository.PostQuery{AuthorID: authorID}, in, FeedSort)
}

// GetReplies lists the replies of a thread, least reputable first unless told otherwise.
func (r *PostReader) GetReplies(ctx context.Context, threadID uint, in ListPostsInput) ([]*models.PostView, error) {
	if threadID == 0 {
		return nil, models.NewValidationError("Invalid post ID")
	}
	return r.list(ctx, "replies", repository.PostQuery{ThreadID: threadID}, in, RepliesSort)
}

func (r *PostReader) list(ctx context.Context, kind string, q repository.PostQuery, in ListPostsInput, fallback repository.PostSort) (views []*models.PostView, err error) {
	ctx, span := observability.StartSpan(ctx, "post_reader", "list_"+kind,
		attribute.Int("page", in.Page),
		attribute.Int("page_size", in.PageSize),
	)
	defer func() { observability.EndSpan(span, err) }()
	observability.PostReads.WithLabelValues(kind).Inc()

	if in.Page < 1 {
		return nil, models.NewValidationError("page must be at least 1")
	}
	if in.PageSize < 1 || in.PageSize > MaxPageSize {
		return nil, models.NewValidationError("limit must be between 1 and 100")
	}
	sort, err := ParsePostSort(in.SortBy, in.SortDir, fallback)
	if err != nil {
		return nil, err
	}

	q.ViewerID = in.ViewerID
	q.Sort = sort
	q.Limit = in.PageSize
	q.Offset = (in.Page - 1) * in.PageSize

	posts, err := r.postRepo.List(ctx, q)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return r.compose(ctx, posts, in.ViewerID)
}

// ParsePostSort maps query-string sort parameters onto the allow-list. Anything
// outside it is rejected rather than passed to SQL.
func ParsePostSort(sortBy, sortDir string, fallback repository.PostSort) (repository.PostSort, error) {
	sort := fallback

	switch strings.ToLower(strings.TrimSpace(sortBy)) {
	case "":
	case "created_at", "createdat":
		sort.Field = repository.SortByCreatedAt
	case "reputation":
		sort.Field = repository.SortByReputation
	case "reply_count", "replycount":
		sort.Field = repository.SortByReplyCount
	default:
		return sort, models.NewValidationError("sortBy must be one of created_at, reputation, reply_count")
	}

	switch strings.ToLower(strings.TrimSpace(sortDir)) {
	case "":
	case "asc":
		sort.Desc = false
	case "desc":
		sort.Desc = true
	default:
		return sort, models.NewValidationError("sortDir must be asc or desc")
	}
	return sort, nil
}

// compose attaches media for the whole page in one query and builds the views.
func (r *PostReader) compose(ctx context.Context, posts []*models.Post, viewerID uint) ([]*models.PostView, error) {
	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}

	mediaByPost, err := r.mediaRepo.ListByPostIDs(ctx, ids)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	views := make([]*models.PostView, 0, len(posts))
	for _, p := range posts {
		p.Media = mediaByPost[p.ID]
		views = append(views, buildPostView(p, viewerID))
	}
	return views, nil
}

func buildPostView(p *models.Post, viewerID uint) *models.PostView {
	view := &models.PostView{
		ID:          p.ID,
		Content:     p.Content,
		ContentHTML: renderContent(p.Content),
		ThreadID:    p.ThreadID,
		Author:      p.User.Summary(),
		Reputation:  p.Reputation,
		ReplyCount:  p.ReplyCount,
		Media:       distinctMedia(p.Media),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.IsReply() {
		view.ReplyCount = 0
	}
	if viewerID != 0 {
		myVote := p.MyVote
		view.MyVote = &myVote
	}
	return view
}

func distinctMedia(media []models.Media) []models.MediaView {
	out := make([]models.MediaView, 0, len(media))
	seen := make(map[models.MediaView]struct{}, len(media))
	for _, m := range media {
		v := m.View()
		key := models.MediaView{Name: v.Name, URL: v.URL, MimeType: v.MimeType}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
