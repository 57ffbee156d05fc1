package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/komunitas-api/internal/models"
	appErrors "github.com/noah-isme/komunitas-api/pkg/errors"
)

type contentHeadReader interface {
	Head(ctx context.Context, kind models.ContentKind, id string) (*models.ContentHead, error)
}

type engagementStore interface {
	InsertView(ctx context.Context, kind models.ContentKind, contentID, userID string) (bool, error)
	SetLike(ctx context.Context, kind models.ContentKind, contentID, userID string, want bool) (*models.LikeResult, error)
	InsertComment(ctx context.Context, comment *models.Comment) error
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	ListComments(ctx context.Context, kind models.ContentKind, contentID, viewerID string) ([]models.Comment, error)
	SetCommentLike(ctx context.Context, commentID, userID string, want bool) (*models.LikeResult, error)
}

type deniedCounter interface {
	IncAccessDenied(kind string)
}

// EngagementService records views, likes and comments against content items.
// Every operation re-checks the caller's access before touching the ledger.
type EngagementService struct {
	content   contentHeadReader
	ledger    engagementStore
	resolver  *AccessResolver
	metrics   deniedCounter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEngagementService constructs the service. metrics may be nil.
func NewEngagementService(content contentHeadReader, ledger engagementStore, resolver *AccessResolver, metrics deniedCounter, validate *validator.Validate, logger *zap.Logger) *EngagementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EngagementService{content: content, ledger: ledger, resolver: resolver, metrics: metrics, validator: validate, logger: logger}
}

// AddCommentRequest describes a new comment or reply.
type AddCommentRequest struct {
	Body     string  `json:"body" validate:"required,max=2000"`
	ParentID *string `json:"parent_id"`
}

// authorize loads the item head and applies the moderation gate and the
// visibility check. Audience misses are counted and collapsed into NOT_FOUND
// so callers cannot probe for hidden items.
func (s *EngagementService) authorize(ctx context.Context, scope models.AccessScope, kind models.ContentKind, contentID string) (*models.ContentHead, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown content kind")
	}

	head, err := s.content.Head(ctx, kind, contentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "content not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load content")
	}

	isOwner := head.AuthorID == scope.UserID
	if head.Hidden && !scope.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "content not found")
	}
	if kind == models.KindHelpPost && head.Status != models.StatusApproved && !isOwner && !scope.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "content not found")
	}
	if !isOwner && !s.resolver.CanSee(scope, head) {
		if s.metrics != nil {
			s.metrics.IncAccessDenied(string(kind))
		}
		s.logger.Info("content access denied",
			zap.String("kind", string(kind)),
			zap.String("content_id", contentID),
			zap.String("user_id", scope.UserID))
		return nil, appErrors.Clone(appErrors.ErrNotFound, "content not found")
	}
	return head, nil
}

// RecordView inserts the first-seen ledger row for (item, caller). Repeat
// calls are no-ops; the result reports whether this was the first view.
func (s *EngagementService) RecordView(ctx context.Context, scope models.AccessScope, kind models.ContentKind, contentID string) (bool, error) {
	if _, err := s.authorize(ctx, scope, kind, contentID); err != nil {
		return false, err
	}
	first, err := s.ledger.InsertView(ctx, kind, contentID, scope.UserID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record view")
	}
	return first, nil
}

// ToggleLike sets or clears the caller's like and returns the resulting
// state with the refreshed count.
func (s *EngagementService) ToggleLike(ctx context.Context, scope models.AccessScope, kind models.ContentKind, contentID string, want bool) (*models.LikeResult, error) {
	if _, err := s.authorize(ctx, scope, kind, contentID); err != nil {
		return nil, err
	}
	result, err := s.ledger.SetLike(ctx, kind, contentID, scope.UserID, want)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle like")
	}
	return result, nil
}

// AddComment creates a comment or a single-level reply. A reply's parent
// must belong to the same item and must itself be top-level; deeper nesting
// is rejected before anything is written.
func (s *EngagementService) AddComment(ctx context.Context, scope models.AccessScope, kind models.ContentKind, contentID string, req AddCommentRequest) (*models.Comment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}
	if _, err := s.authorize(ctx, scope, kind, contentID); err != nil {
		return nil, err
	}

	if req.ParentID != nil && *req.ParentID != "" {
		parent, err := s.ledger.GetComment(ctx, *req.ParentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "parent comment not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent comment")
		}
		if parent.ContentKind != kind || parent.ContentID != contentID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "parent comment belongs to a different item")
		}
		if parent.ParentID != nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "replies to replies are not allowed")
		}
	} else {
		req.ParentID = nil
	}

	comment := &models.Comment{
		ContentKind: kind,
		ContentID:   contentID,
		AuthorID:    scope.UserID,
		ParentID:    req.ParentID,
		Body:        req.Body,
	}
	if err := s.ledger.InsertComment(ctx, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create comment")
	}
	return comment, nil
}

// GetThread returns the item's comments as threads: top-level comments in
// the requested direction, replies oldest-first beneath each.
func (s *EngagementService) GetThread(ctx context.Context, scope models.AccessScope, kind models.ContentKind, contentID string, order models.ThreadOrder) ([]models.CommentThread, error) {
	if _, err := s.authorize(ctx, scope, kind, contentID); err != nil {
		return nil, err
	}

	comments, err := s.ledger.ListComments(ctx, kind, contentID, scope.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}

	if !kind.SupportsCommentLikes() {
		for i := range comments {
			comments[i].LikesCount = 0
			comments[i].LikedByViewer = false
		}
	}

	replies := make(map[string][]models.Comment)
	var tops []models.Comment
	for _, c := range comments {
		if c.ParentID != nil {
			replies[*c.ParentID] = append(replies[*c.ParentID], c)
			continue
		}
		tops = append(tops, c)
	}

	// ListComments returns oldest-first; flip top-level for the default view.
	if order != models.ThreadOldestFirst {
		for i, j := 0, len(tops)-1; i < j; i, j = i+1, j-1 {
			tops[i], tops[j] = tops[j], tops[i]
		}
	}

	threads := make([]models.CommentThread, 0, len(tops))
	for _, top := range tops {
		thread := models.CommentThread{Comment: top, Replies: replies[top.ID]}
		if thread.Replies == nil {
			thread.Replies = []models.Comment{}
		}
		threads = append(threads, thread)
	}
	return threads, nil
}

// ToggleCommentLike sets or clears a like on a comment. Only content kinds
// with comment likes accept this.
func (s *EngagementService) ToggleCommentLike(ctx context.Context, scope models.AccessScope, commentID string, want bool) (*models.LikeResult, error) {
	comment, err := s.ledger.GetComment(ctx, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "comment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comment")
	}
	if !comment.ContentKind.SupportsCommentLikes() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "comments on this content do not support likes")
	}
	if _, err := s.authorize(ctx, scope, comment.ContentKind, comment.ContentID); err != nil {
		return nil, err
	}

	result, err := s.ledger.SetCommentLike(ctx, commentID, scope.UserID, want)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle comment like")
	}
	return result, nil
}
