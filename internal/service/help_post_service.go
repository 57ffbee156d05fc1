package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/komunitas-api/internal/models"
	appErrors "github.com/noah-isme/komunitas-api/pkg/errors"
)

type helpPostRepository interface {
	List(ctx context.Context, filter models.HelpPostFilter) ([]models.HelpPost, int, error)
	GetByID(ctx context.Context, id string) (*models.HelpPost, error)
	Create(ctx context.Context, post *models.HelpPost) error
	Update(ctx context.Context, post *models.HelpPost) error
	Moderate(ctx context.Context, id string, status models.ModerationStatus, note *string, moderatorID string) error
	SetPinned(ctx context.Context, id string, pinned bool) error
	Delete(ctx context.Context, id string) error
}

// HelpPostService orchestrates member-submitted help posts: creation, the
// moderation workflow and the gated query surface.
type HelpPostService struct {
	repo      helpPostRepository
	labels    groupLabelReader
	ledger    viewerLedger
	resolver  *AccessResolver
	metrics   deniedCounter
	validator *validator.Validate
	logger    *zap.Logger
	bounds    PageBounds
}

// NewHelpPostService constructs the service. metrics may be nil.
func NewHelpPostService(repo helpPostRepository, labels groupLabelReader, ledger viewerLedger, resolver *AccessResolver, metrics deniedCounter, validate *validator.Validate, logger *zap.Logger, bounds PageBounds) *HelpPostService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HelpPostService{repo: repo, labels: labels, ledger: ledger, resolver: resolver, metrics: metrics, validator: validate, logger: logger, bounds: bounds}
}

// HelpPostListRequest describes filters for listing help posts.
type HelpPostListRequest struct {
	Search   string `json:"search"`
	GroupID  string `json:"group_id"`
	Category string `json:"category"`
	Sort     string `json:"sort"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	// Mine restricts the listing to the caller's own posts, any status.
	Mine bool `json:"mine"`
	// Status is honoured only for admins (moderation queues) and for the
	// caller's own posts.
	Status string `json:"status"`
}

// CreateHelpPostRequest describes the member create payload.
type CreateHelpPostRequest struct {
	Title        string                   `json:"title" validate:"required,max=200"`
	Body         string                   `json:"body" validate:"required"`
	Category     string                   `json:"category" validate:"required,max=100"`
	Visibility   string                   `json:"visibility" validate:"required"`
	TargetGroups []string                 `json:"target_groups"`
	TargetAttrs  []models.TargetAttribute `json:"target_attributes"`
	Images       []string                 `json:"images"`
}

// UpdateHelpPostRequest describes the author edit payload.
type UpdateHelpPostRequest struct {
	Title        string                   `json:"title" validate:"required,max=200"`
	Body         string                   `json:"body" validate:"required"`
	Category     string                   `json:"category" validate:"required,max=100"`
	Visibility   string                   `json:"visibility" validate:"required"`
	TargetGroups []string                 `json:"target_groups"`
	TargetAttrs  []models.TargetAttribute `json:"target_attributes"`
	Images       []string                 `json:"images"`
}

// ModerateHelpPostRequest describes the admin decision payload.
type ModerateHelpPostRequest struct {
	Status string  `json:"status" validate:"required"`
	Note   *string `json:"note"`
}

// List returns help posts for one of three views: the public feed (approved
// posts, audience-filtered), the caller's own posts (any status), or the
// admin queue (status filter honoured, targeting bypassed).
func (s *HelpPostService) List(ctx context.Context, scope models.AccessScope, req HelpPostListRequest) ([]models.HelpPost, *models.Pagination, error) {
	sort, err := normaliseSort(req.Sort)
	if err != nil {
		return nil, nil, err
	}

	filter := models.HelpPostFilter{
		ContentFilter: models.ContentFilter{
			Search:   req.Search,
			GroupID:  req.GroupID,
			Sort:     sort,
			Page:     req.Page,
			PageSize: req.PageSize,
		},
		Scope:    &scope,
		Category: req.Category,
	}

	requested, err := parseStatusFilter(req.Status)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case req.Mine:
		filter.AuthorID = scope.UserID
		filter.Status = requested
		filter.Scope = nil
	case scope.IsAdmin():
		filter.Status = requested
	default:
		// Public feed: the moderation gate pins the status regardless of
		// what the caller asked for.
		approved := models.StatusApproved
		filter.Status = &approved
	}

	filter.Page, filter.PageSize = s.bounds.normalise(filter.Page, filter.PageSize)

	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list help posts")
	}
	return rows, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

func parseStatusFilter(raw string) (*models.ModerationStatus, error) {
	if raw == "" {
		return nil, nil
	}
	status := models.ModerationStatus(strings.ToUpper(raw))
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be PENDING, APPROVED or REJECTED")
	}
	return &status, nil
}

// Get returns one help post for the caller and records the view. Pending and
// rejected posts exist only for their author and admins; everyone else gets
// the not-found collapse.
func (s *HelpPostService) Get(ctx context.Context, scope models.AccessScope, id string) (*models.HelpPost, error) {
	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "help post not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get help post")
	}

	isOwner := post.AuthorID == scope.UserID
	if post.Status != models.StatusApproved && !isOwner && !scope.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "help post not found")
	}
	if !isOwner && !s.resolver.CanSee(scope, post) {
		if s.metrics != nil {
			s.metrics.IncAccessDenied(string(models.KindHelpPost))
		}
		s.logger.Info("help post access denied", zap.String("id", id), zap.String("user_id", scope.UserID))
		return nil, appErrors.Clone(appErrors.ErrNotFound, "help post not found")
	}

	first, err := s.ledger.InsertView(ctx, models.KindHelpPost, id, scope.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record view")
	}
	if first {
		post.ViewsCount++
	}
	post.Viewed = true

	_, liked, err := s.ledger.ViewerFlags(ctx, models.KindHelpPost, id, scope.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load viewer flags")
	}
	post.Liked = liked

	if post.Visibility == models.VisibilityGroups {
		labels, err := s.labels.GroupLabels(ctx, models.KindHelpPost, id)
		if err != nil {
			s.logger.Warn("failed to load group labels", zap.String("id", id), zap.Error(err))
		} else {
			post.GroupLabels = labels
		}
	}
	return post, nil
}

// Create submits a new help post. It always enters the workflow as PENDING.
func (s *HelpPostService) Create(ctx context.Context, scope models.AccessScope, req CreateHelpPostRequest) (*models.HelpPost, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	visibility, groups, attrs, err := normaliseTargeting(req.Visibility, req.TargetGroups, req.TargetAttrs)
	if err != nil {
		return nil, err
	}

	post := &models.HelpPost{
		AuthorID:     scope.UserID,
		Title:        req.Title,
		Body:         req.Body,
		Category:     req.Category,
		Visibility:   visibility,
		Images:       req.Images,
		TargetGroups: groups,
		TargetAttrs:  attrs,
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create help post")
	}
	return post, nil
}

// Update lets the author edit a post while it is PENDING or APPROVED.
// Editing does not reset the moderation state; a REJECTED post cannot be
// edited, only resubmitted as a new post.
func (s *HelpPostService) Update(ctx context.Context, scope models.AccessScope, id string, req UpdateHelpPostRequest) (*models.HelpPost, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	visibility, groups, attrs, err := normaliseTargeting(req.Visibility, req.TargetGroups, req.TargetAttrs)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "help post not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load help post")
	}

	if existing.AuthorID != scope.UserID && !scope.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "help post not found")
	}
	if existing.Status == models.StatusRejected {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "rejected posts cannot be edited")
	}

	existing.Title = req.Title
	existing.Body = req.Body
	existing.Category = req.Category
	existing.Visibility = visibility
	existing.Images = req.Images
	existing.TargetGroups = groups
	existing.TargetAttrs = attrs
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update help post")
	}
	return existing, nil
}

// Moderate applies an admin decision. APPROVED and REJECTED may be flipped
// back and forth; PENDING is only ever the initial state.
func (s *HelpPostService) Moderate(ctx context.Context, moderatorID, id string, req ModerateHelpPostRequest) (*models.HelpPost, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	status := models.ModerationStatus(strings.ToUpper(req.Status))
	if status != models.StatusApproved && status != models.StatusRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be APPROVED or REJECTED")
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "help post not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load help post")
	}

	if err := s.repo.Moderate(ctx, id, status, req.Note, moderatorID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to moderate help post")
	}

	s.logger.Info("help post moderated",
		zap.String("id", id),
		zap.String("from", string(existing.Status)),
		zap.String("to", string(status)),
		zap.String("moderator_id", moderatorID))

	return s.repo.GetByID(ctx, id)
}

// SetPinned pins or unpins an approved post. Pinning any other state is an
// invalid transition.
func (s *HelpPostService) SetPinned(ctx context.Context, id string, pinned bool) (*models.HelpPost, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "help post not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load help post")
	}
	if existing.Status != models.StatusApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only approved posts can be pinned")
	}
	if err := s.repo.SetPinned(ctx, id, pinned); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to pin help post")
	}
	existing.IsPinned = pinned
	return existing, nil
}

// Delete removes a post. Authors may delete their own posts; admins any.
func (s *HelpPostService) Delete(ctx context.Context, scope models.AccessScope, id string) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "help post not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load help post")
	}
	if existing.AuthorID != scope.UserID && !scope.IsAdmin() {
		return appErrors.Clone(appErrors.ErrNotFound, "help post not found")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete help post")
	}
	return nil
}
