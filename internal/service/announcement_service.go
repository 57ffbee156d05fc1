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

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	SetArchived(ctx context.Context, id string, archived bool) error
	Delete(ctx context.Context, id string) error
}

type groupLabelReader interface {
	GroupLabels(ctx context.Context, kind models.ContentKind, id string) ([]string, error)
}

type viewerLedger interface {
	InsertView(ctx context.Context, kind models.ContentKind, contentID, userID string) (bool, error)
	ViewerFlags(ctx context.Context, kind models.ContentKind, contentID, userID string) (viewed, liked bool, err error)
}

// AnnouncementService orchestrates announcement listing, detail reads and
// the admin CRUD surface.
type AnnouncementService struct {
	repo      announcementRepository
	labels    groupLabelReader
	ledger    viewerLedger
	resolver  *AccessResolver
	metrics   deniedCounter
	validator *validator.Validate
	logger    *zap.Logger
	bounds    PageBounds
}

// NewAnnouncementService constructs the service. metrics may be nil.
func NewAnnouncementService(repo announcementRepository, labels groupLabelReader, ledger viewerLedger, resolver *AccessResolver, metrics deniedCounter, validate *validator.Validate, logger *zap.Logger, bounds PageBounds) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnnouncementService{repo: repo, labels: labels, ledger: ledger, resolver: resolver, metrics: metrics, validator: validate, logger: logger, bounds: bounds}
}

// AnnouncementListRequest describes filters for listing announcements.
type AnnouncementListRequest struct {
	Search          string `json:"search"`
	GroupID         string `json:"group_id"`
	Sort            string `json:"sort"`
	Page            int    `json:"page"`
	PageSize        int    `json:"page_size"`
	IncludeArchived bool   `json:"include_archived"`
	PinnedOnly      bool   `json:"pinned_only"`
}

// CreateAnnouncementRequest describes the admin create payload.
type CreateAnnouncementRequest struct {
	Title        string                   `json:"title" validate:"required,max=200"`
	Body         string                   `json:"body" validate:"required"`
	Visibility   string                   `json:"visibility" validate:"required"`
	TargetGroups []string                 `json:"target_groups"`
	TargetAttrs  []models.TargetAttribute `json:"target_attributes"`
	IsPinned     bool                     `json:"is_pinned"`
	Images       []string                 `json:"images"`
}

// UpdateAnnouncementRequest describes the admin update payload.
type UpdateAnnouncementRequest struct {
	Title        string                   `json:"title" validate:"required,max=200"`
	Body         string                   `json:"body" validate:"required"`
	Visibility   string                   `json:"visibility" validate:"required"`
	TargetGroups []string                 `json:"target_groups"`
	TargetAttrs  []models.TargetAttribute `json:"target_attributes"`
	IsPinned     bool                     `json:"is_pinned"`
	Images       []string                 `json:"images"`
}

// List returns the announcements visible to the caller, paginated. The
// archived filter is honoured only for admins.
func (s *AnnouncementService) List(ctx context.Context, scope models.AccessScope, req AnnouncementListRequest) ([]models.Announcement, *models.Pagination, error) {
	sort, err := normaliseSort(req.Sort)
	if err != nil {
		return nil, nil, err
	}

	filter := models.AnnouncementFilter{
		ContentFilter: models.ContentFilter{
			Search:   req.Search,
			GroupID:  req.GroupID,
			Sort:     sort,
			Page:     req.Page,
			PageSize: req.PageSize,
		},
		Scope:      &scope,
		PinnedOnly: req.PinnedOnly,
	}
	if scope.IsAdmin() {
		filter.IncludeArchived = req.IncludeArchived
	}
	filter.Page, filter.PageSize = s.bounds.normalise(filter.Page, filter.PageSize)

	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	return rows, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one announcement for the caller and records the view. The
// view counter in the response already reflects a first view.
func (s *AnnouncementService) Get(ctx context.Context, scope models.AccessScope, id string) (*models.Announcement, error) {
	announcement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get announcement")
	}

	if announcement.IsArchived && !scope.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
	}
	if announcement.AuthorID != scope.UserID && !s.resolver.CanSee(scope, announcement) {
		if s.metrics != nil {
			s.metrics.IncAccessDenied(string(models.KindAnnouncement))
		}
		s.logger.Info("announcement access denied", zap.String("id", id), zap.String("user_id", scope.UserID))
		return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
	}

	first, err := s.ledger.InsertView(ctx, models.KindAnnouncement, id, scope.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record view")
	}
	if first {
		announcement.ViewsCount++
	}
	announcement.Viewed = true

	_, liked, err := s.ledger.ViewerFlags(ctx, models.KindAnnouncement, id, scope.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load viewer flags")
	}
	announcement.Liked = liked

	if announcement.Visibility == models.VisibilityGroups {
		labels, err := s.labels.GroupLabels(ctx, models.KindAnnouncement, id)
		if err != nil {
			s.logger.Warn("failed to load group labels", zap.String("id", id), zap.Error(err))
		} else {
			announcement.GroupLabels = labels
		}
	}
	return announcement, nil
}

// Create registers a new announcement.
func (s *AnnouncementService) Create(ctx context.Context, authorID string, req CreateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	visibility, groups, attrs, err := normaliseTargeting(req.Visibility, req.TargetGroups, req.TargetAttrs)
	if err != nil {
		return nil, err
	}

	announcement := &models.Announcement{
		AuthorID:     authorID,
		Title:        req.Title,
		Body:         req.Body,
		Visibility:   visibility,
		IsPinned:     req.IsPinned,
		Images:       req.Images,
		TargetGroups: groups,
		TargetAttrs:  attrs,
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}
	return announcement, nil
}

// Update modifies an existing announcement and replaces its target sets.
func (s *AnnouncementService) Update(ctx context.Context, id string, req UpdateAnnouncementRequest) (*models.Announcement, error) {
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
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}

	existing.Title = req.Title
	existing.Body = req.Body
	existing.Visibility = visibility
	existing.IsPinned = req.IsPinned
	existing.Images = req.Images
	existing.TargetGroups = groups
	existing.TargetAttrs = attrs
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}
	return existing, nil
}

// Archive flips the soft-hide flag.
func (s *AnnouncementService) Archive(ctx context.Context, id string, archived bool) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	if err := s.repo.SetArchived(ctx, id, archived); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive announcement")
	}
	return nil
}

// Delete removes an announcement and its engagement ledger.
func (s *AnnouncementService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	return nil
}
