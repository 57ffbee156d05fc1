package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/komunitas-api/internal/models"
	appErrors "github.com/noah-isme/komunitas-api/pkg/errors"
)

type eventRepository interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error)
	GetByID(ctx context.Context, id string) (*models.Event, error)
	Create(ctx context.Context, event *models.Event) error
	Update(ctx context.Context, event *models.Event) error
	SetCancelled(ctx context.Context, id string, cancelled bool) error
	Delete(ctx context.Context, id string) error
}

// EventService orchestrates event listing, detail reads and the admin CRUD
// surface.
type EventService struct {
	repo      eventRepository
	labels    groupLabelReader
	ledger    viewerLedger
	resolver  *AccessResolver
	metrics   deniedCounter
	validator *validator.Validate
	logger    *zap.Logger
	bounds    PageBounds
}

// NewEventService constructs the service. metrics may be nil.
func NewEventService(repo eventRepository, labels groupLabelReader, ledger viewerLedger, resolver *AccessResolver, metrics deniedCounter, validate *validator.Validate, logger *zap.Logger, bounds PageBounds) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{repo: repo, labels: labels, ledger: ledger, resolver: resolver, metrics: metrics, validator: validate, logger: logger, bounds: bounds}
}

// EventListRequest describes filters for listing events.
type EventListRequest struct {
	Search           string     `json:"search"`
	GroupID          string     `json:"group_id"`
	Sort             string     `json:"sort"`
	Page             int        `json:"page"`
	PageSize         int        `json:"page_size"`
	From             *time.Time `json:"from"`
	To               *time.Time `json:"to"`
	IncludeCancelled bool       `json:"include_cancelled"`
}

// CreateEventRequest describes the admin create payload.
type CreateEventRequest struct {
	Title        string                   `json:"title" validate:"required,max=200"`
	Body         string                   `json:"body" validate:"required"`
	Visibility   string                   `json:"visibility" validate:"required"`
	TargetGroups []string                 `json:"target_groups"`
	TargetAttrs  []models.TargetAttribute `json:"target_attributes"`
	StartsAt     time.Time                `json:"starts_at" validate:"required"`
	EndsAt       *time.Time               `json:"ends_at"`
	Location     string                   `json:"location" validate:"required,max=300"`
	Capacity     *int                     `json:"capacity"`
	IsPinned     bool                     `json:"is_pinned"`
	Images       []string                 `json:"images"`
}

// UpdateEventRequest describes the admin update payload.
type UpdateEventRequest struct {
	Title        string                   `json:"title" validate:"required,max=200"`
	Body         string                   `json:"body" validate:"required"`
	Visibility   string                   `json:"visibility" validate:"required"`
	TargetGroups []string                 `json:"target_groups"`
	TargetAttrs  []models.TargetAttribute `json:"target_attributes"`
	StartsAt     time.Time                `json:"starts_at" validate:"required"`
	EndsAt       *time.Time               `json:"ends_at"`
	Location     string                   `json:"location" validate:"required,max=300"`
	Capacity     *int                     `json:"capacity"`
	IsPinned     bool                     `json:"is_pinned"`
	Images       []string                 `json:"images"`
}

func validateEventSchedule(startsAt time.Time, endsAt *time.Time, capacity *int) error {
	if endsAt != nil && endsAt.Before(startsAt) {
		return appErrors.Clone(appErrors.ErrValidation, "ends_at must be after starts_at")
	}
	if capacity != nil && *capacity <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "capacity must be positive")
	}
	return nil
}

// List returns the events visible to the caller, paginated.
func (s *EventService) List(ctx context.Context, scope models.AccessScope, req EventListRequest) ([]models.Event, *models.Pagination, error) {
	sort, err := normaliseSort(req.Sort)
	if err != nil {
		return nil, nil, err
	}
	if req.From != nil && req.To != nil && req.To.Before(*req.From) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "date range is inverted")
	}

	filter := models.EventFilter{
		ContentFilter: models.ContentFilter{
			Search:   req.Search,
			GroupID:  req.GroupID,
			Sort:     sort,
			Page:     req.Page,
			PageSize: req.PageSize,
		},
		Scope: &scope,
		From:  req.From,
		To:    req.To,
	}
	if scope.IsAdmin() {
		filter.IncludeCancelled = req.IncludeCancelled
	}
	filter.Page, filter.PageSize = s.bounds.normalise(filter.Page, filter.PageSize)

	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	return rows, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one event for the caller and records the view.
func (s *EventService) Get(ctx context.Context, scope models.AccessScope, id string) (*models.Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get event")
	}

	if event.IsCancelled && !scope.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
	}
	if event.AuthorID != scope.UserID && !s.resolver.CanSee(scope, event) {
		if s.metrics != nil {
			s.metrics.IncAccessDenied(string(models.KindEvent))
		}
		s.logger.Info("event access denied", zap.String("id", id), zap.String("user_id", scope.UserID))
		return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
	}

	first, err := s.ledger.InsertView(ctx, models.KindEvent, id, scope.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record view")
	}
	if first {
		event.ViewsCount++
	}
	event.Viewed = true

	_, liked, err := s.ledger.ViewerFlags(ctx, models.KindEvent, id, scope.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load viewer flags")
	}
	event.Liked = liked

	if event.Visibility == models.VisibilityGroups {
		labels, err := s.labels.GroupLabels(ctx, models.KindEvent, id)
		if err != nil {
			s.logger.Warn("failed to load group labels", zap.String("id", id), zap.Error(err))
		} else {
			event.GroupLabels = labels
		}
	}
	return event, nil
}

// Create registers a new event.
func (s *EventService) Create(ctx context.Context, authorID string, req CreateEventRequest) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	visibility, groups, attrs, err := normaliseTargeting(req.Visibility, req.TargetGroups, req.TargetAttrs)
	if err != nil {
		return nil, err
	}
	if err := validateEventSchedule(req.StartsAt, req.EndsAt, req.Capacity); err != nil {
		return nil, err
	}

	event := &models.Event{
		AuthorID:     authorID,
		Title:        req.Title,
		Body:         req.Body,
		Visibility:   visibility,
		StartsAt:     req.StartsAt,
		EndsAt:       req.EndsAt,
		Location:     req.Location,
		Capacity:     req.Capacity,
		IsPinned:     req.IsPinned,
		Images:       req.Images,
		TargetGroups: groups,
		TargetAttrs:  attrs,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	return event, nil
}

// Update modifies an existing event and replaces its target sets.
func (s *EventService) Update(ctx context.Context, id string, req UpdateEventRequest) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	visibility, groups, attrs, err := normaliseTargeting(req.Visibility, req.TargetGroups, req.TargetAttrs)
	if err != nil {
		return nil, err
	}
	if err := validateEventSchedule(req.StartsAt, req.EndsAt, req.Capacity); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}

	existing.Title = req.Title
	existing.Body = req.Body
	existing.Visibility = visibility
	existing.StartsAt = req.StartsAt
	existing.EndsAt = req.EndsAt
	existing.Location = req.Location
	existing.Capacity = req.Capacity
	existing.IsPinned = req.IsPinned
	existing.Images = req.Images
	existing.TargetGroups = groups
	existing.TargetAttrs = attrs
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}
	return existing, nil
}

// Cancel flips the soft-hide flag.
func (s *EventService) Cancel(ctx context.Context, id string, cancelled bool) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if err := s.repo.SetCancelled(ctx, id, cancelled); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel event")
	}
	return nil
}

// Delete removes an event and its engagement ledger.
func (s *EventService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	return nil
}
