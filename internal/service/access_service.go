package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/komunitas-api/internal/models"
	appErrors "github.com/noah-isme/komunitas-api/pkg/errors"
)

type membershipReader interface {
	ActiveGroupIDs(ctx context.Context, userID string) ([]string, error)
}

type profileReader interface {
	Get(ctx context.Context, userID string) (*models.MemberProfile, error)
}

type scopeCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type cacheObserver interface {
	ObserveCacheLookup(hit bool)
}

// AccessResolver computes a caller's audience scope and evaluates item
// visibility against it. The scope is resolved once per request and reused
// for every row the request touches.
type AccessResolver struct {
	memberships membershipReader
	profiles    profileReader
	cache       scopeCache
	metrics     cacheObserver
	ttl         time.Duration
	logger      *zap.Logger
}

// NewAccessResolver constructs the resolver. cache and metrics may be nil.
func NewAccessResolver(memberships membershipReader, profiles profileReader, cache scopeCache, metrics cacheObserver, ttl time.Duration, logger *zap.Logger) *AccessResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessResolver{
		memberships: memberships,
		profiles:    profiles,
		cache:       cache,
		metrics:     metrics,
		ttl:         ttl,
		logger:      logger,
	}
}

const scopeCacheKeyPrefix = "access_scope:"

// Resolve builds the caller's access scope: active group memberships plus
// profile attributes. A user with no memberships or no profile gets a scope
// that matches nothing for those categories; neither case is an error.
func (r *AccessResolver) Resolve(ctx context.Context, userID string, role models.UserRole) (models.AccessScope, error) {
	key := scopeCacheKeyPrefix + userID
	if r.cache != nil {
		var cached models.AccessScope
		if err := r.cache.Get(ctx, key, &cached); err == nil && cached.UserID == userID {
			if r.metrics != nil {
				r.metrics.ObserveCacheLookup(true)
			}
			cached.Role = role
			return cached, nil
		}
		if r.metrics != nil {
			r.metrics.ObserveCacheLookup(false)
		}
	}

	scope := models.AccessScope{UserID: userID, Role: role}

	groupIDs, err := r.memberships.ActiveGroupIDs(ctx, userID)
	if err != nil {
		return models.AccessScope{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve memberships")
	}
	scope.GroupIDs = groupIDs

	profile, err := r.profiles.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return models.AccessScope{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve profile")
		}
	} else {
		scope.Area = profile.Area
		scope.Institution = profile.Institution
		scope.Employer = profile.Employer
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, scope, r.ttl); err != nil {
			r.logger.Warn("access scope cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return scope, nil
}

// CanSee is the point form of the visibility check. Admins bypass targeting.
// A GROUPS item is visible when the caller shares at least one group with the
// target set; a CUSTOM item when any present profile attribute matches any
// target matcher. An empty target set matches nobody.
func (r *AccessResolver) CanSee(scope models.AccessScope, item models.Targetable) bool {
	if scope.IsAdmin() {
		return true
	}
	switch item.VisibilityMode() {
	case models.VisibilityPublic:
		return true
	case models.VisibilityGroups:
		return intersects(scope.GroupIDs, item.TargetGroupIDs())
	case models.VisibilityCustom:
		return attributesMatch(scope.AttributePairs(), item.TargetAttributes())
	default:
		return false
	}
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

func attributesMatch(have, want []models.TargetAttribute) bool {
	if len(have) == 0 || len(want) == 0 {
		return false
	}
	for _, h := range have {
		for _, w := range want {
			if h.Category == w.Category && h.Value == w.Value {
				return true
			}
		}
	}
	return false
}
