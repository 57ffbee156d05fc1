package service

import (
	"strings"

	"github.com/noah-isme/komunitas-api/internal/models"
	appErrors "github.com/noah-isme/komunitas-api/pkg/errors"
)

// PageBounds clamps caller pagination input for the content list surfaces.
// The zero value falls back to 20/100.
type PageBounds struct {
	DefaultSize int
	MaxSize     int
}

// normalise is the single place pagination input is clamped. The clamped
// values drive both the store query and the reported pagination, so the
// page size a response claims is the page size it was fetched with.
func (b PageBounds) normalise(page, size int) (int, int) {
	def := b.DefaultSize
	if def <= 0 {
		def = 20
	}
	max := b.MaxSize
	if max <= 0 {
		max = 100
	}
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = def
	}
	if size > max {
		size = max
	}
	return page, size
}

// normaliseTargeting validates a write-time visibility/target combination
// and clears the sets that do not belong to the chosen mode. GROUPS requires
// a non-empty group set and CUSTOM a non-empty attribute set at creation;
// this is not re-checked on later reads (an item whose set is later emptied
// simply matches nobody).
func normaliseTargeting(visibility string, groups []string, attrs []models.TargetAttribute) (models.Visibility, []string, []models.TargetAttribute, error) {
	vis := models.Visibility(strings.ToUpper(visibility))
	switch vis {
	case models.VisibilityPublic:
		return vis, nil, nil, nil
	case models.VisibilityGroups:
		if len(groups) == 0 {
			return "", nil, nil, appErrors.Clone(appErrors.ErrValidation, "target_groups required for GROUPS visibility")
		}
		return vis, dedupeStrings(groups), nil, nil
	case models.VisibilityCustom:
		if len(attrs) == 0 {
			return "", nil, nil, appErrors.Clone(appErrors.ErrValidation, "target_attributes required for CUSTOM visibility")
		}
		for _, attr := range attrs {
			switch attr.Category {
			case models.AttrArea, models.AttrInstitution, models.AttrEmployer:
			default:
				return "", nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown target attribute category")
			}
			if strings.TrimSpace(attr.Value) == "" {
				return "", nil, nil, appErrors.Clone(appErrors.ErrValidation, "target attribute value must not be empty")
			}
		}
		return vis, nil, attrs, nil
	default:
		return "", nil, nil, appErrors.Clone(appErrors.ErrValidation, "visibility must be PUBLIC, GROUPS or CUSTOM")
	}
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// normaliseSort validates the caller-selected sort key.
func normaliseSort(raw string) (models.SortKey, error) {
	key := models.SortKey(strings.ToLower(raw))
	if !key.Valid() {
		return "", appErrors.Clone(appErrors.ErrValidation, "sort must be one of newest, oldest, most_liked, most_viewed")
	}
	return key, nil
}
