package models

// Visibility is the audience mode of a content item.
type Visibility string

const (
	VisibilityPublic Visibility = "PUBLIC"
	VisibilityGroups Visibility = "GROUPS"
	VisibilityCustom Visibility = "CUSTOM"
)

// Valid reports whether the visibility is a known mode.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityGroups, VisibilityCustom:
		return true
	default:
		return false
	}
}

// ContentKind discriminates the rows of the shared engagement and targeting
// tables.
type ContentKind string

const (
	KindAnnouncement ContentKind = "announcement"
	KindEvent        ContentKind = "event"
	KindHelpPost     ContentKind = "help_post"
)

// Valid reports whether the kind is a known content type.
func (k ContentKind) Valid() bool {
	switch k {
	case KindAnnouncement, KindEvent, KindHelpPost:
		return true
	default:
		return false
	}
}

// SupportsCommentLikes reports whether comments on this kind carry likes.
func (k ContentKind) SupportsCommentLikes() bool {
	return k == KindHelpPost
}

// AttributeCategory names a profile attribute usable in CUSTOM targeting.
type AttributeCategory string

const (
	AttrArea        AttributeCategory = "area"
	AttrInstitution AttributeCategory = "institution"
	AttrEmployer    AttributeCategory = "employer"
)

// Valid reports whether the category is a known attribute.
func (c AttributeCategory) Valid() bool {
	switch c {
	case AttrArea, AttrInstitution, AttrEmployer:
		return true
	default:
		return false
	}
}

// TargetAttribute is a single (category, value) matcher on a CUSTOM item.
type TargetAttribute struct {
	Category AttributeCategory `db:"category" json:"category"`
	Value    string            `db:"value" json:"value"`
}

// Targetable is the view of a content item the access resolver needs.
type Targetable interface {
	Kind() ContentKind
	VisibilityMode() Visibility
	TargetGroupIDs() []string
	TargetAttributes() []TargetAttribute
}

// ContentHead is the minimal slice of a content row needed for an access
// decision: ownership, visibility, target sets and the lifecycle flags that
// hide an item from non-admins.
type ContentHead struct {
	ID          string           `db:"id"`
	AuthorID    string           `db:"author_id"`
	Title       string           `db:"title"`
	Visibility  Visibility       `db:"visibility"`
	Hidden      bool             `db:"hidden"`
	Status      ModerationStatus `db:"status"`
	ContentKind ContentKind      `db:"-"`

	TargetGroups []string          `db:"-"`
	TargetAttrs  []TargetAttribute `db:"-"`
}

func (h *ContentHead) Kind() ContentKind                   { return h.ContentKind }
func (h *ContentHead) VisibilityMode() Visibility          { return h.Visibility }
func (h *ContentHead) TargetGroupIDs() []string            { return h.TargetGroups }
func (h *ContentHead) TargetAttributes() []TargetAttribute { return h.TargetAttrs }

// SortKey selects the list ordering. The empty key means newest-first.
type SortKey string

const (
	SortNewest     SortKey = "newest"
	SortOldest     SortKey = "oldest"
	SortMostLiked  SortKey = "most_liked"
	SortMostViewed SortKey = "most_viewed"
)

// Valid reports whether the key is a known sort, treating empty as newest.
func (k SortKey) Valid() bool {
	switch k {
	case "", SortNewest, SortOldest, SortMostLiked, SortMostViewed:
		return true
	default:
		return false
	}
}

// AccessScope is the resolved audience identity of one caller: role, active
// group memberships and present profile attributes.
type AccessScope struct {
	UserID      string   `json:"user_id"`
	Role        UserRole `json:"role"`
	GroupIDs    []string `json:"group_ids"`
	Area        *string  `json:"area,omitempty"`
	Institution *string  `json:"institution,omitempty"`
	Employer    *string  `json:"employer,omitempty"`
}

// IsAdmin reports whether the scope bypasses audience targeting.
func (s AccessScope) IsAdmin() bool {
	return s.Role == RoleAdmin || s.Role == RoleSuperAdmin
}

// AttributePairs lists the present profile attributes as matchers.
func (s AccessScope) AttributePairs() []TargetAttribute {
	var pairs []TargetAttribute
	if s.Area != nil && *s.Area != "" {
		pairs = append(pairs, TargetAttribute{Category: AttrArea, Value: *s.Area})
	}
	if s.Institution != nil && *s.Institution != "" {
		pairs = append(pairs, TargetAttribute{Category: AttrInstitution, Value: *s.Institution})
	}
	if s.Employer != nil && *s.Employer != "" {
		pairs = append(pairs, TargetAttribute{Category: AttrEmployer, Value: *s.Employer})
	}
	return pairs
}

// ContentFilter is the shared listing criteria of all content types.
type ContentFilter struct {
	Search   string
	GroupID  string
	Sort     SortKey
	Page     int
	PageSize int
}
