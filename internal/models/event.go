package models

import (
	"time"

	"github.com/lib/pq"
)

// Event is an admin-published gathering with schedule and capacity details.
type Event struct {
	ID            string         `db:"id" json:"id"`
	AuthorID      string         `db:"author_id" json:"author_id"`
	AuthorName    string         `db:"author_name" json:"author_name,omitempty"`
	Title         string         `db:"title" json:"title"`
	Body          string         `db:"body" json:"body"`
	Visibility    Visibility     `db:"visibility" json:"visibility"`
	StartsAt      time.Time      `db:"starts_at" json:"starts_at"`
	EndsAt        *time.Time     `db:"ends_at" json:"ends_at,omitempty"`
	Location      string         `db:"location" json:"location"`
	Capacity      *int           `db:"capacity" json:"capacity,omitempty"`
	IsPinned      bool           `db:"is_pinned" json:"is_pinned"`
	IsCancelled   bool           `db:"is_cancelled" json:"is_cancelled"`
	Images        pq.StringArray `db:"images" json:"images"`
	ViewsCount    int            `db:"views_count" json:"views_count"`
	LikesCount    int            `db:"likes_count" json:"likes_count"`
	CommentsCount int            `db:"comments_count" json:"comments_count"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`

	TargetGroups []string          `db:"-" json:"target_groups,omitempty"`
	TargetAttrs  []TargetAttribute `db:"-" json:"target_attributes,omitempty"`
	GroupLabels  []string          `db:"-" json:"group_labels,omitempty"`

	Viewed bool `db:"-" json:"viewed"`
	Liked  bool `db:"-" json:"liked"`
}

func (e *Event) Kind() ContentKind                   { return KindEvent }
func (e *Event) VisibilityMode() Visibility          { return e.Visibility }
func (e *Event) TargetGroupIDs() []string            { return e.TargetGroups }
func (e *Event) TargetAttributes() []TargetAttribute { return e.TargetAttrs }

// EventFilter captures listing criteria for events.
type EventFilter struct {
	ContentFilter
	Scope            *AccessScope
	IncludeCancelled bool
	From             *time.Time
	To               *time.Time
}
