package models

import (
	"time"

	"github.com/lib/pq"
)

// Announcement is an admin-published notice subject to audience targeting.
type Announcement struct {
	ID            string         `db:"id" json:"id"`
	AuthorID      string         `db:"author_id" json:"author_id"`
	AuthorName    string         `db:"author_name" json:"author_name,omitempty"`
	Title         string         `db:"title" json:"title"`
	Body          string         `db:"body" json:"body"`
	Visibility    Visibility     `db:"visibility" json:"visibility"`
	IsPinned      bool           `db:"is_pinned" json:"is_pinned"`
	IsArchived    bool           `db:"is_archived" json:"is_archived"`
	Images        pq.StringArray `db:"images" json:"images"`
	ViewsCount    int            `db:"views_count" json:"views_count"`
	LikesCount    int            `db:"likes_count" json:"likes_count"`
	CommentsCount int            `db:"comments_count" json:"comments_count"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`

	// Loaded from the target join tables, not columns.
	TargetGroups []string          `db:"-" json:"target_groups,omitempty"`
	TargetAttrs  []TargetAttribute `db:"-" json:"target_attributes,omitempty"`
	GroupLabels  []string          `db:"-" json:"group_labels,omitempty"`

	// Viewer-specific flags attached on detail reads.
	Viewed bool `db:"-" json:"viewed"`
	Liked  bool `db:"-" json:"liked"`
}

func (a *Announcement) Kind() ContentKind                   { return KindAnnouncement }
func (a *Announcement) VisibilityMode() Visibility          { return a.Visibility }
func (a *Announcement) TargetGroupIDs() []string            { return a.TargetGroups }
func (a *Announcement) TargetAttributes() []TargetAttribute { return a.TargetAttrs }

// AnnouncementFilter captures listing criteria for announcements.
type AnnouncementFilter struct {
	ContentFilter
	Scope           *AccessScope
	IncludeArchived bool
	PinnedOnly      bool
}
