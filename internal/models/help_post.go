package models

import (
	"time"

	"github.com/lib/pq"
)

// ModerationStatus is the admin-controlled approval state of a help post.
type ModerationStatus string

const (
	StatusPending  ModerationStatus = "PENDING"
	StatusApproved ModerationStatus = "APPROVED"
	StatusRejected ModerationStatus = "REJECTED"
)

// Valid reports whether the status is a known moderation state.
func (s ModerationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// HelpPost is member-submitted content gated by the moderation workflow.
type HelpPost struct {
	ID             string           `db:"id" json:"id"`
	AuthorID       string           `db:"author_id" json:"author_id"`
	AuthorName     string           `db:"author_name" json:"author_name,omitempty"`
	Title          string           `db:"title" json:"title"`
	Body           string           `db:"body" json:"body"`
	Category       string           `db:"category" json:"category"`
	Status         ModerationStatus `db:"status" json:"status"`
	ModerationNote *string          `db:"moderation_note" json:"moderation_note,omitempty"`
	ModeratedBy    *string          `db:"moderated_by" json:"moderated_by,omitempty"`
	ModeratedAt    *time.Time       `db:"moderated_at" json:"moderated_at,omitempty"`
	Visibility     Visibility       `db:"visibility" json:"visibility"`
	IsPinned       bool             `db:"is_pinned" json:"is_pinned"`
	Images         pq.StringArray   `db:"images" json:"images"`
	ViewsCount     int              `db:"views_count" json:"views_count"`
	LikesCount     int              `db:"likes_count" json:"likes_count"`
	CommentsCount  int              `db:"comments_count" json:"comments_count"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`

	TargetGroups []string          `db:"-" json:"target_groups,omitempty"`
	TargetAttrs  []TargetAttribute `db:"-" json:"target_attributes,omitempty"`
	GroupLabels  []string          `db:"-" json:"group_labels,omitempty"`

	Viewed bool `db:"-" json:"viewed"`
	Liked  bool `db:"-" json:"liked"`
}

func (p *HelpPost) Kind() ContentKind                   { return KindHelpPost }
func (p *HelpPost) VisibilityMode() Visibility          { return p.Visibility }
func (p *HelpPost) TargetGroupIDs() []string            { return p.TargetGroups }
func (p *HelpPost) TargetAttributes() []TargetAttribute { return p.TargetAttrs }

// HelpPostFilter captures listing criteria for help posts. Status and
// AuthorID are only honoured for admin and own-posts views; the public
// surface always pins status to APPROVED.
type HelpPostFilter struct {
	ContentFilter
	Scope    *AccessScope
	Category string
	Status   *ModerationStatus
	AuthorID string
}
