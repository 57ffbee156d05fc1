package models

import "time"

// ContentView is one first-seen ledger row; at most one per (item, user).
type ContentView struct {
	ContentKind ContentKind `db:"content_kind" json:"content_kind"`
	ContentID   string      `db:"content_id" json:"content_id"`
	UserID      string      `db:"user_id" json:"user_id"`
	ViewedAt    time.Time   `db:"viewed_at" json:"viewed_at"`
}

// ContentLike is a togglable like ledger row.
type ContentLike struct {
	ContentKind ContentKind `db:"content_kind" json:"content_kind"`
	ContentID   string      `db:"content_id" json:"content_id"`
	UserID      string      `db:"user_id" json:"user_id"`
	LikedAt     time.Time   `db:"liked_at" json:"liked_at"`
}

// Comment is a member comment or single-level reply on a content item.
type Comment struct {
	ID          string      `db:"id" json:"id"`
	ContentKind ContentKind `db:"content_kind" json:"content_kind"`
	ContentID   string      `db:"content_id" json:"content_id"`
	AuthorID    string      `db:"author_id" json:"author_id"`
	AuthorName  string      `db:"author_name" json:"author_name,omitempty"`
	ParentID    *string     `db:"parent_id" json:"parent_id,omitempty"`
	Body        string      `db:"body" json:"body"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`

	LikesCount    int `db:"likes_count" json:"likes_count"`
	LikedByViewer bool `db:"liked_by_viewer" json:"liked_by_viewer"`
}

// CommentThread is a top-level comment with its replies, oldest reply first.
type CommentThread struct {
	Comment
	Replies []Comment `json:"replies"`
}

// ThreadOrder selects the direction top-level comments are returned in.
type ThreadOrder string

const (
	ThreadNewestFirst ThreadOrder = "newest_first"
	ThreadOldestFirst ThreadOrder = "oldest_first"
)

// LikeResult is the post-toggle state returned to the caller.
type LikeResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

// EngagementRow is one line of the admin engagement report.
type EngagementRow struct {
	UserID   string     `db:"user_id" json:"user_id"`
	FullName string     `db:"full_name" json:"full_name"`
	ViewedAt *time.Time `db:"viewed_at" json:"viewed_at,omitempty"`
	LikedAt  *time.Time `db:"liked_at" json:"liked_at,omitempty"`
	Comments int        `db:"comments" json:"comments"`
}
