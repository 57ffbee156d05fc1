package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/komunitas-api/internal/models"
)

// EngagementRepository persists the view/like/comment ledger. The ledger
// rows are the source of truth; the denormalized counters on the content
// tables are updated in the same transaction as the ledger mutation so they
// never drift.
type EngagementRepository struct {
	db *sqlx.DB
}

// NewEngagementRepository creates the repository.
func NewEngagementRepository(db *sqlx.DB) *EngagementRepository {
	return &EngagementRepository{db: db}
}

// InsertView records a first view. Duplicate calls, including concurrent
// ones, land on the primary key and affect zero rows; the counter moves only
// when the ledger row was actually inserted. Returns whether this call was
// the first view.
func (r *EngagementRepository) InsertView(ctx context.Context, kind models.ContentKind, contentID, userID string) (bool, error) {
	table := tableFor(kind)
	if table == "" {
		return false, fmt.Errorf("unknown content kind %q", kind)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO content_views (content_kind, content_id, user_id, viewed_at) VALUES ($1, $2, $3, $4) ON CONFLICT (content_kind, content_id, user_id) DO NOTHING",
		string(kind), contentID, userID, time.Now().UTC())
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("insert view: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("insert view result: %w", err)
	}

	if inserted > 0 {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET views_count = views_count + 1 WHERE id = $1", table), contentID); err != nil {
			tx.Rollback() //nolint:errcheck
			return false, fmt.Errorf("bump views_count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit view: %w", err)
	}
	return inserted > 0, nil
}

// SetLike applies the desired like state idempotently and returns the
// resulting state plus the refreshed aggregate count. Repeating the same
// desired state affects zero ledger rows and leaves the counter untouched.
func (r *EngagementRepository) SetLike(ctx context.Context, kind models.ContentKind, contentID, userID string, want bool) (*models.LikeResult, error) {
	table := tableFor(kind)
	if table == "" {
		return nil, fmt.Errorf("unknown content kind %q", kind)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	var res interface {
		RowsAffected() (int64, error)
	}
	if want {
		res, err = tx.ExecContext(ctx,
			"INSERT INTO content_likes (content_kind, content_id, user_id, liked_at) VALUES ($1, $2, $3, $4) ON CONFLICT (content_kind, content_id, user_id) DO NOTHING",
			string(kind), contentID, userID, time.Now().UTC())
	} else {
		res, err = tx.ExecContext(ctx,
			"DELETE FROM content_likes WHERE content_kind = $1 AND content_id = $2 AND user_id = $3",
			string(kind), contentID, userID)
	}
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("toggle like: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("toggle like result: %w", err)
	}

	if affected > 0 {
		delta := "+ 1"
		if !want {
			delta = "- 1"
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET likes_count = likes_count %s WHERE id = $1", table, delta), contentID); err != nil {
			tx.Rollback() //nolint:errcheck
			return nil, fmt.Errorf("adjust likes_count: %w", err)
		}
	}

	var count int
	if err := tx.GetContext(ctx, &count,
		fmt.Sprintf("SELECT likes_count FROM %s WHERE id = $1", table), contentID); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("read likes_count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit like: %w", err)
	}
	return &models.LikeResult{Liked: want, LikesCount: count}, nil
}

// InsertComment persists the comment and bumps the aggregate counter in one
// unit of work. Parent validation belongs to the service layer.
func (r *EngagementRepository) InsertComment(ctx context.Context, comment *models.Comment) error {
	table := tableFor(comment.ContentKind)
	if table == "" {
		return fmt.Errorf("unknown content kind %q", comment.ContentKind)
	}
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO content_comments (id, content_kind, content_id, author_id, parent_id, body, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		comment.ID, string(comment.ContentKind), comment.ContentID, comment.AuthorID, comment.ParentID, comment.Body, comment.CreatedAt); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert comment: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET comments_count = comments_count + 1 WHERE id = $1", table), comment.ContentID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("bump comments_count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit comment: %w", err)
	}
	return nil
}

// GetComment loads a single comment row.
func (r *EngagementRepository) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	const query = `SELECT c.id, c.content_kind, c.content_id, c.author_id, c.parent_id, c.body, c.created_at
FROM content_comments c WHERE c.id = $1`
	var comment models.Comment
	if err := r.db.GetContext(ctx, &comment, query, id); err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListComments returns all comments of an item with author names, per-comment
// like counts and the viewer's like flag. Ordering of top-level comments
// versus replies is assembled by the service.
func (r *EngagementRepository) ListComments(ctx context.Context, kind models.ContentKind, contentID, viewerID string) ([]models.Comment, error) {
	const query = `SELECT c.id, c.content_kind, c.content_id, c.author_id, COALESCE(u.full_name, '') AS author_name,
c.parent_id, c.body, c.created_at,
(SELECT COUNT(*) FROM comment_likes cl WHERE cl.comment_id = c.id) AS likes_count,
EXISTS (SELECT 1 FROM comment_likes cl WHERE cl.comment_id = c.id AND cl.user_id = $3) AS liked_by_viewer
FROM content_comments c
LEFT JOIN users u ON u.id = c.author_id
WHERE c.content_kind = $1 AND c.content_id = $2
ORDER BY c.created_at ASC, c.id ASC`
	var comments []models.Comment
	if err := r.db.SelectContext(ctx, &comments, query, string(kind), contentID, viewerID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// SetCommentLike toggles a like on a comment and returns the resulting state
// with a live count (comment likes carry no denormalized counter).
func (r *EngagementRepository) SetCommentLike(ctx context.Context, commentID, userID string, want bool) (*models.LikeResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	if want {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO comment_likes (comment_id, user_id, liked_at) VALUES ($1, $2, $3) ON CONFLICT (comment_id, user_id) DO NOTHING",
			commentID, userID, time.Now().UTC())
	} else {
		_, err = tx.ExecContext(ctx,
			"DELETE FROM comment_likes WHERE comment_id = $1 AND user_id = $2", commentID, userID)
	}
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("toggle comment like: %w", err)
	}

	var count int
	if err := tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM comment_likes WHERE comment_id = $1", commentID); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("count comment likes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit comment like: %w", err)
	}
	return &models.LikeResult{Liked: want, LikesCount: count}, nil
}

// ViewerFlags returns whether the viewer has viewed and liked the item.
func (r *EngagementRepository) ViewerFlags(ctx context.Context, kind models.ContentKind, contentID, userID string) (viewed, liked bool, err error) {
	const query = `SELECT
EXISTS (SELECT 1 FROM content_views WHERE content_kind = $1 AND content_id = $2 AND user_id = $3) AS viewed,
EXISTS (SELECT 1 FROM content_likes WHERE content_kind = $1 AND content_id = $2 AND user_id = $3) AS liked`
	row := struct {
		Viewed bool `db:"viewed"`
		Liked  bool `db:"liked"`
	}{}
	if err := r.db.GetContext(ctx, &row, query, string(kind), contentID, userID); err != nil {
		return false, false, fmt.Errorf("viewer flags: %w", err)
	}
	return row.Viewed, row.Liked, nil
}

// ListEngagement returns the per-member engagement rows for an item, used by
// the admin export. Members who never touched the item are excluded.
func (r *EngagementRepository) ListEngagement(ctx context.Context, kind models.ContentKind, contentID string) ([]models.EngagementRow, error) {
	const query = `SELECT u.id AS user_id, u.full_name, v.viewed_at, l.liked_at, COALESCE(cc.comments, 0) AS comments
FROM users u
LEFT JOIN content_views v ON v.content_kind = $1 AND v.content_id = $2 AND v.user_id = u.id
LEFT JOIN content_likes l ON l.content_kind = $1 AND l.content_id = $2 AND l.user_id = u.id
LEFT JOIN (
	SELECT author_id, COUNT(*) AS comments FROM content_comments
	WHERE content_kind = $1 AND content_id = $2 GROUP BY author_id
) cc ON cc.author_id = u.id
WHERE v.user_id IS NOT NULL OR l.user_id IS NOT NULL OR cc.author_id IS NOT NULL
ORDER BY u.full_name ASC, u.id ASC`
	var rows []models.EngagementRow
	if err := r.db.SelectContext(ctx, &rows, query, string(kind), contentID); err != nil {
		return nil, fmt.Errorf("list engagement: %w", err)
	}
	return rows, nil
}
