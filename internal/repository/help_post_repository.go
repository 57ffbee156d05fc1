package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/komunitas-api/internal/models"
)

const helpPostColumns = `p.id, p.author_id, COALESCE(u.full_name, '') AS author_name, p.title, p.body, p.category,
p.status, p.moderation_note, p.moderated_by, p.moderated_at, p.visibility, p.is_pinned, p.images,
p.views_count, p.likes_count, p.comments_count, p.created_at, p.updated_at`

// HelpPostRepository provides persistence for member-submitted help posts.
type HelpPostRepository struct {
	db *sqlx.DB
}

// NewHelpPostRepository creates the repository.
func NewHelpPostRepository(db *sqlx.DB) *HelpPostRepository {
	return &HelpPostRepository{db: db}
}

// List returns the page of help posts matching the filter. The moderation
// gate (status) and the author restriction are part of the filter so the
// service can express the public, own-posts and admin views with one query
// shape.
func (r *HelpPostRepository) List(ctx context.Context, filter models.HelpPostFilter) ([]models.HelpPost, int, error) {
	where := []string{}
	args := []interface{}{}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("p.status = $%d", len(args)))
	}
	if filter.AuthorID != "" {
		args = append(args, filter.AuthorID)
		where = append(where, fmt.Sprintf("p.author_id = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("p.category = $%d", len(args)))
	}
	if filter.Scope != nil && !filter.Scope.IsAdmin() {
		clause, newArgs := visibilityClause("p", models.KindHelpPost, filter.Scope, args)
		args = newArgs
		where = append(where, clause)
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(p.title ILIKE $%d OR p.body ILIKE $%d)", len(args), len(args)))
	}
	if filter.GroupID != "" {
		args = append(args, string(models.KindHelpPost), filter.GroupID)
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM content_target_groups tg WHERE tg.content_kind = $%d AND tg.content_id = p.id AND tg.group_id = $%d)",
			len(args)-1, len(args)))
	}

	whereClause := "1=1"
	if len(where) > 0 {
		whereClause = strings.Join(where, " AND ")
	}
	_, size, offset := normalisePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s
FROM help_posts p
LEFT JOIN users u ON u.id = p.author_id
WHERE %s
ORDER BY %s
LIMIT %d OFFSET %d`, helpPostColumns, whereClause, sortClause("p", filter.Sort), size, offset)

	var posts []models.HelpPost
	if err := r.db.SelectContext(ctx, &posts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list help posts: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM help_posts p WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count help posts: %w", err)
	}
	return posts, total, nil
}

// GetByID returns a help post with its target sets attached.
func (r *HelpPostRepository) GetByID(ctx context.Context, id string) (*models.HelpPost, error) {
	query := fmt.Sprintf(`SELECT %s FROM help_posts p
LEFT JOIN users u ON u.id = p.author_id
WHERE p.id = $1`, helpPostColumns)
	var post models.HelpPost
	if err := r.db.GetContext(ctx, &post, query, id); err != nil {
		return nil, err
	}
	groups, attrs, err := loadTargets(ctx, r.db, models.KindHelpPost, id)
	if err != nil {
		return nil, err
	}
	post.TargetGroups = groups
	post.TargetAttrs = attrs
	return &post, nil
}

// Create inserts the help post and its target sets in one transaction. New
// posts always start PENDING; callers do not choose the initial status.
func (r *HelpPostRepository) Create(ctx context.Context, post *models.HelpPost) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	post.Status = models.StatusPending
	now := time.Now().UTC()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	post.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	const query = `INSERT INTO help_posts (id, author_id, title, body, category, status, visibility, is_pinned, images, views_count, likes_count, comments_count, created_at, updated_at)
VALUES (:id, :author_id, :title, :body, :category, :status, :visibility, FALSE, :images, 0, 0, 0, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, post); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create help post: %w", err)
	}
	if err := replaceTargetsTx(ctx, tx, models.KindHelpPost, post.ID, post.TargetGroups, post.TargetAttrs); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit help post: %w", err)
	}
	return nil
}

// Update rewrites the editable fields and replaces the target sets. The
// moderation columns are only touched through Moderate.
func (r *HelpPostRepository) Update(ctx context.Context, post *models.HelpPost) error {
	post.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	const query = `UPDATE help_posts SET title = :title, body = :body, category = :category,
visibility = :visibility, images = :images, updated_at = :updated_at
WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, post); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update help post: %w", err)
	}
	if err := replaceTargetsTx(ctx, tx, models.KindHelpPost, post.ID, post.TargetGroups, post.TargetAttrs); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit help post update: %w", err)
	}
	return nil
}

// Moderate stamps a moderation decision. Moving away from APPROVED also
// clears the pin, because pinning is legal only while approved.
func (r *HelpPostRepository) Moderate(ctx context.Context, id string, status models.ModerationStatus, note *string, moderatorID string) error {
	now := time.Now().UTC()
	const query = `UPDATE help_posts SET status = $2, moderation_note = $3, moderated_by = $4, moderated_at = $5,
is_pinned = CASE WHEN $2 = 'APPROVED' THEN is_pinned ELSE FALSE END, updated_at = $5
WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, string(status), note, moderatorID, now); err != nil {
		return fmt.Errorf("moderate help post: %w", err)
	}
	return nil
}

// SetPinned flips the pin flag. The approved-only rule is enforced by the
// service before this is called.
func (r *HelpPostRepository) SetPinned(ctx context.Context, id string, pinned bool) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE help_posts SET is_pinned = $2, updated_at = $3 WHERE id = $1",
		id, pinned, time.Now().UTC()); err != nil {
		return fmt.Errorf("pin help post: %w", err)
	}
	return nil
}

// Delete removes the help post and cascades its ledger and target rows.
func (r *HelpPostRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := deleteContentRowsTx(ctx, tx, models.KindHelpPost, id); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM help_posts WHERE id = $1", id); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete help post: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit help post delete: %w", err)
	}
	return nil
}
