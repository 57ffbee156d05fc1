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

const announcementColumns = `a.id, a.author_id, COALESCE(u.full_name, '') AS author_name, a.title, a.body, a.visibility,
a.is_pinned, a.is_archived, a.images, a.views_count, a.likes_count, a.comments_count, a.created_at, a.updated_at`

// AnnouncementRepository provides persistence for announcements.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository creates the repository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// List returns the page of announcements matching the filter. When the
// filter carries a non-admin scope the visibility predicate is applied at
// the store level so pagination stays stable.
func (r *AnnouncementRepository) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	where := []string{}
	args := []interface{}{}

	if !filter.IncludeArchived {
		where = append(where, "a.is_archived = FALSE")
	}
	if filter.PinnedOnly {
		where = append(where, "a.is_pinned = TRUE")
	}
	if filter.Scope != nil && !filter.Scope.IsAdmin() {
		clause, newArgs := visibilityClause("a", models.KindAnnouncement, filter.Scope, args)
		args = newArgs
		where = append(where, clause)
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(a.title ILIKE $%d OR a.body ILIKE $%d)", len(args), len(args)))
	}
	if filter.GroupID != "" {
		args = append(args, string(models.KindAnnouncement), filter.GroupID)
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM content_target_groups tg WHERE tg.content_kind = $%d AND tg.content_id = a.id AND tg.group_id = $%d)",
			len(args)-1, len(args)))
	}

	whereClause := "1=1"
	if len(where) > 0 {
		whereClause = strings.Join(where, " AND ")
	}
	_, size, offset := normalisePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s
FROM announcements a
LEFT JOIN users u ON u.id = a.author_id
WHERE %s
ORDER BY %s
LIMIT %d OFFSET %d`, announcementColumns, whereClause, sortClause("a", filter.Sort), size, offset)

	var announcements []models.Announcement
	if err := r.db.SelectContext(ctx, &announcements, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list announcements: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM announcements a WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count announcements: %w", err)
	}
	return announcements, total, nil
}

// GetByID returns an announcement with its target sets attached.
func (r *AnnouncementRepository) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	query := fmt.Sprintf(`SELECT %s FROM announcements a
LEFT JOIN users u ON u.id = a.author_id
WHERE a.id = $1`, announcementColumns)
	var announcement models.Announcement
	if err := r.db.GetContext(ctx, &announcement, query, id); err != nil {
		return nil, err
	}
	groups, attrs, err := loadTargets(ctx, r.db, models.KindAnnouncement, id)
	if err != nil {
		return nil, err
	}
	announcement.TargetGroups = groups
	announcement.TargetAttrs = attrs
	return &announcement, nil
}

// Create inserts the announcement row and its target sets in one transaction.
func (r *AnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement) error {
	if announcement.ID == "" {
		announcement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if announcement.CreatedAt.IsZero() {
		announcement.CreatedAt = now
	}
	announcement.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	const query = `INSERT INTO announcements (id, author_id, title, body, visibility, is_pinned, is_archived, images, views_count, likes_count, comments_count, created_at, updated_at)
VALUES (:id, :author_id, :title, :body, :visibility, :is_pinned, :is_archived, :images, 0, 0, 0, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, announcement); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create announcement: %w", err)
	}
	if err := replaceTargetsTx(ctx, tx, models.KindAnnouncement, announcement.ID, announcement.TargetGroups, announcement.TargetAttrs); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit announcement: %w", err)
	}
	return nil
}

// Update rewrites the announcement row and replaces its target sets.
func (r *AnnouncementRepository) Update(ctx context.Context, announcement *models.Announcement) error {
	announcement.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	const query = `UPDATE announcements SET title = :title, body = :body, visibility = :visibility,
is_pinned = :is_pinned, is_archived = :is_archived, images = :images, updated_at = :updated_at
WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, announcement); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update announcement: %w", err)
	}
	if err := replaceTargetsTx(ctx, tx, models.KindAnnouncement, announcement.ID, announcement.TargetGroups, announcement.TargetAttrs); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit announcement update: %w", err)
	}
	return nil
}

// SetArchived flips the soft-hide flag.
func (r *AnnouncementRepository) SetArchived(ctx context.Context, id string, archived bool) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE announcements SET is_archived = $2, updated_at = $3 WHERE id = $1",
		id, archived, time.Now().UTC()); err != nil {
		return fmt.Errorf("archive announcement: %w", err)
	}
	return nil
}

// Delete removes the announcement and cascades its ledger and target rows.
func (r *AnnouncementRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := deleteContentRowsTx(ctx, tx, models.KindAnnouncement, id); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM announcements WHERE id = $1", id); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete announcement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit announcement delete: %w", err)
	}
	return nil
}
