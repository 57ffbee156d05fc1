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

const eventColumns = `e.id, e.author_id, COALESCE(u.full_name, '') AS author_name, e.title, e.body, e.visibility,
e.starts_at, e.ends_at, e.location, e.capacity, e.is_pinned, e.is_cancelled, e.images,
e.views_count, e.likes_count, e.comments_count, e.created_at, e.updated_at`

// EventRepository provides persistence for events.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository creates the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// List returns the page of events matching the filter.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	where := []string{}
	args := []interface{}{}

	if !filter.IncludeCancelled {
		where = append(where, "e.is_cancelled = FALSE")
	}
	if filter.Scope != nil && !filter.Scope.IsAdmin() {
		clause, newArgs := visibilityClause("e", models.KindEvent, filter.Scope, args)
		args = newArgs
		where = append(where, clause)
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(e.title ILIKE $%d OR e.body ILIKE $%d)", len(args), len(args)))
	}
	if filter.GroupID != "" {
		args = append(args, string(models.KindEvent), filter.GroupID)
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM content_target_groups tg WHERE tg.content_kind = $%d AND tg.content_id = e.id AND tg.group_id = $%d)",
			len(args)-1, len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("e.starts_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("e.starts_at <= $%d", len(args)))
	}

	whereClause := "1=1"
	if len(where) > 0 {
		whereClause = strings.Join(where, " AND ")
	}
	_, size, offset := normalisePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s
FROM events e
LEFT JOIN users u ON u.id = e.author_id
WHERE %s
ORDER BY %s
LIMIT %d OFFSET %d`, eventColumns, whereClause, sortClause("e", filter.Sort), size, offset)

	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM events e WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	return events, total, nil
}

// GetByID returns an event with its target sets attached.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM events e
LEFT JOIN users u ON u.id = e.author_id
WHERE e.id = $1`, eventColumns)
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	groups, attrs, err := loadTargets(ctx, r.db, models.KindEvent, id)
	if err != nil {
		return nil, err
	}
	event.TargetGroups = groups
	event.TargetAttrs = attrs
	return &event, nil
}

// Create inserts the event row and its target sets in one transaction.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	const query = `INSERT INTO events (id, author_id, title, body, visibility, starts_at, ends_at, location, capacity, is_pinned, is_cancelled, images, views_count, likes_count, comments_count, created_at, updated_at)
VALUES (:id, :author_id, :title, :body, :visibility, :starts_at, :ends_at, :location, :capacity, :is_pinned, :is_cancelled, :images, 0, 0, 0, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, event); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create event: %w", err)
	}
	if err := replaceTargetsTx(ctx, tx, models.KindEvent, event.ID, event.TargetGroups, event.TargetAttrs); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

// Update rewrites the event row and replaces its target sets.
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	const query = `UPDATE events SET title = :title, body = :body, visibility = :visibility,
starts_at = :starts_at, ends_at = :ends_at, location = :location, capacity = :capacity,
is_pinned = :is_pinned, is_cancelled = :is_cancelled, images = :images, updated_at = :updated_at
WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, event); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update event: %w", err)
	}
	if err := replaceTargetsTx(ctx, tx, models.KindEvent, event.ID, event.TargetGroups, event.TargetAttrs); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event update: %w", err)
	}
	return nil
}

// SetCancelled flips the soft-hide flag.
func (r *EventRepository) SetCancelled(ctx context.Context, id string, cancelled bool) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE events SET is_cancelled = $2, updated_at = $3 WHERE id = $1",
		id, cancelled, time.Now().UTC()); err != nil {
		return fmt.Errorf("cancel event: %w", err)
	}
	return nil
}

// Delete removes the event and cascades its ledger and target rows.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := deleteContentRowsTx(ctx, tx, models.KindEvent, id); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM events WHERE id = $1", id); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event delete: %w", err)
	}
	return nil
}
