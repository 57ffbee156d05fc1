package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/komunitas-api/internal/models"
)

// tableFor maps a content kind to its backing table.
func tableFor(kind models.ContentKind) string {
	switch kind {
	case models.KindAnnouncement:
		return "announcements"
	case models.KindEvent:
		return "events"
	case models.KindHelpPost:
		return "help_posts"
	default:
		return ""
	}
}

// visibilityClause renders the audience predicate for one content table so
// listings can filter at the store level. The caller's group-id set and
// attribute pairs are bound once and reused across the whole result set. An
// empty scope degrades to PUBLIC only, which is the fail-closed behaviour
// for GROUPS and CUSTOM items. Authors always pass, matching the
// owner passthrough on detail reads; on gated surfaces the status predicate
// is a separate conjunct, so this never leaks unapproved posts into feeds.
func visibilityClause(alias string, kind models.ContentKind, scope *models.AccessScope, args []interface{}) (string, []interface{}) {
	conds := []string{fmt.Sprintf("%s.visibility = 'PUBLIC'", alias)}

	if scope.UserID != "" {
		args = append(args, scope.UserID)
		conds = append(conds, fmt.Sprintf("%s.author_id = $%d", alias, len(args)))
	}

	if len(scope.GroupIDs) > 0 {
		args = append(args, string(kind))
		kindArg := len(args)
		args = append(args, pq.Array(scope.GroupIDs))
		conds = append(conds, fmt.Sprintf(
			"(%s.visibility = 'GROUPS' AND EXISTS (SELECT 1 FROM content_target_groups tg WHERE tg.content_kind = $%d AND tg.content_id = %s.id AND tg.group_id = ANY($%d)))",
			alias, kindArg, alias, len(args)))
	}

	pairs := scope.AttributePairs()
	if len(pairs) > 0 {
		args = append(args, string(kind))
		kindArg := len(args)
		attrConds := make([]string, 0, len(pairs))
		for _, p := range pairs {
			args = append(args, string(p.Category), p.Value)
			attrConds = append(attrConds, fmt.Sprintf("(ta.category = $%d AND ta.value = $%d)", len(args)-1, len(args)))
		}
		conds = append(conds, fmt.Sprintf(
			"(%s.visibility = 'CUSTOM' AND EXISTS (SELECT 1 FROM content_target_attrs ta WHERE ta.content_kind = $%d AND ta.content_id = %s.id AND (%s)))",
			alias, kindArg, alias, strings.Join(attrConds, " OR ")))
	}

	return "(" + strings.Join(conds, " OR ") + ")", args
}

/// sortClause maps a sort key to a deterministic ORDER BY: pinned items
// first, then the selected order, with the id as a stable tiebreaker.
func sortClause(alias string, key models.SortKey) string {
	var order string
	switch key {
	case models.SortOldest:
		order = fmt.Sprintf("%s.created_at ASC", alias)
	case models.SortMostLiked:
		order = fmt.Sprintf("%s.likes_count DESC, %s.created_at DESC", alias, alias)
	case models.SortMostViewed:
		order = fmt.Sprintf("%s.views_count DESC, %s.created_at DESC", alias, alias)
	default:
		order = fmt.Sprintf("%s.created_at DESC", alias)
	}
	return fmt.Sprintf("%s.is_pinned DESC, %s, %s.id ASC", alias, order, alias)
}

// normalisePage guards degenerate pagination inputs and derives the offset.
// The services clamp page size against the configured bounds before the
// filter reaches the store, so the size is honoured as given; re-clamping
// here would make the reported pagination lie about the rows per page.
func normalisePage(page, size int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	return page, size, (page - 1) * size
}

// ContentRepository serves the kind-agnostic content reads shared by the
// engagement and export services: the access head of an item plus its
// target sets.
type ContentRepository struct {
	db *sqlx.DB
}

// NewContentRepository creates the repository.
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// Head loads the minimal row needed for an access decision. Target sets are
// attached so the resolver can evaluate GROUPS/CUSTOM visibility.
func (r *ContentRepository) Head(ctx context.Context, kind models.ContentKind, id string) (*models.ContentHead, error) {
	var query string
	switch kind {
	case models.KindAnnouncement:
		query = "SELECT id, author_id, title, visibility, is_archived AS hidden FROM announcements WHERE id = $1"
	case models.KindEvent:
		query = "SELECT id, author_id, title, visibility, is_cancelled AS hidden FROM events WHERE id = $1"
	case models.KindHelpPost:
		query = "SELECT id, author_id, title, visibility, FALSE AS hidden, status FROM help_posts WHERE id = $1"
	default:
		return nil, fmt.Errorf("unknown content kind %q", kind)
	}

	var head models.ContentHead
	if err := r.db.GetContext(ctx, &head, query, id); err != nil {
		return nil, err
	}
	head.ContentKind = kind

	groups, attrs, err := loadTargets(ctx, r.db, kind, id)
	if err != nil {
		return nil, err
	}
	head.TargetGroups = groups
	head.TargetAttrs = attrs
	return &head, nil
}

// GroupLabels resolves the display names of an item's target groups.
func (r *ContentRepository) GroupLabels(ctx context.Context, kind models.ContentKind, id string) ([]string, error) {
	const query = `SELECT g.name FROM groups g
JOIN content_target_groups tg ON tg.group_id = g.id
WHERE tg.content_kind = $1 AND tg.content_id = $2
ORDER BY g.name ASC`
	var labels []string
	if err := r.db.SelectContext(ctx, &labels, query, string(kind), id); err != nil {
		return nil, fmt.Errorf("load group labels: %w", err)
	}
	return labels, nil
}

type sqlxQueryer interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// loadTargets fetches both target sets for an item.
func loadTargets(ctx context.Context, q sqlxQueryer, kind models.ContentKind, id string) ([]string, []models.TargetAttribute, error) {
	var groups []string
	if err := q.SelectContext(ctx, &groups,
		"SELECT group_id FROM content_target_groups WHERE content_kind = $1 AND content_id = $2 ORDER BY group_id ASC",
		string(kind), id); err != nil {
		return nil, nil, fmt.Errorf("load target groups: %w", err)
	}
	var attrs []models.TargetAttribute
	if err := q.SelectContext(ctx, &attrs,
		"SELECT category, value FROM content_target_attrs WHERE content_kind = $1 AND content_id = $2 ORDER BY category ASC, value ASC",
		string(kind), id); err != nil {
		return nil, nil, fmt.Errorf("load target attrs: %w", err)
	}
	return groups, attrs, nil
}

// replaceTargetsTx rewrites both target join tables for an item inside the
// caller's transaction.
func replaceTargetsTx(ctx context.Context, tx *sqlx.Tx, kind models.ContentKind, id string, groups []string, attrs []models.TargetAttribute) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM content_target_groups WHERE content_kind = $1 AND content_id = $2", string(kind), id); err != nil {
		return fmt.Errorf("clear target groups: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM content_target_attrs WHERE content_kind = $1 AND content_id = $2", string(kind), id); err != nil {
		return fmt.Errorf("clear target attrs: %w", err)
	}
	for _, groupID := range groups {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO content_target_groups (content_kind, content_id, group_id) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
			string(kind), id, groupID); err != nil {
			return fmt.Errorf("insert target group: %w", err)
		}
	}
	for _, attr := range attrs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO content_target_attrs (content_kind, content_id, category, value) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING",
			string(kind), id, string(attr.Category), attr.Value); err != nil {
			return fmt.Errorf("insert target attr: %w", err)
		}
	}
	return nil
}

// deleteContentRowsTx removes the ledger and target rows belonging to an item
// inside the caller's transaction. Content deletion is the only cascade the
// engine performs.
func deleteContentRowsTx(ctx context.Context, tx *sqlx.Tx, kind models.ContentKind, id string) error {
	statements := []string{
		"DELETE FROM comment_likes WHERE comment_id IN (SELECT id FROM content_comments WHERE content_kind = $1 AND content_id = $2)",
		"DELETE FROM content_comments WHERE content_kind = $1 AND content_id = $2",
		"DELETE FROM content_likes WHERE content_kind = $1 AND content_id = $2",
		"DELETE FROM content_views WHERE content_kind = $1 AND content_id = $2",
		"DELETE FROM content_target_groups WHERE content_kind = $1 AND content_id = $2",
		"DELETE FROM content_target_attrs WHERE content_kind = $1 AND content_id = $2",
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, string(kind), id); err != nil {
			return fmt.Errorf("cascade content delete: %w", err)
		}
	}
	return nil
}
