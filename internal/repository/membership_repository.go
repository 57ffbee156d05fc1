package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/komunitas-api/internal/models"
)

// MembershipRepository answers group-membership questions for the access
// resolver. Only active rows in active groups count toward visibility.
type MembershipRepository struct {
	db *sqlx.DB
}

// NewMembershipRepository creates the repository.
func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// ActiveGroupIDs returns the ids of groups the user is an active member of.
// An empty result is a valid answer, not an error.
func (r *MembershipRepository) ActiveGroupIDs(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT m.group_id FROM group_members m
JOIN groups g ON g.id = m.group_id
WHERE m.user_id = $1 AND m.active = TRUE AND g.active = TRUE
ORDER BY m.group_id ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("active group ids: %w", err)
	}
	return ids, nil
}

// ListForUser returns the user's memberships with group names, for the
// own-memberships surface.
func (r *MembershipRepository) ListForUser(ctx context.Context, userID string) ([]models.Membership, error) {
	const query = `SELECT user_id, group_id, role, active, joined_at
FROM group_members WHERE user_id = $1 ORDER BY joined_at ASC`
	var memberships []models.Membership
	if err := r.db.SelectContext(ctx, &memberships, query, userID); err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return memberships, nil
}
