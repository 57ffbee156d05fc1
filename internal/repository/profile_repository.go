package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/komunitas-api/internal/models"
)

// ProfileRepository resolves the targeting attributes of a member.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository creates the repository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Get returns the member's profile row. Callers treat sql.ErrNoRows as
// "no attributes", not as a failure.
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*models.MemberProfile, error) {
	const query = `SELECT user_id, area, institution, employer, updated_at
FROM member_profiles WHERE user_id = $1`
	var profile models.MemberProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		return nil, err
	}
	return &profile, nil
}
