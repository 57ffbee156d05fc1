package models

import "time"

// Group is a named member cohort used for GROUPS-visibility targeting.
type Group struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// MembershipRole is a member's role inside a group.
type MembershipRole string

const (
	MembershipRoleLeader MembershipRole = "LEADER"
	MembershipRoleMember MembershipRole = "MEMBER"
)

// Membership is one (user, group) join row. A user may hold several; only
// active rows count toward visibility.
type Membership struct {
	UserID   string         `db:"user_id" json:"user_id"`
	GroupID  string         `db:"group_id" json:"group_id"`
	Role     MembershipRole `db:"role" json:"role"`
	Active   bool           `db:"active" json:"active"`
	JoinedAt time.Time      `db:"joined_at" json:"joined_at"`
}
