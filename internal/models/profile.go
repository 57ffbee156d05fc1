package models

import "time"

// MemberProfile holds the scalar targeting attributes of a member. A missing
// row, or a NULL field, means that attribute can never match a CUSTOM item.
type MemberProfile struct {
	UserID      string    `db:"user_id" json:"user_id"`
	Area        *string   `db:"area" json:"area,omitempty"`
	Institution *string   `db:"institution" json:"institution,omitempty"`
	Employer    *string   `db:"employer" json:"employer,omitempty"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
