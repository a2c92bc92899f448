package models

import (
	"time"
)

const (
	RoleAdmin       = "admin"
	RoleJudge       = "judge"
	RoleParticipant = "participant"
)

// User is an administrative account (admin or judge). New accounts wait for
// approval by an existing admin before their tokens are honoured.
type User struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	Name         string     `json:"name" gorm:"not null"`
	Email        string     `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string     `json:"-" gorm:"not null"`
	Role         string     `json:"role" gorm:"type:varchar(16);not null"`
	IsApproved   bool       `json:"is_approved"`
	ApprovedBy   *string    `json:"approved_by,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`

	Timestamps
}
