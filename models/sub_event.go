package models

import (
	"time"
)

const (
	SubEventIndividual = "individual"
	SubEventGroup      = "group"
)

const (
	SubEventNotStarted = "not_started"
	SubEventActive     = "active"
	SubEventCompleted  = "completed"
)

// SubEvent is one competition track of the fest.
type SubEvent struct {
	ID          string `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"uniqueIndex;not null"`
	Slug        string `json:"slug" gorm:"uniqueIndex;not null"`
	Description string `json:"description"`
	Rules       string `json:"rules" gorm:"type:text"`
	Type        string `json:"type" gorm:"not null"` // individual | group

	MinGroupSize int `json:"min_group_size"`
	MaxGroupSize int `json:"max_group_size"`

	Capacity int     `json:"capacity"` // 0 = unlimited
	Price    float64 `json:"price"`

	RegistrationOpen     bool       `json:"registration_open"`
	RegistrationStart    *time.Time `json:"registration_start,omitempty"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`

	Status string `json:"status" gorm:"index;not null"`

	RegisteredCount int `json:"registered_count"`
	ApprovedCount   int `json:"approved_count"`

	Venue       string     `json:"venue"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`

	Rounds []Round `json:"rounds,omitempty" gorm:"foreignKey:SubEventID"`

	Timestamps
}

// OpenForRegistration reports whether new entries may be accepted at now.
func (s *SubEvent) OpenForRegistration(now time.Time) bool {
	if !s.RegistrationOpen || s.Status == SubEventCompleted {
		return false
	}
	if s.RegistrationStart != nil && now.Before(*s.RegistrationStart) {
		return false
	}
	if s.RegistrationDeadline != nil && now.After(*s.RegistrationDeadline) {
		return false
	}
	return true
}

func (s *SubEvent) IsFull() bool {
	return s.Capacity > 0 && s.RegisteredCount >= s.Capacity
}

func (s *SubEvent) IsGroupEvent() bool {
	return s.Type == SubEventGroup
}
