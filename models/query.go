package models

import "time"

const (
	QueryOpen     = "open"
	QueryResolved = "resolved"
)

// Query is a question sent through the public contact form.
type Query struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	ParticipantID *string    `json:"participant_id,omitempty" gorm:"index"`
	Name          string     `json:"name" gorm:"not null"`
	Email         string     `json:"email" gorm:"not null"`
	Phone         string     `json:"phone,omitempty"`
	Subject       string     `json:"subject"`
	Message       string     `json:"message" gorm:"type:text;not null"`
	Status        string     `json:"status" gorm:"index;not null"`
	Response      string     `json:"response,omitempty" gorm:"type:text"`
	RespondedBy   *string    `json:"responded_by,omitempty"`
	RespondedAt   *time.Time `json:"responded_at,omitempty"`

	Timestamps
}
