package models

import "time"

// Attendance marks a participant present or absent for a sub-event (and optionally a round).
type Attendance struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	ParticipantID string    `json:"participant_id" gorm:"not null;uniqueIndex:idx_attendance_entry"`
	SubEventID    string    `json:"sub_event_id" gorm:"not null;uniqueIndex:idx_attendance_entry"`
	RoundKey      string    `json:"round_id" gorm:"column:round_key;not null;uniqueIndex:idx_attendance_entry"` // "" = whole sub-event
	Present       bool      `json:"present"`
	MarkedBy      string    `json:"marked_by"`
	MarkedAt      time.Time `json:"marked_at"`

	Participant *Participant `json:"participant,omitempty" gorm:"foreignKey:ParticipantID"`
}
