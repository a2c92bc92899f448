package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoundPending   = "pending"
	RoundActive    = "active"
	RoundCompleted = "completed"
)

// Round is one stage of a sub-event. (sub_event_id, round_number) is unique.
type Round struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	SubEventID    string     `json:"sub_event_id" gorm:"not null;uniqueIndex:idx_round_sub_event_number"`
	RoundNumber   int        `json:"round_number" gorm:"not null;uniqueIndex:idx_round_sub_event_number"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	IsElimination bool       `json:"is_elimination"`
	Status        string     `json:"status" gorm:"index;not null"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`

	ParticipantIDs datatypes.JSONSlice[string] `json:"participant_ids"`
	WinnerIDs      datatypes.JSONSlice[string] `json:"winner_ids"`

	Timestamps
}

func (r *Round) HasParticipant(id string) bool {
	for _, p := range r.ParticipantIDs {
		if p == id {
			return true
		}
	}
	return false
}

// AddParticipants appends ids not already listed and returns how many were added.
func (r *Round) AddParticipants(ids ...string) int {
	seen := make(map[string]struct{}, len(r.ParticipantIDs))
	for _, p := range r.ParticipantIDs {
		seen[p] = struct{}{}
	}
	added := 0
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		r.ParticipantIDs = append(r.ParticipantIDs, id)
		added++
	}
	return added
}
