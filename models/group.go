package models

import "time"

const (
	EvaluationPending    = "pending"
	EvaluationInProgress = "in_progress"
	EvaluationCompleted  = "completed"
)

type Group struct {
	ID               string     `json:"id" gorm:"primaryKey"`
	SubEventID       string     `json:"sub_event_id" gorm:"not null;index"`
	RoundID          string     `json:"round_id" gorm:"not null;uniqueIndex:idx_group_round_number"`
	GroupNumber      int        `json:"group_number" gorm:"not null;uniqueIndex:idx_group_round_number"`
	Name             string     `json:"name"`
	PanelID          *string    `json:"panel_id,omitempty" gorm:"index"`
	TopicID          *string    `json:"topic_id,omitempty"`
	EvaluationStatus string     `json:"evaluation_status" gorm:"not null"`
	AverageScore     float64    `json:"average_score"`
	Venue            string     `json:"venue,omitempty"`
	ScheduledAt      *time.Time `json:"scheduled_at,omitempty"`

	Members []GroupMember `json:"members,omitempty" gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`

	Timestamps
}

// GroupMember places a participant in a group. The (round_id, participant_id)
// unique index keeps a participant in at most one group per round.
type GroupMember struct {
	ID            string       `json:"id" gorm:"primaryKey"`
	GroupID       string       `json:"group_id" gorm:"not null;index"`
	RoundID       string       `json:"round_id" gorm:"not null;uniqueIndex:idx_group_member_round_participant"`
	ParticipantID string       `json:"participant_id" gorm:"not null;uniqueIndex:idx_group_member_round_participant"`
	Participant   *Participant `json:"participant,omitempty" gorm:"foreignKey:ParticipantID"`
	CreatedAt     time.Time    `json:"created_at" gorm:"autoCreateTime"`
}

// ParticipantIDs requires Members to be loaded.
func (g *Group) ParticipantIDs() []string {
	ids := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		ids = append(ids, m.ParticipantID)
	}
	return ids
}
