package models

import (
	"math"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ParameterScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// ParticipantRating is a judge's verdict on one group member.
type ParticipantRating struct {
	ParticipantID        string           `json:"participant_id"`
	Scores               []ParameterScore `json:"scores,omitempty"`
	Total                float64          `json:"total"`
	SelectedForNextRound bool             `json:"selected_for_next_round"`
	Remarks              string           `json:"remarks,omitempty"`
}

// Evaluation is one judge's scoring of one group; (group_id, judge_id) is unique.
type Evaluation struct {
	ID         string `json:"id" gorm:"primaryKey"`
	GroupID    string `json:"group_id" gorm:"not null;uniqueIndex:idx_evaluation_group_judge"`
	JudgeID    string `json:"judge_id" gorm:"not null;uniqueIndex:idx_evaluation_group_judge"`
	PanelID    string `json:"panel_id" gorm:"not null;index"`
	RoundID    string `json:"round_id" gorm:"not null;index"`
	SubEventID string `json:"sub_event_id" gorm:"not null;index"`

	Scores  datatypes.JSONSlice[ParameterScore]    `json:"scores"`
	Ratings datatypes.JSONSlice[ParticipantRating] `json:"ratings"`

	TotalScore  float64   `json:"total_score"`
	MaxScore    float64   `json:"max_score"`
	Percentage  float64   `json:"percentage"`
	Comments    string    `json:"comments,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`

	Timestamps
}

// BeforeSave keeps Percentage in step with the stored totals.
func (e *Evaluation) BeforeSave(tx *gorm.DB) error {
	e.Percentage = Percentage(e.TotalScore, e.MaxScore)
	return nil
}

// SelectedParticipantIDs lists members this judge flagged for the next round.
func (e *Evaluation) SelectedParticipantIDs() []string {
	var ids []string
	for _, r := range e.Ratings {
		if r.SelectedForNextRound {
			ids = append(ids, r.ParticipantID)
		}
	}
	return ids
}

// Percentage rounds total/max to two decimals; zero max yields zero.
func Percentage(total, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return math.Round(total/max*10000) / 100
}
