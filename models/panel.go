package models

import (
	"time"

	"gorm.io/datatypes"
)

// EvaluationParameter is one scoring criterion of a panel.
type EvaluationParameter struct {
	Name     string  `json:"name" validate:"required"`
	MaxScore float64 `json:"max_score" validate:"gt=0"`
	Weight   float64 `json:"weight" validate:"gte=0"`
}

// EffectiveWeight treats an unset weight as 1.
func (p EvaluationParameter) EffectiveWeight() float64 {
	if p.Weight <= 0 {
		return 1
	}
	return p.Weight
}

type Panel struct {
	ID         string                                   `json:"id" gorm:"primaryKey"`
	SubEventID string                                   `json:"sub_event_id" gorm:"not null;index"`
	RoundID    *string                                  `json:"round_id,omitempty" gorm:"index"`
	Name       string                                   `json:"name" gorm:"not null"`
	Venue      string                                   `json:"venue,omitempty"`
	Parameters datatypes.JSONSlice[EvaluationParameter] `json:"parameters"`

	Judges []Judge `json:"judges,omitempty" gorm:"foreignKey:PanelID;constraint:OnDelete:CASCADE"`
	Groups []Group `json:"groups,omitempty" gorm:"foreignKey:PanelID"`

	Timestamps
}

// WeightedMax is the best achievable weighted total for one evaluation.
func (p *Panel) WeightedMax() float64 {
	total := 0.0
	for _, param := range p.Parameters {
		total += param.MaxScore * param.EffectiveWeight()
	}
	return total
}

func (p *Panel) Parameter(name string) (EvaluationParameter, bool) {
	for _, param := range p.Parameters {
		if param.Name == name {
			return param, true
		}
	}
	return EvaluationParameter{}, false
}

// Judge belongs to a panel; AccessCode is unique across all panels.
type Judge struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	PanelID        string     `json:"panel_id" gorm:"not null;index"`
	Name           string     `json:"name" gorm:"not null"`
	Email          string     `json:"email,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	AccessCode     string     `json:"access_code" gorm:"uniqueIndex;not null"`
	HasAccessed    bool       `json:"has_accessed"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	Timestamps
}
