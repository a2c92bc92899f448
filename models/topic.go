package models

import "time"

// Topic is a prompt drawn for a group (debates, extempore, ...).
type Topic struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	SubEventID    string     `json:"sub_event_id" gorm:"not null;index"`
	Content       string     `json:"content" gorm:"type:text;not null"`
	IsUsed        bool       `json:"is_used" gorm:"index"`
	UsedByGroupID *string    `json:"used_by_group_id,omitempty"`
	UsedByPanelID *string    `json:"used_by_panel_id,omitempty"`
	UsedAt        *time.Time `json:"used_at,omitempty"`

	Timestamps
}
