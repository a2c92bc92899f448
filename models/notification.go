package models

// Notification is a persisted personal message shown in the participant inbox.
type Notification struct {
	ID            string `json:"id" gorm:"primaryKey"`
	ParticipantID string `json:"participant_id" gorm:"not null;index"`
	Type          string `json:"type" gorm:"type:varchar(32)"`
	Title         string `json:"title"`
	Message       string `json:"message" gorm:"type:text"`
	SubEventID    string `json:"sub_event_id,omitempty"`
	Read          bool   `json:"read" gorm:"column:is_read;index"`

	Timestamps
}
