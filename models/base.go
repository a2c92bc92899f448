package models

import "time"

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// AllModels is the AutoMigrate set, in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&SubEvent{},
		&Participant{},
		&ParticipantEvent{},
		&Round{},
		&Panel{},
		&Judge{},
		&Group{},
		&GroupMember{},
		&Evaluation{},
		&Topic{},
		&Query{},
		&Counter{},
		&Attendance{},
		&Notification{},
		&RegistrationSettings{},
		&EventSettings{},
	}
}
