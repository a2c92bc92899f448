package models

import "time"

const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// SettingsID is the primary key of both singleton settings rows.
const SettingsID = 1

// RegistrationSettings holds the global registration switch and bulk discount rule.
type RegistrationSettings struct {
	ID                  uint      `json:"-" gorm:"primaryKey"`
	RegistrationOpen    bool      `json:"registration_open"`
	DiscountEnabled     bool      `json:"discount_enabled"`
	DiscountMinEvents   int       `json:"discount_min_events"`
	DiscountType        string    `json:"discount_type"` // percentage | fixed
	DiscountValue       float64   `json:"discount_value"`
	PaymentUPIID        string    `json:"payment_upi_id,omitempty"`
	PaymentInstructions string    `json:"payment_instructions,omitempty" gorm:"type:text"`
	UpdatedAt           time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func DefaultRegistrationSettings() RegistrationSettings {
	return RegistrationSettings{
		ID:               SettingsID,
		RegistrationOpen: true,
		DiscountType:     DiscountPercentage,
	}
}

// EventSettings holds fest-wide display information.
type EventSettings struct {
	ID               uint       `json:"-" gorm:"primaryKey"`
	FestName         string     `json:"fest_name"`
	Tagline          string     `json:"tagline,omitempty"`
	Venue            string     `json:"venue,omitempty"`
	ContactEmail     string     `json:"contact_email,omitempty"`
	ContactPhone     string     `json:"contact_phone,omitempty"`
	Announcement     string     `json:"announcement,omitempty" gorm:"type:text"`
	ResultsPublished bool       `json:"results_published"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func DefaultEventSettings() EventSettings {
	return EventSettings{ID: SettingsID, FestName: "Fest"}
}
