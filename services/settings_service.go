package services

import (
	"errors"
	"time"

	"fest-event-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsService struct {
	DB *gorm.DB
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{DB: db}
}

// loadRegistrationSettings reads the singleton row, creating defaults on first use.
func loadRegistrationSettings(db *gorm.DB) (models.RegistrationSettings, error) {
	var rs models.RegistrationSettings
	err := db.First(&rs, models.SettingsID).Error
	if err == nil {
		return rs, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return rs, dbErr(err, "failed to load registration settings")
	}
	rs = models.DefaultRegistrationSettings()
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rs).Error; err != nil {
		return rs, dbErr(err, "failed to create registration settings")
	}
	return rs, nil
}

func (s *SettingsService) Registration() (models.RegistrationSettings, error) {
	return loadRegistrationSettings(s.DB)
}

type RegistrationSettingsInput struct {
	RegistrationOpen    *bool    `json:"registration_open"`
	DiscountEnabled     *bool    `json:"discount_enabled"`
	DiscountMinEvents   *int     `json:"discount_min_events" validate:"omitempty,gte=0"`
	DiscountType        *string  `json:"discount_type" validate:"omitempty,oneof=percentage fixed"`
	DiscountValue       *float64 `json:"discount_value" validate:"omitempty,gte=0"`
	PaymentUPIID        *string  `json:"payment_upi_id"`
	PaymentInstructions *string  `json:"payment_instructions"`
}

func (s *SettingsService) UpdateRegistration(in RegistrationSettingsInput) (models.RegistrationSettings, error) {
	if err := validateInput(in); err != nil {
		return models.RegistrationSettings{}, err
	}
	rs, err := loadRegistrationSettings(s.DB)
	if err != nil {
		return rs, err
	}

	if in.RegistrationOpen != nil {
		rs.RegistrationOpen = *in.RegistrationOpen
	}
	if in.DiscountEnabled != nil {
		rs.DiscountEnabled = *in.DiscountEnabled
	}
	if in.DiscountMinEvents != nil {
		rs.DiscountMinEvents = *in.DiscountMinEvents
	}
	if in.DiscountType != nil {
		rs.DiscountType = *in.DiscountType
	}
	if in.DiscountValue != nil {
		rs.DiscountValue = *in.DiscountValue
	}
	if in.PaymentUPIID != nil {
		rs.PaymentUPIID = *in.PaymentUPIID
	}
	if in.PaymentInstructions != nil {
		rs.PaymentInstructions = *in.PaymentInstructions
	}
	if rs.DiscountType == models.DiscountPercentage && rs.DiscountValue > 100 {
		return rs, badRequest("percentage discount cannot exceed 100")
	}

	if err := s.DB.Save(&rs).Error; err != nil {
		return rs, dbErr(err, "failed to save registration settings")
	}
	return rs, nil
}

func (s *SettingsService) Event() (models.EventSettings, error) {
	var es models.EventSettings
	err := s.DB.First(&es, models.SettingsID).Error
	if err == nil {
		return es, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return es, dbErr(err, "failed to load event settings")
	}
	es = models.DefaultEventSettings()
	if err := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&es).Error; err != nil {
		return es, dbErr(err, "failed to create event settings")
	}
	return es, nil
}

type EventSettingsInput struct {
	FestName         *string    `json:"fest_name"`
	Tagline          *string    `json:"tagline"`
	Venue            *string    `json:"venue"`
	ContactEmail     *string    `json:"contact_email" validate:"omitempty,email"`
	ContactPhone     *string    `json:"contact_phone"`
	Announcement     *string    `json:"announcement"`
	ResultsPublished *bool      `json:"results_published"`
	StartDate        *time.Time `json:"start_date"`
	EndDate          *time.Time `json:"end_date"`
}

func (s *SettingsService) UpdateEvent(in EventSettingsInput) (models.EventSettings, error) {
	if err := validateInput(in); err != nil {
		return models.EventSettings{}, err
	}
	es, err := s.Event()
	if err != nil {
		return es, err
	}

	if in.FestName != nil {
		es.FestName = *in.FestName
	}
	if in.Tagline != nil {
		es.Tagline = *in.Tagline
	}
	if in.Venue != nil {
		es.Venue = *in.Venue
	}
	if in.ContactEmail != nil {
		es.ContactEmail = *in.ContactEmail
	}
	if in.ContactPhone != nil {
		es.ContactPhone = *in.ContactPhone
	}
	if in.Announcement != nil {
		es.Announcement = *in.Announcement
	}
	if in.ResultsPublished != nil {
		es.ResultsPublished = *in.ResultsPublished
	}
	if in.StartDate != nil {
		es.StartDate = in.StartDate
	}
	if in.EndDate != nil {
		es.EndDate = in.EndDate
	}
	if es.StartDate != nil && es.EndDate != nil && es.EndDate.Before(*es.StartDate) {
		return es, badRequest("end_date must not be before start_date")
	}

	if err := s.DB.Save(&es).Error; err != nil {
		return es, dbErr(err, "failed to save event settings")
	}
	return es, nil
}
