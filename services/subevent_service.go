package services

import (
	"fmt"
	"log"
	"strings"
	"time"

	"fest-event-system/models"
	"fest-event-system/realtime"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type SubEventService struct {
	DB     *gorm.DB
	Events realtime.Broadcaster
}

func NewSubEventService(db *gorm.DB, events realtime.Broadcaster) *SubEventService {
	return &SubEventService{DB: db, Events: events}
}

type SubEventInput struct {
	Name                 string     `json:"name" validate:"required"`
	Description          string     `json:"description"`
	Rules                string     `json:"rules"`
	Type                 string     `json:"type" validate:"required,oneof=individual group"`
	MinGroupSize         int        `json:"min_group_size" validate:"gte=0"`
	MaxGroupSize         int        `json:"max_group_size" validate:"gte=0"`
	Capacity             int        `json:"capacity" validate:"gte=0"`
	Price                float64    `json:"price" validate:"gte=0"`
	RegistrationOpen     *bool      `json:"registration_open"`
	RegistrationStart    *time.Time `json:"registration_start"`
	RegistrationDeadline *time.Time `json:"registration_deadline"`
	Venue                string     `json:"venue"`
	ScheduledAt          *time.Time `json:"scheduled_at"`
}

func (in *SubEventInput) check() error {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(*in); err != nil {
		return err
	}
	if in.Type == models.SubEventGroup {
		if in.MinGroupSize < 1 {
			return badRequest("group sub-events need min_group_size of at least 1")
		}
		if in.MaxGroupSize != 0 && in.MaxGroupSize < in.MinGroupSize {
			return badRequest("max_group_size must be at least min_group_size")
		}
	}
	if in.RegistrationStart != nil && in.RegistrationDeadline != nil &&
		in.RegistrationDeadline.Before(*in.RegistrationStart) {
		return badRequest("registration_deadline must be after registration_start")
	}
	return nil
}

func (in SubEventInput) apply(se *models.SubEvent) {
	se.Name = in.Name
	se.Slug = slug.Make(in.Name)
	se.Description = in.Description
	se.Rules = in.Rules
	se.Type = in.Type
	se.MinGroupSize = in.MinGroupSize
	se.MaxGroupSize = in.MaxGroupSize
	se.Capacity = in.Capacity
	se.Price = in.Price
	if in.RegistrationOpen != nil {
		se.RegistrationOpen = *in.RegistrationOpen
	}
	se.RegistrationStart = in.RegistrationStart
	se.RegistrationDeadline = in.RegistrationDeadline
	se.Venue = in.Venue
	se.ScheduledAt = in.ScheduledAt
}

func (s *SubEventService) Create(in SubEventInput) (*models.SubEvent, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	se := &models.SubEvent{
		ID:               uuid.NewString(),
		Status:           models.SubEventNotStarted,
		RegistrationOpen: true,
	}
	in.apply(se)

	if err := s.DB.Omit("Rounds").Create(se).Error; err != nil {
		if IsDuplicateKey(err) {
			return nil, conflict("a sub-event named %q already exists", in.Name)
		}
		return nil, fmt.Errorf("failed to create sub-event: %w", err)
	}
	log.Printf("✅ [SUBEVENT] Created %s (%s)", se.Name, se.Type)
	return se, nil
}

func (s *SubEventService) Update(id string, in SubEventInput) (*models.SubEvent, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	se, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if se.Type != in.Type && se.RegisteredCount > 0 {
		return nil, badRequest("type cannot change once participants have registered")
	}
	in.apply(se)

	if err := s.DB.Omit("Rounds").Save(se).Error; err != nil {
		if IsDuplicateKey(err) {
			return nil, conflict("a sub-event named %q already exists", in.Name)
		}
		return nil, fmt.Errorf("failed to update sub-event: %w", err)
	}
	return se, nil
}

// Get accepts an id or a slug.
func (s *SubEventService) Get(idOrSlug string) (*models.SubEvent, error) {
	var se models.SubEvent
	err := s.DB.Preload("Rounds", func(db *gorm.DB) *gorm.DB {
		return db.Order("round_number ASC")
	}).Where("id = ? OR slug = ?", idOrSlug, idOrSlug).First(&se).Error
	if err != nil {
		return nil, lookupErr(err, "sub-event")
	}
	return &se, nil
}

func (s *SubEventService) List(status string, openOnly bool) ([]models.SubEvent, error) {
	q := s.DB.Order("name ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var events []models.SubEvent
	if err := q.Find(&events).Error; err != nil {
		return nil, dbErr(err, "failed to list sub-events")
	}
	if !openOnly {
		return events, nil
	}
	now := time.Now()
	open := events[:0]
	for _, se := range events {
		if se.OpenForRegistration(now) {
			open = append(open, se)
		}
	}
	return open, nil
}

var subEventTransitions = map[string][]string{
	models.SubEventNotStarted: {models.SubEventActive},
	models.SubEventActive:     {models.SubEventCompleted},
}

// SetStatus moves a sub-event forward. Use Restart to go back.
func (s *SubEventService) SetStatus(id, status string) (*models.SubEvent, error) {
	se, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, next := range subEventTransitions[se.Status] {
		if next == status {
			allowed = true
		}
	}
	if !allowed {
		return nil, badRequest("cannot move sub-event from %s to %s", se.Status, status)
	}

	res := s.DB.Model(&models.SubEvent{}).
		Where("id = ? AND status = ?", se.ID, se.Status).
		Update("status", status)
	if res.Error != nil {
		return nil, dbErr(res.Error, "failed to update sub-event status")
	}
	if res.RowsAffected == 0 {
		return nil, conflict("sub-event status changed concurrently, retry")
	}
	se.Status = status
	s.publishStatus(se)
	return se, nil
}

// ToggleRegistration flips the per-sub-event registration switch.
func (s *SubEventService) ToggleRegistration(id string) (*models.SubEvent, error) {
	se, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	se.RegistrationOpen = !se.RegistrationOpen
	if err := s.DB.Model(&models.SubEvent{}).Where("id = ?", se.ID).
		Update("registration_open", se.RegistrationOpen).Error; err != nil {
		return nil, dbErr(err, "failed to toggle registration")
	}
	s.publishStatus(se)
	return se, nil
}

// Restart wipes the sub-event's rounds and resets every registrant's progress.
func (s *SubEventService) Restart(id string) (*models.SubEvent, error) {
	se, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var roundIDs []string
		if err := tx.Model(&models.Round{}).Where("sub_event_id = ?", se.ID).Pluck("id", &roundIDs).Error; err != nil {
			return err
		}
		for _, rid := range roundIDs {
			if err := deleteRoundTree(tx, rid); err != nil {
				return err
			}
		}

		if err := tx.Model(&models.ParticipantEvent{}).Where("sub_event_id = ?", se.ID).
			Updates(map[string]interface{}{
				"status":           models.EventNotStarted,
				"current_round_id": nil,
				"round_number":     0,
			}).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Participant{}).
			Where("current_sub_event_id = ? AND availability IN ?", se.ID,
				[]string{models.AvailabilityBusy, models.AvailabilityQualified}).
			Updates(map[string]interface{}{
				"availability":         models.AvailabilityAvailable,
				"current_sub_event_id": nil,
				"current_round_id":     nil,
			}).Error; err != nil {
			return err
		}

		return tx.Model(&models.SubEvent{}).Where("id = ?", se.ID).
			Update("status", models.SubEventNotStarted).Error
	})
	if err != nil {
		return nil, dbErr(err, "failed to restart sub-event")
	}

	log.Printf("🔄 [SUBEVENT] Restarted %s", se.Name)
	return s.Get(se.ID)
}

// Delete is refused while anyone is registered.
func (s *SubEventService) Delete(id string) error {
	se, err := s.Get(id)
	if err != nil {
		return err
	}
	var registrants int64
	if err := s.DB.Model(&models.ParticipantEvent{}).Where("sub_event_id = ?", se.ID).Count(&registrants).Error; err != nil {
		return dbErr(err, "failed to count registrants")
	}
	if registrants > 0 || se.RegisteredCount > 0 {
		return badRequest("cannot delete %s: %d participant(s) registered", se.Name, registrants)
	}

	return dbErr(s.DB.Transaction(func(tx *gorm.DB) error {
		var roundIDs []string
		if err := tx.Model(&models.Round{}).Where("sub_event_id = ?", se.ID).Pluck("id", &roundIDs).Error; err != nil {
			return err
		}
		for _, rid := range roundIDs {
			if err := deleteRoundTree(tx, rid); err != nil {
				return err
			}
		}
		var panelIDs []string
		if err := tx.Model(&models.Panel{}).Where("sub_event_id = ?", se.ID).Pluck("id", &panelIDs).Error; err != nil {
			return err
		}
		if len(panelIDs) > 0 {
			if err := tx.Where("panel_id IN ?", panelIDs).Delete(&models.Judge{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", panelIDs).Delete(&models.Panel{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("sub_event_id = ?", se.ID).Delete(&models.Topic{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.SubEvent{}, "id = ?", se.ID).Error
	}), "failed to delete sub-event")
}

// CloseExpiredRegistrations turns off registration for sub-events past their deadline.
func (s *SubEventService) CloseExpiredRegistrations(now time.Time) (int, error) {
	var expired []models.SubEvent
	if err := s.DB.Where("registration_open = ? AND registration_deadline IS NOT NULL AND registration_deadline < ?", true, now).
		Find(&expired).Error; err != nil {
		return 0, dbErr(err, "failed to find expired registrations")
	}

	closed := 0
	for i := range expired {
		se := &expired[i]
		res := s.DB.Model(&models.SubEvent{}).
			Where("id = ? AND registration_open = ?", se.ID, true).
			Update("registration_open", false)
		if res.Error != nil {
			log.Printf("[Scheduler] Failed to close registration for %s: %v", se.Name, res.Error)
			continue
		}
		if res.RowsAffected == 1 {
			se.RegistrationOpen = false
			closed++
			s.publishStatus(se)
			log.Printf("⏰ [SUBEVENT] Registration closed for %s (deadline passed)", se.Name)
		}
	}
	return closed, nil
}

func (s *SubEventService) publishStatus(se *models.SubEvent) {
	payload := map[string]any{
		"sub_event_id":      se.ID,
		"name":              se.Name,
		"status":            se.Status,
		"registration_open": se.RegistrationOpen,
	}
	s.Events.Publish(realtime.SubEventRoom(se.ID), realtime.EventSubEventStatus, payload)
	s.Events.Publish(realtime.RoomAdmin, realtime.EventSubEventStatus, payload)
}
