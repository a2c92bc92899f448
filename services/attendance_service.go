package services

import (
	"log"
	"time"

	"fest-event-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttendanceService struct {
	DB *gorm.DB
}

func NewAttendanceService(db *gorm.DB) *AttendanceService {
	return &AttendanceService{DB: db}
}

type AttendanceMark struct {
	ParticipantID string `json:"participant_id" validate:"required"`
	Present       bool   `json:"present"`
}

type AttendanceInput struct {
	SubEventID string           `json:"sub_event_id" validate:"required"`
	RoundID    string           `json:"round_id"`
	Marks      []AttendanceMark `json:"marks" validate:"required,min=1,dive"`
}

type AttendanceStats struct {
	Registered int64   `json:"registered"`
	Marked     int64   `json:"marked"`
	Present    int64   `json:"present"`
	Absent     int64   `json:"absent"`
	Rate       float64 `json:"attendance_rate"`
}

// Mark records presence for a batch of participants, overwriting earlier marks
// for the same sub-event and round.
func (s *AttendanceService) Mark(in AttendanceInput, markedBy string) (int, error) {
	if err := validateInput(in); err != nil {
		return 0, err
	}
	var se models.SubEvent
	if err := s.DB.First(&se, "id = ?", in.SubEventID).Error; err != nil {
		return 0, lookupErr(err, "sub-event")
	}
	if in.RoundID != "" {
		var r models.Round
		if err := s.DB.First(&r, "id = ? AND sub_event_id = ?", in.RoundID, se.ID).Error; err != nil {
			return 0, lookupErr(err, "round")
		}
	}

	ids := make([]string, 0, len(in.Marks))
	for _, m := range in.Marks {
		ids = append(ids, m.ParticipantID)
	}
	var registered []string
	if err := s.DB.Model(&models.ParticipantEvent{}).
		Where("sub_event_id = ? AND participant_id IN ?", se.ID, ids).
		Pluck("participant_id", &registered).Error; err != nil {
		return 0, dbErr(err, "failed to check registrations")
	}
	ok := make(map[string]bool, len(registered))
	for _, id := range registered {
		ok[id] = true
	}

	now := time.Now()
	rows := make([]models.Attendance, 0, len(in.Marks))
	for _, m := range in.Marks {
		if !ok[m.ParticipantID] {
			return 0, badRequest("participant %s is not registered for %s", m.ParticipantID, se.Name)
		}
		rows = append(rows, models.Attendance{
			ID:            uuid.NewString(),
			ParticipantID: m.ParticipantID,
			SubEventID:    se.ID,
			RoundKey:      in.RoundID,
			Present:       m.Present,
			MarkedBy:      markedBy,
			MarkedAt:      now,
		})
	}

	err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "participant_id"}, {Name: "sub_event_id"}, {Name: "round_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"present", "marked_by", "marked_at"}),
	}).Create(&rows).Error
	if err != nil {
		return 0, dbErr(err, "failed to mark attendance")
	}
	log.Printf("📋 [ATTENDANCE] %d mark(s) for %s by %s", len(rows), se.Name, markedBy)
	return len(rows), nil
}

func (s *AttendanceService) List(subEventID, roundID string) ([]models.Attendance, error) {
	var rows []models.Attendance
	if err := s.DB.Preload("Participant").
		Where("sub_event_id = ? AND round_key = ?", subEventID, roundID).
		Order("marked_at ASC").Find(&rows).Error; err != nil {
		return nil, dbErr(err, "failed to list attendance")
	}
	return rows, nil
}

func (s *AttendanceService) Stats(subEventID, roundID string) (AttendanceStats, error) {
	var st AttendanceStats
	if err := s.DB.Model(&models.ParticipantEvent{}).
		Where("sub_event_id = ? AND confirmed = ?", subEventID, true).
		Count(&st.Registered).Error; err != nil {
		return st, dbErr(err, "failed to count registrations")
	}
	base := func() *gorm.DB {
		return s.DB.Model(&models.Attendance{}).Where("sub_event_id = ? AND round_key = ?", subEventID, roundID)
	}
	if err := base().Count(&st.Marked).Error; err != nil {
		return st, dbErr(err, "failed to count attendance")
	}
	if err := base().Where("present = ?", true).Count(&st.Present).Error; err != nil {
		return st, dbErr(err, "failed to count attendance")
	}
	st.Absent = st.Marked - st.Present
	st.Rate = models.Percentage(float64(st.Present), float64(st.Registered))
	return st, nil
}
