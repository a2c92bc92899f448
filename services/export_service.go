package services

import (
	"fmt"

	"fest-event-system/exports"
	"fest-event-system/models"

	"gorm.io/gorm"
)

// ExportService loads complete, unpaginated datasets and shapes them into export tables.
type ExportService struct {
	DB *gorm.DB
}

func NewExportService(db *gorm.DB) *ExportService {
	return &ExportService{DB: db}
}

func (s *ExportService) subEventNames() (map[string]string, error) {
	var rows []models.SubEvent
	if err := s.DB.Select("id", "name").Find(&rows).Error; err != nil {
		return nil, dbErr(err, "failed to load sub-events")
	}
	names := make(map[string]string, len(rows))
	for _, se := range rows {
		names[se.ID] = se.Name
	}
	return names, nil
}

// Participants exports every participant matching status and sub-event,
// ordered by chest number.
func (s *ExportService) Participants(status, subEventID string) (exports.Table, error) {
	names, err := s.subEventNames()
	if err != nil {
		return exports.Table{}, err
	}

	q := s.DB.Model(&models.Participant{}).Preload("Events")
	title := "Participants"
	if status != "" {
		q = q.Where("status = ?", status)
		title = fmt.Sprintf("Participants (%s)", status)
	}
	if subEventID != "" {
		if _, ok := names[subEventID]; !ok {
			return exports.Table{}, notFound("sub-event")
		}
		q = q.Where("id IN (?)", s.DB.Model(&models.ParticipantEvent{}).
			Select("participant_id").Where("sub_event_id = ? AND confirmed = ?", subEventID, true))
		title = fmt.Sprintf("%s: %s", names[subEventID], title)
	}

	var rows []models.Participant
	if err := q.Order("chest_number ASC").Find(&rows).Error; err != nil {
		return exports.Table{}, dbErr(err, "failed to load participants")
	}
	return exports.ParticipantsTable(title, rows, names), nil
}

// Groups exports a round's group sheet, one row per member.
func (s *ExportService) Groups(roundID string) (exports.Table, error) {
	var round models.Round
	if err := s.DB.First(&round, "id = ?", roundID).Error; err != nil {
		return exports.Table{}, lookupErr(err, "round")
	}
	var se models.SubEvent
	if err := s.DB.Select("id", "name").First(&se, "id = ?", round.SubEventID).Error; err != nil {
		return exports.Table{}, lookupErr(err, "sub-event")
	}

	var groups []models.Group
	err := s.DB.Preload("Members.Participant").Where("round_id = ?", roundID).
		Order("group_number ASC").Find(&groups).Error
	if err != nil {
		return exports.Table{}, dbErr(err, "failed to load groups")
	}
	title := fmt.Sprintf("%s: Round %d groups", se.Name, round.RoundNumber)
	return exports.GroupsTable(title, groups), nil
}

// Attendance exports the marks for a sub-event, or one of its rounds when roundID is set.
func (s *ExportService) Attendance(subEventID, roundID string) (exports.Table, error) {
	var se models.SubEvent
	if err := s.DB.Select("id", "name").First(&se, "id = ?", subEventID).Error; err != nil {
		return exports.Table{}, lookupErr(err, "sub-event")
	}

	var rows []models.Attendance
	err := s.DB.Preload("Participant").
		Where("sub_event_id = ? AND round_key = ?", subEventID, roundID).
		Order("marked_at ASC").Find(&rows).Error
	if err != nil {
		return exports.Table{}, dbErr(err, "failed to load attendance")
	}
	return exports.AttendanceTable(se.Name+": Attendance", rows), nil
}
