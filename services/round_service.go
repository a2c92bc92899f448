package services

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"fest-event-system/models"
	"fest-event-system/realtime"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RoundService struct {
	DB       *gorm.DB
	Events   realtime.Broadcaster
	Notifier *Notifier
}

func NewRoundService(db *gorm.DB, events realtime.Broadcaster, notifier *Notifier) *RoundService {
	return &RoundService{DB: db, Events: events, Notifier: notifier}
}

type CreateRoundInput struct {
	SubEventID    string `json:"sub_event_id" validate:"required"`
	RoundNumber   int    `json:"round_number" validate:"gte=0"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	IsElimination bool   `json:"is_elimination"`
}

// approvedRegistrantIDs lists approved participants confirmed for a sub-event, by chest number.
func approvedRegistrantIDs(db *gorm.DB, subEventID string, availability ...string) ([]string, error) {
	q := db.Model(&models.Participant{}).
		Joins("JOIN participant_events ON participant_events.participant_id = participants.id").
		Where("participant_events.sub_event_id = ? AND participant_events.confirmed = ? AND participants.status = ?",
			subEventID, true, models.ParticipantApproved)
	if len(availability) > 0 {
		q = q.Where("participants.availability IN ?", availability)
	}
	var ids []string
	err := q.Order("participants.chest_number ASC").Pluck("participants.id", &ids).Error
	return ids, err
}

// CreateRound adds a round to a sub-event. Round 1 starts with every approved registrant.
func (s *RoundService) CreateRound(in CreateRoundInput) (*models.Round, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	var se models.SubEvent
	if err := s.DB.First(&se, "id = ?", in.SubEventID).Error; err != nil {
		return nil, lookupErr(err, "sub-event")
	}
	if se.Status == models.SubEventCompleted {
		return nil, badRequest("%s is already completed", se.Name)
	}

	if in.RoundNumber == 0 {
		var max int
		if err := s.DB.Model(&models.Round{}).Where("sub_event_id = ?", se.ID).
			Select("COALESCE(MAX(round_number), 0)").Scan(&max).Error; err != nil {
			return nil, dbErr(err, "failed to read round numbers")
		}
		in.RoundNumber = max + 1
	}

	var existing int64
	if err := s.DB.Model(&models.Round{}).
		Where("sub_event_id = ? AND round_number = ?", se.ID, in.RoundNumber).
		Count(&existing).Error; err != nil {
		return nil, dbErr(err, "failed to check round")
	}
	if existing > 0 {
		return nil, conflict("round %d already exists for %s", in.RoundNumber, se.Name)
	}

	round := &models.Round{
		ID:             uuid.NewString(),
		SubEventID:     se.ID,
		RoundNumber:    in.RoundNumber,
		Name:           strings.TrimSpace(in.Name),
		Description:    in.Description,
		IsElimination:  in.IsElimination,
		Status:         models.RoundPending,
		ParticipantIDs: []string{},
		WinnerIDs:      []string{},
	}
	if round.Name == "" {
		round.Name = fmt.Sprintf("Round %d", in.RoundNumber)
	}

	if in.RoundNumber == 1 {
		ids, err := approvedRegistrantIDs(s.DB, se.ID)
		if err != nil {
			return nil, dbErr(err, "failed to seed round")
		}
		round.AddParticipants(ids...)
	}

	if err := s.DB.Create(round).Error; err != nil {
		if IsDuplicateKey(err) {
			return nil, conflict("round %d already exists for %s", in.RoundNumber, se.Name)
		}
		return nil, fmt.Errorf("failed to create round: %w", err)
	}
	log.Printf("✅ [ROUND] Created %s #%d for %s with %d participant(s)", round.Name, round.RoundNumber, se.Name, len(round.ParticipantIDs))
	return round, nil
}

func (s *RoundService) GetRound(id string) (*models.Round, error) {
	var r models.Round
	if err := s.DB.First(&r, "id = ?", id).Error; err != nil {
		return nil, lookupErr(err, "round")
	}
	return &r, nil
}

func (s *RoundService) ListRounds(subEventID string) ([]models.Round, error) {
	var rounds []models.Round
	if err := s.DB.Where("sub_event_id = ?", subEventID).Order("round_number ASC").Find(&rounds).Error; err != nil {
		return nil, dbErr(err, "failed to list rounds")
	}
	return rounds, nil
}

// lockRound loads a round for update inside tx.
func lockRound(tx *gorm.DB, id string) (*models.Round, error) {
	var r models.Round
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&r, "id = ?", id).Error; err != nil {
		return nil, lookupErr(err, "round")
	}
	return &r, nil
}

// StartRound makes a pending round active and marks its participants busy.
func (s *RoundService) StartRound(id string) (*models.Round, error) {
	var round *models.Round
	now := time.Now()

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		round, err = lockRound(tx, id)
		if err != nil {
			return err
		}
		if round.Status != models.RoundPending {
			return badRequest("round is already %s", round.Status)
		}

		res := tx.Model(&models.Round{}).Where("id = ? AND status = ?", id, models.RoundPending).
			Updates(map[string]interface{}{"status": models.RoundActive, "started_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return conflict("round status changed concurrently, retry")
		}
		round.Status = models.RoundActive
		round.StartedAt = &now

		ids := []string(round.ParticipantIDs)
		if len(ids) > 0 {
			if err := tx.Model(&models.Participant{}).Where("id IN ?", ids).Updates(map[string]interface{}{
				"availability":         models.AvailabilityBusy,
				"current_sub_event_id": round.SubEventID,
				"current_round_id":     round.ID,
			}).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.ParticipantEvent{}).
				Where("sub_event_id = ? AND participant_id IN ?", round.SubEventID, ids).
				Updates(map[string]interface{}{
					"status":           models.EventActive,
					"current_round_id": round.ID,
					"round_number":     round.RoundNumber,
				}).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.SubEvent{}).
			Where("id = ? AND status = ?", round.SubEventID, models.SubEventNotStarted).
			Update("status", models.SubEventActive).Error
	})
	if err != nil {
		return nil, dbErr(err, "failed to start round")
	}

	log.Printf("▶️ [ROUND] Started %s (%d participant(s))", round.Name, len(round.ParticipantIDs))
	payload := map[string]any{
		"round_id":     round.ID,
		"sub_event_id": round.SubEventID,
		"round_number": round.RoundNumber,
		"name":         round.Name,
		"started_at":   now,
	}
	s.Events.Publish(realtime.RoundRoom(round.ID), realtime.EventRoundStarted, payload)
	s.Events.Publish(realtime.SubEventRoom(round.SubEventID), realtime.EventRoundStarted, payload)
	s.Events.Publish(realtime.RoomAdmin, realtime.EventRoundStarted, payload)
	s.Events.Publish(realtime.RoomAdmin, realtime.EventAvailabilityUpdate, map[string]any{
		"participant_ids": []string(round.ParticipantIDs),
		"availability":    models.AvailabilityBusy,
	})
	for _, pid := range round.ParticipantIDs {
		s.Notifier.Notify(pid, NoticeRound, round.Name+" has started",
			fmt.Sprintf("%s is now live. Please stay at the venue until you are called.", round.Name), round.SubEventID)
	}
	return round, nil
}

// EndRound completes an active round and frees its participants, except those
// whose result (qualified or rejected) is already recorded.
func (s *RoundService) EndRound(id string) (*models.Round, error) {
	var round *models.Round
	now := time.Now()

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		round, err = lockRound(tx, id)
		if err != nil {
			return err
		}
		if round.Status != models.RoundActive {
			return badRequest("only an active round can be ended (round is %s)", round.Status)
		}

		res := tx.Model(&models.Round{}).Where("id = ? AND status = ?", id, models.RoundActive).
			Updates(map[string]interface{}{"status": models.RoundCompleted, "ended_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return conflict("round status changed concurrently, retry")
		}
		round.Status = models.RoundCompleted
		round.EndedAt = &now

		ids := []string(round.ParticipantIDs)
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&models.Participant{}).
			Where("id IN ? AND availability NOT IN ?", ids,
				[]string{models.AvailabilityQualified, models.AvailabilityRejected}).
			Update("availability", models.AvailabilityAvailable).Error
	})
	if err != nil {
		return nil, dbErr(err, "failed to end round")
	}

	log.Printf("⏹️ [ROUND] Ended %s", round.Name)
	payload := map[string]any{
		"round_id":     round.ID,
		"sub_event_id": round.SubEventID,
		"round_number": round.RoundNumber,
		"ended_at":     now,
	}
	s.Events.Publish(realtime.RoundRoom(round.ID), realtime.EventRoundEnded, payload)
	s.Events.Publish(realtime.SubEventRoom(round.SubEventID), realtime.EventRoundEnded, payload)
	s.Events.Publish(realtime.RoomAdmin, realtime.EventRoundEnded, payload)
	s.Events.Publish(realtime.RoomAdmin, realtime.EventAvailabilityUpdate, map[string]any{
		"participant_ids": []string(round.ParticipantIDs),
		"availability":    models.AvailabilityAvailable,
	})
	return round, nil
}

type PromotionResult struct {
	RoundID     string   `json:"round_id"`
	NextRoundID string   `json:"next_round_id"`
	Promoted    []string `json:"promoted"`
	Eliminated  []string `json:"eliminated"`
}

// selectedUnion collects participants flagged by any judge, in first-seen order.
func selectedUnion(evals []models.Evaluation) []string {
	union := []string{}
	seen := map[string]bool{}
	for i := range evals {
		for _, pid := range evals[i].SelectedParticipantIDs() {
			if !seen[pid] {
				seen[pid] = true
				union = append(union, pid)
			}
		}
	}
	return union
}

// PromoteSelected moves every participant selected by at least one judge into
// the next round and eliminates the rest of the round. Re-running it yields the
// same state.
func (s *RoundService) PromoteSelected(roundID string) (*PromotionResult, error) {
	round, err := s.GetRound(roundID)
	if err != nil {
		return nil, err
	}

	var next models.Round
	err = s.DB.Where("sub_event_id = ? AND round_number = ?", round.SubEventID, round.RoundNumber+1).First(&next).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, badRequest("round %d does not exist yet; create it before promoting", round.RoundNumber+1)
	}
	if err != nil {
		return nil, dbErr(err, "failed to load next round")
	}

	// No evaluations means an empty union: nobody moves on.
	promoted := []string{}
	eliminated := []string{}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		nextLocked, err := lockRound(tx, next.ID)
		if err != nil {
			return err
		}
		current, err := lockRound(tx, round.ID)
		if err != nil {
			return err
		}

		var evals []models.Evaluation
		if err := tx.Where("round_id = ?", current.ID).Order("submitted_at ASC").Find(&evals).Error; err != nil {
			return err
		}
		promoted = selectedUnion(evals)
		isPromoted := make(map[string]bool, len(promoted))
		for _, pid := range promoted {
			isPromoted[pid] = true
		}
		for _, pid := range current.ParticipantIDs {
			if !isPromoted[pid] {
				eliminated = append(eliminated, pid)
			}
		}

		nextLocked.AddParticipants(promoted...)
		if err := tx.Model(&models.Round{}).Where("id = ?", next.ID).
			Update("participant_ids", nextLocked.ParticipantIDs).Error; err != nil {
			return err
		}

		current.AddParticipants(promoted...)
		current.WinnerIDs = promoted
		if err := tx.Model(&models.Round{}).Where("id = ?", current.ID).Updates(map[string]interface{}{
			"winner_ids":      current.WinnerIDs,
			"participant_ids": current.ParticipantIDs,
		}).Error; err != nil {
			return err
		}

		if len(promoted) > 0 {
			if err := tx.Model(&models.Participant{}).Where("id IN ?", promoted).
				Update("availability", models.AvailabilityQualified).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.ParticipantEvent{}).
				Where("sub_event_id = ? AND participant_id IN ?", round.SubEventID, promoted).
				Updates(map[string]interface{}{
					"status":           models.EventQualified,
					"current_round_id": next.ID,
					"round_number":     next.RoundNumber,
				}).Error; err != nil {
				return err
			}
		}
		if len(eliminated) > 0 {
			if err := tx.Model(&models.ParticipantEvent{}).
				Where("sub_event_id = ? AND participant_id IN ?", round.SubEventID, eliminated).
				Update("status", models.EventEliminated).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, dbErr(err, "failed to promote participants")
	}

	result := &PromotionResult{RoundID: round.ID, NextRoundID: next.ID, Promoted: promoted, Eliminated: eliminated}
	log.Printf("🏆 [ROUND] %s: promoted %d, eliminated %d into %s", round.Name, len(promoted), len(eliminated), next.Name)

	payload := map[string]any{
		"round_id":      round.ID,
		"next_round_id": next.ID,
		"sub_event_id":  round.SubEventID,
		"promoted":      len(promoted),
		"eliminated":    len(eliminated),
	}
	s.Events.Publish(realtime.RoundRoom(round.ID), realtime.EventRoundPromoted, payload)
	s.Events.Publish(realtime.SubEventRoom(round.SubEventID), realtime.EventRoundPromoted, payload)
	s.Events.Publish(realtime.RoomAdmin, realtime.EventRoundPromoted, payload)
	for _, pid := range promoted {
		s.Notifier.Notify(pid, NoticeQualified, "You qualified!",
			fmt.Sprintf("Congratulations, you have qualified for %s.", next.Name), round.SubEventID)
	}
	return result, nil
}

// ShortlistParticipants adds approved registrants to a round by hand.
func (s *RoundService) ShortlistParticipants(roundID string, participantIDs []string) (*models.Round, int, error) {
	participantIDs = dedupe(participantIDs)
	if len(participantIDs) == 0 {
		return nil, 0, badRequest("participant_ids is required")
	}

	var round *models.Round
	added := 0
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		round, err = lockRound(tx, roundID)
		if err != nil {
			return err
		}
		if round.Status == models.RoundCompleted {
			return badRequest("cannot shortlist into a completed round")
		}

		eligible, err := approvedRegistrantIDs(tx, round.SubEventID)
		if err != nil {
			return err
		}
		ok := make(map[string]bool, len(eligible))
		for _, id := range eligible {
			ok[id] = true
		}
		for _, id := range participantIDs {
			if !ok[id] {
				return badRequest("participant %s is not an approved registrant of this sub-event", id)
			}
		}

		added = round.AddParticipants(participantIDs...)
		return tx.Model(&models.Round{}).Where("id = ?", round.ID).
			Update("participant_ids", round.ParticipantIDs).Error
	})
	if err != nil {
		return nil, 0, dbErr(err, "failed to shortlist participants")
	}
	return round, added, nil
}

// deleteRoundTree removes a round with its groups, members, evaluations and panels.
func deleteRoundTree(tx *gorm.DB, roundID string) error {
	var groupIDs []string
	if err := tx.Model(&models.Group{}).Where("round_id = ?", roundID).Pluck("id", &groupIDs).Error; err != nil {
		return err
	}
	if len(groupIDs) > 0 {
		if err := tx.Model(&models.Topic{}).Where("used_by_group_id IN ?", groupIDs).Updates(map[string]interface{}{
			"is_used":          false,
			"used_by_group_id": nil,
			"used_by_panel_id": nil,
			"used_at":          nil,
		}).Error; err != nil {
			return err
		}
	}
	if err := tx.Where("round_id = ?", roundID).Delete(&models.Evaluation{}).Error; err != nil {
		return err
	}
	if err := tx.Where("round_id = ?", roundID).Delete(&models.GroupMember{}).Error; err != nil {
		return err
	}
	if err := tx.Where("round_id = ?", roundID).Delete(&models.Group{}).Error; err != nil {
		return err
	}

	var panelIDs []string
	if err := tx.Model(&models.Panel{}).Where("round_id = ?", roundID).Pluck("id", &panelIDs).Error; err != nil {
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

	if err := tx.Where("round_key = ?", roundID).Delete(&models.Attendance{}).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.ParticipantEvent{}).Where("current_round_id = ?", roundID).
		Update("current_round_id", nil).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.Participant{}).Where("current_round_id = ?", roundID).
		Update("current_round_id", nil).Error; err != nil {
		return err
	}
	return tx.Delete(&models.Round{}, "id = ?", roundID).Error
}

// DeleteRound removes a round and everything formed inside it.
func (s *RoundService) DeleteRound(id string) error {
	round, err := s.GetRound(id)
	if err != nil {
		return err
	}
	if err := s.DB.Transaction(func(tx *gorm.DB) error {
		return deleteRoundTree(tx, round.ID)
	}); err != nil {
		return dbErr(err, "failed to delete round")
	}
	log.Printf("🗑️ [ROUND] Deleted %s of sub-event %s", round.Name, round.SubEventID)
	return nil
}

type GroupStanding struct {
	Rank             int      `json:"rank"`
	GroupID          string   `json:"group_id"`
	GroupNumber      int      `json:"group_number"`
	Name             string   `json:"name"`
	AverageScore     float64  `json:"average_score"`
	EvaluationStatus string   `json:"evaluation_status"`
	Evaluations      int      `json:"evaluations"`
	ParticipantIDs   []string `json:"participant_ids"`
}

type RoundResults struct {
	Round     *models.Round   `json:"round"`
	Standings []GroupStanding `json:"standings"`
	Selected  map[string]int  `json:"selected"`
}

// Results ranks the round's groups by average score and counts judge selections.
func (s *RoundService) Results(roundID string) (*RoundResults, error) {
	round, err := s.GetRound(roundID)
	if err != nil {
		return nil, err
	}
	var groups []models.Group
	if err := s.DB.Preload("Members").Where("round_id = ?", round.ID).Find(&groups).Error; err != nil {
		return nil, dbErr(err, "failed to load groups")
	}
	var evals []models.Evaluation
	if err := s.DB.Where("round_id = ?", round.ID).Find(&evals).Error; err != nil {
		return nil, dbErr(err, "failed to load evaluations")
	}

	perGroup := map[string]int{}
	selected := map[string]int{}
	for i := range evals {
		perGroup[evals[i].GroupID]++
		for _, pid := range evals[i].SelectedParticipantIDs() {
			selected[pid]++
		}
	}

	standings := make([]GroupStanding, 0, len(groups))
	for _, g := range groups {
		standings = append(standings, GroupStanding{
			GroupID:          g.ID,
			GroupNumber:      g.GroupNumber,
			Name:             g.Name,
			AverageScore:     g.AverageScore,
			EvaluationStatus: g.EvaluationStatus,
			Evaluations:      perGroup[g.ID],
			ParticipantIDs:   g.ParticipantIDs(),
		})
	}
	sort.SliceStable(standings, func(i, j int) bool {
		if standings[i].AverageScore != standings[j].AverageScore {
			return standings[i].AverageScore > standings[j].AverageScore
		}
		return standings[i].GroupNumber < standings[j].GroupNumber
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}
	return &RoundResults{Round: round, Standings: standings, Selected: selected}, nil
}
