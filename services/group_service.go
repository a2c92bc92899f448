package services

import (
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"time"

	"fest-event-system/models"
	"fest-event-system/realtime"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GroupService struct {
	DB       *gorm.DB
	Events   realtime.Broadcaster
	Notifier *Notifier

	// shuffle orders the auto-formation pool; tests replace it.
	shuffle func([]string)
}

func NewGroupService(db *gorm.DB, events realtime.Broadcaster, notifier *Notifier) *GroupService {
	return &GroupService{
		DB:       db,
		Events:   events,
		Notifier: notifier,
		shuffle: func(ids []string) {
			rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		},
	}
}

// partitionGroups splits ids into chunks of size. A short tail is dealt
// round-robin into the full chunks, or kept as the only chunk when there are none.
func partitionGroups(ids []string, size int) [][]string {
	if len(ids) == 0 || size < 1 {
		return nil
	}
	var groups [][]string
	i := 0
	for ; i+size <= len(ids); i += size {
		groups = append(groups, append([]string(nil), ids[i:i+size]...))
	}
	rest := ids[i:]
	if len(rest) == 0 {
		return groups
	}
	if len(groups) == 0 {
		return [][]string{append([]string(nil), rest...)}
	}
	for k, id := range rest {
		g := k % len(groups)
		groups[g] = append(groups[g], id)
	}
	return groups
}

type AutoFormInput struct {
	SubEventID string `json:"sub_event_id" validate:"required"`
	RoundID    string `json:"round_id" validate:"required"`
	GroupSize  int    `json:"group_size" validate:"gte=0"`
}

var formableAvailability = []string{models.AvailabilityAvailable, models.AvailabilityQualified}

// filterByAvailability keeps ids whose participant is approved with one of the
// given availabilities, preserving order.
func filterByAvailability(db *gorm.DB, ids []string, availability []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var ok []string
	if err := db.Model(&models.Participant{}).
		Where("id IN ? AND status = ? AND availability IN ?", ids, models.ParticipantApproved, availability).
		Pluck("id", &ok).Error; err != nil {
		return nil, err
	}
	keep := make(map[string]bool, len(ok))
	for _, id := range ok {
		keep[id] = true
	}
	out := make([]string, 0, len(ok))
	for _, id := range ids {
		if keep[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

// formationPool resolves who may be grouped in round.
func formationPool(tx *gorm.DB, round *models.Round) ([]string, error) {
	if len(round.ParticipantIDs) > 0 {
		return filterByAvailability(tx, round.ParticipantIDs, formableAvailability)
	}
	if round.RoundNumber <= 1 {
		return approvedRegistrantIDs(tx, round.SubEventID, models.AvailabilityAvailable)
	}
	var prev models.Round
	err := tx.Where("sub_event_id = ? AND round_number = ?", round.SubEventID, round.RoundNumber-1).First(&prev).Error
	if err != nil {
		return nil, lookupErr(err, fmt.Sprintf("round %d", round.RoundNumber-1))
	}
	return filterByAvailability(tx, prev.WinnerIDs, formableAvailability)
}

func groupedInRound(tx *gorm.DB, roundID string) (map[string]bool, error) {
	var ids []string
	if err := tx.Model(&models.GroupMember{}).Where("round_id = ?", roundID).Pluck("participant_id", &ids).Error; err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func nextGroupNumber(tx *gorm.DB, roundID string) (int, error) {
	var max int
	err := tx.Model(&models.Group{}).Where("round_id = ?", roundID).
		Select("COALESCE(MAX(group_number), 0)").Scan(&max).Error
	return max + 1, err
}

func newGroupMembers(groupID, roundID string, ids []string) []models.GroupMember {
	members := make([]models.GroupMember, 0, len(ids))
	for _, pid := range ids {
		members = append(members, models.GroupMember{
			ID:            uuid.NewString(),
			GroupID:       groupID,
			RoundID:       roundID,
			ParticipantID: pid,
		})
	}
	return members
}

// AutoFormGroups shuffles the round's eligible pool into groups of GroupSize.
func (s *GroupService) AutoFormGroups(in AutoFormInput) ([]models.Group, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	var se models.SubEvent
	if err := s.DB.First(&se, "id = ?", in.SubEventID).Error; err != nil {
		return nil, lookupErr(err, "sub-event")
	}
	size := in.GroupSize
	if size == 0 {
		size = se.MinGroupSize
	}
	if size < 1 {
		return nil, badRequest("group_size must be at least 1")
	}
	if se.IsGroupEvent() {
		if size < se.MinGroupSize {
			return nil, badRequest("group_size %d is below the minimum of %d for %s", size, se.MinGroupSize, se.Name)
		}
		if se.MaxGroupSize > 0 && size > se.MaxGroupSize {
			return nil, badRequest("group_size %d exceeds the maximum of %d for %s", size, se.MaxGroupSize, se.Name)
		}
	}

	var created []models.Group
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		round, err := lockRound(tx, in.RoundID)
		if err != nil {
			return err
		}
		if round.SubEventID != se.ID {
			return badRequest("round does not belong to %s", se.Name)
		}
		if round.Status == models.RoundCompleted {
			return badRequest("cannot form groups in a completed round")
		}

		pool, err := formationPool(tx, round)
		if err != nil {
			return err
		}
		grouped, err := groupedInRound(tx, round.ID)
		if err != nil {
			return err
		}
		eligible := make([]string, 0, len(pool))
		for _, id := range pool {
			if !grouped[id] {
				eligible = append(eligible, id)
			}
		}
		if len(eligible) == 0 {
			return badRequest("no ungrouped eligible participants in %s", round.Name)
		}

		s.shuffle(eligible)
		chunks := partitionGroups(eligible, size)

		number, err := nextGroupNumber(tx, round.ID)
		if err != nil {
			return err
		}
		for _, chunk := range chunks {
			g := models.Group{
				ID:               uuid.NewString(),
				SubEventID:       se.ID,
				RoundID:          round.ID,
				GroupNumber:      number,
				Name:             fmt.Sprintf("Group %d", number),
				EvaluationStatus: models.EvaluationPending,
				Venue:            se.Venue,
			}
			if err := tx.Omit("Members").Create(&g).Error; err != nil {
				return err
			}
			g.Members = newGroupMembers(g.ID, round.ID, chunk)
			if err := tx.Create(&g.Members).Error; err != nil {
				return err
			}
			created = append(created, g)
			number++
		}

		if round.AddParticipants(eligible...) > 0 {
			return tx.Model(&models.Round{}).Where("id = ?", round.ID).
				Update("participant_ids", round.ParticipantIDs).Error
		}
		return nil
	})
	if err != nil {
		return nil, dbErr(err, "failed to form groups")
	}

	log.Printf("👥 [GROUP] Formed %d group(s) of ~%d for round %s", len(created), size, in.RoundID)
	s.publishFormed(se.ID, in.RoundID, created)
	return created, nil
}

func (s *GroupService) publishFormed(subEventID, roundID string, groups []models.Group) {
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	payload := map[string]any{
		"sub_event_id": subEventID,
		"round_id":     roundID,
		"group_ids":    ids,
		"count":        len(groups),
	}
	s.Events.Publish(realtime.RoundRoom(roundID), realtime.EventGroupsFormed, payload)
	s.Events.Publish(realtime.RoomAdmin, realtime.EventGroupsFormed, payload)
}

type CreateGroupInput struct {
	RoundID        string     `json:"round_id" validate:"required"`
	ParticipantIDs []string   `json:"participant_ids" validate:"required,min=1"`
	Name           string     `json:"name"`
	PanelID        *string    `json:"panel_id"`
	Venue          string     `json:"venue"`
	ScheduledAt    *time.Time `json:"scheduled_at"`
}

// checkMembers verifies ids are approved registrants of the sub-event and not
// grouped elsewhere in the round (ignoring exceptGroupID).
func checkMembers(tx *gorm.DB, round *models.Round, ids []string, exceptGroupID string) error {
	eligible, err := approvedRegistrantIDs(tx, round.SubEventID)
	if err != nil {
		return err
	}
	ok := make(map[string]bool, len(eligible))
	for _, id := range eligible {
		ok[id] = true
	}
	for _, id := range ids {
		if !ok[id] {
			return badRequest("participant %s is not an approved registrant of this sub-event", id)
		}
	}

	var taken []models.GroupMember
	if err := tx.Where("round_id = ? AND participant_id IN ? AND group_id <> ?", round.ID, ids, exceptGroupID).
		Find(&taken).Error; err != nil {
		return err
	}
	if len(taken) > 0 {
		return conflict("participant %s is already in another group of this round", taken[0].ParticipantID)
	}
	return nil
}

func checkPanel(tx *gorm.DB, panelID *string, subEventID string) error {
	if panelID == nil || *panelID == "" {
		return nil
	}
	var panel models.Panel
	if err := tx.First(&panel, "id = ?", *panelID).Error; err != nil {
		return lookupErr(err, "panel")
	}
	if panel.SubEventID != subEventID {
		return badRequest("panel %s belongs to a different sub-event", panel.Name)
	}
	return nil
}

func (s *GroupService) CreateGroup(in CreateGroupInput) (*models.Group, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	ids := dedupe(in.ParticipantIDs)

	var group models.Group
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		round, err := lockRound(tx, in.RoundID)
		if err != nil {
			return err
		}
		if round.Status == models.RoundCompleted {
			return badRequest("cannot add groups to a completed round")
		}
		if err := checkMembers(tx, round, ids, ""); err != nil {
			return err
		}
		if in.PanelID != nil && *in.PanelID == "" {
			in.PanelID = nil
		}
		if err := checkPanel(tx, in.PanelID, round.SubEventID); err != nil {
			return err
		}

		number, err := nextGroupNumber(tx, round.ID)
		if err != nil {
			return err
		}
		group = models.Group{
			ID:               uuid.NewString(),
			SubEventID:       round.SubEventID,
			RoundID:          round.ID,
			GroupNumber:      number,
			Name:             strings.TrimSpace(in.Name),
			PanelID:          in.PanelID,
			EvaluationStatus: models.EvaluationPending,
			Venue:            in.Venue,
			ScheduledAt:      in.ScheduledAt,
		}
		if group.Name == "" {
			group.Name = fmt.Sprintf("Group %d", number)
		}
		if err := tx.Omit("Members").Create(&group).Error; err != nil {
			return err
		}
		group.Members = newGroupMembers(group.ID, round.ID, ids)
		if err := tx.Create(&group.Members).Error; err != nil {
			return err
		}
		if round.AddParticipants(ids...) > 0 {
			return tx.Model(&models.Round{}).Where("id = ?", round.ID).
				Update("participant_ids", round.ParticipantIDs).Error
		}
		return nil
	})
	if err != nil {
		return nil, dbErr(err, "failed to create group")
	}
	log.Printf("✅ [GROUP] Created %s with %d member(s)", group.Name, len(ids))
	s.publishFormed(group.SubEventID, group.RoundID, []models.Group{group})
	return &group, nil
}

// UpdateGroupMembers replaces the member list of a group.
func (s *GroupService) UpdateGroupMembers(groupID string, participantIDs []string) (*models.Group, error) {
	ids := dedupe(participantIDs)
	if len(ids) == 0 {
		return nil, badRequest("participant_ids is required")
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var g models.Group
		if err := tx.First(&g, "id = ?", groupID).Error; err != nil {
			return lookupErr(err, "group")
		}
		round, err := lockRound(tx, g.RoundID)
		if err != nil {
			return err
		}
		if err := checkMembers(tx, round, ids, g.ID); err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", g.ID).Delete(&models.GroupMember{}).Error; err != nil {
			return err
		}
		members := newGroupMembers(g.ID, round.ID, ids)
		if err := tx.Create(&members).Error; err != nil {
			return err
		}
		if round.AddParticipants(ids...) > 0 {
			return tx.Model(&models.Round{}).Where("id = ?", round.ID).
				Update("participant_ids", round.ParticipantIDs).Error
		}
		return nil
	})
	if err != nil {
		return nil, dbErr(err, "failed to update group members")
	}
	return s.GetGroup(groupID)
}

type GroupUpdate struct {
	Name        *string    `json:"name"`
	Venue       *string    `json:"venue"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

func (s *GroupService) UpdateGroup(groupID string, in GroupUpdate) (*models.Group, error) {
	updates := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, badRequest("name cannot be empty")
		}
		updates["name"] = name
	}
	if in.Venue != nil {
		updates["venue"] = *in.Venue
	}
	if in.ScheduledAt != nil {
		updates["scheduled_at"] = *in.ScheduledAt
	}
	if _, err := s.GetGroup(groupID); err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := s.DB.Model(&models.Group{}).Where("id = ?", groupID).Updates(updates).Error; err != nil {
			return nil, dbErr(err, "failed to update group")
		}
	}
	return s.GetGroup(groupID)
}

// DeleteGroup removes a group with its members and evaluations and frees its topic.
func (s *GroupService) DeleteGroup(groupID string) error {
	g, err := s.GetGroup(groupID)
	if err != nil {
		return err
	}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Topic{}).Where("used_by_group_id = ?", g.ID).Updates(map[string]interface{}{
			"is_used":          false,
			"used_by_group_id": nil,
			"used_by_panel_id": nil,
			"used_at":          nil,
		}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", g.ID).Delete(&models.Evaluation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", g.ID).Delete(&models.GroupMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Group{}, "id = ?", g.ID).Error
	})
	if err != nil {
		return dbErr(err, "failed to delete group")
	}
	log.Printf("🗑️ [GROUP] Deleted %s of round %s", g.Name, g.RoundID)
	return nil
}

// AssignPanel sets or clears (empty panelID) the panel judging a group.
func (s *GroupService) AssignPanel(groupID, panelID string) (*models.Group, error) {
	g, err := s.GetGroup(groupID)
	if err != nil {
		return nil, err
	}
	var value interface{}
	if panelID != "" {
		if err := checkPanel(s.DB, &panelID, g.SubEventID); err != nil {
			return nil, err
		}
		value = panelID
	}
	if err := s.DB.Model(&models.Group{}).Where("id = ?", g.ID).Update("panel_id", value).Error; err != nil {
		return nil, dbErr(err, "failed to assign panel")
	}
	return s.GetGroup(groupID)
}

func (s *GroupService) GetGroup(id string) (*models.Group, error) {
	var g models.Group
	if err := s.DB.Preload("Members.Participant").First(&g, "id = ?", id).Error; err != nil {
		return nil, lookupErr(err, "group")
	}
	return &g, nil
}

func (s *GroupService) ListGroups(roundID string) ([]models.Group, error) {
	var groups []models.Group
	if err := s.DB.Preload("Members.Participant").Where("round_id = ?", roundID).
		Order("group_number ASC").Find(&groups).Error; err != nil {
		return nil, dbErr(err, "failed to list groups")
	}
	return groups, nil
}

// NotifyGroup calls a group to perform: members become busy and active in the
// group's round and receive venue and time guidance.
func (s *GroupService) NotifyGroup(groupID string) (*models.Group, error) {
	g, err := s.GetGroup(groupID)
	if err != nil {
		return nil, err
	}
	ids := g.ParticipantIDs()
	if len(ids) == 0 {
		return nil, badRequest("%s has no members", g.Name)
	}
	var round models.Round
	if err := s.DB.First(&round, "id = ?", g.RoundID).Error; err != nil {
		return nil, lookupErr(err, "round")
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ParticipantEvent{}).
			Where("sub_event_id = ? AND participant_id IN ?", g.SubEventID, ids).
			Updates(map[string]interface{}{
				"status":           models.EventActive,
				"current_round_id": g.RoundID,
				"round_number":     round.RoundNumber,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Participant{}).Where("id IN ?", ids).Updates(map[string]interface{}{
			"availability":         models.AvailabilityBusy,
			"current_sub_event_id": g.SubEventID,
			"current_round_id":     g.RoundID,
		}).Error
	})
	if err != nil {
		return nil, dbErr(err, "failed to notify group")
	}

	message := fmt.Sprintf("%s of %s is up next.", g.Name, round.Name)
	if g.Venue != "" {
		message += " Please report to " + g.Venue
		if g.ScheduledAt != nil {
			message += " by " + g.ScheduledAt.Format("3:04 PM")
		}
		message += "."
	} else if g.ScheduledAt != nil {
		message += " Please be ready by " + g.ScheduledAt.Format("3:04 PM") + "."
	}
	for _, pid := range ids {
		s.Notifier.Notify(pid, NoticeGroup, "Your group has been called", message, g.SubEventID)
	}
	s.Events.Publish(realtime.RoomAdmin, realtime.EventAvailabilityUpdate, map[string]any{
		"participant_ids": ids,
		"availability":    models.AvailabilityBusy,
		"group_id":        g.ID,
	})
	log.Printf("📣 [GROUP] Notified %d member(s) of %s", len(ids), g.Name)
	return s.GetGroup(groupID)
}
