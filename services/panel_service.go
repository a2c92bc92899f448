package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"fest-event-system/models"
	"fest-event-system/realtime"
	"fest-event-system/utils"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const accessCodeLength = 8

type PanelService struct {
	DB     *gorm.DB
	Events realtime.Broadcaster
}

func NewPanelService(db *gorm.DB, events realtime.Broadcaster) *PanelService {
	return &PanelService{DB: db, Events: events}
}

type JudgeInput struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone"`
}

type PanelInput struct {
	SubEventID string                       `json:"sub_event_id" validate:"required"`
	RoundID    *string                      `json:"round_id"`
	Name       string                       `json:"name" validate:"required"`
	Venue      string                       `json:"venue"`
	Parameters []models.EvaluationParameter `json:"parameters" validate:"dive"`
	Judges     []JudgeInput                 `json:"judges" validate:"dive"`
}

func checkParameters(params []models.EvaluationParameter) error {
	seen := map[string]bool{}
	for _, p := range params {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if seen[name] {
			return badRequest("duplicate evaluation parameter %q", p.Name)
		}
		seen[name] = true
	}
	return nil
}

// uniqueAccessCode draws codes until one is unused.
func uniqueAccessCode(tx *gorm.DB) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		code, err := utils.GenerateAccessCode(accessCodeLength)
		if err != nil {
			return "", fmt.Errorf("failed to generate access code: %w", err)
		}
		var n int64
		if err := tx.Model(&models.Judge{}).Where("access_code = ?", code).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return code, nil
		}
	}
	return "", errors.New("failed to generate a unique access code")
}

func newJudge(tx *gorm.DB, panelID string, in JudgeInput) (*models.Judge, error) {
	code, err := uniqueAccessCode(tx)
	if err != nil {
		return nil, err
	}
	return &models.Judge{
		ID:         uuid.NewString(),
		PanelID:    panelID,
		Name:       strings.TrimSpace(in.Name),
		Email:      utils.NormalizeEmail(in.Email),
		Phone:      strings.TrimSpace(in.Phone),
		AccessCode: code,
	}, nil
}

func (s *PanelService) CreatePanel(in PanelInput) (*models.Panel, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := checkParameters(in.Parameters); err != nil {
		return nil, err
	}
	var se models.SubEvent
	if err := s.DB.First(&se, "id = ?", in.SubEventID).Error; err != nil {
		return nil, lookupErr(err, "sub-event")
	}
	if in.RoundID != nil && *in.RoundID == "" {
		in.RoundID = nil
	}
	if in.RoundID != nil {
		var r models.Round
		if err := s.DB.First(&r, "id = ?", *in.RoundID).Error; err != nil {
			return nil, lookupErr(err, "round")
		}
		if r.SubEventID != se.ID {
			return nil, badRequest("round does not belong to %s", se.Name)
		}
	}

	panel := &models.Panel{
		ID:         uuid.NewString(),
		SubEventID: se.ID,
		RoundID:    in.RoundID,
		Name:       strings.TrimSpace(in.Name),
		Venue:      in.Venue,
		Parameters: in.Parameters,
	}
	if panel.Parameters == nil {
		panel.Parameters = []models.EvaluationParameter{}
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Judges", "Groups").Create(panel).Error; err != nil {
			return err
		}
		for _, ji := range in.Judges {
			judge, err := newJudge(tx, panel.ID, ji)
			if err != nil {
				return err
			}
			if err := tx.Create(judge).Error; err != nil {
				return err
			}
			panel.Judges = append(panel.Judges, *judge)
		}
		return nil
	})
	if err != nil {
		return nil, dbErr(err, "failed to create panel")
	}
	log.Printf("✅ [PANEL] Created %s for %s with %d judge(s)", panel.Name, se.Name, len(panel.Judges))
	return panel, nil
}

type PanelUpdate struct {
	Name       *string                       `json:"name"`
	Venue      *string                       `json:"venue"`
	Parameters *[]models.EvaluationParameter `json:"parameters"`
}

func (s *PanelService) UpdatePanel(id string, in PanelUpdate) (*models.Panel, error) {
	panel, err := s.GetPanel(id)
	if err != nil {
		return nil, err
	}
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
	if in.Parameters != nil {
		for _, p := range *in.Parameters {
			if err := validateInput(p); err != nil {
				return nil, err
			}
		}
		if err := checkParameters(*in.Parameters); err != nil {
			return nil, err
		}
		var evaluated int64
		if err := s.DB.Model(&models.Evaluation{}).Where("panel_id = ?", panel.ID).Count(&evaluated).Error; err != nil {
			return nil, dbErr(err, "failed to count evaluations")
		}
		if evaluated > 0 {
			return nil, badRequest("parameters cannot change after evaluations were submitted")
		}
		updates["parameters"] = datatypes.NewJSONSlice(*in.Parameters)
	}
	if len(updates) > 0 {
		if err := s.DB.Model(&models.Panel{}).Where("id = ?", panel.ID).Updates(updates).Error; err != nil {
			return nil, dbErr(err, "failed to update panel")
		}
	}
	return s.GetPanel(id)
}

func (s *PanelService) AddJudge(panelID string, in JudgeInput) (*models.Judge, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if _, err := s.GetPanel(panelID); err != nil {
		return nil, err
	}
	var judge *models.Judge
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		judge, err = newJudge(tx, panelID, in)
		if err != nil {
			return err
		}
		return tx.Create(judge).Error
	})
	if err != nil {
		return nil, dbErr(err, "failed to add judge")
	}
	return judge, nil
}

// RemoveJudge deletes a judge; evaluations already submitted are kept.
func (s *PanelService) RemoveJudge(panelID, judgeID string) error {
	res := s.DB.Where("id = ? AND panel_id = ?", judgeID, panelID).Delete(&models.Judge{})
	if res.Error != nil {
		return dbErr(res.Error, "failed to remove judge")
	}
	if res.RowsAffected == 0 {
		return notFound("judge")
	}
	return nil
}

// DeletePanel unassigns its groups, resets their evaluation state and removes
// its judges and evaluations.
func (s *PanelService) DeletePanel(id string) error {
	panel, err := s.GetPanel(id)
	if err != nil {
		return err
	}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("panel_id = ?", panel.ID).Delete(&models.Evaluation{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Group{}).Where("panel_id = ?", panel.ID).Updates(map[string]interface{}{
			"panel_id":          nil,
			"evaluation_status": models.EvaluationPending,
			"average_score":     0,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Topic{}).Where("used_by_panel_id = ?", panel.ID).
			Update("used_by_panel_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("panel_id = ?", panel.ID).Delete(&models.Judge{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Panel{}, "id = ?", panel.ID).Error
	})
	if err != nil {
		return dbErr(err, "failed to delete panel")
	}
	log.Printf("🗑️ [PANEL] Deleted %s", panel.Name)
	return nil
}

// RegenerateAccessCodes issues fresh codes for every judge of the panel and
// clears their access flags.
func (s *PanelService) RegenerateAccessCodes(id string) (*models.Panel, error) {
	panel, err := s.GetPanel(id)
	if err != nil {
		return nil, err
	}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		for _, j := range panel.Judges {
			code, err := uniqueAccessCode(tx)
			if err != nil {
				return err
			}
			if err := tx.Model(&models.Judge{}).Where("id = ?", j.ID).Updates(map[string]interface{}{
				"access_code":      code,
				"has_accessed":     false,
				"last_accessed_at": nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, dbErr(err, "failed to regenerate access codes")
	}
	log.Printf("🔑 [PANEL] Regenerated %d access code(s) for %s", len(panel.Judges), panel.Name)
	return s.GetPanel(id)
}

// AssignGroups points the given groups at the panel.
func (s *PanelService) AssignGroups(panelID string, groupIDs []string) (*models.Panel, error) {
	groupIDs = dedupe(groupIDs)
	if len(groupIDs) == 0 {
		return nil, badRequest("group_ids is required")
	}
	panel, err := s.GetPanel(panelID)
	if err != nil {
		return nil, err
	}
	var groups []models.Group
	if err := s.DB.Where("id IN ?", groupIDs).Find(&groups).Error; err != nil {
		return nil, dbErr(err, "failed to load groups")
	}
	if len(groups) != len(groupIDs) {
		return nil, notFound("group")
	}
	for _, g := range groups {
		if g.SubEventID != panel.SubEventID {
			return nil, badRequest("%s belongs to a different sub-event", g.Name)
		}
		if panel.RoundID != nil && g.RoundID != *panel.RoundID {
			return nil, badRequest("%s is not in this panel's round", g.Name)
		}
	}
	if err := s.DB.Model(&models.Group{}).Where("id IN ?", groupIDs).
		Update("panel_id", panel.ID).Error; err != nil {
		return nil, dbErr(err, "failed to assign groups")
	}
	return s.GetPanel(panelID)
}

func (s *PanelService) GetPanel(id string) (*models.Panel, error) {
	var p models.Panel
	err := s.DB.Preload("Judges", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	}).Preload("Groups", func(db *gorm.DB) *gorm.DB {
		return db.Order("group_number ASC")
	}).First(&p, "id = ?", id).Error
	if err != nil {
		return nil, lookupErr(err, "panel")
	}
	return &p, nil
}

func (s *PanelService) ListPanels(subEventID, roundID string) ([]models.Panel, error) {
	q := s.DB.Preload("Judges").Order("name ASC")
	if subEventID != "" {
		q = q.Where("sub_event_id = ?", subEventID)
	}
	if roundID != "" {
		q = q.Where("round_id = ?", roundID)
	}
	var panels []models.Panel
	if err := q.Find(&panels).Error; err != nil {
		return nil, dbErr(err, "failed to list panels")
	}
	return panels, nil
}

// JudgeSession is what a judge sees after entering an access code.
type JudgeSession struct {
	Judge  models.Judge   `json:"judge"`
	Panel  JudgePanelView `json:"panel"`
	Groups []models.Group `json:"groups"`
}

// PanelJudge is a fellow judge as shown to other judges. Access codes stay off it.
type PanelJudge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	HasAccessed bool   `json:"has_accessed"`
}

// JudgePanelView is the panel as a judge sees it.
type JudgePanelView struct {
	ID         string                       `json:"id"`
	SubEventID string                       `json:"sub_event_id"`
	RoundID    *string                      `json:"round_id,omitempty"`
	Name       string                       `json:"name"`
	Venue      string                       `json:"venue,omitempty"`
	Parameters []models.EvaluationParameter `json:"parameters"`
	Judges     []PanelJudge                 `json:"judges"`
	Groups     []models.Group               `json:"groups,omitempty"`
}

// ViewForJudge strips every access code from the panel.
func ViewForJudge(p *models.Panel) JudgePanelView {
	v := JudgePanelView{
		ID:         p.ID,
		SubEventID: p.SubEventID,
		RoundID:    p.RoundID,
		Name:       p.Name,
		Venue:      p.Venue,
		Parameters: p.Parameters,
		Judges:     make([]PanelJudge, 0, len(p.Judges)),
		Groups:     p.Groups,
	}
	for _, j := range p.Judges {
		v.Judges = append(v.Judges, PanelJudge{ID: j.ID, Name: j.Name, HasAccessed: j.HasAccessed})
	}
	return v
}

// ResolveJudge finds the judge and panel behind an access code, ignoring case
// and surrounding whitespace.
func (s *PanelService) ResolveJudge(code string) (*models.Judge, *models.Panel, error) {
	code = utils.NormalizeAccessCode(code)
	if code == "" {
		return nil, nil, badRequest("access code is required")
	}
	var judge models.Judge
	if err := s.DB.First(&judge, "access_code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, notFound("access code")
		}
		return nil, nil, fmt.Errorf("failed to resolve access code: %w", err)
	}
	var panel models.Panel
	if err := s.DB.Preload("Judges", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	}).First(&panel, "id = ?", judge.PanelID).Error; err != nil {
		return nil, nil, lookupErr(err, "panel")
	}
	return &judge, &panel, nil
}

// JudgeLogin marks the judge as having accessed the panel and returns their session.
func (s *PanelService) JudgeLogin(code string) (*JudgeSession, error) {
	judge, panel, err := s.ResolveJudge(code)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if err := s.DB.Model(&models.Judge{}).Where("id = ?", judge.ID).Updates(map[string]interface{}{
		"has_accessed":     true,
		"last_accessed_at": now,
	}).Error; err != nil {
		return nil, dbErr(err, "failed to record judge access")
	}
	judge.HasAccessed = true
	judge.LastAccessedAt = &now

	var groups []models.Group
	if err := s.DB.Preload("Members.Participant").Where("panel_id = ?", panel.ID).
		Order("group_number ASC").Find(&groups).Error; err != nil {
		return nil, dbErr(err, "failed to load assigned groups")
	}

	log.Printf("🧑‍⚖️ [JUDGE] %s logged in to %s", judge.Name, panel.Name)
	s.Events.Publish(realtime.RoomAdmin, realtime.EventJudgeLoggedIn, map[string]any{
		"judge_id":   judge.ID,
		"judge_name": judge.Name,
		"panel_id":   panel.ID,
		"panel_name": panel.Name,
		"at":         now,
	})
	return &JudgeSession{Judge: *judge, Panel: ViewForJudge(panel), Groups: groups}, nil
}
