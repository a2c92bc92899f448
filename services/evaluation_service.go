package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"fest-event-system/models"
	"fest-event-system/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// defaultMaxScore applies to panels without evaluation parameters.
const defaultMaxScore = 100.0

type EvaluationService struct {
	DB     *gorm.DB
	Events realtime.Broadcaster
	Panels *PanelService
}

func NewEvaluationService(db *gorm.DB, events realtime.Broadcaster, panels *PanelService) *EvaluationService {
	return &EvaluationService{DB: db, Events: events, Panels: panels}
}

// EvaluationInput carries either panel-level parameter scores or per-member ratings.
type EvaluationInput struct {
	GroupID  string                     `json:"group_id" validate:"required"`
	Scores   []models.ParameterScore    `json:"scores"`
	Ratings  []models.ParticipantRating `json:"ratings"`
	Comments string                     `json:"comments"`
}

// weightedTotal sums score × weight, rejecting unknown parameters and out-of-range scores.
func weightedTotal(panel *models.Panel, scores []models.ParameterScore) (float64, error) {
	total := 0.0
	seen := map[string]bool{}
	for _, sc := range scores {
		param, ok := panel.Parameter(sc.Name)
		if !ok {
			return 0, badRequest("unknown evaluation parameter %q", sc.Name)
		}
		if seen[sc.Name] {
			return 0, badRequest("parameter %q scored twice", sc.Name)
		}
		seen[sc.Name] = true
		if sc.Score < 0 || sc.Score > param.MaxScore {
			return 0, badRequest("%s must be between 0 and %g", sc.Name, param.MaxScore)
		}
		total += sc.Score * param.EffectiveWeight()
	}
	return total, nil
}

// scoreEvaluation computes total and max for an input against its panel and group.
func scoreEvaluation(panel *models.Panel, members map[string]bool, in *EvaluationInput) (float64, float64, error) {
	max := panel.WeightedMax()
	if max <= 0 {
		max = defaultMaxScore
	}

	if len(in.Ratings) == 0 {
		if len(in.Scores) == 0 {
			return 0, 0, badRequest("scores or ratings are required")
		}
		total, err := weightedTotal(panel, in.Scores)
		return round2(total), max, err
	}

	sum := 0.0
	rated := map[string]bool{}
	for i := range in.Ratings {
		r := &in.Ratings[i]
		if !members[r.ParticipantID] {
			return 0, 0, badRequest("participant %s is not a member of this group", r.ParticipantID)
		}
		if rated[r.ParticipantID] {
			return 0, 0, badRequest("participant %s rated twice", r.ParticipantID)
		}
		rated[r.ParticipantID] = true
		if len(r.Scores) > 0 {
			t, err := weightedTotal(panel, r.Scores)
			if err != nil {
				return 0, 0, err
			}
			r.Total = round2(t)
		}
		if r.Total < 0 || r.Total > max {
			return 0, 0, badRequest("total for %s must be between 0 and %g", r.ParticipantID, max)
		}
		sum += r.Total
	}
	return round2(sum / float64(len(in.Ratings))), max, nil
}

// SubmitEvaluation records a judge's scoring of a group and refreshes the group's aggregate.
func (s *EvaluationService) SubmitEvaluation(code string, in EvaluationInput) (*models.Evaluation, *models.Group, error) {
	if err := validateInput(in); err != nil {
		return nil, nil, err
	}
	judge, panel, err := s.Panels.ResolveJudge(code)
	if err != nil {
		return nil, nil, err
	}

	var group models.Group
	if err := s.DB.Preload("Members").First(&group, "id = ?", in.GroupID).Error; err != nil {
		return nil, nil, lookupErr(err, "group")
	}
	if group.PanelID == nil || *group.PanelID != panel.ID {
		return nil, nil, fiber.NewError(fiber.StatusForbidden, "group is not assigned to your panel")
	}
	var round models.Round
	if err := s.DB.First(&round, "id = ?", group.RoundID).Error; err != nil {
		return nil, nil, lookupErr(err, "round")
	}
	if round.Status == models.RoundCompleted {
		return nil, nil, badRequest("%s is already completed", round.Name)
	}

	members := make(map[string]bool, len(group.Members))
	for _, m := range group.Members {
		members[m.ParticipantID] = true
	}
	total, max, err := scoreEvaluation(panel, members, &in)
	if err != nil {
		return nil, nil, err
	}

	var eval models.Evaluation
	judgeCount := len(panel.Judges)
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("group_id = ? AND judge_id = ?", group.ID, judge.ID).First(&eval).Error
		isNew := errors.Is(err, gorm.ErrRecordNotFound)
		switch {
		case isNew:
			eval = models.Evaluation{
				ID:         uuid.NewString(),
				GroupID:    group.ID,
				JudgeID:    judge.ID,
				PanelID:    panel.ID,
				RoundID:    group.RoundID,
				SubEventID: group.SubEventID,
			}
		case err != nil:
			return err
		}
		eval.Scores = in.Scores
		eval.Ratings = in.Ratings
		if eval.Scores == nil {
			eval.Scores = []models.ParameterScore{}
		}
		if eval.Ratings == nil {
			eval.Ratings = []models.ParticipantRating{}
		}
		eval.TotalScore = total
		eval.MaxScore = max
		eval.Comments = in.Comments
		eval.SubmittedAt = time.Now()
		save := tx.Save
		if isNew {
			save = tx.Create
		}
		if err := save(&eval).Error; err != nil {
			return err
		}
		return refreshGroupAggregate(tx, &group, judgeCount)
	})
	if err != nil {
		return nil, nil, dbErr(err, "failed to save evaluation")
	}

	log.Printf("📝 [EVAL] %s scored %s: %.2f/%.2f (%s)", judge.Name, group.Name, eval.TotalScore, eval.MaxScore, group.EvaluationStatus)
	s.Events.Publish(realtime.PanelRoom(panel.ID), realtime.EventEvaluationUpdated, map[string]any{
		"group_id":          group.ID,
		"judge_id":          judge.ID,
		"percentage":        eval.Percentage,
		"evaluation_status": group.EvaluationStatus,
	})
	s.Events.Publish(realtime.RoomAdmin, realtime.EventEvaluationSummary, map[string]any{
		"group_id":          group.ID,
		"group_name":        group.Name,
		"panel_id":          panel.ID,
		"round_id":          group.RoundID,
		"evaluation_status": group.EvaluationStatus,
		"average_score":     group.AverageScore,
	})
	return &eval, &group, nil
}

// refreshGroupAggregate recomputes a group's evaluation status and average percentage.
func refreshGroupAggregate(tx *gorm.DB, group *models.Group, judgeCount int) error {
	var stats struct {
		Judges  int64
		Average float64
	}
	if err := tx.Model(&models.Evaluation{}).
		Select("COUNT(DISTINCT judge_id) AS judges, COALESCE(AVG(percentage), 0) AS average").
		Where("group_id = ?", group.ID).
		Scan(&stats).Error; err != nil {
		return fmt.Errorf("failed to aggregate evaluations: %w", err)
	}

	status := models.EvaluationInProgress
	switch {
	case stats.Judges == 0:
		status = models.EvaluationPending
	case judgeCount > 0 && stats.Judges >= int64(judgeCount):
		status = models.EvaluationCompleted
	}
	group.EvaluationStatus = status
	group.AverageScore = round2(stats.Average)
	return tx.Model(&models.Group{}).Where("id = ?", group.ID).Updates(map[string]interface{}{
		"evaluation_status": group.EvaluationStatus,
		"average_score":     group.AverageScore,
	}).Error
}

// ListForGroup returns every judge's evaluation of a group.
func (s *EvaluationService) ListForGroup(groupID string) ([]models.Evaluation, error) {
	var evals []models.Evaluation
	if err := s.DB.Where("group_id = ?", groupID).Order("submitted_at ASC").Find(&evals).Error; err != nil {
		return nil, dbErr(err, "failed to list evaluations")
	}
	return evals, nil
}

func (s *EvaluationService) ListForRound(roundID string) ([]models.Evaluation, error) {
	var evals []models.Evaluation
	if err := s.DB.Where("round_id = ?", roundID).Order("submitted_at ASC").Find(&evals).Error; err != nil {
		return nil, dbErr(err, "failed to list evaluations")
	}
	return evals, nil
}

// JudgeEvaluations lists what the judge behind code has submitted so far.
func (s *EvaluationService) JudgeEvaluations(code string) ([]models.Evaluation, error) {
	judge, _, err := s.Panels.ResolveJudge(code)
	if err != nil {
		return nil, err
	}
	var evals []models.Evaluation
	if err := s.DB.Where("judge_id = ?", judge.ID).Order("submitted_at ASC").Find(&evals).Error; err != nil {
		return nil, dbErr(err, "failed to list evaluations")
	}
	return evals, nil
}
