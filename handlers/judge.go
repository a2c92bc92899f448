package handlers

import (
	"strings"

	"fest-event-system/middleware"
	"fest-event-system/models"
	"fest-event-system/services"

	"github.com/gofiber/fiber/v2"
)

type judgeLoginRequest struct {
	AccessCode string `json:"access_code"`
}

func (s *Services) judgeLogin(c *fiber.Ctx) error {
	var in judgeLoginRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &in); err != nil {
			return err
		}
	}
	code := strings.TrimSpace(in.AccessCode)
	if code == "" {
		code = strings.TrimSpace(c.Get(middleware.JudgeCodeHeader))
	}
	if code == "" {
		return fiber.NewError(fiber.StatusBadRequest, "access code is required")
	}

	session, err := s.Panels.JudgeLogin(code)
	if err != nil {
		if fe, isFiber := err.(*fiber.Error); isFiber && fe.Code == fiber.StatusNotFound {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid access code")
		}
		return err
	}
	return ok(c, session)
}

func (s *Services) judgePanel(c *fiber.Ctx) error {
	judge, panel := middleware.CurrentJudge(c)
	full, err := s.Panels.GetPanel(panel.ID)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"judge": judge, "panel": services.ViewForJudge(full)})
}

// panelGroup loads a group and checks it is assigned to the caller's panel.
func (s *Services) panelGroup(c *fiber.Ctx) (*models.Group, error) {
	_, panel := middleware.CurrentJudge(c)
	g, err := s.Groups.GetGroup(c.Params("id"))
	if err != nil {
		return nil, err
	}
	if g.PanelID == nil || *g.PanelID != panel.ID {
		return nil, fiber.NewError(fiber.StatusForbidden, "group is not assigned to your panel")
	}
	return g, nil
}

func (s *Services) judgeGroup(c *fiber.Ctx) error {
	g, err := s.panelGroup(c)
	if err != nil {
		return err
	}
	evals, err := s.Evaluations.ListForGroup(g.ID)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"group": g, "evaluations": evals})
}

func (s *Services) judgeDrawTopic(c *fiber.Ctx) error {
	g, err := s.panelGroup(c)
	if err != nil {
		return err
	}
	topic, err := s.Topics.DrawTopic(g.ID)
	if err != nil {
		return err
	}
	return ok(c, topic)
}

func (s *Services) judgeEvaluations(c *fiber.Ctx) error {
	items, err := s.Evaluations.JudgeEvaluations(middleware.JudgeCode(c))
	if err != nil {
		return err
	}
	return list(c, items, -1)
}

func (s *Services) submitEvaluation(c *fiber.Ctx) error {
	var in services.EvaluationInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	eval, group, err := s.Evaluations.SubmitEvaluation(middleware.JudgeCode(c), in)
	if err != nil {
		return err
	}
	return okMessage(c, "Evaluation saved", fiber.Map{"evaluation": eval, "group": group})
}
