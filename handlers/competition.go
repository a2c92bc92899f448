package handlers

import (
	"fest-event-system/services"

	"github.com/gofiber/fiber/v2"
)

// --- rounds ---

func (s *Services) createRound(c *fiber.Ctx) error {
	var in services.CreateRoundInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	r, err := s.Rounds.CreateRound(in)
	if err != nil {
		return err
	}
	return created(c, "Round created", r)
}

func (s *Services) listRounds(c *fiber.Ctx) error {
	items, err := s.Rounds.ListRounds(c.Params("id"))
	if err != nil {
		return err
	}
	return list(c, items, -1)
}

func (s *Services) getRound(c *fiber.Ctx) error {
	r, err := s.Rounds.GetRound(c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, r)
}

func (s *Services) deleteRound(c *fiber.Ctx) error {
	if err := s.Rounds.DeleteRound(c.Params("id")); err != nil {
		return err
	}
	return okMessage(c, "Round deleted", nil)
}

func (s *Services) startRound(c *fiber.Ctx) error {
	r, err := s.Rounds.StartRound(c.Params("id"))
	if err != nil {
		return err
	}
	return okMessage(c, "Round started", r)
}

func (s *Services) endRound(c *fiber.Ctx) error {
	r, err := s.Rounds.EndRound(c.Params("id"))
	if err != nil {
		return err
	}
	return okMessage(c, "Round ended", r)
}

func (s *Services) promoteSelected(c *fiber.Ctx) error {
	res, err := s.Rounds.PromoteSelected(c.Params("id"))
	if err != nil {
		return err
	}
	return okMessage(c, "Selected participants promoted", res)
}

type participantIDsRequest struct {
	ParticipantIDs []string `json:"participant_ids"`
}

func (s *Services) shortlist(c *fiber.Ctx) error {
	var in participantIDsRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	r, added, err := s.Rounds.ShortlistParticipants(c.Params("id"), in.ParticipantIDs)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"round": r, "added": added})
}

func (s *Services) roundResults(c *fiber.Ctx) error {
	res, err := s.Rounds.Results(c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, res)
}

func (s *Services) roundEvaluations(c *fiber.Ctx) error {
	items, err := s.Evaluations.ListForRound(c.Params("id"))
	if err != nil {
		return err
	}
	return list(c, items, -1)
}

// --- groups ---

func (s *Services) autoFormGroups(c *fiber.Ctx) error {
	var in services.AutoFormInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	groups, err := s.Groups.AutoFormGroups(in)
	if err != nil {
		return err
	}
	return created(c, "Groups formed", groups)
}

func (s *Services) createGroup(c *fiber.Ctx) error {
	var in services.CreateGroupInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	g, err := s.Groups.CreateGroup(in)
	if err != nil {
		return err
	}
	return created(c, "Group created", g)
}

func (s *Services) listGroups(c *fiber.Ctx) error {
	items, err := s.Groups.ListGroups(c.Params("id"))
	if err != nil {
		return err
	}
	return list(c, items, -1)
}

func (s *Services) getGroup(c *fiber.Ctx) error {
	g, err := s.Groups.GetGroup(c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, g)
}

func (s *Services) updateGroup(c *fiber.Ctx) error {
	var in services.GroupUpdate
	if err := parseBody(c, &in); err != nil {
		return err
	}
	g, err := s.Groups.UpdateGroup(c.Params("id"), in)
	if err != nil {
		return err
	}
	return okMessage(c, "Group updated", g)
}

func (s *Services) updateGroupMembers(c *fiber.Ctx) error {
	var in participantIDsRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	g, err := s.Groups.UpdateGroupMembers(c.Params("id"), in.ParticipantIDs)
	if err != nil {
		return err
	}
	return okMessage(c, "Group members updated", g)
}

type panelRequest struct {
	PanelID string `json:"panel_id"`
}

func (s *Services) assignGroupPanel(c *fiber.Ctx) error {
	var in panelRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	g, err := s.Groups.AssignPanel(c.Params("id"), in.PanelID)
	if err != nil {
		return err
	}
	return ok(c, g)
}

func (s *Services) notifyGroup(c *fiber.Ctx) error {
	g, err := s.Groups.NotifyGroup(c.Params("id"))
	if err != nil {
		return err
	}
	return okMessage(c, "Group notified", g)
}

func (s *Services) drawTopic(c *fiber.Ctx) error {
	topic, err := s.Topics.DrawTopic(c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, topic)
}

func (s *Services) groupEvaluations(c *fiber.Ctx) error {
	items, err := s.Evaluations.ListForGroup(c.Params("id"))
	if err != nil {
		return err
	}
	return list(c, items, -1)
}

func (s *Services) deleteGroup(c *fiber.Ctx) error {
	if err := s.Groups.DeleteGroup(c.Params("id")); err != nil {
		return err
	}
	return okMessage(c, "Group deleted", nil)
}

// --- panels ---

func (s *Services) listPanels(c *fiber.Ctx) error {
	items, err := s.Panels.ListPanels(c.Query("sub_event_id"), c.Query("round_id"))
	if err != nil {
		return err
	}
	return list(c, items, -1)
}

func (s *Services) createPanel(c *fiber.Ctx) error {
	var in services.PanelInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	p, err := s.Panels.CreatePanel(in)
	if err != nil {
		return err
	}
	return created(c, "Panel created", p)
}

func (s *Services) getPanel(c *fiber.Ctx) error {
	p, err := s.Panels.GetPanel(c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, p)
}

func (s *Services) updatePanel(c *fiber.Ctx) error {
	var in services.PanelUpdate
	if err := parseBody(c, &in); err != nil {
		return err
	}
	p, err := s.Panels.UpdatePanel(c.Params("id"), in)
	if err != nil {
		return err
	}
	return okMessage(c, "Panel updated", p)
}

func (s *Services) deletePanel(c *fiber.Ctx) error {
	if err := s.Panels.DeletePanel(c.Params("id")); err != nil {
		return err
	}
	return okMessage(c, "Panel deleted", nil)
}

func (s *Services) addJudge(c *fiber.Ctx) error {
	var in services.JudgeInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	j, err := s.Panels.AddJudge(c.Params("id"), in)
	if err != nil {
		return err
	}
	return created(c, "Judge added", j)
}

func (s *Services) removeJudge(c *fiber.Ctx) error {
	if err := s.Panels.RemoveJudge(c.Params("id"), c.Params("judgeId")); err != nil {
		return err
	}
	return okMessage(c, "Judge removed", nil)
}

func (s *Services) regenerateCodes(c *fiber.Ctx) error {
	p, err := s.Panels.RegenerateAccessCodes(c.Params("id"))
	if err != nil {
		return err
	}
	return okMessage(c, "Access codes regenerated", p)
}

type groupIDsRequest struct {
	GroupIDs []string `json:"group_ids"`
}

func (s *Services) assignPanelGroups(c *fiber.Ctx) error {
	var in groupIDsRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	p, err := s.Panels.AssignGroups(c.Params("id"), in.GroupIDs)
	if err != nil {
		return err
	}
	return okMessage(c, "Groups assigned", p)
}
