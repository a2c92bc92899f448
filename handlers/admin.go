package handlers

import (
	"fest-event-system/middleware"
	"fest-event-system/services"

	"github.com/gofiber/fiber/v2"
)

// actor names the signed-in account for audit fields.
func actor(c *fiber.Ctx) string {
	p := middleware.CurrentPrincipal(c)
	if p == nil {
		return ""
	}
	if p.User != nil {
		return p.User.Email
	}
	return p.ID
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

// --- accounts ---

func (s *Services) listUsers(c *fiber.Ctx) error {
	users, err := s.Users.ListUsers(c.Query("q"), c.QueryBool("pending", false), queryInt(c, "limit", 100))
	if err != nil {
		return err
	}
	return list(c, users, -1)
}

func (s *Services) approveUser(c *fiber.Ctx) error {
	user, err := s.Users.ApproveUser(c.Params("id"), middleware.CurrentPrincipal(c).ID)
	if err != nil {
		return err
	}
	return okMessage(c, "Account approved", user)
}

func (s *Services) deleteUser(c *fiber.Ctx) error {
	if err := s.Users.DeleteUser(c.Params("id"), middleware.CurrentPrincipal(c).ID); err != nil {
		return err
	}
	return okMessage(c, "Account deleted", nil)
}

// --- settings and analytics ---

func (s *Services) updateRegistrationSettings(c *fiber.Ctx) error {
	var in services.RegistrationSettingsInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	rs, err := s.Settings.UpdateRegistration(in)
	if err != nil {
		return err
	}
	return okMessage(c, "Registration settings updated", rs)
}

func (s *Services) updateEventSettings(c *fiber.Ctx) error {
	var in services.EventSettingsInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	es, err := s.Settings.UpdateEvent(in)
	if err != nil {
		return err
	}
	return okMessage(c, "Event settings updated", es)
}

func (s *Services) analytics(c *fiber.Ctx) error {
	overview, err := s.Analytics.Overview()
	if err != nil {
		return err
	}
	return ok(c, overview)
}

// --- sub-events ---

func (s *Services) createSubEvent(c *fiber.Ctx) error {
	var in services.SubEventInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	se, err := s.SubEvents.Create(in)
	if err != nil {
		return err
	}
	return created(c, "Sub-event created", se)
}

func (s *Services) updateSubEvent(c *fiber.Ctx) error {
	var in services.SubEventInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	se, err := s.SubEvents.Update(c.Params("id"), in)
	if err != nil {
		return err
	}
	return okMessage(c, "Sub-event updated", se)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Services) setSubEventStatus(c *fiber.Ctx) error {
	var in statusRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	se, err := s.SubEvents.SetStatus(c.Params("id"), in.Status)
	if err != nil {
		return err
	}
	return okMessage(c, "Status updated", se)
}

func (s *Services) toggleRegistration(c *fiber.Ctx) error {
	se, err := s.SubEvents.ToggleRegistration(c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, se)
}

func (s *Services) restartSubEvent(c *fiber.Ctx) error {
	se, err := s.SubEvents.Restart(c.Params("id"))
	if err != nil {
		return err
	}
	return okMessage(c, "Sub-event restarted", se)
}

func (s *Services) deleteSubEvent(c *fiber.Ctx) error {
	if err := s.SubEvents.Delete(c.Params("id")); err != nil {
		return err
	}
	return okMessage(c, "Sub-event deleted", nil)
}

// --- participants ---

func (s *Services) listParticipants(c *fiber.Ctx) error {
	items, total, err := s.Registration.List(services.ParticipantFilter{
		Status:       c.Query("status"),
		Availability: c.Query("availability"),
		SubEventID:   c.Query("sub_event_id"),
		Search:       c.Query("q"),
		Page:         queryInt(c, "page", 1),
		Size:         queryInt(c, "size", 50),
	})
	if err != nil {
		return err
	}
	return list(c, items, total)
}

func (s *Services) getParticipant(c *fiber.Ctx) error {
	p, err := s.Registration.Get(c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, p)
}

func (s *Services) updateParticipant(c *fiber.Ctx) error {
	var in services.ParticipantUpdate
	if err := parseBody(c, &in); err != nil {
		return err
	}
	p, err := s.Registration.Update(c.Params("id"), in)
	if err != nil {
		return err
	}
	return okMessage(c, "Participant updated", p)
}

func (s *Services) deleteParticipant(c *fiber.Ctx) error {
	if err := s.Registration.Delete(c.Params("id")); err != nil {
		return err
	}
	return okMessage(c, "Participant deleted", nil)
}

func (s *Services) approveParticipant(c *fiber.Ctx) error {
	p, err := s.Registration.Approve(c.Params("id"))
	if err != nil {
		return err
	}
	return okMessage(c, "Participant approved", p)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Services) rejectParticipant(c *fiber.Ctx) error {
	var in rejectRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &in); err != nil {
			return err
		}
	}
	p, err := s.Registration.Reject(c.Params("id"), in.Reason)
	if err != nil {
		return err
	}
	return okMessage(c, "Participant rejected", p)
}

func (s *Services) bulkApprove(c *fiber.Ctx) error {
	var in idsRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	n, err := s.Registration.BulkApprove(in.IDs)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"approved": n})
}

// --- topics ---

func (s *Services) listTopics(c *fiber.Ctx) error {
	items, err := s.Topics.List(c.Query("sub_event_id"), c.QueryBool("unused", false))
	if err != nil {
		return err
	}
	return list(c, items, -1)
}

func (s *Services) bulkCreateTopics(c *fiber.Ctx) error {
	var in services.BulkTopicInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	items, err := s.Topics.BulkCreate(in)
	if err != nil {
		return err
	}
	return created(c, "Topics added", items)
}

type subEventRequest struct {
	SubEventID string `json:"sub_event_id"`
}

func (s *Services) resetTopics(c *fiber.Ctx) error {
	var in subEventRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	n, err := s.Topics.Reset(in.SubEventID)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"reset": n})
}

func (s *Services) deleteTopic(c *fiber.Ctx) error {
	if err := s.Topics.Delete(c.Params("id")); err != nil {
		return err
	}
	return okMessage(c, "Topic deleted", nil)
}

// --- attendance ---

func (s *Services) listAttendance(c *fiber.Ctx) error {
	subEventID, roundID := c.Query("sub_event_id"), c.Query("round_id")
	if subEventID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "sub_event_id is required")
	}
	rows, err := s.Attendance.List(subEventID, roundID)
	if err != nil {
		return err
	}
	stats, err := s.Attendance.Stats(subEventID, roundID)
	if err != nil {
		return err
	}
	return withStats(c, rows, stats)
}

func (s *Services) markAttendance(c *fiber.Ctx) error {
	var in services.AttendanceInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	n, err := s.Attendance.Mark(in, actor(c))
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"marked": n})
}

// --- queries ---

func (s *Services) listQueries(c *fiber.Ctx) error {
	items, err := s.Queries.List(c.Query("status"))
	if err != nil {
		return err
	}
	return list(c, items, -1)
}

type respondRequest struct {
	Response string `json:"response"`
}

func (s *Services) respondQuery(c *fiber.Ctx) error {
	var in respondRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	q, err := s.Queries.Respond(c.Params("id"), in.Response, middleware.CurrentPrincipal(c).ID)
	if err != nil {
		return err
	}
	return okMessage(c, "Response sent", q)
}

func (s *Services) deleteQuery(c *fiber.Ctx) error {
	if err := s.Queries.Delete(c.Params("id")); err != nil {
		return err
	}
	return okMessage(c, "Query deleted", nil)
}
