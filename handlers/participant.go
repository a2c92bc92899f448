package handlers

import (
	"fest-event-system/middleware"
	"fest-event-system/services"

	"github.com/gofiber/fiber/v2"
)

func (s *Services) myProfile(c *fiber.Ctx) error {
	p, err := s.Registration.Get(middleware.CurrentPrincipal(c).ID)
	if err != nil {
		return err
	}
	return ok(c, p)
}

func (s *Services) resubmitPayment(c *fiber.Ctx) error {
	var in services.PaymentInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	in.SubEventIDs = splitIDs(in.SubEventIDs)

	proof, closer, err := proofUpload(c)
	if err != nil {
		return err
	}
	defer closer.Close()

	p, err := s.Registration.ResubmitPayment(c.UserContext(), middleware.CurrentPrincipal(c).ID, in, proof)
	if err != nil {
		return err
	}
	return okMessage(c, "Payment resubmitted for review", p)
}

func (s *Services) requestAdditionalEvents(c *fiber.Ctx) error {
	var in services.PaymentInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	in.SubEventIDs = splitIDs(in.SubEventIDs)

	proof, closer, err := proofUpload(c)
	if err != nil {
		return err
	}
	defer closer.Close()

	p, q, err := s.Registration.RequestAdditionalEvents(c.UserContext(), middleware.CurrentPrincipal(c).ID, in, proof)
	if err != nil {
		return err
	}
	return okMessage(c, "Additional events requested, awaiting approval", fiber.Map{"participant": p, "quote": q})
}

func (s *Services) myNotifications(c *fiber.Ctx) error {
	items, err := s.Notifier.List(middleware.CurrentPrincipal(c).ID, c.QueryBool("unread", false))
	if err != nil {
		return err
	}
	return list(c, items, -1)
}

func (s *Services) markNotificationRead(c *fiber.Ctx) error {
	if err := s.Notifier.MarkRead(middleware.CurrentPrincipal(c).ID, c.Params("id")); err != nil {
		return err
	}
	return okMessage(c, "Notification marked as read", nil)
}

func (s *Services) markAllNotificationsRead(c *fiber.Ctx) error {
	n, err := s.Notifier.MarkAllRead(middleware.CurrentPrincipal(c).ID)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"updated": n})
}

func (s *Services) myQueries(c *fiber.Ctx) error {
	items, err := s.Queries.Mine(middleware.CurrentPrincipal(c).ID)
	if err != nil {
		return err
	}
	return list(c, items, -1)
}

func (s *Services) submitMyQuery(c *fiber.Ctx) error {
	var in services.QueryInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	p := middleware.CurrentPrincipal(c)
	if in.Name == "" {
		in.Name = p.Participant.Name
	}
	if in.Email == "" {
		in.Email = p.Participant.Email
	}
	q, err := s.Queries.Submit(in, &p.ID)
	if err != nil {
		return err
	}
	return created(c, "Query received", q)
}
