package handlers

import (
	"io"
	"strings"

	"fest-event-system/middleware"
	"fest-event-system/models"
	"fest-event-system/services"
	"fest-event-system/utils"

	"github.com/gofiber/fiber/v2"
)

const proofField = "payment_proof"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Services) registerUser(c *fiber.Ctx) error {
	var in services.RegisterUserInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	user, err := s.Auth.RegisterUser(in)
	if err != nil {
		return err
	}
	return created(c, "Account created. An admin must approve it before you can sign in.", user)
}

func (s *Services) loginUser(c *fiber.Ctx) error {
	var in loginRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	token, user, err := s.Auth.LoginUser(in.Email, in.Password)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"token": token, "user": user})
}

func (s *Services) loginParticipant(c *fiber.Ctx) error {
	var in loginRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	token, p, err := s.Auth.LoginParticipant(in.Email, in.Password)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"token": token, "participant": p})
}

func (s *Services) me(c *fiber.Ctx) error {
	p := middleware.CurrentPrincipal(c)
	data := fiber.Map{"kind": p.Kind, "id": p.ID, "role": p.Role}
	if p.User != nil {
		data["user"] = p.User
	}
	if p.Participant != nil {
		data["participant"] = p.Participant
	}
	return ok(c, data)
}

func (s *Services) registrationSettings(c *fiber.Ctx) error {
	rs, err := s.Settings.Registration()
	if err != nil {
		return err
	}
	return ok(c, rs)
}

func (s *Services) eventSettings(c *fiber.Ctx) error {
	es, err := s.Settings.Event()
	if err != nil {
		return err
	}
	return ok(c, es)
}

func (s *Services) listSubEvents(c *fiber.Ctx) error {
	items, err := s.SubEvents.List(c.Query("status"), c.QueryBool("open", false))
	if err != nil {
		return err
	}
	return list(c, items, -1)
}

func (s *Services) getSubEvent(c *fiber.Ctx) error {
	se, err := s.SubEvents.Get(c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, se)
}

type quoteRequest struct {
	SubEventIDs []string `json:"sub_event_ids"`
}

// quote prices a selection before the participant pays.
func (s *Services) quote(c *fiber.Ctx) error {
	var in quoteRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	ids := splitIDs(in.SubEventIDs)
	if len(ids) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "select at least one sub-event")
	}
	rs, err := s.Settings.Registration()
	if err != nil {
		return err
	}
	events := make([]models.SubEvent, 0, len(ids))
	for _, id := range ids {
		se, err := s.SubEvents.Get(id)
		if err != nil {
			return err
		}
		events = append(events, *se)
	}
	q := services.CalculatePrice(rs, events)
	return ok(c, fiber.Map{"quote": q, "total_label": utils.FormatINR(q.Total)})
}

// splitIDs accepts repeated form values as well as comma-separated lists.
func splitIDs(raw []string) []string {
	var out []string
	for _, v := range raw {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}

// proofUpload returns the optional payment proof of a multipart request.
// The returned closer is never nil.
func proofUpload(c *fiber.Ctx) (*utils.Upload, io.Closer, error) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return nil, io.NopCloser(nil), nil
	}
	fh, err := c.FormFile(proofField)
	if err != nil {
		// no file attached; a proof URL may be supplied instead
		return nil, io.NopCloser(nil), nil
	}
	return utils.UploadFromHeader(fh)
}

func (s *Services) submitRegistration(c *fiber.Ctx) error {
	var in services.RegistrationInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	in.SubEventIDs = splitIDs(in.SubEventIDs)

	proof, closer, err := proofUpload(c)
	if err != nil {
		return err
	}
	defer closer.Close()

	res, err := s.Registration.Submit(c.UserContext(), in, proof)
	if err != nil {
		return err
	}
	return created(c, "Registration received. Keep your password safe, it is shown only once.", res)
}

func (s *Services) submitQuery(c *fiber.Ctx) error {
	var in services.QueryInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	q, err := s.Queries.Submit(in, nil)
	if err != nil {
		return err
	}
	return created(c, "Query received", q)
}
