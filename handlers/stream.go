package handlers

import (
	"log"
	"strings"

	"fest-event-system/middleware"
	"fest-event-system/models"
	"fest-event-system/realtime"

	"github.com/gofiber/fiber/v2"
)

// requestedRooms parses ?rooms=a,b and drops duplicates.
func requestedRooms(c *fiber.Ctx) []string {
	seen := map[string]bool{}
	var rooms []string
	for _, r := range strings.Split(c.Query("rooms"), ",") {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		rooms = append(rooms, r)
	}
	return rooms
}

// authorizeRooms decides which rooms the principal may join. Admins may join
// any room; judges with accounts follow sub-events and rounds; participants get
// their own room plus the sub-events they are confirmed for and the rounds that list them.
func (s *Services) authorizeRooms(c *fiber.Ctx, requested []string) ([]string, error) {
	p := middleware.CurrentPrincipal(c)
	switch p.Role {
	case models.RoleAdmin:
		if len(requested) == 0 {
			return []string{realtime.RoomAdmin}, nil
		}
		return requested, nil

	case models.RoleJudge:
		if len(requested) == 0 {
			return nil, fiber.NewError(fiber.StatusBadRequest, "rooms is required")
		}
		for _, r := range requested {
			if !strings.HasPrefix(r, "subevent:") && !strings.HasPrefix(r, "round:") {
				return nil, fiber.NewError(fiber.StatusForbidden, "cannot subscribe to "+r)
			}
		}
		return requested, nil

	case models.RoleParticipant:
		own := realtime.ParticipantRoom(p.ID)
		participant, err := s.Registration.Get(p.ID)
		if err != nil {
			return nil, err
		}
		progress := participant.Progress()

		rooms := []string{own}
		for _, r := range requested {
			switch {
			case r == own:
				continue
			case strings.HasPrefix(r, "subevent:"):
				e, found := progress[strings.TrimPrefix(r, "subevent:")]
				if !found || !e.Confirmed {
					return nil, fiber.NewError(fiber.StatusForbidden, "not registered for "+r)
				}
			case strings.HasPrefix(r, "round:"):
				round, err := s.Rounds.GetRound(strings.TrimPrefix(r, "round:"))
				if err != nil {
					return nil, err
				}
				if !round.HasParticipant(p.ID) {
					return nil, fiber.NewError(fiber.StatusForbidden, "not part of "+r)
				}
			default:
				return nil, fiber.NewError(fiber.StatusForbidden, "cannot subscribe to "+r)
			}
			rooms = append(rooms, r)
		}
		return rooms, nil
	}
	return nil, fiber.NewError(fiber.StatusForbidden, "cannot subscribe")
}

func (s *Services) stream(c *fiber.Ctx) error {
	rooms, err := s.authorizeRooms(c, requestedRooms(c))
	if err != nil {
		return err
	}
	log.Printf("📡 [SSE] %s %s joined %v", middleware.CurrentPrincipal(c).Kind, middleware.CurrentPrincipal(c).ID, rooms)
	return realtime.Stream(c, s.Hub, rooms)
}

// judgeStream follows the judge's panel room.
func (s *Services) judgeStream(c *fiber.Ctx) error {
	judge, panel := middleware.CurrentJudge(c)
	rooms := []string{realtime.PanelRoom(panel.ID)}
	log.Printf("📡 [SSE] judge %s joined %v", judge.Name, rooms)
	return realtime.Stream(c, s.Hub, rooms)
}
