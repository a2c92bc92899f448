package handlers

import (
	"context"
	"time"

	"fest-event-system/middleware"
	"fest-event-system/models"
	"fest-event-system/realtime"
	"fest-event-system/services"

	"github.com/gofiber/fiber/v2"
)

// SheetSyncer is the admin trigger for the spreadsheet mirror.
type SheetSyncer interface {
	SyncOnce(ctx context.Context) (int, error)
	LastSync() (time.Time, int)
}

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Auth         *services.AuthService
	Users        *services.UserService
	Settings     *services.SettingsService
	SubEvents    *services.SubEventService
	Registration *services.RegistrationService
	Rounds       *services.RoundService
	Groups       *services.GroupService
	Panels       *services.PanelService
	Evaluations  *services.EvaluationService
	Topics       *services.TopicService
	Attendance   *services.AttendanceService
	Queries      *services.QueryService
	Notifier     *services.Notifier
	Analytics    *services.AnalyticsService
	Exports      *services.ExportService

	Hub          *realtime.Hub
	Sheets       SheetSyncer // nil when Google Sheets is not configured
	JudgeLimiter *middleware.IPLimiter
}

// Setup registers every route under /api.
func Setup(app *fiber.App, s *Services) {
	api := app.Group("/api")
	api.Get("/health", func(c *fiber.Ctx) error {
		return ok(c, fiber.Map{"status": "ok", "time": time.Now().UTC()})
	})

	setupPublicRoutes(api, s)
	setupParticipantRoutes(api, s)
	setupJudgeRoutes(api, s)
	setupAdminRoutes(api, s)

	// 📡 Event stream for accounts and participants; judges use /judge/stream
	api.Get("/stream", middleware.SSEAuth(s.Auth), s.stream)
}

func setupPublicRoutes(api fiber.Router, s *Services) {
	// 🔓 Accounts
	api.Post("/auth/register", s.registerUser)
	api.Post("/auth/login", s.loginUser)
	api.Post("/auth/participant/login", s.loginParticipant)
	api.Get("/auth/me", middleware.RequireAuth(s.Auth), s.me)

	// 🔓 Fest information
	api.Get("/settings/registration", s.registrationSettings)
	api.Get("/settings/event", s.eventSettings)
	api.Get("/sub-events", s.listSubEvents)
	api.Get("/sub-events/:id", s.getSubEvent)

	// 🔓 Registration and contact
	api.Post("/registrations/quote", s.quote)
	api.Post("/registrations", s.submitRegistration)
	api.Post("/queries", s.submitQuery)
}

func setupParticipantRoutes(api fiber.Router, s *Services) {
	// 🔐 Participant self-service
	me := api.Group("/me", middleware.RequireAuth(s.Auth), middleware.RequireRoles(models.RoleParticipant))
	me.Get("/", s.myProfile)
	me.Post("/payment", s.resubmitPayment)
	me.Post("/events", s.requestAdditionalEvents)
	me.Get("/notifications", s.myNotifications)
	me.Patch("/notifications/:id/read", s.markNotificationRead)
	me.Post("/notifications/read-all", s.markAllNotificationsRead)
	me.Get("/queries", s.myQueries)
	me.Post("/queries", s.submitMyQuery)
}

func setupJudgeRoutes(api fiber.Router, s *Services) {
	// 🧑‍⚖️ Judges authenticate with their panel access code.
	// Login is registered ahead of the gated group so it never reaches JudgeGate.
	api.Post("/judge/login", s.JudgeLimiter.Handler(), s.judgeLogin)

	judge := api.Group("/judge", s.JudgeLimiter.Handler(), middleware.JudgeGate(s.Panels))
	judge.Get("/panel", s.judgePanel)
	judge.Get("/groups/:id", s.judgeGroup)
	judge.Post("/groups/:id/topic", s.judgeDrawTopic)
	judge.Get("/evaluations", s.judgeEvaluations)
	judge.Post("/evaluations", s.submitEvaluation)
	judge.Get("/stream", s.judgeStream)
}

func setupAdminRoutes(api fiber.Router, s *Services) {
	admin := api.Group("/admin", middleware.RequireAuth(s.Auth), middleware.RequireRoles(models.RoleAdmin))

	// 👤 Accounts
	admin.Get("/users", s.listUsers)
	admin.Post("/users/:id/approve", s.approveUser)
	admin.Delete("/users/:id", s.deleteUser)

	// ⚙️ Settings
	admin.Put("/settings/registration", s.updateRegistrationSettings)
	admin.Put("/settings/event", s.updateEventSettings)
	admin.Get("/analytics", s.analytics)

	// 🎪 Sub-events
	admin.Get("/sub-events", s.listSubEvents)
	admin.Post("/sub-events", s.createSubEvent)
	admin.Put("/sub-events/:id", s.updateSubEvent)
	admin.Patch("/sub-events/:id/status", s.setSubEventStatus)
	admin.Post("/sub-events/:id/toggle-registration", s.toggleRegistration)
	admin.Post("/sub-events/:id/restart", s.restartSubEvent)
	admin.Delete("/sub-events/:id", s.deleteSubEvent)
	admin.Get("/sub-events/:id/rounds", s.listRounds)

	// 🧾 Participants
	admin.Get("/participants", s.listParticipants)
	admin.Post("/participants/bulk-approve", s.bulkApprove)
	admin.Get("/participants/:id", s.getParticipant)
	admin.Put("/participants/:id", s.updateParticipant)
	admin.Delete("/participants/:id", s.deleteParticipant)
	admin.Post("/participants/:id/approve", s.approveParticipant)
	admin.Post("/participants/:id/reject", s.rejectParticipant)

	// 🏁 Rounds
	admin.Post("/rounds", s.createRound)
	admin.Get("/rounds/:id", s.getRound)
	admin.Delete("/rounds/:id", s.deleteRound)
	admin.Post("/rounds/:id/start", s.startRound)
	admin.Post("/rounds/:id/end", s.endRound)
	admin.Post("/rounds/:id/promote", s.promoteSelected)
	admin.Post("/rounds/:id/shortlist", s.shortlist)
	admin.Get("/rounds/:id/results", s.roundResults)
	admin.Get("/rounds/:id/groups", s.listGroups)
	admin.Get("/rounds/:id/evaluations", s.roundEvaluations)

	// 👥 Groups
	admin.Post("/groups/auto", s.autoFormGroups)
	admin.Post("/groups", s.createGroup)
	admin.Get("/groups/:id", s.getGroup)
	admin.Put("/groups/:id", s.updateGroup)
	admin.Put("/groups/:id/members", s.updateGroupMembers)
	admin.Put("/groups/:id/panel", s.assignGroupPanel)
	admin.Post("/groups/:id/notify", s.notifyGroup)
	admin.Post("/groups/:id/topic", s.drawTopic)
	admin.Get("/groups/:id/evaluations", s.groupEvaluations)
	admin.Delete("/groups/:id", s.deleteGroup)

	// 🧑‍⚖️ Panels
	admin.Get("/panels", s.listPanels)
	admin.Post("/panels", s.createPanel)
	admin.Get("/panels/:id", s.getPanel)
	admin.Put("/panels/:id", s.updatePanel)
	admin.Delete("/panels/:id", s.deletePanel)
	admin.Post("/panels/:id/judges", s.addJudge)
	admin.Delete("/panels/:id/judges/:judgeId", s.removeJudge)
	admin.Post("/panels/:id/regenerate-codes", s.regenerateCodes)
	admin.Put("/panels/:id/groups", s.assignPanelGroups)

	// 💡 Topics
	admin.Get("/topics", s.listTopics)
	admin.Post("/topics/bulk", s.bulkCreateTopics)
	admin.Post("/topics/reset", s.resetTopics)
	admin.Delete("/topics/:id", s.deleteTopic)

	// 📋 Attendance
	admin.Get("/attendance", s.listAttendance)
	admin.Post("/attendance", s.markAttendance)

	// ✉️ Queries
	admin.Get("/queries", s.listQueries)
	admin.Post("/queries/:id/respond", s.respondQuery)
	admin.Delete("/queries/:id", s.deleteQuery)

	// 📤 Exports
	admin.Get("/exports/participants", s.exportParticipants)
	admin.Get("/exports/rounds/:id/groups", s.exportGroups)
	admin.Get("/exports/attendance", s.exportAttendance)
	admin.Post("/exports/sheets/sync", s.syncSheets)
	admin.Get("/exports/sheets/status", s.sheetsStatus)
}
