package realtime

const RoomAdmin = "admin"

const (
	EventParticipantRegistered = "participant:registered"
	EventParticipantApproved   = "participant:approved"
	EventParticipantRejected   = "participant:rejected"
	EventRoundStarted          = "round:started"
	EventRoundEnded            = "round:ended"
	EventRoundPromoted         = "round:promoted"
	EventGroupsFormed          = "groups:formed"
	EventEvaluationUpdated     = "evaluation:updated"
	EventEvaluationSummary     = "evaluation:summary"
	EventJudgeLoggedIn         = "judge:logged_in"
	EventAvailabilityUpdate    = "availability_update"
	EventNotification          = "participant:notification"
	EventSubEventStatus        = "subevent:status"
	EventQueryReceived         = "query:received"
)

func SubEventRoom(id string) string    { return "subevent:" + id }
func PanelRoom(id string) string       { return "panel:" + id }
func RoundRoom(id string) string       { return "round:" + id }
func ParticipantRoom(id string) string { return "participant:" + id }
