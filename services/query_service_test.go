package services

import (
	"testing"
	"time"

	"fest-event-system/models"
	"fest-event-system/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueries_SubmitAndRespond(t *testing.T) {
	env := newTestEnv(t)
	se := env.subEvent(t, "Dance", 0)
	p := env.register(t, 1, 0, se.ID)

	_, err := env.Queries.Submit(QueryInput{Name: "Anon", Email: "bad", Message: "hi"}, nil)
	assert.Equal(t, 400, statusCode(err))

	anon, err := env.Queries.Submit(QueryInput{Name: "Visitor", Email: "visitor@mail.com", Message: "Is parking available?"}, nil)
	require.NoError(t, err)
	mine, err := env.Queries.Submit(QueryInput{Name: p.Name, Email: p.Email, Subject: "Timing", Message: "When does Dance start?"}, &p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueryOpen, mine.Status)
	assert.Len(t, env.Events.Events(realtime.EventQueryReceived), 2)

	open, err := env.Queries.List(models.QueryOpen)
	require.NoError(t, err)
	assert.Len(t, open, 2)

	_, err = env.Queries.Respond(mine.ID, "   ", "admin-1")
	assert.Equal(t, 400, statusCode(err))

	answered, err := env.Queries.Respond(mine.ID, "At 4 PM in the auditorium.", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.QueryResolved, answered.Status)
	require.NotNil(t, answered.RespondedAt)

	notes, err := env.Notifier.List(p.ID, true)
	require.NoError(t, err)
	var reply *models.Notification
	for i := range notes {
		if notes[i].Type == NoticeQuery {
			reply = &notes[i]
		}
	}
	require.NotNil(t, reply)
	assert.Equal(t, "Re: Timing", reply.Title)

	// anonymous senders have no inbox
	_, err = env.Queries.Respond(anon.ID, "Yes, near gate 2.", "admin-1")
	require.NoError(t, err)

	resolved, err := env.Queries.List(models.QueryResolved)
	require.NoError(t, err)
	assert.Len(t, resolved, 2)

	own, err := env.Queries.Mine(p.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "At 4 PM in the auditorium.", own[0].Response)

	require.NoError(t, env.Queries.Delete(anon.ID))
	assert.Equal(t, 404, statusCode(env.Queries.Delete(anon.ID)))
}

func TestNotifier_MarkRead(t *testing.T) {
	env := newTestEnv(t)
	env.Notifier.Notify("p1", NoticeRound, "Round 1 has started", "Go", "")
	env.Notifier.Notify("p1", NoticeGroup, "Your group has been called", "Go", "")
	env.Notifier.Notify("p2", NoticeRound, "Round 1 has started", "Go", "")

	notes, err := env.Notifier.List("p1", false)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Len(t, env.Events.InRoom(realtime.ParticipantRoom("p1")), 2)

	require.NoError(t, env.Notifier.MarkRead("p1", notes[0].ID))
	assert.Equal(t, 404, statusCode(env.Notifier.MarkRead("p2", notes[1].ID)), "not their notification")

	unread, err := env.Notifier.List("p1", true)
	require.NoError(t, err)
	assert.Len(t, unread, 1)

	n, err := env.Notifier.MarkAllRead("p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	others, err := env.Notifier.List("p2", true)
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func TestReleaseStaleBusy(t *testing.T) {
	env := newTestEnv(t)
	se := env.subEvent(t, "Dance", 0)
	ids := env.approvedParticipants(t, 3, se.ID)
	live, err := env.Rounds.CreateRound(CreateRoundInput{SubEventID: se.ID, RoundNumber: 1})
	require.NoError(t, err)
	_, err = env.Rounds.StartRound(live.ID)
	require.NoError(t, err)
	env.Events.Reset()

	// ids[2] is busy without any round
	require.NoError(t, env.DB.Model(&models.Participant{}).Where("id = ?", ids[2]).
		Updates(map[string]interface{}{"availability": models.AvailabilityBusy, "current_round_id": nil}).Error)

	released, err := ReleaseStaleBusy(env.DB, env.Events)
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)
	assert.Equal(t, models.AvailabilityAvailable, env.participant(t, ids[2]).Availability)
	assert.Equal(t, models.AvailabilityBusy, env.participant(t, ids[0]).Availability)
	assert.Len(t, env.Events.Events(realtime.EventAvailabilityUpdate), 1)

	// a completed round releases the rest
	require.NoError(t, env.DB.Model(&models.Round{}).Where("id = ?", live.ID).
		Update("status", models.RoundCompleted).Error)
	released, err = ReleaseStaleBusy(env.DB, env.Events)
	require.NoError(t, err)
	assert.Equal(t, int64(2), released)

	released, err = ReleaseStaleBusy(env.DB, env.Events)
	require.NoError(t, err)
	assert.Zero(t, released)
}

func TestStartRegistrationScheduler(t *testing.T) {
	env := newTestEnv(t)
	past := time.Now().Add(-time.Minute)
	_, err := env.SubEvents.Create(SubEventInput{Name: "Old", Type: models.SubEventIndividual, RegistrationDeadline: &past})
	require.NoError(t, err)

	sched, err := StartRegistrationScheduler(env.SubEvents, 20*time.Millisecond)
	require.NoError(t, err)
	defer sched.Shutdown()

	assert.Eventually(t, func() bool {
		var open int64
		env.DB.Model(&models.SubEvent{}).Where("registration_open = ?", true).Count(&open)
		return open == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestAnalyticsOverview(t *testing.T) {
	env := newTestEnv(t)
	paid := env.subEvent(t, "Dance", 100)
	ids := env.approvedParticipants(t, 2, env.subEvent(t, "Quiz", 0).ID)
	env.register(t, 10, 100, paid.ID)
	approved := env.register(t, 11, 100, paid.ID)
	_, err := env.Registration.Approve(approved.ID)
	require.NoError(t, err)
	_, err = env.Queries.Submit(QueryInput{Name: "V", Email: "v@mail.com", Message: "Hello"}, nil)
	require.NoError(t, err)

	ov, err := env.Analytics.Overview()
	require.NoError(t, err)
	assert.Equal(t, int64(3), ov.Participants[models.ParticipantApproved])
	assert.Equal(t, int64(1), ov.Participants[models.ParticipantPending])
	assert.Equal(t, int64(3), ov.Availability[models.AvailabilityAvailable])
	assert.Equal(t, int64(1), ov.Availability[models.AvailabilityRegistered])
	assert.Equal(t, 100.0, ov.TotalRevenue)
	assert.Equal(t, 100.0, ov.PendingRevenue)
	assert.Contains(t, ov.RevenueLabel, "100")
	assert.Equal(t, int64(1), ov.OpenQueries)
	assert.Len(t, ov.SubEvents, 2)
	assert.Len(t, ids, 2)
}
