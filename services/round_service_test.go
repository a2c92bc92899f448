package services

import (
	"testing"

	"fest-event-system/models"
	"fest-event-system/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRound_SeedsApprovedParticipants(t *testing.T) {
	env := newTestEnv(t)
	dance := env.subEvent(t, "Dance", 0)
	quiz := env.subEvent(t, "Quiz", 0)

	approved := env.approvedParticipants(t, 5, dance.ID)
	env.approvedParticipants(t, 1, quiz.ID)
	env.register(t, 100, 0, dance.ID) // still pending

	r1, err := env.Rounds.CreateRound(CreateRoundInput{SubEventID: dance.ID, RoundNumber: 1, IsElimination: true})
	require.NoError(t, err)
	assert.Equal(t, "Round 1", r1.Name)
	assert.Equal(t, models.RoundPending, r1.Status)
	assert.Equal(t, approved, []string(r1.ParticipantIDs), "seeded in chest-number order")
	assert.Equal(t, approved, []string(env.round(t, r1.ID).ParticipantIDs))

	r2, err := env.Rounds.CreateRound(CreateRoundInput{SubEventID: dance.ID, Name: "Finals"})
	require.NoError(t, err)
	assert.Equal(t, 2, r2.RoundNumber)
	assert.Empty(t, r2.ParticipantIDs)

	rounds, err := env.Rounds.ListRounds(dance.ID)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, 1, rounds[0].RoundNumber)
}

func TestCreateRound_DuplicateNumberConflicts(t *testing.T) {
	env := newTestEnv(t)
	se := env.subEvent(t, "Dance", 0)

	_, err := env.Rounds.CreateRound(CreateRoundInput{SubEventID: se.ID, RoundNumber: 1})
	require.NoError(t, err)

	_, err = env.Rounds.CreateRound(CreateRoundInput{SubEventID: se.ID, RoundNumber: 1})
	require.Error(t, err)
	assert.Equal(t, 409, statusCode(err))

	// the unique index backs the pre-check
	dup := models.Round{ID: "dup", SubEventID: se.ID, RoundNumber: 1, Status: models.RoundPending}
	assert.True(t, IsDuplicateKey(env.DB.Create(&dup).Error))

	_, err = env.Rounds.CreateRound(CreateRoundInput{SubEventID: "missing", RoundNumber: 1})
	assert.Equal(t, 404, statusCode(err))
}

func TestStartAndEndRound(t *testing.T) {
	env := newTestEnv(t)
	se := env.subEvent(t, "Dance", 0)
	ids := env.approvedParticipants(t, 3, se.ID)
	round, err := env.Rounds.CreateRound(CreateRoundInput{SubEventID: se.ID, RoundNumber: 1})
	require.NoError(t, err)
	env.Events.Reset()

	started, err := env.Rounds.StartRound(round.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoundActive, started.Status)
	assert.NotNil(t, started.StartedAt)

	for _, id := range ids {
		p := env.participant(t, id)
		assert.Equal(t, models.AvailabilityBusy, p.Availability)
		require.NotNil(t, p.CurrentSubEventID)
		assert.Equal(t, se.ID, *p.CurrentSubEventID)
		entry := p.Progress().Get(se.ID)
		assert.Equal(t, models.EventActive, entry.Status)
		require.NotNil(t, entry.CurrentRoundID)
		assert.Equal(t, round.ID, *entry.CurrentRoundID)
		assert.Equal(t, 1, entry.RoundNumber)
	}

	var stored models.SubEvent
	require.NoError(t, env.DB.First(&stored, "id = ?", se.ID).Error)
	assert.Equal(t, models.SubEventActive, stored.Status)

	assert.NotEmpty(t, env.Events.InRoom(realtime.RoundRoom(round.ID)))
	assert.NotEmpty(t, env.Events.InRoom(realtime.SubEventRoom(se.ID)))
	assert.Len(t, env.Events.Events(realtime.EventNotification), 3)

	_, err = env.Rounds.StartRound(round.ID)
	assert.Equal(t, 400, statusCode(err))

	// a result recorded before the round ends survives EndRound
	require.NoError(t, env.DB.Model(&models.Participant{}).Where("id = ?", ids[0]).
		Update("availability", models.AvailabilityQualified).Error)

	ended, err := env.Rounds.EndRound(round.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoundCompleted, ended.Status)
	assert.NotNil(t, ended.EndedAt)
	assert.Equal(t, models.AvailabilityQualified, env.participant(t, ids[0]).Availability)
	assert.Equal(t, models.AvailabilityAvailable, env.participant(t, ids[1]).Availability)

	_, err = env.Rounds.EndRound(round.ID)
	assert.Equal(t, 400, statusCode(err))
	_, err = env.Rounds.StartRound(round.ID)
	assert.Equal(t, 400, statusCode(err), "no transition back from completed")
}

// judgedRound builds a round with one group judged by a two-judge panel.
type judgedRound struct {
	SubEvent *models.SubEvent
	Round    *models.Round
	Next     *models.Round
	Group    *models.Group
	Panel    *models.Panel
	IDs      []string
}

func newJudgedRound(t *testing.T, env *testEnv, members int) judgedRound {
	t.Helper()
	se := env.subEvent(t, "Debate", 0)
	ids := env.approvedParticipants(t, members, se.ID)
	r1, err := env.Rounds.CreateRound(CreateRoundInput{SubEventID: se.ID, RoundNumber: 1})
	require.NoError(t, err)
	r2, err := env.Rounds.CreateRound(CreateRoundInput{SubEventID: se.ID, RoundNumber: 2})
	require.NoError(t, err)

	panel, err := env.Panels.CreatePanel(PanelInput{
		SubEventID: se.ID,
		RoundID:    &r1.ID,
		Name:       "Panel A",
		Parameters: []models.EvaluationParameter{
			{Name: "content", MaxScore: 10, Weight: 2},
			{Name: "delivery", MaxScore: 10},
		},
		Judges: []JudgeInput{{Name: "Judge One"}, {Name: "Judge Two"}},
	})
	require.NoError(t, err)
	require.Len(t, panel.Judges, 2)

	group, err := env.Groups.CreateGroup(CreateGroupInput{RoundID: r1.ID, ParticipantIDs: ids, PanelID: &panel.ID})
	require.NoError(t, err)
	return judgedRound{SubEvent: se, Round: r1, Next: r2, Group: group, Panel: panel, IDs: ids}
}

func ratings(ids []string, selected ...string) []models.ParticipantRating {
	pick := map[string]bool{}
	for _, id := range selected {
		pick[id] = true
	}
	out := make([]models.ParticipantRating, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.ParticipantRating{ParticipantID: id, Total: 15, SelectedForNextRound: pick[id]})
	}
	return out
}

func TestPromoteSelected_UnionOfJudgesAndElimination(t *testing.T) {
	env := newTestEnv(t)
	jr := newJudgedRound(t, env, 4)
	p1, p2, p3, p4 := jr.IDs[0], jr.IDs[1], jr.IDs[2], jr.IDs[3]

	_, _, err := env.Evaluations.SubmitEvaluation(jr.Panel.Judges[0].AccessCode, EvaluationInput{
		GroupID: jr.Group.ID, Ratings: ratings(jr.IDs, p1),
	})
	require.NoError(t, err)
	_, _, err = env.Evaluations.SubmitEvaluation(jr.Panel.Judges[1].AccessCode, EvaluationInput{
		GroupID: jr.Group.ID, Ratings: ratings(jr.IDs, p2),
	})
	require.NoError(t, err)

	res, err := env.Rounds.PromoteSelected(jr.Round.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{p1, p2}, res.Promoted)
	assert.ElementsMatch(t, []string{p3, p4}, res.Eliminated)
	assert.Equal(t, jr.Next.ID, res.NextRoundID)

	next := env.round(t, jr.Next.ID)
	assert.ElementsMatch(t, []string{p1, p2}, []string(next.ParticipantIDs))
	assert.ElementsMatch(t, []string{p1, p2}, []string(env.round(t, jr.Round.ID).WinnerIDs))

	for _, id := range []string{p1, p2} {
		p := env.participant(t, id)
		assert.Equal(t, models.AvailabilityQualified, p.Availability)
		entry := p.Progress().Get(jr.SubEvent.ID)
		assert.Equal(t, models.EventQualified, entry.Status)
		require.NotNil(t, entry.CurrentRoundID)
		assert.Equal(t, jr.Next.ID, *entry.CurrentRoundID)
		assert.Equal(t, 2, entry.RoundNumber)
	}
	for _, id := range []string{p3, p4} {
		entry := env.participant(t, id).Progress().Get(jr.SubEvent.ID)
		assert.Equal(t, models.EventEliminated, entry.Status)
	}

	notes, err := env.Notifier.List(p1, true)
	require.NoError(t, err)
	var qualified int
	for _, n := range notes {
		if n.Type == NoticeQualified {
			qualified++
		}
	}
	assert.Equal(t, 1, qualified)

	// running it again leaves the same state
	again, err := env.Rounds.PromoteSelected(jr.Round.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, res.Promoted, again.Promoted)
	assert.ElementsMatch(t, res.Eliminated, again.Eliminated)
	assert.Len(t, env.round(t, jr.Next.ID).ParticipantIDs, 2)
	assert.Equal(t, models.EventEliminated, env.participant(t, p3).Progress().Get(jr.SubEvent.ID).Status)
}

func TestPromoteSelected_WithoutEvaluationsEliminatesEveryone(t *testing.T) {
	env := newTestEnv(t)
	jr := newJudgedRound(t, env, 2)

	res, err := env.Rounds.PromoteSelected(jr.Round.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Promoted)
	assert.ElementsMatch(t, jr.IDs, res.Eliminated)
	assert.Empty(t, env.round(t, jr.Next.ID).ParticipantIDs)
	for _, id := range jr.IDs {
		p := env.participant(t, id)
		assert.Equal(t, models.EventEliminated, p.Progress().Get(jr.SubEvent.ID).Status)
	}
}

func TestPromoteSelected_EliminatesLateShortlistedParticipants(t *testing.T) {
	env := newTestEnv(t)
	jr := newJudgedRound(t, env, 2)
	_, _, err := env.Evaluations.SubmitEvaluation(jr.Panel.Judges[0].AccessCode, EvaluationInput{
		GroupID: jr.Group.ID, Ratings: ratings(jr.IDs, jr.IDs[0]),
	})
	require.NoError(t, err)

	late := env.approvedParticipants(t, 1, jr.SubEvent.ID)[0]
	_, added, err := env.Rounds.ShortlistParticipants(jr.Round.ID, []string{late})
	require.NoError(t, err)
	require.Equal(t, 1, added)

	res, err := env.Rounds.PromoteSelected(jr.Round.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{jr.IDs[0]}, res.Promoted)
	assert.ElementsMatch(t, []string{jr.IDs[1], late}, res.Eliminated)
	assert.Equal(t, models.EventEliminated, env.participant(t, late).Progress().Get(jr.SubEvent.ID).Status)
}

func TestPromoteSelected_RequiresNextRound(t *testing.T) {
	env := newTestEnv(t)
	jr := newJudgedRound(t, env, 2)
	require.NoError(t, env.Rounds.DeleteRound(jr.Next.ID))

	_, _, err := env.Evaluations.SubmitEvaluation(jr.Panel.Judges[0].AccessCode, EvaluationInput{
		GroupID: jr.Group.ID, Ratings: ratings(jr.IDs, jr.IDs[0]),
	})
	require.NoError(t, err)

	_, err = env.Rounds.PromoteSelected(jr.Round.ID)
	require.Error(t, err)
	assert.Equal(t, 400, statusCode(err))
	assert.Contains(t, err.Error(), "round 2")
	assert.Equal(t, models.AvailabilityAvailable, env.participant(t, jr.IDs[0]).Availability)
}

func TestShortlistParticipants(t *testing.T) {
	env := newTestEnv(t)
	se := env.subEvent(t, "Dance", 0)
	ids := env.approvedParticipants(t, 3, se.ID)
	_, err := env.Rounds.CreateRound(CreateRoundInput{SubEventID: se.ID, RoundNumber: 1})
	require.NoError(t, err)
	r2, err := env.Rounds.CreateRound(CreateRoundInput{SubEventID: se.ID, RoundNumber: 2})
	require.NoError(t, err)

	round, added, err := env.Rounds.ShortlistParticipants(r2.ID, []string{ids[0], ids[0], ids[2]})
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, []string{ids[0], ids[2]}, []string(round.ParticipantIDs))

	_, _, err = env.Rounds.ShortlistParticipants(r2.ID, []string{"stranger"})
	assert.Equal(t, 400, statusCode(err))
}

func TestDeleteRound_CascadesToGroupsPanelsAndEvaluations(t *testing.T) {
	env := newTestEnv(t)
	jr := newJudgedRound(t, env, 2)
	_, _, err := env.Evaluations.SubmitEvaluation(jr.Panel.Judges[0].AccessCode, EvaluationInput{
		GroupID: jr.Group.ID, Ratings: ratings(jr.IDs),
	})
	require.NoError(t, err)

	require.NoError(t, env.Rounds.DeleteRound(jr.Round.ID))

	for _, model := range []interface{}{&models.Group{}, &models.GroupMember{}, &models.Evaluation{}, &models.Panel{}, &models.Judge{}} {
		var n int64
		require.NoError(t, env.DB.Model(model).Count(&n).Error)
		assert.Zero(t, n, "%T left behind", model)
	}
	_, err = env.Rounds.GetRound(jr.Round.ID)
	assert.Equal(t, 404, statusCode(err))
}

func TestRoundResults_RanksGroupsByAverage(t *testing.T) {
	env := newTestEnv(t)
	jr := newJudgedRound(t, env, 2)
	_, _, err := env.Evaluations.SubmitEvaluation(jr.Panel.Judges[0].AccessCode, EvaluationInput{
		GroupID: jr.Group.ID, Ratings: ratings(jr.IDs, jr.IDs[1]),
	})
	require.NoError(t, err)

	res, err := env.Rounds.Results(jr.Round.ID)
	require.NoError(t, err)
	require.Len(t, res.Standings, 1)
	assert.Equal(t, 1, res.Standings[0].Rank)
	assert.Equal(t, 50.0, res.Standings[0].AverageScore)
	assert.Equal(t, 1, res.Standings[0].Evaluations)
	assert.Equal(t, 1, res.Selected[jr.IDs[1]])
}

func TestSubEventRestart_WipesRoundsAndResetsProgress(t *testing.T) {
	env := newTestEnv(t)
	se := env.subEvent(t, "Dance", 0)
	ids := env.approvedParticipants(t, 2, se.ID)
	round, err := env.Rounds.CreateRound(CreateRoundInput{SubEventID: se.ID, RoundNumber: 1})
	require.NoError(t, err)
	_, err = env.Rounds.StartRound(round.ID)
	require.NoError(t, err)

	restarted, err := env.SubEvents.Restart(se.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubEventNotStarted, restarted.Status)
	assert.Empty(t, restarted.Rounds)

	for _, id := range ids {
		p := env.participant(t, id)
		assert.Equal(t, models.AvailabilityAvailable, p.Availability)
		assert.Nil(t, p.CurrentRoundID)
		entry := p.Progress().Get(se.ID)
		assert.Equal(t, models.EventNotStarted, entry.Status)
		assert.Nil(t, entry.CurrentRoundID)
	}
}
