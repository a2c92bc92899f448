package services

import (
	"fmt"
	"testing"
	"time"

	"fest-event-system/models"
	"fest-event-system/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sizes(groups [][]string) []int {
	out := make([]int, 0, len(groups))
	for _, g := range groups {
		out = append(out, len(g))
	}
	return out
}

func TestPartitionGroups(t *testing.T) {
	ids := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = fmt.Sprintf("p%d", i)
		}
		return out
	}

	tests := []struct {
		name string
		n    int
		size int
		want []int
	}{
		{"exact", 9, 3, []int{3, 3, 3}},
		{"one left over", 10, 3, []int{4, 3, 3}},
		{"two left over", 11, 3, []int{4, 4, 3}},
		{"tail wider than groups", 7, 5, []int{7}},
		{"fewer than size", 2, 3, []int{2}},
		{"single", 1, 1, []int{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sizes(partitionGroups(ids(tt.n), tt.size)))
		})
	}

	assert.Nil(t, partitionGroups(nil, 3))
	assert.Nil(t, partitionGroups(ids(4), 0))
}

func TestPartitionGroups_NeverUndersized(t *testing.T) {
	for n := 1; n <= 30; n++ {
		for size := 1; size <= 6; size++ {
			in := make([]string, n)
			for i := range in {
				in[i] = fmt.Sprintf("p%d", i)
			}
			groups := partitionGroups(in, size)

			seen := map[string]bool{}
			for _, g := range groups {
				if len(groups) > 1 {
					assert.GreaterOrEqual(t, len(g), size, "n=%d size=%d", n, size)
				}
				for _, id := range g {
					assert.False(t, seen[id], "n=%d size=%d: %s placed twice", n, size, id)
					seen[id] = true
				}
			}
			assert.Len(t, seen, n, "n=%d size=%d", n, size)
		}
	}
}

func TestAutoFormGroups(t *testing.T) {
	env := newTestEnv(t)
	se := env.groupSubEvent(t, "Group Dance", 2, 4)
	ids := env.approvedParticipants(t, 7, se.ID)
	round, err := env.Rounds.CreateRound(CreateRoundInput{SubEventID: se.ID, RoundNumber: 1})
	require.NoError(t, err)

	_, err = env.Groups.AutoFormGroups(AutoFormInput{SubEventID: se.ID, RoundID: round.ID, GroupSize: 5})
	assert.Equal(t, 400, statusCode(err), "above the sub-event maximum")
	_, err = env.Groups.AutoFormGroups(AutoFormInput{SubEventID: se.ID, RoundID: round.ID, GroupSize: 1})
	assert.Equal(t, 400, statusCode(err), "below the sub-event minimum")

	groups, err := env.Groups.AutoFormGroups(AutoFormInput{SubEventID: se.ID, RoundID: round.ID, GroupSize: 3})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Group 1", groups[0].Name)
	assert.Equal(t, 2, groups[1].GroupNumber)
	assert.Equal(t, "Main Hall", groups[0].Venue)
	assert.Equal(t, models.EvaluationPending, groups[0].EvaluationStatus)
	assert.Len(t, groups[0].Members, 4)
	assert.Len(t, groups[1].Members, 3)

	var placed []string
	for i := range groups {
		placed = append(placed, groups[i].ParticipantIDs()...)
	}
	assert.ElementsMatch(t, ids, placed)
	assert.Len(t, env.Events.Events(realtime.EventGroupsFormed), 2, "round room and admin")

	_, err = env.Groups.AutoFormGroups(AutoFormInput{SubEventID: se.ID, RoundID: round.ID, GroupSize: 3})
	assert.Equal(t, 400, statusCode(err), "everyone is already grouped")
}

func TestAutoFormGroups_EmptyFirstRoundUsesAvailableRegistrants(t *testing.T) {
	env := newTestEnv(t)
	se := env.groupSubEvent(t, "Skit", 2, 4)
	round, err := env.Rounds.CreateRound(CreateRoundInput{SubEventID: se.ID, RoundNumber: 1})
	require.NoError(t, err)
	require.Empty(t, round.ParticipantIDs)

	ids := env.approvedParticipants(t, 4, se.ID)
	require.NoError(t, env.DB.Model(&models.Participant{}).Where("id = ?", ids[3]).
		Update("availability", models.AvailabilityBusy).Error)

	groups, err := env.Groups.AutoFormGroups(AutoFormInput{SubEventID: se.ID, RoundID: round.ID})
	require.NoError(t, err)
	require.Len(t, groups, 1, "default size is the sub-event minimum")
	assert.ElementsMatch(t, ids[:3], groups[0].ParticipantIDs())
	assert.ElementsMatch(t, ids[:3], []string(env.round(t, round.ID).ParticipantIDs))
}

func TestCreateGroup_ParticipantInOneGroupPerRound(t *testing.T) {
	env := newTestEnv(t)
	se := env.subEvent(t, "Debate", 0)
	ids := env.approvedParticipants(t, 3, se.ID)
	outsider := env.register(t, 50, 0, se.ID)
	round, err := env.Rounds.CreateRound(CreateRoundInput{SubEventID: se.ID, RoundNumber: 1})
	require.NoError(t, err)

	g1, err := env.Groups.CreateGroup(CreateGroupInput{RoundID: round.ID, ParticipantIDs: ids[:2], Name: "Team Alpha"})
	require.NoError(t, err)
	assert.Equal(t, "Team Alpha", g1.Name)
	assert.Equal(t, 1, g1.GroupNumber)

	_, err = env.Groups.CreateGroup(CreateGroupInput{RoundID: round.ID, ParticipantIDs: ids[1:]})
	require.Error(t, err)
	assert.Equal(t, 409, statusCode(err))

	_, err = env.Groups.CreateGroup(CreateGroupInput{RoundID: round.ID, ParticipantIDs: []string{outsider.ID}})
	assert.Equal(t, 400, statusCode(err), "pending registrants cannot be grouped")

	// the unique index holds even without the service check
	dup := models.GroupMember{ID: "dup", GroupID: g1.ID, RoundID: round.ID, ParticipantID: ids[0]}
	assert.True(t, IsDuplicateKey(env.DB.Create(&dup).Error))

	g2, err := env.Groups.CreateGroup(CreateGroupInput{RoundID: round.ID, ParticipantIDs: ids[2:]})
	require.NoError(t, err)
	assert.Equal(t, "Group 2", g2.Name)

	// moving a member inside their own group is allowed
	updated, err := env.Groups.UpdateGroupMembers(g1.ID, []string{ids[1], ids[0]})
	require.NoError(t, err)
	assert.ElementsMatch(t, ids[:2], updated.ParticipantIDs())

	_, err = env.Groups.UpdateGroupMembers(g1.ID, []string{ids[0], ids[2]})
	assert.Equal(t, 409, statusCode(err))

	require.NoError(t, env.Groups.DeleteGroup(g2.ID))
	_, err = env.Groups.UpdateGroupMembers(g1.ID, []string{ids[0], ids[2]})
	assert.NoError(t, err)
}

func TestNotifyGroup(t *testing.T) {
	env := newTestEnv(t)
	se := env.subEvent(t, "Debate", 0)
	ids := env.approvedParticipants(t, 2, se.ID)
	round, err := env.Rounds.CreateRound(CreateRoundInput{SubEventID: se.ID, RoundNumber: 1})
	require.NoError(t, err)

	at := time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC)
	g, err := env.Groups.CreateGroup(CreateGroupInput{
		RoundID:        round.ID,
		ParticipantIDs: ids,
		Venue:          "Seminar Hall B",
		ScheduledAt:    &at,
	})
	require.NoError(t, err)
	env.Events.Reset()

	_, err = env.Groups.NotifyGroup(g.ID)
	require.NoError(t, err)

	for _, id := range ids {
		p := env.participant(t, id)
		assert.Equal(t, models.AvailabilityBusy, p.Availability)
		entry := p.Progress().Get(se.ID)
		assert.Equal(t, models.EventActive, entry.Status)
		require.NotNil(t, entry.CurrentRoundID)
		assert.Equal(t, round.ID, *entry.CurrentRoundID)

		notes, err := env.Notifier.List(id, true)
		require.NoError(t, err)
		var called *models.Notification
		for i := range notes {
			if notes[i].Type == NoticeGroup {
				called = &notes[i]
			}
		}
		require.NotNil(t, called)
		assert.Contains(t, called.Message, "Seminar Hall B")
		assert.Contains(t, called.Message, "3:30 PM")
	}
	assert.Len(t, env.Events.Events(realtime.EventAvailabilityUpdate), 1)
}

func TestAssignPanel_SetsAndClears(t *testing.T) {
	env := newTestEnv(t)
	jr := newJudgedRound(t, env, 2)
	other := env.subEvent(t, "Quiz", 0)
	foreign, err := env.Panels.CreatePanel(PanelInput{SubEventID: other.ID, Name: "Quiz Panel"})
	require.NoError(t, err)

	_, err = env.Groups.AssignPanel(jr.Group.ID, foreign.ID)
	assert.Equal(t, 400, statusCode(err))

	cleared, err := env.Groups.AssignPanel(jr.Group.ID, "")
	require.NoError(t, err)
	assert.Nil(t, cleared.PanelID)

	set, err := env.Groups.AssignPanel(jr.Group.ID, jr.Panel.ID)
	require.NoError(t, err)
	require.NotNil(t, set.PanelID)
	assert.Equal(t, jr.Panel.ID, *set.PanelID)
}
