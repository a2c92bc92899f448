package services

import (
	"testing"

	"fest-event-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportParticipants_FiltersAndOrdersByChest(t *testing.T) {
	env := newTestEnv(t)
	dance := env.subEvent(t, "Dance", 0)
	quiz := env.subEvent(t, "Quiz", 0)
	env.approvedParticipants(t, 2, dance.ID, quiz.ID)
	env.approvedParticipants(t, 1, quiz.ID)
	env.register(t, 10, 0, dance.ID)

	all, err := env.Exports.Participants("", "")
	require.NoError(t, err)
	require.Len(t, all.Rows, 4)
	assert.Equal(t, []string{"1", "2", "3", "4"}, []string{all.Rows[0][0], all.Rows[1][0], all.Rows[2][0], all.Rows[3][0]})
	assert.Equal(t, "Dance, Quiz", all.Rows[0][10])

	approved, err := env.Exports.Participants(models.ParticipantApproved, dance.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dance: Participants (approved)", approved.Title)
	require.Len(t, approved.Rows, 2)
	assert.Equal(t, "Student 1", approved.Rows[0][1])

	_, err = env.Exports.Participants("", "missing")
	assert.Equal(t, 404, statusCode(err))
}

func TestExportGroupsAndAttendance(t *testing.T) {
	env := newTestEnv(t)
	se := env.groupSubEvent(t, "Debate", 2, 4)
	ids := env.approvedParticipants(t, 3, se.ID)
	round, err := env.Rounds.CreateRound(CreateRoundInput{SubEventID: se.ID, RoundNumber: 1})
	require.NoError(t, err)
	_, err = env.Groups.CreateGroup(CreateGroupInput{RoundID: round.ID, ParticipantIDs: ids[:2], Venue: "Hall B"})
	require.NoError(t, err)

	groups, err := env.Exports.Groups(round.ID)
	require.NoError(t, err)
	assert.Equal(t, "Debate: Round 1 groups", groups.Title)
	require.Len(t, groups.Rows, 2)
	assert.Equal(t, "Hall B", groups.Rows[0][4])
	assert.NotEmpty(t, groups.Rows[0][2])

	_, err = env.Attendance.Mark(AttendanceInput{
		SubEventID: se.ID,
		Marks:      []AttendanceMark{{ParticipantID: ids[0], Present: true}, {ParticipantID: ids[1], Present: false}},
	}, "admin@college.edu")
	require.NoError(t, err)

	att, err := env.Exports.Attendance(se.ID, "")
	require.NoError(t, err)
	require.Len(t, att.Rows, 2)
	assert.ElementsMatch(t, []string{"Yes", "No"}, []string{att.Rows[0][2], att.Rows[1][2]})

	_, err = env.Exports.Groups("missing")
	assert.Equal(t, 404, statusCode(err))
}
