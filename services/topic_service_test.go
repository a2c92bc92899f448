package services

import (
	"testing"

	"fest-event-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTopics(t *testing.T) {
	raw := `Climate change; "Is AI a boon; or a bane?"
  climate change

“Space exploration”;Social media`

	topics, err := ParseTopics(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Climate change",
		"Is AI a boon; or a bane?",
		"Space exploration",
		"Social media",
	}, topics)

	empty, err := ParseTopics(" \n\n ")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTopicSplitterBuilds(t *testing.T) {
	sp, err := newTopicSplitter()
	require.NoError(t, err)
	require.NotNil(t, sp)
	assert.NotPanics(t, func() { mustTopicSplitter() })
}

func TestDrawTopic(t *testing.T) {
	env := newTestEnv(t)
	se := env.subEvent(t, "Extempore", 0)
	ids := env.approvedParticipants(t, 3, se.ID)
	round, err := env.Rounds.CreateRound(CreateRoundInput{SubEventID: se.ID, RoundNumber: 1})
	require.NoError(t, err)

	var groups []*models.Group
	for _, id := range ids {
		g, err := env.Groups.CreateGroup(CreateGroupInput{RoundID: round.ID, ParticipantIDs: []string{id}})
		require.NoError(t, err)
		groups = append(groups, g)
	}

	_, err = env.Topics.DrawTopic(groups[0].ID)
	assert.Equal(t, 400, statusCode(err), "no topics yet")

	created, err := env.Topics.BulkCreate(BulkTopicInput{
		SubEventID: se.ID,
		Topics:     []string{"Online learning"},
		Text:       "Four-day work week; Online learning",
	})
	require.NoError(t, err)
	require.Len(t, created, 2, "duplicates across list and text collapse")

	env.Topics.pick = func(int) int { return 0 }

	first, err := env.Topics.DrawTopic(groups[0].ID)
	require.NoError(t, err)
	assert.True(t, first.IsUsed)
	require.NotNil(t, first.UsedByGroupID)
	assert.Equal(t, groups[0].ID, *first.UsedByGroupID)

	again, err := env.Topics.DrawTopic(groups[0].ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID, "a group keeps its topic")

	second, err := env.Topics.DrawTopic(groups[1].ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	_, err = env.Topics.DrawTopic(groups[2].ID)
	assert.Equal(t, 400, statusCode(err), "pool exhausted")

	unused, err := env.Topics.List(se.ID, true)
	require.NoError(t, err)
	assert.Empty(t, unused)

	assert.Equal(t, 400, statusCode(env.Topics.Delete(first.ID)), "in use")

	reset, err := env.Topics.Reset(se.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), reset)

	g, err := env.Groups.GetGroup(groups[0].ID)
	require.NoError(t, err)
	assert.Nil(t, g.TopicID)

	third, err := env.Topics.DrawTopic(groups[2].ID)
	require.NoError(t, err)
	assert.NotEmpty(t, third.Content)

	require.NoError(t, env.Topics.Delete(second.ID))
	all, err := env.Topics.List(se.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDeleteGroup_FreesItsTopic(t *testing.T) {
	env := newTestEnv(t)
	se := env.subEvent(t, "Extempore", 0)
	ids := env.approvedParticipants(t, 1, se.ID)
	round, err := env.Rounds.CreateRound(CreateRoundInput{SubEventID: se.ID, RoundNumber: 1})
	require.NoError(t, err)
	g, err := env.Groups.CreateGroup(CreateGroupInput{RoundID: round.ID, ParticipantIDs: ids})
	require.NoError(t, err)
	_, err = env.Topics.BulkCreate(BulkTopicInput{SubEventID: se.ID, Text: "Only topic"})
	require.NoError(t, err)

	topic, err := env.Topics.DrawTopic(g.ID)
	require.NoError(t, err)
	require.NoError(t, env.Groups.DeleteGroup(g.ID))

	free, err := env.Topics.List(se.ID, true)
	require.NoError(t, err)
	require.Len(t, free, 1)
	assert.Equal(t, topic.ID, free[0].ID)
	assert.Nil(t, free[0].UsedByGroupID)
}
