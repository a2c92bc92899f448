package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventProgress_GetDefaultsToNotStarted(t *testing.T) {
	p := Participant{Events: []ParticipantEvent{
		{SubEventID: "dance", Status: EventActive, RoundNumber: 2, Confirmed: true},
		{SubEventID: "quiz", Status: EventNotStarted},
	}}
	progress := p.Progress()

	assert.Equal(t, EventActive, progress.Get("dance").Status)
	assert.Equal(t, 2, progress.Get("dance").RoundNumber)

	missing := progress.Get("debate")
	assert.Equal(t, EventNotStarted, missing.Status)
	assert.Nil(t, missing.CurrentRoundID)
	assert.Equal(t, 0, missing.RoundNumber)
	assert.False(t, progress.Has("debate"))

	assert.Equal(t, []string{"dance"}, p.RegisteredSubEventIDs())
	assert.Equal(t, []string{"quiz"}, p.PendingSubEventIDs())
}

func TestSubEvent_OpenForRegistration(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	open := SubEvent{RegistrationOpen: true, Status: SubEventNotStarted}
	assert.True(t, open.OpenForRegistration(now))

	closedFlag := SubEvent{RegistrationOpen: false}
	assert.False(t, closedFlag.OpenForRegistration(now))

	expired := SubEvent{RegistrationOpen: true, RegistrationDeadline: &past}
	assert.False(t, expired.OpenForRegistration(now))

	notYet := SubEvent{RegistrationOpen: true, RegistrationStart: &future}
	assert.False(t, notYet.OpenForRegistration(now))

	completed := SubEvent{RegistrationOpen: true, Status: SubEventCompleted}
	assert.False(t, completed.OpenForRegistration(now))
}

func TestSubEvent_IsFull(t *testing.T) {
	assert.False(t, (&SubEvent{Capacity: 0, RegisteredCount: 500}).IsFull())
	assert.False(t, (&SubEvent{Capacity: 10, RegisteredCount: 9}).IsFull())
	assert.True(t, (&SubEvent{Capacity: 10, RegisteredCount: 10}).IsFull())
}

func TestRound_AddParticipantsDeduplicates(t *testing.T) {
	r := Round{ParticipantIDs: []string{"a", "b"}}
	added := r.AddParticipants("b", "c", "c", "d")

	assert.Equal(t, 2, added)
	assert.Equal(t, []string{"a", "b", "c", "d"}, []string(r.ParticipantIDs))
	assert.True(t, r.HasParticipant("d"))
	assert.False(t, r.HasParticipant("z"))
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(10, 0))
	assert.Equal(t, 80.0, Percentage(40, 50))
	assert.Equal(t, 33.33, Percentage(1, 3))
}

func TestPanel_WeightedMax(t *testing.T) {
	p := Panel{Parameters: []EvaluationParameter{
		{Name: "content", MaxScore: 10, Weight: 2},
		{Name: "delivery", MaxScore: 10},
	}}
	assert.Equal(t, 30.0, p.WeightedMax())
}
