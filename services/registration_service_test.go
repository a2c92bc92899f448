package services

import (
	"bytes"
	"context"
	"testing"

	"fest-event-system/models"
	"fest-event-system/realtime"
	"fest-event-system/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateDiscount(t *testing.T) {
	percent := models.RegistrationSettings{DiscountEnabled: true, DiscountMinEvents: 3, DiscountType: models.DiscountPercentage, DiscountValue: 10}
	fixed := models.RegistrationSettings{DiscountEnabled: true, DiscountMinEvents: 2, DiscountType: models.DiscountFixed, DiscountValue: 40}
	disabled := percent
	disabled.DiscountEnabled = false

	tests := []struct {
		name     string
		settings models.RegistrationSettings
		subtotal float64
		count    int
		want     float64
	}{
		{"disabled", disabled, 150, 3, 0},
		{"below threshold", percent, 100, 2, 0},
		{"percentage at threshold", percent, 150, 3, 15},
		{"percentage above threshold", percent, 200, 4, 20},
		{"fixed ignores subtotal", fixed, 30, 2, 40},
		{"fixed on larger subtotal", fixed, 500, 5, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateDiscount(tt.settings, tt.subtotal, tt.count))
		})
	}
}

func TestCalculatePrice_FloorsAtZero(t *testing.T) {
	rs := models.RegistrationSettings{DiscountEnabled: true, DiscountMinEvents: 1, DiscountType: models.DiscountFixed, DiscountValue: 100}
	q := CalculatePrice(rs, []models.SubEvent{{Price: 30}, {Price: 20}})

	assert.Equal(t, 50.0, q.Subtotal)
	assert.Equal(t, 100.0, q.Discount)
	assert.Equal(t, 0.0, q.Total)
	assert.Equal(t, 2, q.EventCount)
}

func enableTenPercentAtThree(t *testing.T, env *testEnv) {
	t.Helper()
	enabled, min, kind, value := true, 3, models.DiscountPercentage, 10.0
	_, err := env.Settings.UpdateRegistration(RegistrationSettingsInput{
		DiscountEnabled:   &enabled,
		DiscountMinEvents: &min,
		DiscountType:      &kind,
		DiscountValue:     &value,
	})
	require.NoError(t, err)
}

func TestSubmit_ThreeEventsWithDiscount(t *testing.T) {
	env := newTestEnv(t)
	enableTenPercentAtThree(t, env)
	dance := env.subEvent(t, "Dance", 50)
	quiz := env.subEvent(t, "Quiz", 50)
	debate := env.subEvent(t, "Debate", 50)
	ids := []string{dance.ID, quiz.ID, debate.ID}

	_, err := env.Registration.Submit(context.Background(), registrationInput(1, 100, ids...), nil)
	require.Error(t, err)
	assert.Equal(t, 400, statusCode(err))
	assert.Contains(t, err.Error(), "135.00")

	var count int64
	env.DB.Model(&models.Participant{}).Count(&count)
	assert.Zero(t, count, "underpayment must not write anything")

	res, err := env.Registration.Submit(context.Background(), registrationInput(1, 135, ids...), nil)
	require.NoError(t, err)
	assert.Equal(t, 135.0, res.Quote.Total)
	assert.Equal(t, 15.0, res.Quote.Discount)
	assert.NotEmpty(t, res.Password)

	p := env.participant(t, res.Participant.ID)
	assert.Equal(t, models.ParticipantPending, p.Status)
	assert.Equal(t, models.AvailabilityRegistered, p.Availability)
	require.Len(t, p.Events, 3)
	progress := p.Progress()
	for _, id := range ids {
		entry := progress.Get(id)
		assert.Equal(t, models.EventNotStarted, entry.Status)
		assert.Nil(t, entry.CurrentRoundID)
		assert.Zero(t, entry.RoundNumber)
		assert.True(t, entry.Confirmed)
	}
	assert.True(t, CheckPassword(p.PasswordHash, res.Password))

	var se models.SubEvent
	require.NoError(t, env.DB.First(&se, "id = ?", dance.ID).Error)
	assert.Equal(t, 1, se.RegisteredCount)

	assert.Len(t, env.Events.Events(realtime.EventParticipantRegistered), 1)
}

func TestSubmit_RejectsDuplicatesAndClosedEvents(t *testing.T) {
	env := newTestEnv(t)
	dance := env.subEvent(t, "Dance", 0)
	env.register(t, 1, 0, dance.ID)

	dup := registrationInput(2, 0, dance.ID)
	dup.Email = "STUDENT1@college.edu"
	_, err := env.Registration.Submit(context.Background(), dup, nil)
	require.Error(t, err)
	assert.Equal(t, 409, statusCode(err))

	_, err = env.SubEvents.ToggleRegistration(dance.ID)
	require.NoError(t, err)
	_, err = env.Registration.Submit(context.Background(), registrationInput(3, 0, dance.ID), nil)
	require.Error(t, err)
	assert.Equal(t, 400, statusCode(err))
	assert.Contains(t, err.Error(), "closed")

	_, err = env.Registration.Submit(context.Background(), registrationInput(4, 0, "missing"), nil)
	assert.Equal(t, 404, statusCode(err))

	missingProof := registrationInput(5, 0)
	missingProof.SubEventIDs = []string{env.subEvent(t, "Quiz", 0).ID}
	missingProof.PaymentProofURL = ""
	_, err = env.Registration.Submit(context.Background(), missingProof, nil)
	assert.Equal(t, 400, statusCode(err))
}

func TestSubmit_CapacityIsEnforced(t *testing.T) {
	env := newTestEnv(t)
	se, err := env.SubEvents.Create(SubEventInput{Name: "Solo Singing", Type: models.SubEventIndividual, Capacity: 1})
	require.NoError(t, err)

	env.register(t, 1, 0, se.ID)
	_, err = env.Registration.Submit(context.Background(), registrationInput(2, 0, se.ID), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "full")
}

func TestSubmit_UploadsProof(t *testing.T) {
	env := newTestEnv(t)
	se := env.subEvent(t, "Dance", 0)
	in := registrationInput(1, 0, se.ID)
	in.PaymentProofURL = ""

	res, err := env.Registration.Submit(context.Background(), in, &utils.Upload{
		Filename:    "receipt.png",
		ContentType: "image/png",
		Body:        bytes.NewBufferString("png"),
	})
	require.NoError(t, err)
	require.Len(t, env.Blobs.keys, 1)
	assert.Contains(t, env.Blobs.keys[0], "payment-proofs/")
	assert.Equal(t, "https://cdn.test/"+env.Blobs.keys[0], res.Participant.PaymentProofURL)
}

func TestChestNumbers_UniqueAndMonotonic(t *testing.T) {
	env := newTestEnv(t)
	se := env.subEvent(t, "Dance", 0)

	var last int64
	var ids []string
	for i := 1; i <= 5; i++ {
		p := env.register(t, i, 0, se.ID)
		require.NotNil(t, p.ChestNumber)
		assert.Greater(t, *p.ChestNumber, last)
		last = *p.ChestNumber
		ids = append(ids, p.ID)
	}

	require.NoError(t, env.Registration.Delete(ids[4]))
	p := env.register(t, 6, 0, se.ID)
	assert.Equal(t, last+1, *p.ChestNumber, "numbers are never reused")

	first := env.participant(t, ids[0])
	_, err := env.Registration.Approve(first.ID)
	require.NoError(t, err)
	assert.Equal(t, *first.ChestNumber, *env.participant(t, ids[0]).ChestNumber)
}

func TestApprove_TwiceFailsWithoutMutation(t *testing.T) {
	env := newTestEnv(t)
	se := env.subEvent(t, "Dance", 0)
	p := env.register(t, 1, 0, se.ID)

	approved, err := env.Registration.Approve(p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ParticipantApproved, approved.Status)
	assert.Equal(t, models.AvailabilityAvailable, approved.Availability)
	before := env.participant(t, p.ID)

	_, err = env.Registration.Approve(p.ID)
	require.Error(t, err)
	assert.Equal(t, 400, statusCode(err))

	after := env.participant(t, p.ID)
	assert.Equal(t, before.ApprovedAt.Unix(), after.ApprovedAt.Unix())
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
	assert.Len(t, env.Events.Events(realtime.EventParticipantApproved), 1)

	var stored models.SubEvent
	require.NoError(t, env.DB.First(&stored, "id = ?", se.ID).Error)
	assert.Equal(t, 1, stored.ApprovedCount)

	notes, err := env.Notifier.List(p.ID, false)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, NoticeApproved, notes[0].Type)

	_, err = env.Registration.Approve("missing")
	assert.Equal(t, 404, statusCode(err))
}

func TestReject_TwiceFailsAndResubmitReturnsToPending(t *testing.T) {
	env := newTestEnv(t)
	dance := env.subEvent(t, "Dance", 50)
	quiz := env.subEvent(t, "Quiz", 50)
	p := env.register(t, 1, 50, dance.ID)

	rejected, err := env.Registration.Reject(p.ID, "blurry receipt")
	require.NoError(t, err)
	assert.Equal(t, models.ParticipantRejected, rejected.Status)
	assert.Equal(t, "blurry receipt", rejected.RejectionReason)

	_, err = env.Registration.Reject(p.ID, "again")
	require.Error(t, err)
	assert.Equal(t, 400, statusCode(err))
	assert.Equal(t, "blurry receipt", env.participant(t, p.ID).RejectionReason)

	_, err = env.Registration.ResubmitPayment(context.Background(), p.ID, PaymentInput{
		SubEventIDs:     []string{quiz.ID},
		TransactionID:   "TXN-NEW",
		AmountPaid:      10,
		PaymentProofURL: "https://proofs.test/new.jpg",
	}, nil)
	assert.Equal(t, 400, statusCode(err), "underpaid resubmission")

	updated, err := env.Registration.ResubmitPayment(context.Background(), p.ID, PaymentInput{
		SubEventIDs:     []string{quiz.ID},
		TransactionID:   "TXN-NEW",
		AmountPaid:      50,
		PaymentProofURL: "https://proofs.test/new.jpg",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ParticipantPending, updated.Status)
	assert.Equal(t, "TXN-NEW", updated.TransactionID)
	assert.Equal(t, []string{quiz.ID}, updated.RegisteredSubEventIDs())

	var d models.SubEvent
	require.NoError(t, env.DB.First(&d, "id = ?", dance.ID).Error)
	assert.Zero(t, d.RegisteredCount)

	_, err = env.Registration.ResubmitPayment(context.Background(), p.ID, PaymentInput{
		SubEventIDs: []string{quiz.ID}, TransactionID: "TXN-3", PaymentProofURL: "x",
	}, nil)
	assert.Equal(t, 400, statusCode(err), "only rejected registrations can resubmit")
}

func TestRequestAdditionalEvents_ConfirmedOnApproval(t *testing.T) {
	env := newTestEnv(t)
	enableTenPercentAtThree(t, env)
	dance := env.subEvent(t, "Dance", 50)
	quiz := env.subEvent(t, "Quiz", 50)
	debate := env.subEvent(t, "Debate", 50)

	p := env.register(t, 1, 100, dance.ID, quiz.ID)
	_, err := env.Registration.Approve(p.ID)
	require.NoError(t, err)

	payment := PaymentInput{
		SubEventIDs:     []string{debate.ID},
		TransactionID:   "TXN-ADDON",
		AmountPaid:      40,
		PaymentProofURL: "https://proofs.test/addon.jpg",
	}
	_, q, err := env.Registration.RequestAdditionalEvents(context.Background(), p.ID, payment, nil)
	require.Error(t, err)
	assert.Equal(t, 45.0, q.Total, "third event crosses the discount threshold")

	payment.AmountPaid = 45
	updated, q, err := env.Registration.RequestAdditionalEvents(context.Background(), p.ID, payment, nil)
	require.NoError(t, err)
	assert.Equal(t, 5.0, q.Discount)
	assert.Equal(t, models.ParticipantPending, updated.Status)
	assert.Equal(t, []string{debate.ID}, updated.PendingSubEventIDs())
	assert.Equal(t, 145.0, updated.AmountPaid)

	_, _, err = env.Registration.RequestAdditionalEvents(context.Background(), p.ID, payment, nil)
	assert.Equal(t, 400, statusCode(err), "pending participants cannot add more")

	approved, err := env.Registration.Approve(p.ID)
	require.NoError(t, err)
	assert.Empty(t, approved.PendingSubEventIDs())
	assert.Len(t, approved.RegisteredSubEventIDs(), 3)

	var d models.SubEvent
	require.NoError(t, env.DB.First(&d, "id = ?", debate.ID).Error)
	assert.Equal(t, 1, d.ApprovedCount)
	assert.Equal(t, 1, d.RegisteredCount)
}

func TestBulkApprove_ReportsChangedCount(t *testing.T) {
	env := newTestEnv(t)
	se := env.subEvent(t, "Dance", 0)
	a := env.register(t, 1, 0, se.ID)
	b := env.register(t, 2, 0, se.ID)
	c := env.register(t, 3, 0, se.ID)
	_, err := env.Registration.Approve(c.ID)
	require.NoError(t, err)

	n, err := env.Registration.BulkApprove([]string{a.ID, b.ID, c.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var stored models.SubEvent
	require.NoError(t, env.DB.First(&stored, "id = ?", se.ID).Error)
	assert.Equal(t, 3, stored.ApprovedCount)
}

func TestList_FiltersAndFuzzySearch(t *testing.T) {
	env := newTestEnv(t)
	dance := env.subEvent(t, "Dance", 0)
	quiz := env.subEvent(t, "Quiz", 0)

	in := registrationInput(1, 0, dance.ID)
	in.Name = "Ananya Rao"
	_, err := env.Registration.Submit(context.Background(), in, nil)
	require.NoError(t, err)
	in = registrationInput(2, 0, quiz.ID)
	in.Name = "Rahul Verma"
	_, err = env.Registration.Submit(context.Background(), in, nil)
	require.NoError(t, err)

	all, total, err := env.Registration.List(ParticipantFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	bySubEvent, total, err := env.Registration.List(ParticipantFilter{SubEventID: quiz.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Rahul Verma", bySubEvent[0].Name)

	found, total, err := env.Registration.List(ParticipantFilter{Search: "ananya"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Ananya Rao", found[0].Name)
}

func TestDelete_ReleasesSeatsAndRoundSlots(t *testing.T) {
	env := newTestEnv(t)
	se := env.subEvent(t, "Dance", 0)
	ids := env.approvedParticipants(t, 2, se.ID)
	round, err := env.Rounds.CreateRound(CreateRoundInput{SubEventID: se.ID, RoundNumber: 1})
	require.NoError(t, err)
	require.Len(t, round.ParticipantIDs, 2)

	require.NoError(t, env.Registration.Delete(ids[0]))

	stored := env.round(t, round.ID)
	assert.Equal(t, []string{ids[1]}, []string(stored.ParticipantIDs))

	var s models.SubEvent
	require.NoError(t, env.DB.First(&s, "id = ?", se.ID).Error)
	assert.Equal(t, 1, s.RegisteredCount)
	assert.Equal(t, 1, s.ApprovedCount)

	_, err = env.Registration.Get(ids[0])
	assert.Equal(t, 404, statusCode(err))
}
