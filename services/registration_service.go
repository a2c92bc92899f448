package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"fest-event-system/models"
	"fest-event-system/realtime"
	"fest-event-system/utils"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RegistrationService struct {
	DB       *gorm.DB
	Blobs    utils.BlobStore
	Events   realtime.Broadcaster
	Notifier *Notifier
}

func NewRegistrationService(db *gorm.DB, blobs utils.BlobStore, events realtime.Broadcaster, notifier *Notifier) *RegistrationService {
	return &RegistrationService{DB: db, Blobs: blobs, Events: events, Notifier: notifier}
}

type RegistrationInput struct {
	Name            string   `json:"name" form:"name" validate:"required"`
	Email           string   `json:"email" form:"email" validate:"required,email"`
	Phone           string   `json:"phone" form:"phone" validate:"required,min=7,max=20"`
	StudentID       string   `json:"student_id" form:"student_id" validate:"required"`
	College         string   `json:"college" form:"college" validate:"required"`
	Department      string   `json:"department" form:"department"`
	Year            string   `json:"year" form:"year"`
	Gender          string   `json:"gender" form:"gender"`
	SubEventIDs     []string `json:"sub_event_ids" form:"sub_event_ids" validate:"required,min=1,dive,required"`
	TransactionID   string   `json:"transaction_id" form:"transaction_id" validate:"required"`
	AmountPaid      float64  `json:"amount_paid" form:"amount_paid" validate:"gte=0"`
	PaymentProofURL string   `json:"payment_proof_url" form:"payment_proof_url"`
}

// PaymentInput carries a new payment for resubmission or add-on events.
type PaymentInput struct {
	SubEventIDs     []string `json:"sub_event_ids" form:"sub_event_ids" validate:"required,min=1,dive,required"`
	TransactionID   string   `json:"transaction_id" form:"transaction_id" validate:"required"`
	AmountPaid      float64  `json:"amount_paid" form:"amount_paid" validate:"gte=0"`
	PaymentProofURL string   `json:"payment_proof_url" form:"payment_proof_url"`
}

type PriceQuote struct {
	Subtotal   float64 `json:"subtotal"`
	Discount   float64 `json:"discount"`
	Total      float64 `json:"total"`
	EventCount int     `json:"event_count"`
}

type RegistrationResult struct {
	Participant *models.Participant `json:"participant"`
	// Password is shown once and never stored in clear.
	Password string     `json:"password"`
	Quote    PriceQuote `json:"quote"`
}

// CalculateDiscount applies the bulk discount rule to a subtotal over count events.
func CalculateDiscount(rs models.RegistrationSettings, subtotal float64, count int) float64 {
	if !rs.DiscountEnabled || count < rs.DiscountMinEvents {
		return 0
	}
	switch rs.DiscountType {
	case models.DiscountFixed:
		return rs.DiscountValue
	default:
		return subtotal * rs.DiscountValue / 100
	}
}

// CalculatePrice sums event prices and subtracts the bulk discount.
func CalculatePrice(rs models.RegistrationSettings, events []models.SubEvent) PriceQuote {
	subtotal := 0.0
	for _, se := range events {
		subtotal += se.Price
	}
	return quote(rs, subtotal, len(events), len(events))
}

// quote prices a subtotal where the discount threshold counts thresholdCount events.
func quote(rs models.RegistrationSettings, subtotal float64, count, thresholdCount int) PriceQuote {
	discount := round2(CalculateDiscount(rs, subtotal, thresholdCount))
	total := round2(subtotal - discount)
	if total < 0 {
		total = 0
	}
	return PriceQuote{Subtotal: round2(subtotal), Discount: discount, Total: total, EventCount: count}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// loadOpenSubEvents resolves ids and checks each is open and has room.
func (s *RegistrationService) loadOpenSubEvents(ids []string, now time.Time) ([]models.SubEvent, error) {
	var events []models.SubEvent
	if err := s.DB.Where("id IN ?", ids).Find(&events).Error; err != nil {
		return nil, dbErr(err, "failed to load sub-events")
	}
	byID := make(map[string]models.SubEvent, len(events))
	for _, se := range events {
		byID[se.ID] = se
	}

	ordered := make([]models.SubEvent, 0, len(ids))
	for _, id := range ids {
		se, ok := byID[id]
		if !ok {
			return nil, notFound("sub-event " + id)
		}
		if !se.OpenForRegistration(now) {
			return nil, badRequest("registration for %s is closed", se.Name)
		}
		if se.IsFull() {
			return nil, badRequest("%s is full", se.Name)
		}
		ordered = append(ordered, se)
	}
	return ordered, nil
}

func (s *RegistrationService) checkUnique(column, value, label, excludeID string) error {
	var count int64
	q := s.DB.Model(&models.Participant{}).Where(column+" = ?", value)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return dbErr(err, "failed to check uniqueness")
	}
	if count > 0 {
		return conflict("%s is already registered", label)
	}
	return nil
}

func (s *RegistrationService) checkIdentityUnique(in RegistrationInput) error {
	checks := []struct {
		column, value, label string
	}{
		{"email", in.Email, "email"},
		{"phone", in.Phone, "phone number"},
		{"student_id", in.StudentID, "student id"},
		{"transaction_id", in.TransactionID, "transaction id"},
	}
	for _, c := range checks {
		if err := s.checkUnique(c.column, c.value, c.label, ""); err != nil {
			return err
		}
	}
	return nil
}

func (s *RegistrationService) storeProof(ctx context.Context, upload *utils.Upload, fallbackURL string) (string, error) {
	if upload == nil {
		if strings.TrimSpace(fallbackURL) == "" {
			return "", badRequest("payment proof is required")
		}
		return strings.TrimSpace(fallbackURL), nil
	}
	if s.Blobs == nil {
		return "", fmt.Errorf("no blob store configured")
	}
	url, err := s.Blobs.Put(ctx, utils.ObjectKey("payment-proofs", upload.Filename), upload.ContentType, upload.Body)
	if err != nil {
		return "", fmt.Errorf("failed to upload payment proof: %w", err)
	}
	return url, nil
}

// reserveSeat increments a sub-event's registered count unless it is at capacity.
func reserveSeat(tx *gorm.DB, se models.SubEvent) error {
	res := tx.Model(&models.SubEvent{}).
		Where("id = ? AND (capacity = 0 OR registered_count < capacity)", se.ID).
		UpdateColumn("registered_count", gorm.Expr("registered_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return badRequest("%s is full", se.Name)
	}
	return nil
}

func releaseSeat(tx *gorm.DB, subEventID string) error {
	return tx.Model(&models.SubEvent{}).
		Where("id = ? AND registered_count > 0", subEventID).
		UpdateColumn("registered_count", gorm.Expr("registered_count - ?", 1)).Error
}

// recountApproved recomputes approved_count from confirmed entries of approved participants.
func recountApproved(tx *gorm.DB, subEventIDs ...string) error {
	for _, id := range subEventIDs {
		var n int64
		err := tx.Model(&models.ParticipantEvent{}).
			Joins("JOIN participants ON participants.id = participant_events.participant_id").
			Where("participant_events.sub_event_id = ? AND participant_events.confirmed = ? AND participants.status = ?",
				id, true, models.ParticipantApproved).
			Count(&n).Error
		if err != nil {
			return err
		}
		if err := tx.Model(&models.SubEvent{}).Where("id = ?", id).
			UpdateColumn("approved_count", n).Error; err != nil {
			return err
		}
	}
	return nil
}

// Submit validates a public registration end to end before writing anything.
func (s *RegistrationService) Submit(ctx context.Context, in RegistrationInput, proof *utils.Upload) (*RegistrationResult, error) {
	in.Email = utils.NormalizeEmail(in.Email)
	in.Name = utils.NormalizeName(in.Name)
	in.College = utils.NormalizeName(in.College)
	in.Phone = strings.TrimSpace(in.Phone)
	in.StudentID = strings.ToUpper(strings.TrimSpace(in.StudentID))
	in.TransactionID = strings.TrimSpace(in.TransactionID)
	in.SubEventIDs = dedupe(in.SubEventIDs)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	settings, err := loadRegistrationSettings(s.DB)
	if err != nil {
		return nil, err
	}
	if !settings.RegistrationOpen {
		return nil, badRequest("registration is closed")
	}
	if err := s.checkIdentityUnique(in); err != nil {
		return nil, err
	}

	now := time.Now()
	events, err := s.loadOpenSubEvents(in.SubEventIDs, now)
	if err != nil {
		return nil, err
	}
	q := CalculatePrice(settings, events)
	if in.AmountPaid+0.005 < q.Total {
		return nil, badRequest("amount paid %s is less than the required %s", utils.FormatINR(in.AmountPaid), utils.FormatINR(q.Total))
	}

	proofURL, err := s.storeProof(ctx, proof, in.PaymentProofURL)
	if err != nil {
		return nil, err
	}
	password, err := utils.GeneratePassword(10)
	if err != nil {
		return nil, fmt.Errorf("failed to generate credential: %w", err)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	p := &models.Participant{
		ID:              uuid.NewString(),
		Name:            in.Name,
		Email:           in.Email,
		Phone:           in.Phone,
		StudentID:       in.StudentID,
		College:         in.College,
		Department:      strings.TrimSpace(in.Department),
		Year:            strings.TrimSpace(in.Year),
		Gender:          strings.TrimSpace(in.Gender),
		PasswordHash:    hash,
		Status:          models.ParticipantPending,
		Availability:    models.AvailabilityRegistered,
		TransactionID:   in.TransactionID,
		PaymentProofURL: proofURL,
		AmountPaid:      in.AmountPaid,
		ExpectedAmount:  q.Total,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		chest, err := models.NextSequence(tx, models.ChestNumberCounter)
		if err != nil {
			return err
		}
		p.ChestNumber = &chest

		if err := tx.Omit("Events").Create(p).Error; err != nil {
			return err
		}
		for _, se := range events {
			entry := models.NewParticipantEvent(uuid.NewString(), p.ID, se.ID, true)
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			p.Events = append(p.Events, entry)
			if err := reserveSeat(tx, se); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if IsDuplicateKey(err) {
			return nil, conflict("email, phone, student id or transaction id is already registered")
		}
		return nil, dbErr(err, "failed to save registration")
	}

	log.Printf("📝 [REGISTRATION] %s registered for %d sub-event(s), chest #%d", p.Email, len(events), *p.ChestNumber)
	s.Events.Publish(realtime.RoomAdmin, realtime.EventParticipantRegistered, map[string]any{
		"participant_id": p.ID,
		"name":           p.Name,
		"chest_number":   *p.ChestNumber,
		"sub_events":     in.SubEventIDs,
		"amount_paid":    p.AmountPaid,
	})

	return &RegistrationResult{Participant: p, Password: password, Quote: q}, nil
}

// Approve transitions a participant to approved exactly once per pending state.
func (s *RegistrationService) Approve(id string) (*models.Participant, error) {
	var p models.Participant
	var confirmed []string

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, "id = ?", id).Error; err != nil {
			return lookupErr(err, "participant")
		}

		availability := models.AvailabilityAvailable
		if p.Availability == models.AvailabilityBusy || p.Availability == models.AvailabilityQualified {
			availability = p.Availability
		}
		now := time.Now()
		res := tx.Model(&models.Participant{}).
			Where("id = ? AND status <> ?", id, models.ParticipantApproved).
			Updates(map[string]interface{}{
				"status":           models.ParticipantApproved,
				"availability":     availability,
				"approved_at":      now,
				"rejection_reason": "",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return badRequest("participant is already approved")
		}

		if err := tx.Model(&models.ParticipantEvent{}).
			Where("participant_id = ? AND confirmed = ?", id, false).
			Pluck("sub_event_id", &confirmed).Error; err != nil {
			return err
		}
		if len(confirmed) > 0 {
			if err := tx.Model(&models.ParticipantEvent{}).
				Where("participant_id = ? AND confirmed = ?", id, false).
				Update("confirmed", true).Error; err != nil {
				return err
			}
		}

		var all []string
		if err := tx.Model(&models.ParticipantEvent{}).Where("participant_id = ?", id).
			Pluck("sub_event_id", &all).Error; err != nil {
			return err
		}
		return recountApproved(tx, all...)
	})
	if err != nil {
		return nil, dbErr(err, "failed to approve participant")
	}

	approved, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	log.Printf("✅ [REGISTRATION] Approved %s (chest #%d)", approved.Email, deref(approved.ChestNumber))
	s.Events.Publish(realtime.RoomAdmin, realtime.EventParticipantApproved, map[string]any{
		"participant_id":   approved.ID,
		"name":             approved.Name,
		"chest_number":     deref(approved.ChestNumber),
		"added_sub_events": confirmed,
	})
	s.Notifier.Notify(approved.ID, NoticeApproved, "Registration approved",
		fmt.Sprintf("Your registration is approved. Your chest number is %d.", deref(approved.ChestNumber)), "")
	return approved, nil
}

// Reject marks a participant rejected with an optional reason.
func (s *RegistrationService) Reject(id, reason string) (*models.Participant, error) {
	reason = strings.TrimSpace(reason)
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&models.Participant{}).Where("id = ?", id).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return notFound("participant")
		}
		res := tx.Model(&models.Participant{}).
			Where("id = ? AND status <> ?", id, models.ParticipantRejected).
			Updates(map[string]interface{}{
				"status":           models.ParticipantRejected,
				"availability":     models.AvailabilityRejected,
				"rejection_reason": reason,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return badRequest("participant is already rejected")
		}

		var all []string
		if err := tx.Model(&models.ParticipantEvent{}).Where("participant_id = ?", id).
			Pluck("sub_event_id", &all).Error; err != nil {
			return err
		}
		return recountApproved(tx, all...)
	})
	if err != nil {
		return nil, dbErr(err, "failed to reject participant")
	}

	rejected, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	log.Printf("🚫 [REGISTRATION] Rejected %s: %s", rejected.Email, reason)
	s.Events.Publish(realtime.RoomAdmin, realtime.EventParticipantRejected, map[string]any{
		"participant_id": rejected.ID,
		"name":           rejected.Name,
		"reason":         reason,
	})
	msg := "Your registration was rejected."
	if reason != "" {
		msg += " Reason: " + reason
	}
	s.Notifier.Notify(rejected.ID, NoticeRejected, "Registration rejected", msg+" You can resubmit your payment details.", "")
	return rejected, nil
}

// BulkApprove approves every pending participant in ids and reports how many changed.
func (s *RegistrationService) BulkApprove(ids []string) (int64, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return 0, badRequest("participant_ids is required")
	}

	var changed []string
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Participant{}).
			Where("id IN ? AND status = ?", ids, models.ParticipantPending).
			Pluck("id", &changed).Error; err != nil {
			return err
		}
		if len(changed) == 0 {
			return nil
		}
		now := time.Now()
		if err := tx.Model(&models.Participant{}).
			Where("id IN ? AND status = ?", changed, models.ParticipantPending).
			Updates(map[string]interface{}{
				"status":      models.ParticipantApproved,
				"approved_at": now,
			}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Participant{}).
			Where("id IN ? AND availability NOT IN ?", changed,
				[]string{models.AvailabilityBusy, models.AvailabilityQualified}).
			Update("availability", models.AvailabilityAvailable).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ParticipantEvent{}).
			Where("participant_id IN ? AND confirmed = ?", changed, false).
			Update("confirmed", true).Error; err != nil {
			return err
		}
		var subEventIDs []string
		if err := tx.Model(&models.ParticipantEvent{}).
			Where("participant_id IN ?", changed).
			Distinct("sub_event_id").
			Pluck("sub_event_id", &subEventIDs).Error; err != nil {
			return err
		}
		return recountApproved(tx, subEventIDs...)
	})
	if err != nil {
		return 0, dbErr(err, "failed to bulk approve")
	}

	for _, id := range changed {
		s.Events.Publish(realtime.RoomAdmin, realtime.EventParticipantApproved, map[string]any{"participant_id": id})
		s.Notifier.Notify(id, NoticeApproved, "Registration approved", "Your registration is approved.", "")
	}
	log.Printf("✅ [REGISTRATION] Bulk approved %d of %d participant(s)", len(changed), len(ids))
	return int64(len(changed)), nil
}

// ResubmitPayment lets a rejected participant replace their selection and payment.
func (s *RegistrationService) ResubmitPayment(ctx context.Context, participantID string, in PaymentInput, proof *utils.Upload) (*models.Participant, error) {
	in.SubEventIDs = dedupe(in.SubEventIDs)
	in.TransactionID = strings.TrimSpace(in.TransactionID)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	current, err := s.Get(participantID)
	if err != nil {
		return nil, err
	}
	if current.Status != models.ParticipantRejected {
		return nil, badRequest("only rejected registrations can be resubmitted")
	}
	if err := s.checkUnique("transaction_id", in.TransactionID, "transaction id", participantID); err != nil {
		return nil, err
	}

	settings, err := loadRegistrationSettings(s.DB)
	if err != nil {
		return nil, err
	}
	progress := current.Progress()
	var added []string
	for _, id := range in.SubEventIDs {
		if !progress.Has(id) {
			added = append(added, id)
		}
	}
	newEvents, err := s.loadOpenSubEvents(added, time.Now())
	if err != nil {
		return nil, err
	}
	var allEvents []models.SubEvent
	if err := s.DB.Where("id IN ?", in.SubEventIDs).Find(&allEvents).Error; err != nil {
		return nil, dbErr(err, "failed to load sub-events")
	}
	if len(allEvents) != len(in.SubEventIDs) {
		return nil, notFound("sub-event")
	}
	q := CalculatePrice(settings, allEvents)
	if in.AmountPaid+0.005 < q.Total {
		return nil, badRequest("amount paid %s is less than the required %s", utils.FormatINR(in.AmountPaid), utils.FormatINR(q.Total))
	}
	proofURL, err := s.storeProof(ctx, proof, in.PaymentProofURL)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]bool, len(in.SubEventIDs))
	for _, id := range in.SubEventIDs {
		keep[id] = true
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Participant{}).
			Where("id = ? AND status = ?", participantID, models.ParticipantRejected).
			Updates(map[string]interface{}{
				"status":            models.ParticipantPending,
				"availability":      models.AvailabilityRegistered,
				"rejection_reason":  "",
				"transaction_id":    in.TransactionID,
				"payment_proof_url": proofURL,
				"amount_paid":       in.AmountPaid,
				"expected_amount":   q.Total,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return badRequest("only rejected registrations can be resubmitted")
		}

		for _, e := range current.Events {
			if keep[e.SubEventID] {
				continue
			}
			if err := tx.Delete(&models.ParticipantEvent{}, "id = ?", e.ID).Error; err != nil {
				return err
			}
			if err := releaseSeat(tx, e.SubEventID); err != nil {
				return err
			}
		}
		for _, se := range newEvents {
			entry := models.NewParticipantEvent(uuid.NewString(), participantID, se.ID, true)
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			if err := reserveSeat(tx, se); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, dbErr(err, "failed to resubmit registration")
	}

	log.Printf("🔁 [REGISTRATION] %s resubmitted payment %s", current.Email, in.TransactionID)
	s.Events.Publish(realtime.RoomAdmin, realtime.EventParticipantRegistered, map[string]any{
		"participant_id": participantID,
		"name":           current.Name,
		"resubmitted":    true,
	})
	return s.Get(participantID)
}

// RequestAdditionalEvents adds sub-events to an approved registration. The new
// entries stay unconfirmed until an admin approves the extra payment.
func (s *RegistrationService) RequestAdditionalEvents(ctx context.Context, participantID string, in PaymentInput, proof *utils.Upload) (*models.Participant, PriceQuote, error) {
	in.SubEventIDs = dedupe(in.SubEventIDs)
	in.TransactionID = strings.TrimSpace(in.TransactionID)
	if err := validateInput(in); err != nil {
		return nil, PriceQuote{}, err
	}

	current, err := s.Get(participantID)
	if err != nil {
		return nil, PriceQuote{}, err
	}
	if current.Status != models.ParticipantApproved {
		return nil, PriceQuote{}, badRequest("additional events can only be requested after approval")
	}
	progress := current.Progress()
	for _, id := range in.SubEventIDs {
		if progress.Has(id) {
			return nil, PriceQuote{}, badRequest("already registered for sub-event %s", id)
		}
	}
	if err := s.checkUnique("transaction_id", in.TransactionID, "transaction id", participantID); err != nil {
		return nil, PriceQuote{}, err
	}

	settings, err := loadRegistrationSettings(s.DB)
	if err != nil {
		return nil, PriceQuote{}, err
	}
	events, err := s.loadOpenSubEvents(in.SubEventIDs, time.Now())
	if err != nil {
		return nil, PriceQuote{}, err
	}
	subtotal := 0.0
	for _, se := range events {
		subtotal += se.Price
	}
	q := quote(settings, subtotal, len(events), len(events)+len(current.Events))
	if in.AmountPaid+0.005 < q.Total {
		return nil, q, badRequest("amount paid %s is less than the required %s", utils.FormatINR(in.AmountPaid), utils.FormatINR(q.Total))
	}
	proofURL, err := s.storeProof(ctx, proof, in.PaymentProofURL)
	if err != nil {
		return nil, q, err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Participant{}).
			Where("id = ? AND status = ?", participantID, models.ParticipantApproved).
			Updates(map[string]interface{}{
				"status":            models.ParticipantPending,
				"transaction_id":    in.TransactionID,
				"payment_proof_url": proofURL,
				"amount_paid":       gorm.Expr("amount_paid + ?", in.AmountPaid),
				"expected_amount":   gorm.Expr("expected_amount + ?", q.Total),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return badRequest("additional events can only be requested after approval")
		}
		for _, se := range events {
			entry := models.NewParticipantEvent(uuid.NewString(), participantID, se.ID, false)
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			if err := reserveSeat(tx, se); err != nil {
				return err
			}
		}
		var all []string
		if err := tx.Model(&models.ParticipantEvent{}).Where("participant_id = ?", participantID).
			Pluck("sub_event_id", &all).Error; err != nil {
			return err
		}
		return recountApproved(tx, all...)
	})
	if err != nil {
		return nil, q, dbErr(err, "failed to add sub-events")
	}

	s.Events.Publish(realtime.RoomAdmin, realtime.EventParticipantRegistered, map[string]any{
		"participant_id":   participantID,
		"name":             current.Name,
		"added_sub_events": in.SubEventIDs,
	})
	updated, err := s.Get(participantID)
	return updated, q, err
}

type ParticipantFilter struct {
	Status       string
	Availability string
	SubEventID   string
	Search       string
	Page         int
	Size         int
}

// List filters participants; Search ranks fuzzy matches over name, email, college and ids.
func (s *RegistrationService) List(f ParticipantFilter) ([]models.Participant, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Size <= 0 || f.Size > 200 {
		f.Size = 50
	}

	base := func() *gorm.DB {
		q := s.DB.Model(&models.Participant{})
		if f.Status != "" {
			q = q.Where("status = ?", f.Status)
		}
		if f.Availability != "" {
			q = q.Where("availability = ?", f.Availability)
		}
		if f.SubEventID != "" {
			q = q.Where("id IN (?)", s.DB.Model(&models.ParticipantEvent{}).
				Select("participant_id").Where("sub_event_id = ?", f.SubEventID))
		}
		return q
	}

	search := utils.Fold(strings.TrimSpace(f.Search))
	if search == "" {
		var total int64
		if err := base().Count(&total).Error; err != nil {
			return nil, 0, dbErr(err, "failed to count participants")
		}
		var out []models.Participant
		err := base().Preload("Events").Order("created_at ASC").
			Limit(f.Size).Offset((f.Page - 1) * f.Size).Find(&out).Error
		if err != nil {
			return nil, 0, dbErr(err, "failed to list participants")
		}
		return out, total, nil
	}

	var candidates []models.Participant
	if err := base().Preload("Events").Find(&candidates).Error; err != nil {
		return nil, 0, dbErr(err, "failed to search participants")
	}
	targets := make([]string, len(candidates))
	for i, p := range candidates {
		chest := ""
		if p.ChestNumber != nil {
			chest = fmt.Sprint(*p.ChestNumber)
		}
		targets[i] = utils.Fold(strings.Join([]string{p.Name, p.Email, p.College, p.StudentID, p.Phone, chest}, " "))
	}
	ranks := fuzzy.RankFind(search, targets)
	sort.Sort(ranks)

	matched := make([]models.Participant, 0, len(ranks))
	for _, r := range ranks {
		matched = append(matched, candidates[r.OriginalIndex])
	}
	total := int64(len(matched))
	start := (f.Page - 1) * f.Size
	if start >= len(matched) {
		return []models.Participant{}, total, nil
	}
	end := start + f.Size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *RegistrationService) Get(id string) (*models.Participant, error) {
	var p models.Participant
	if err := s.DB.Preload("Events").First(&p, "id = ?", id).Error; err != nil {
		return nil, lookupErr(err, "participant")
	}
	return &p, nil
}

type ParticipantUpdate struct {
	Name       *string `json:"name"`
	Phone      *string `json:"phone"`
	College    *string `json:"college"`
	Department *string `json:"department"`
	Year       *string `json:"year"`
	Gender     *string `json:"gender"`
}

// Update edits profile fields. Registration state has its own operations.
func (s *RegistrationService) Update(id string, in ParticipantUpdate) (*models.Participant, error) {
	updates := map[string]interface{}{}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, badRequest("name is required")
		}
		updates["name"] = utils.NormalizeName(*in.Name)
	}
	if in.Phone != nil {
		updates["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.College != nil {
		updates["college"] = utils.NormalizeName(*in.College)
	}
	if in.Department != nil {
		updates["department"] = strings.TrimSpace(*in.Department)
	}
	if in.Year != nil {
		updates["year"] = strings.TrimSpace(*in.Year)
	}
	if in.Gender != nil {
		updates["gender"] = strings.TrimSpace(*in.Gender)
	}
	if len(updates) == 0 {
		return s.Get(id)
	}

	res := s.DB.Model(&models.Participant{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		if IsDuplicateKey(res.Error) {
			return nil, conflict("phone number is already registered")
		}
		return nil, dbErr(res.Error, "failed to update participant")
	}
	if res.RowsAffected == 0 {
		return nil, notFound("participant")
	}
	return s.Get(id)
}

// Delete removes a participant and everything that references them.
func (s *RegistrationService) Delete(id string) error {
	p, err := s.Get(id)
	if err != nil {
		return err
	}
	subEventIDs := p.RegisteredSubEventIDs()
	subEventIDs = append(subEventIDs, p.PendingSubEventIDs()...)

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		for _, sid := range subEventIDs {
			if err := releaseSeat(tx, sid); err != nil {
				return err
			}
		}
		if len(subEventIDs) > 0 {
			var rounds []models.Round
			if err := tx.Where("sub_event_id IN ?", subEventIDs).Find(&rounds).Error; err != nil {
				return err
			}
			for _, r := range rounds {
				if !r.HasParticipant(id) {
					continue
				}
				r.ParticipantIDs = without(r.ParticipantIDs, id)
				r.WinnerIDs = without(r.WinnerIDs, id)
				if err := tx.Model(&models.Round{}).Where("id = ?", r.ID).Updates(map[string]interface{}{
					"participant_ids": r.ParticipantIDs,
					"winner_ids":      r.WinnerIDs,
				}).Error; err != nil {
					return err
				}
			}
		}
		for _, model := range []interface{}{
			&models.GroupMember{}, &models.Attendance{}, &models.Notification{}, &models.ParticipantEvent{},
		} {
			if err := tx.Where("participant_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&models.Query{}).Where("participant_id = ?", id).Update("participant_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Participant{}, "id = ?", id).Error; err != nil {
			return err
		}
		return recountApproved(tx, subEventIDs...)
	})
	if err != nil {
		return dbErr(err, "failed to delete participant")
	}
	log.Printf("🗑️ [REGISTRATION] Deleted participant %s", p.Email)
	return nil
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func deref(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}
