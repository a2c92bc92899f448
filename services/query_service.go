package services

import (
	"log"
	"strings"
	"time"

	"fest-event-system/models"
	"fest-event-system/realtime"
	"fest-event-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QueryService struct {
	DB       *gorm.DB
	Events   realtime.Broadcaster
	Notifier *Notifier
}

func NewQueryService(db *gorm.DB, events realtime.Broadcaster, notifier *Notifier) *QueryService {
	return &QueryService{DB: db, Events: events, Notifier: notifier}
}

type QueryInput struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject" validate:"max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}

// Submit stores a contact-form query. participantID is set when the sender is logged in.
func (s *QueryService) Submit(in QueryInput, participantID *string) (*models.Query, error) {
	in.Email = utils.NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Message = strings.TrimSpace(in.Message)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	q := &models.Query{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		Name:          in.Name,
		Email:         in.Email,
		Phone:         strings.TrimSpace(in.Phone),
		Subject:       strings.TrimSpace(in.Subject),
		Message:       in.Message,
		Status:        models.QueryOpen,
	}
	if err := s.DB.Create(q).Error; err != nil {
		return nil, dbErr(err, "failed to submit query")
	}
	log.Printf("✉️ [QUERY] New query from %s: %s", q.Email, q.Subject)
	s.Events.Publish(realtime.RoomAdmin, realtime.EventQueryReceived, map[string]any{
		"query_id": q.ID,
		"name":     q.Name,
		"subject":  q.Subject,
	})
	return q, nil
}

func (s *QueryService) List(status string) ([]models.Query, error) {
	q := s.DB.Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var queries []models.Query
	if err := q.Find(&queries).Error; err != nil {
		return nil, dbErr(err, "failed to list queries")
	}
	return queries, nil
}

// Mine lists queries sent by a participant.
func (s *QueryService) Mine(participantID string) ([]models.Query, error) {
	var queries []models.Query
	if err := s.DB.Where("participant_id = ?", participantID).Order("created_at DESC").Find(&queries).Error; err != nil {
		return nil, dbErr(err, "failed to list queries")
	}
	return queries, nil
}

// Respond answers a query and resolves it. Participants get an inbox notification.
func (s *QueryService) Respond(id, response, responderID string) (*models.Query, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, badRequest("response is required")
	}
	var q models.Query
	if err := s.DB.First(&q, "id = ?", id).Error; err != nil {
		return nil, lookupErr(err, "query")
	}
	now := time.Now()
	if err := s.DB.Model(&models.Query{}).Where("id = ?", q.ID).Updates(map[string]interface{}{
		"response":     response,
		"status":       models.QueryResolved,
		"responded_by": responderID,
		"responded_at": now,
	}).Error; err != nil {
		return nil, dbErr(err, "failed to respond to query")
	}
	q.Response = response
	q.Status = models.QueryResolved
	q.RespondedBy = &responderID
	q.RespondedAt = &now

	if q.ParticipantID != nil {
		title := "Reply to your query"
		if q.Subject != "" {
			title = "Re: " + q.Subject
		}
		s.Notifier.Notify(*q.ParticipantID, NoticeQuery, title, response, "")
	}
	return &q, nil
}

func (s *QueryService) Delete(id string) error {
	res := s.DB.Delete(&models.Query{}, "id = ?", id)
	if res.Error != nil {
		return dbErr(res.Error, "failed to delete query")
	}
	if res.RowsAffected == 0 {
		return notFound("query")
	}
	return nil
}
