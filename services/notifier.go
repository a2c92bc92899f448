package services

import (
	"log"

	"fest-event-system/models"
	"fest-event-system/realtime"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification kinds shown in the participant inbox.
const (
	NoticeApproved  = "approved"
	NoticeRejected  = "rejected"
	NoticeRound     = "round"
	NoticeQualified = "qualified"
	NoticeGroup     = "group"
	NoticeQuery     = "query"
)

// Notifier stores personal notifications and pushes them to the participant's room.
type Notifier struct {
	DB     *gorm.DB
	Events realtime.Broadcaster
}

func NewNotifier(db *gorm.DB, events realtime.Broadcaster) *Notifier {
	return &Notifier{DB: db, Events: events}
}

// Notify is best effort: failures are logged, never returned.
func (n *Notifier) Notify(participantID, kind, title, message, subEventID string) {
	note := models.Notification{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		Type:          kind,
		Title:         title,
		Message:       message,
		SubEventID:    subEventID,
	}
	if err := n.DB.Create(&note).Error; err != nil {
		log.Printf("❌ [NOTIFY] Failed to store notification for %s: %v", participantID, err)
	}
	n.Events.Publish(realtime.ParticipantRoom(participantID), realtime.EventNotification, map[string]any{
		"id":           note.ID,
		"type":         kind,
		"title":        title,
		"message":      message,
		"sub_event_id": subEventID,
	})
}

func (n *Notifier) List(participantID string, unreadOnly bool) ([]models.Notification, error) {
	var notes []models.Notification
	q := n.DB.Where("participant_id = ?", participantID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if err := q.Order("created_at DESC").Limit(100).Find(&notes).Error; err != nil {
		return nil, dbErr(err, "failed to list notifications")
	}
	return notes, nil
}

func (n *Notifier) MarkRead(participantID, id string) error {
	res := n.DB.Model(&models.Notification{}).
		Where("id = ? AND participant_id = ?", id, participantID).
		Update("is_read", true)
	if res.Error != nil {
		return dbErr(res.Error, "failed to mark notification")
	}
	if res.RowsAffected == 0 {
		return notFound("notification")
	}
	return nil
}

func (n *Notifier) MarkAllRead(participantID string) (int64, error) {
	res := n.DB.Model(&models.Notification{}).
		Where("participant_id = ? AND is_read = ?", participantID, false).
		Update("is_read", true)
	return res.RowsAffected, dbErr(res.Error, "failed to mark notifications")
}
