// services/scheduler.go
package services

import (
	"log"
	"time"

	"fest-event-system/models"
	"fest-event-system/realtime"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// StartRegistrationScheduler runs the periodic housekeeping jobs. Callers shut
// the returned scheduler down on exit.
func StartRegistrationScheduler(subEvents *SubEventService, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	// Close registration windows whose deadline passed
	if _, err := sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := subEvents.CloseExpiredRegistrations(time.Now()); err != nil {
				log.Printf("[Scheduler] DB error: %v", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, err
	}

	// Free participants left busy by rounds that are no longer running
	if _, err := sched.NewJob(
		gocron.DurationJob(5*interval),
		gocron.NewTask(func() {
			released, err := ReleaseStaleBusy(subEvents.DB, subEvents.Events)
			if err != nil {
				log.Printf("[Scheduler] Failed to release busy participants: %v", err)
				return
			}
			if released > 0 {
				log.Printf("✅ Released %d participant(s) stuck in busy", released)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}

// ReleaseStaleBusy marks busy participants available when their current round
// is missing or completed.
func ReleaseStaleBusy(db *gorm.DB, events realtime.Broadcaster) (int64, error) {
	running := db.Model(&models.Round{}).Select("id").
		Where("status IN ?", []string{models.RoundPending, models.RoundActive})

	var ids []string
	if err := db.Model(&models.Participant{}).
		Where("availability = ?", models.AvailabilityBusy).
		Where("current_round_id IS NULL OR current_round_id NOT IN (?)", running).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := db.Model(&models.Participant{}).
		Where("id IN ? AND availability = ?", ids, models.AvailabilityBusy).
		Update("availability", models.AvailabilityAvailable)
	if res.Error != nil {
		return 0, res.Error
	}
	events.Publish(realtime.RoomAdmin, realtime.EventAvailabilityUpdate, map[string]any{
		"participant_ids": ids,
		"availability":    models.AvailabilityAvailable,
	})
	return res.RowsAffected, nil
}
