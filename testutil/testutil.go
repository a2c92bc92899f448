// Package testutil provides a throwaway database and a recording broadcaster
// for service and handler tests.
package testutil

import (
	"path/filepath"
	"sync"
	"testing"

	"fest-event-system/models"
	"fest-event-system/realtime"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens a fresh sqlite file in t.TempDir with the full schema.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "fest.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// RecordingBroadcaster captures everything published to it.
type RecordingBroadcaster struct {
	mu       sync.Mutex
	Messages []realtime.Message
}

func (r *RecordingBroadcaster) Publish(room, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, realtime.Message{Room: room, Event: event, Data: payload})
}

// Events returns messages with the given event name, in publish order.
func (r *RecordingBroadcaster) Events(event string) []realtime.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []realtime.Message
	for _, m := range r.Messages {
		if m.Event == event {
			out = append(out, m)
		}
	}
	return out
}

// InRoom returns messages published to room.
func (r *RecordingBroadcaster) InRoom(room string) []realtime.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []realtime.Message
	for _, m := range r.Messages {
		if m.Room == room {
			out = append(out, m)
		}
	}
	return out
}

func (r *RecordingBroadcaster) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = nil
}
