package workers

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"fest-event-system/exports"
	"fest-event-system/models"
)

// ParticipantSource produces the participant export table.
type ParticipantSource interface {
	Participants(status, subEventID string) (exports.Table, error)
}

// SheetSyncWorker mirrors approved participants into a spreadsheet.
type SheetSyncWorker struct {
	source   ParticipantSource
	writer   exports.TableWriter
	interval time.Duration

	mu       sync.Mutex
	lastSync time.Time
	lastRows int
}

func NewSheetSyncWorker(source ParticipantSource, writer exports.TableWriter, interval time.Duration) *SheetSyncWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &SheetSyncWorker{source: source, writer: writer, interval: interval}
}

func (w *SheetSyncWorker) Start(ctx context.Context) {
	log.Printf("🔁 Starting Sheet Sync Worker (every %s)…", w.interval)
	go w.run(ctx)
}

func (w *SheetSyncWorker) run(ctx context.Context) {
	if _, err := w.SyncOnce(ctx); err != nil {
		log.Printf("⚠️ Initial sheet sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sheet sync stopped.")
			return
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				// next tick retries the full table
				log.Printf("❌ Error syncing sheet: %v", err)
			}
		}
	}
}

// SyncOnce rewrites the sheet and returns the number of participant rows written.
// Concurrent calls are serialized.
func (w *SheetSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	table, err := w.source.Participants(models.ParticipantApproved, "")
	if err != nil {
		return 0, fmt.Errorf("failed to build participant table: %w", err)
	}
	if err := w.writer.WriteTable(ctx, table); err != nil {
		return 0, err
	}

	w.lastSync = time.Now().UTC()
	w.lastRows = len(table.Rows)
	log.Printf("✅ [SHEETS] Synced %d approved participant(s)", w.lastRows)
	return w.lastRows, nil
}

// LastSync reports when the sheet was last written and how many rows it holds.
func (w *SheetSyncWorker) LastSync() (time.Time, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSync, w.lastRows
}
