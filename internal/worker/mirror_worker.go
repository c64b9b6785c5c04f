package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"depositos/internal/amqp"
	applog "depositos/internal/log"
	"depositos/internal/store"
)

// MirrorWorker copies the persisted state into a Mirror. Events only signal
// that something changed; the state itself is always re-read from storage.
type MirrorWorker struct {
	loader store.SnapshotLoader
	mirror store.Mirror
	logger *applog.Logger

	mu       sync.Mutex
	lastSync time.Time
	syncs    int64
}

func NewMirrorWorker(loader store.SnapshotLoader, mirror store.Mirror, logger *applog.Logger) *MirrorWorker {
	if logger == nil {
		logger = applog.Wrap(nil, applog.ComponentWorker)
	}
	return &MirrorWorker{
		loader: loader,
		mirror: mirror,
		logger: logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleEvent processes a single change event from AMQP. A returned error
// makes the consumer requeue the message.
func (w *MirrorWorker) HandleEvent(ctx context.Context, msg *amqp.EventMessage) error {
	w.logger.InfoContext(ctx, "Processing change event",
		applog.FieldEventType, msg.Type,
		"message_id", msg.MessageID,
		applog.FieldDepositUID, msg.UID,
		applog.FieldMemberID, msg.MemberID,
		applog.FieldWeek, msg.Week)

	if err := w.Sync(ctx); err != nil {
		return fmt.Errorf("mirror after %s: %w", msg.Type, err)
	}
	return nil
}

// Sync reads the full snapshot and replaces the mirror with it.
func (w *MirrorWorker) Sync(ctx context.Context) error {
	snap, err := w.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if err := w.mirror.Replace(ctx, snap); err != nil {
		return fmt.Errorf("replace mirror: %w", err)
	}

	w.mu.Lock()
	w.lastSync = time.Now()
	w.syncs++
	w.mu.Unlock()

	w.logger.DebugContext(ctx, "Mirror synced",
		applog.FieldOperation, applog.OpSync,
		"deposits", len(snap.Deposits),
		"ledger_entries", len(snap.Ledger))
	return nil
}

// Run resyncs every interval until ctx is done. This covers events lost
// while the worker or the broker was down.
func (w *MirrorWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Sync(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic resync failed",
					applog.NewFields().
						WithError(err).
						WithErrorType(applog.ErrorTypeNetwork).
						WithOperation(applog.OpSync).
						ToSlice()...)
			}
		}
	}
}

// Stats returns how many syncs succeeded and when the last one finished.
func (w *MirrorWorker) Stats() (syncs int64, last time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncs, w.lastSync
}
