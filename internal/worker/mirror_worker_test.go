package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"depositos/internal/amqp"
	"depositos/internal/core"
	applog "depositos/internal/log"
)

type fakeLoader struct {
	snap core.Snapshot
	err  error
}

func (f *fakeLoader) Load(context.Context) (core.Snapshot, error) { return f.snap, f.err }

type recordingMirror struct {
	mu       sync.Mutex
	replaced []core.Snapshot
	err      error
}

func (m *recordingMirror) Replace(_ context.Context, s core.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.replaced = append(m.replaced, s)
	return nil
}

func (m *recordingMirror) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replaced)
}

func snapshot() core.Snapshot {
	return core.Snapshot{
		Members: []core.Member{{ID: "1001", FirstName: "Ana"}},
		Deposits: []core.Deposit{{
			UID: "u1", MemberID: "1001", Amount: decimal.NewFromInt(20),
			Date: core.NewDate(2025, 12, 8), Code: "ADS-0001",
		}},
	}
}

func TestHandleEventReplacesMirror(t *testing.T) {
	mirror := &recordingMirror{}
	w := NewMirrorWorker(&fakeLoader{snap: snapshot()}, mirror, applog.Discard())

	msg := amqp.NewEventMessage(core.Event{Type: core.EventDepositCreated, UID: "u1", MemberID: "1001"})
	if err := w.HandleEvent(context.Background(), msg); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if mirror.count() != 1 {
		t.Fatalf("expected 1 replace, got %d", mirror.count())
	}
	if got := mirror.replaced[0].Deposits[0].UID; got != "u1" {
		t.Errorf("mirror received wrong snapshot, uid %q", got)
	}

	syncs, last := w.Stats()
	if syncs != 1 || last.IsZero() {
		t.Errorf("stats not updated: syncs=%d last=%v", syncs, last)
	}
}

func TestHandleEventErrors(t *testing.T) {
	tests := []struct {
		name   string
		loader *fakeLoader
		mirror *recordingMirror
	}{
		{"load fails", &fakeLoader{err: errors.New("db locked")}, &recordingMirror{}},
		{"replace fails", &fakeLoader{snap: snapshot()}, &recordingMirror{err: errors.New("quota exceeded")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewMirrorWorker(tt.loader, tt.mirror, applog.Discard())
			msg := amqp.NewEventMessage(core.Event{Type: core.EventBookCleared})
			if err := w.HandleEvent(context.Background(), msg); err == nil {
				t.Fatal("expected error so the message is requeued")
			}
			if syncs, _ := w.Stats(); syncs != 0 {
				t.Errorf("failed sync counted: %d", syncs)
			}
		})
	}
}

func TestRunResyncsPeriodically(t *testing.T) {
	mirror := &recordingMirror{}
	w := NewMirrorWorker(&fakeLoader{snap: snapshot()}, mirror, applog.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, 10*time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for mirror.count() < 2 {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("expected at least 2 resyncs, got %d", mirror.count())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	if err := <-done; err != nil {
		t.Errorf("run returned %v", err)
	}
}
