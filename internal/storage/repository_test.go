package storage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"depositos/internal/core"
	applog "depositos/internal/log"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestMigrationsSeedMembers(t *testing.T) {
	repo := newTestRepo(t)
	snap, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Members) != 3 || snap.Members[0].FirstName != "João" {
		t.Fatalf("unexpected seed members %+v", snap.Members)
	}
	if len(snap.Deposits) != 0 || len(snap.Ledger) != 0 {
		t.Fatalf("fresh database should be empty")
	}
}

func TestApplyRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	book := core.NewBook(nil)
	snap, _ := repo.Load(ctx)
	book.Load(snap)

	created := time.Date(2025, 12, 8, 12, 30, 0, 123000000, time.UTC)
	d, ch, err := book.AddDeposit(core.NewDeposit{
		MemberID:  "1004",
		FirstName: "Ana",
		Amount:    decimal.RequireFromString("12.5"),
		Date:      core.NewDate(2025, 12, 10),
		Photo:     "data:image/png;base64,AAAA",
	}, "u1", created)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := repo.Apply(ctx, ch); err != nil {
		t.Fatalf("apply create: %v", err)
	}

	got, err := repo.GetDeposit(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Amount.Equal(d.Amount) || got.Date.String() != "2025-12-10" || got.Photo != d.Photo || !got.CreatedAt.Equal(created) {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, d)
	}

	ch, err = book.SetStatus(core.NewDate(2025, 12, 8), "1004", core.StatusApproved)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	repo.Apply(ctx, ch)

	moved := core.NewDate(2025, 12, 16)
	_, ch, _ = book.EditDeposit("u1", core.DepositPatch{Date: &moved})
	if err := repo.Apply(ctx, ch); err != nil {
		t.Fatalf("apply edit: %v", err)
	}

	snap, err = repo.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Ledger) != 1 || snap.Ledger[0].Week.String() != "2025-12-15" || snap.Ledger[0].Status != core.StatusApproved {
		t.Fatalf("ledger not migrated: %+v", snap.Ledger)
	}
	if len(snap.Members) != 4 {
		t.Fatalf("member not persisted: %+v", snap.Members)
	}

	_, ch, _ = book.RemoveDeposit("u1")
	repo.Apply(ctx, ch)
	if _, err := repo.GetDeposit(ctx, "u1"); !errors.Is(err, core.ErrDepositNotFound) {
		t.Fatalf("expected ErrDepositNotFound, got %v", err)
	}
	snap, _ = repo.Load(ctx)
	if len(snap.Ledger) != 0 {
		t.Fatalf("ledger entry not deleted: %+v", snap.Ledger)
	}
}

func TestApplyReset(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	book := core.NewBook(nil)
	snap, _ := repo.Load(ctx)
	book.Load(snap)

	for _, uid := range []string{"a", "b"} {
		_, ch, err := book.AddDeposit(core.NewDeposit{MemberID: "1001", FirstName: "João", Date: core.NewDate(2025, 12, 8)}, uid, time.Now())
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		repo.Apply(ctx, ch)
	}

	if err := repo.Apply(ctx, book.Reset()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	snap, _ = repo.Load(ctx)
	if len(snap.Deposits) != 0 || len(snap.Ledger) != 0 || len(snap.Members) != 3 {
		t.Fatalf("unexpected state after reset: %+v", snap)
	}
}

func TestDepositsOrderedNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	base := time.Date(2025, 12, 8, 9, 0, 5, 0, time.UTC)
	var deps []core.Deposit
	for i, offset := range []time.Duration{0, 100 * time.Millisecond, 2 * time.Second} {
		deps = append(deps, core.Deposit{
			UID: string(rune('a' + i)), MemberID: "1001", Amount: decimal.NewFromInt(1),
			Date: core.NewDate(2025, 12, 8), Code: "ADS-0001", CreatedAt: base.Add(offset),
		})
	}
	if err := repo.Apply(ctx, core.Change{Deposits: deps}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	snap, _ := repo.Load(ctx)
	if snap.Deposits[0].UID != "c" || snap.Deposits[1].UID != "b" || snap.Deposits[2].UID != "a" {
		t.Fatalf("unexpected order %s %s %s", snap.Deposits[0].UID, snap.Deposits[1].UID, snap.Deposits[2].UID)
	}
}

func TestAdminPasswordHash(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	if _, ok, err := repo.AdminPasswordHash(ctx); ok || err != nil {
		t.Fatalf("expected no hash, got ok=%v err=%v", ok, err)
	}
	if err := repo.SetAdminPasswordHash(ctx, []byte("$2a$10$x")); err != nil {
		t.Fatalf("set: %v", err)
	}
	repo.SetAdminPasswordHash(ctx, []byte("$2a$10$y"))
	h, ok, err := repo.AdminPasswordHash(ctx)
	if err != nil || !ok || string(h) != "$2a$10$y" {
		t.Fatalf("hash = %q ok=%v err=%v", h, ok, err)
	}
}

func TestRepositoryLogsUnderStorageComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Handler: slog.NewJSONHandler(&buf, nil), Component: applog.ComponentApp})

	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "log.db"), WithLogger(logger))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	defer repo.Close()
	if _, err := repo.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) < 2 {
		t.Fatalf("expected migration and load records, got %q", buf.String())
	}
	for _, line := range lines {
		if !strings.Contains(line, `"component":"storage"`) {
			t.Errorf("record outside the storage component: %s", line)
		}
	}
}
