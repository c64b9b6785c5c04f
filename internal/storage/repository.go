package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"depositos/internal/core"
	applog "depositos/internal/log"
	"depositos/internal/store"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *applog.Logger
}

// RepositoryOption configures a SQLiteRepository.
type RepositoryOption func(*SQLiteRepository)

// WithLogger sets the repository logger. It reports under ComponentStorage.
func WithLogger(l *applog.Logger) RepositoryOption {
	return func(r *SQLiteRepository) { r.logger = l.WithComponent(applog.ComponentStorage) }
}

var (
	_ store.Store         = (*SQLiteRepository)(nil)
	_ store.PasswordStore = (*SQLiteRepository)(nil)
)

// createdAtLayout has a fixed-width fraction so the column sorts as text.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DSN adds the pragmas the server and the worker need to share one file.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string, opts ...RepositoryOption) (*SQLiteRepository, error) {
	r := &SQLiteRepository{logger: applog.Wrap(nil, applog.ComponentStorage)}
	for _, opt := range opts {
		opt(r)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer at a time avoids SQLITE_BUSY inside the process
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn, r.logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	r.db = db
	r.queries = New(db)
	return r, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load implements store.SnapshotLoader
func (r *SQLiteRepository) Load(ctx context.Context) (core.Snapshot, error) {
	var snap core.Snapshot

	members, err := r.queries.ListMembers(ctx)
	if err != nil {
		return snap, fmt.Errorf("list members: %w", err)
	}
	for _, m := range members {
		snap.Members = append(snap.Members, core.Member{ID: m.ID, FirstName: m.FirstName})
	}

	deposits, err := r.queries.ListDeposits(ctx)
	if err != nil {
		return snap, fmt.Errorf("list deposits: %w", err)
	}
	for _, row := range deposits {
		d, err := depositFromRow(row)
		if err != nil {
			return snap, fmt.Errorf("decode deposit %s: %w", row.UID, err)
		}
		snap.Deposits = append(snap.Deposits, d)
	}

	entries, err := r.queries.ListLedger(ctx)
	if err != nil {
		return snap, fmt.Errorf("list ledger: %w", err)
	}
	for _, row := range entries {
		week, err := core.ParseDate(row.Week)
		if err != nil {
			return snap, fmt.Errorf("decode ledger week: %w", err)
		}
		snap.Ledger = append(snap.Ledger, core.LedgerEntry{
			LedgerKey: core.LedgerKey{Week: week, MemberID: row.MemberID},
			Status:    core.PaymentStatus(row.Status),
		})
	}

	r.logger.InfoContext(ctx, "Snapshot loaded from SQLite",
		"members", len(snap.Members),
		"deposits", len(snap.Deposits),
		"ledger_entries", len(snap.Ledger))
	return snap, nil
}

// Apply implements store.ChangeApplier. The whole change commits or none of it does.
func (r *SQLiteRepository) Apply(ctx context.Context, c core.Change) error {
	if c.IsEmpty() {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)

	if c.Reset {
		if err := q.DeleteAllDeposits(ctx); err != nil {
			return fmt.Errorf("clear deposits: %w", err)
		}
		if err := q.DeleteAllLedger(ctx); err != nil {
			return fmt.Errorf("clear ledger: %w", err)
		}
	}
	for _, m := range c.Members {
		if err := q.UpsertMember(ctx, Member{ID: m.ID, FirstName: m.FirstName}); err != nil {
			return fmt.Errorf("upsert member %s: %w", m.ID, err)
		}
	}
	for _, d := range c.Deposits {
		if err := q.UpsertDeposit(ctx, depositToRow(d)); err != nil {
			return fmt.Errorf("upsert deposit %s: %w", d.UID, err)
		}
	}
	for _, uid := range c.DeletedDeposits {
		if err := q.DeleteDeposit(ctx, uid); err != nil {
			return fmt.Errorf("delete deposit %s: %w", uid, err)
		}
	}
	for _, k := range c.Ledger.Deleted {
		if err := q.DeleteLedgerEntry(ctx, k.Week.String(), k.MemberID); err != nil {
			return fmt.Errorf("delete ledger entry: %w", err)
		}
	}
	for _, e := range c.Ledger.Set {
		err := q.UpsertLedgerEntry(ctx, LedgerEntry{
			Week:     e.Week.String(),
			MemberID: e.MemberID,
			Status:   string(e.Status),
		})
		if err != nil {
			return fmt.Errorf("upsert ledger entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	r.logger.DebugContext(ctx, "Change applied to SQLite",
		"reset", c.Reset,
		"members", len(c.Members),
		"deposits", len(c.Deposits),
		"deleted_deposits", len(c.DeletedDeposits),
		"ledger_set", len(c.Ledger.Set),
		"ledger_deleted", len(c.Ledger.Deleted))
	return nil
}

// GetDeposit returns a single deposit, or core.ErrDepositNotFound.
func (r *SQLiteRepository) GetDeposit(ctx context.Context, uid string) (core.Deposit, error) {
	row, err := r.queries.GetDeposit(ctx, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Deposit{}, core.ErrDepositNotFound
	}
	if err != nil {
		return core.Deposit{}, fmt.Errorf("get deposit %s: %w", uid, err)
	}
	return depositFromRow(row)
}

// AdminPasswordHash implements store.PasswordStore
func (r *SQLiteRepository) AdminPasswordHash(ctx context.Context) ([]byte, bool, error) {
	hash, err := r.queries.GetAdminPasswordHash(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get admin password: %w", err)
	}
	return []byte(hash), true, nil
}

// SetAdminPasswordHash implements store.PasswordStore
func (r *SQLiteRepository) SetAdminPasswordHash(ctx context.Context, hash []byte) error {
	if err := r.queries.SetAdminPasswordHash(ctx, string(hash)); err != nil {
		return fmt.Errorf("set admin password: %w", err)
	}
	return nil
}

func depositToRow(d core.Deposit) Deposit {
	return Deposit{
		UID:       d.UID,
		MemberID:  d.MemberID,
		Amount:    d.Amount.StringFixed(core.AmountPlaces),
		Date:      d.Date.String(),
		Photo:     sql.NullString{String: d.Photo, Valid: d.Photo != ""},
		Code:      d.Code,
		CreatedAt: d.CreatedAt.UTC().Format(createdAtLayout),
	}
}

func depositFromRow(row Deposit) (core.Deposit, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Deposit{}, fmt.Errorf("amount %q: %w", row.Amount, err)
	}
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Deposit{}, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		return core.Deposit{}, fmt.Errorf("created_at %q: %w", row.CreatedAt, err)
	}
	return core.Deposit{
		UID:       row.UID,
		MemberID:  row.MemberID,
		Amount:    amount,
		Date:      date,
		Photo:     row.Photo.String,
		Code:      row.Code,
		CreatedAt: createdAt,
	}, nil
}
