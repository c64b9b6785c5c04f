package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Member struct {
	ID        string
	FirstName string
}

type Deposit struct {
	UID       string
	MemberID  string
	Amount    string
	Date      string
	Photo     sql.NullString
	Code      string
	CreatedAt string
}

type LedgerEntry struct {
	Week     string
	MemberID string
	Status   string
}

const upsertMember = `
INSERT INTO members (id, first_name) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET first_name = excluded.first_name
`

func (q *Queries) UpsertMember(ctx context.Context, arg Member) error {
	_, err := q.db.ExecContext(ctx, upsertMember, arg.ID, arg.FirstName)
	return err
}

const listMembers = `SELECT id, first_name FROM members ORDER BY id`

func (q *Queries) ListMembers(ctx context.Context) ([]Member, error) {
	rows, err := q.db.QueryContext(ctx, listMembers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Member
	for rows.Next() {
		var i Member
		if err := rows.Scan(&i.ID, &i.FirstName); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertDeposit = `
INSERT INTO deposits (uid, member_id, amount, date, photo, code, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(uid) DO UPDATE SET
    member_id = excluded.member_id,
    amount = excluded.amount,
    date = excluded.date,
    photo = excluded.photo,
    code = excluded.code
`

func (q *Queries) UpsertDeposit(ctx context.Context, arg Deposit) error {
	_, err := q.db.ExecContext(ctx, upsertDeposit,
		arg.UID,
		arg.MemberID,
		arg.Amount,
		arg.Date,
		arg.Photo,
		arg.Code,
		arg.CreatedAt,
	)
	return err
}

const deleteDeposit = `DELETE FROM deposits WHERE uid = ?`

func (q *Queries) DeleteDeposit(ctx context.Context, uid string) error {
	_, err := q.db.ExecContext(ctx, deleteDeposit, uid)
	return err
}

const deleteAllDeposits = `DELETE FROM deposits`

func (q *Queries) DeleteAllDeposits(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllDeposits)
	return err
}

const getDeposit = `
SELECT uid, member_id, amount, date, photo, code, created_at
FROM deposits WHERE uid = ?
`

func (q *Queries) GetDeposit(ctx context.Context, uid string) (Deposit, error) {
	row := q.db.QueryRowContext(ctx, getDeposit, uid)
	var i Deposit
	err := row.Scan(&i.UID, &i.MemberID, &i.Amount, &i.Date, &i.Photo, &i.Code, &i.CreatedAt)
	return i, err
}

const listDeposits = `
SELECT uid, member_id, amount, date, photo, code, created_at
FROM deposits ORDER BY created_at DESC, uid
`

func (q *Queries) ListDeposits(ctx context.Context) ([]Deposit, error) {
	rows, err := q.db.QueryContext(ctx, listDeposits)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Deposit
	for rows.Next() {
		var i Deposit
		if err := rows.Scan(&i.UID, &i.MemberID, &i.Amount, &i.Date, &i.Photo, &i.Code, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertLedgerEntry = `
INSERT INTO ledger (week, member_id, status) VALUES (?, ?, ?)
ON CONFLICT(week, member_id) DO UPDATE SET status = excluded.status
`

func (q *Queries) UpsertLedgerEntry(ctx context.Context, arg LedgerEntry) error {
	_, err := q.db.ExecContext(ctx, upsertLedgerEntry, arg.Week, arg.MemberID, arg.Status)
	return err
}

const deleteLedgerEntry = `DELETE FROM ledger WHERE week = ? AND member_id = ?`

func (q *Queries) DeleteLedgerEntry(ctx context.Context, week, memberID string) error {
	_, err := q.db.ExecContext(ctx, deleteLedgerEntry, week, memberID)
	return err
}

const deleteAllLedger = `DELETE FROM ledger`

func (q *Queries) DeleteAllLedger(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllLedger)
	return err
}

const listLedger = `SELECT week, member_id, status FROM ledger ORDER BY week, member_id`

func (q *Queries) ListLedger(ctx context.Context) ([]LedgerEntry, error) {
	rows, err := q.db.QueryContext(ctx, listLedger)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LedgerEntry
	for rows.Next() {
		var i LedgerEntry
		if err := rows.Scan(&i.Week, &i.MemberID, &i.Status); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getAdminPasswordHash = `SELECT password_hash FROM admin WHERE id = 1`

func (q *Queries) GetAdminPasswordHash(ctx context.Context) (string, error) {
	row := q.db.QueryRowContext(ctx, getAdminPasswordHash)
	var hash string
	err := row.Scan(&hash)
	return hash, err
}

const setAdminPasswordHash = `
INSERT INTO admin (id, password_hash) VALUES (1, ?)
ON CONFLICT(id) DO UPDATE SET password_hash = excluded.password_hash
`

func (q *Queries) SetAdminPasswordHash(ctx context.Context, hash string) error {
	_, err := q.db.ExecContext(ctx, setAdminPasswordHash, hash)
	return err
}
