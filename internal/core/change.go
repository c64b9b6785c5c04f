package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the complete persisted state.
type Snapshot struct {
	Members  []Member      `json:"members"`
	Deposits []Deposit     `json:"deposits"`
	Ledger   []LedgerEntry `json:"ledger"`
}

// Change is the persistence delta produced by one Book mutation. When Reset is
// set deposits and ledger are emptied before the rest is applied.
type Change struct {
	Reset           bool
	Members         []Member
	Deposits        []Deposit
	DeletedDeposits []string
	Ledger          LedgerChange
}

func (c Change) IsEmpty() bool {
	return !c.Reset && len(c.Members) == 0 && len(c.Deposits) == 0 &&
		len(c.DeletedDeposits) == 0 && c.Ledger.IsEmpty()
}

type EventType string

const (
	EventDepositCreated EventType = "deposit.created"
	EventDepositUpdated EventType = "deposit.updated"
	EventDepositDeleted EventType = "deposit.deleted"
	EventStatusChanged  EventType = "ledger.status_changed"
	EventMemberUpserted EventType = "member.upserted"
	EventBookCleared    EventType = "book.cleared"
)

// Event announces a confirmed state change to downstream consumers.
type Event struct {
	Type      EventType     `json:"type"`
	UID       string        `json:"uid,omitempty"`
	MemberID  string        `json:"memberId,omitempty"`
	Week      string        `json:"week,omitempty"`
	Status    PaymentStatus `json:"status,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Summary aggregates all deposits.
type Summary struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}
