package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Book is the in-memory model of members, deposits and the payment ledger.
// It is not safe for concurrent use; callers serialize access.
type Book struct {
	members  map[string]Member
	deposits map[string]Deposit
	ledger   *Ledger
}

// NewBook returns an empty book using resolve for edit collisions.
func NewBook(resolve MoveResolver) *Book {
	return &Book{
		members:  make(map[string]Member),
		deposits: make(map[string]Deposit),
		ledger:   NewLedger(resolve),
	}
}

// Load replaces the book content with a persisted snapshot.
func (b *Book) Load(s Snapshot) {
	b.members = make(map[string]Member, len(s.Members))
	for _, m := range s.Members {
		b.members[m.ID] = m
	}
	b.deposits = make(map[string]Deposit, len(s.Deposits))
	for _, d := range s.Deposits {
		b.deposits[d.UID] = d
	}
	b.ledger.Load(s.Ledger)
}

// Snapshot returns a copy of the whole state.
func (b *Book) Snapshot() Snapshot {
	return Snapshot{
		Members:  b.Members(),
		Deposits: b.Deposits(),
		Ledger:   b.ledger.Entries(),
	}
}

// AddDeposit registers a deposit, creating or renaming its member as needed
// and opening a pending ledger entry for its week.
func (b *Book) AddDeposit(in NewDeposit, uid string, createdAt time.Time) (Deposit, Change, error) {
	if err := in.Validate(); err != nil {
		return Deposit{}, Change{}, err
	}
	amount, err := NormalizeAmount(in.Amount)
	if err != nil {
		return Deposit{}, Change{}, err
	}

	var change Change
	memberID := strings.TrimSpace(in.MemberID)
	if m, ok := b.touchMember(memberID, in.FirstName); ok {
		change.Members = append(change.Members, m)
	}

	code := strings.TrimSpace(in.Code)
	if code == "" {
		code = b.NextCode()
	}

	d := Deposit{
		UID:       uid,
		MemberID:  memberID,
		Amount:    amount,
		Date:      DateOf(in.Date.Time),
		Photo:     in.Photo,
		Code:      code,
		CreatedAt: createdAt.UTC(),
	}
	b.deposits[uid] = d
	change.Deposits = append(change.Deposits, d)
	change.Ledger = b.ledger.RecordDeposit(d.MemberID, d.Date)
	return d, change, nil
}

// EditDeposit applies a validated patch and reconciles the ledger when the
// member or the week changed.
func (b *Book) EditDeposit(uid string, p DepositPatch) (Deposit, Change, error) {
	prev, ok := b.deposits[uid]
	if !ok {
		return Deposit{}, Change{}, ErrDepositNotFound
	}
	if err := p.Validate(); err != nil {
		return Deposit{}, Change{}, err
	}

	next := prev
	if p.MemberID != nil {
		next.MemberID = strings.TrimSpace(*p.MemberID)
	}
	if p.Amount != nil {
		amount, err := NormalizeAmount(*p.Amount)
		if err != nil {
			return Deposit{}, Change{}, err
		}
		next.Amount = amount
	}
	if p.Date != nil {
		next.Date = DateOf(p.Date.Time)
	}
	if p.Code != nil {
		next.Code = strings.TrimSpace(*p.Code)
	}
	if p.Photo != nil {
		next.Photo = *p.Photo
	}
	if p.RemovePhoto {
		next.Photo = ""
	}

	var change Change
	switch {
	case p.FirstName != nil:
		if m, ok := b.touchMember(next.MemberID, *p.FirstName); ok {
			change.Members = append(change.Members, m)
		}
	case next.MemberID != prev.MemberID:
		if _, known := b.members[next.MemberID]; !known {
			return Deposit{}, Change{}, fmt.Errorf("%w: member %s is unknown", ErrEmptyFirstName, next.MemberID)
		}
	}

	b.deposits[uid] = next
	change.Deposits = append(change.Deposits, next)
	change.Ledger = b.ledger.MoveDeposit(prev.MemberID, prev.Date, next.MemberID, next.Date)
	return next, change, nil
}

// RemoveDeposit deletes a deposit and its (week, member) ledger entry.
func (b *Book) RemoveDeposit(uid string) (Deposit, Change, error) {
	d, ok := b.deposits[uid]
	if !ok {
		return Deposit{}, Change{}, ErrDepositNotFound
	}
	delete(b.deposits, uid)
	return d, Change{
		DeletedDeposits: []string{uid},
		Ledger:          b.ledger.RemoveDeposit(d.MemberID, d.Date),
	}, nil
}

// SetStatus records an admin decision for (week, member).
func (b *Book) SetStatus(week Date, memberID string, s PaymentStatus) (Change, error) {
	lc, err := b.ledger.SetStatus(week, strings.TrimSpace(memberID), s)
	if err != nil {
		return Change{}, err
	}
	return Change{Ledger: lc}, nil
}

// UpsertMember creates or renames a member. The change is empty when the
// stored member already matches.
func (b *Book) UpsertMember(m Member) (Member, Change, error) {
	if err := m.Validate(); err != nil {
		return Member{}, Change{}, err
	}
	stored, changed := b.touchMember(strings.TrimSpace(m.ID), m.FirstName)
	if !changed {
		return stored, Change{}, nil
	}
	return stored, Change{Members: []Member{stored}}, nil
}

// Reset empties deposits and the ledger. Members are kept.
func (b *Book) Reset() Change {
	b.deposits = make(map[string]Deposit)
	b.ledger.Clear()
	return Change{Reset: true}
}

// Deposit returns the deposit with the given uid.
func (b *Book) Deposit(uid string) (Deposit, bool) {
	d, ok := b.deposits[uid]
	return d, ok
}

// Deposits returns every deposit, newest first.
func (b *Book) Deposits() []Deposit {
	out := make([]Deposit, 0, len(b.deposits))
	for _, d := range b.deposits {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].UID < out[j].UID
	})
	return out
}

// DepositsInWeek returns the deposits dated within the week of day, oldest first.
func (b *Book) DepositsInWeek(day Date) (WeekRange, []Deposit) {
	week := WeekOf(day)
	out := []Deposit{}
	for _, d := range b.deposits {
		if week.Contains(d.Date) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return week, out
}

// Member returns the member with the given id.
func (b *Book) Member(id string) (Member, bool) {
	m, ok := b.members[id]
	return m, ok
}

// Members returns every member ordered by id.
func (b *Book) Members() []Member {
	out := make([]Member, 0, len(b.members))
	for _, m := range b.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Ledger exposes the reconciled ledger for reads.
func (b *Book) Ledger() *Ledger { return b.ledger }

// Codes lists the code of every deposit.
func (b *Book) Codes() []string {
	out := make([]string, 0, len(b.deposits))
	for _, d := range b.deposits {
		out = append(out, d.Code)
	}
	return out
}

func (b *Book) NextCode() string { return NextCode(b.Codes()) }

func (b *Book) Summary() Summary {
	deps := b.Deposits()
	return Summary{Count: len(deps), Total: SumAmounts(deps)}
}

// touchMember makes sure id exists with firstName. It reports whether the
// stored member was created or renamed.
func (b *Book) touchMember(id, firstName string) (Member, bool) {
	name := strings.TrimSpace(firstName)
	m, ok := b.members[id]
	if ok && (name == "" || m.FirstName == name) {
		return m, false
	}
	m = Member{ID: id, FirstName: name}
	b.members[id] = m
	return m, true
}
