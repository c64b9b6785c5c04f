package core

import "sort"

// LedgerKey addresses one (week, member) bucket. Week is always a Monday.
type LedgerKey struct {
	Week     Date   `json:"week"`
	MemberID string `json:"memberId"`
}

type LedgerEntry struct {
	LedgerKey
	Status PaymentStatus `json:"status"`
}

// LedgerChange is what a ledger mutation wrote. Keys in Deleted were removed;
// entries in Set were created or overwritten.
type LedgerChange struct {
	Set     []LedgerEntry
	Deleted []LedgerKey
}

// IsEmpty reports whether the mutation left the ledger untouched.
func (c LedgerChange) IsEmpty() bool {
	return len(c.Set) == 0 && len(c.Deleted) == 0
}

// MoveResolver decides the destination status when a deposit moves to another
// (week, member) bucket. dest is the status already at the destination, prior
// the status carried from the source bucket; each flag reports presence.
type MoveResolver func(dest PaymentStatus, destOK bool, prior PaymentStatus, priorOK bool) PaymentStatus

// DestinationWins keeps an existing destination decision and only carries the
// prior status into an empty bucket.
func DestinationWins(dest PaymentStatus, destOK bool, prior PaymentStatus, priorOK bool) PaymentStatus {
	if destOK {
		return dest
	}
	if priorOK {
		return prior
	}
	return StatusPending
}

// MigratedWins always carries the moved status, overwriting the destination.
func MigratedWins(dest PaymentStatus, destOK bool, prior PaymentStatus, priorOK bool) PaymentStatus {
	if priorOK {
		return prior
	}
	if destOK {
		return dest
	}
	return StatusPending
}

// Move policy names accepted by ResolverByName.
const (
	MovePolicyDestination = "destination"
	MovePolicyMigrated    = "migrated"
)

// ResolverByName returns the resolver for a move policy name. An empty name
// selects DestinationWins.
func ResolverByName(name string) (MoveResolver, bool) {
	switch name {
	case "", MovePolicyDestination:
		return DestinationWins, true
	case MovePolicyMigrated:
		return MigratedWins, true
	default:
		return nil, false
	}
}

// Ledger maps week start -> member id -> payment status.
type Ledger struct {
	weeks   map[string]map[string]PaymentStatus
	resolve MoveResolver
}

// NewLedger returns an empty ledger. A nil resolver selects DestinationWins.
func NewLedger(resolve MoveResolver) *Ledger {
	if resolve == nil {
		resolve = DestinationWins
	}
	return &Ledger{
		weeks:   make(map[string]map[string]PaymentStatus),
		resolve: resolve,
	}
}

// Status returns the stored status of (week, member). Absence means implicit pending.
func (l *Ledger) Status(week Date, memberID string) (PaymentStatus, bool) {
	s, ok := l.weeks[WeekStart(week).String()][memberID]
	return s, ok
}

// RecordDeposit opens a pending entry for the deposit's bucket if none exists.
func (l *Ledger) RecordDeposit(memberID string, day Date) LedgerChange {
	key := LedgerKey{Week: WeekStart(day), MemberID: memberID}
	if _, ok := l.get(key); ok {
		return LedgerChange{}
	}
	l.put(key, StatusPending)
	return LedgerChange{Set: []LedgerEntry{{LedgerKey: key, Status: StatusPending}}}
}

// SetStatus overwrites the status of (week, member). week is normalized to its Monday.
func (l *Ledger) SetStatus(week Date, memberID string, status PaymentStatus) (LedgerChange, error) {
	if err := status.Validate(); err != nil {
		return LedgerChange{}, err
	}
	if err := week.Validate(); err != nil {
		return LedgerChange{}, err
	}
	if memberID == "" {
		return LedgerChange{}, ErrEmptyMemberID
	}
	key := LedgerKey{Week: WeekStart(week), MemberID: memberID}
	l.put(key, status)
	return LedgerChange{Set: []LedgerEntry{{LedgerKey: key, Status: status}}}, nil
}

// MoveDeposit reconciles an edit that changed a deposit's member or date.
func (l *Ledger) MoveDeposit(fromMember string, fromDay Date, toMember string, toDay Date) LedgerChange {
	from := LedgerKey{Week: WeekStart(fromDay), MemberID: fromMember}
	to := LedgerKey{Week: WeekStart(toDay), MemberID: toMember}
	if from.Week.Equal(to.Week) && from.MemberID == to.MemberID {
		return LedgerChange{}
	}

	var change LedgerChange
	prior, priorOK := l.get(from)
	if priorOK {
		l.del(from)
		change.Deleted = append(change.Deleted, from)
	}

	dest, destOK := l.get(to)
	status := l.resolve(dest, destOK, prior, priorOK)
	if !destOK || status != dest {
		l.put(to, status)
		change.Set = append(change.Set, LedgerEntry{LedgerKey: to, Status: status})
	}
	return change
}

// RemoveDeposit drops the entry of the deposit's bucket, even when other
// deposits still share that (week, member).
func (l *Ledger) RemoveDeposit(memberID string, day Date) LedgerChange {
	key := LedgerKey{Week: WeekStart(day), MemberID: memberID}
	if _, ok := l.get(key); !ok {
		return LedgerChange{}
	}
	l.del(key)
	return LedgerChange{Deleted: []LedgerKey{key}}
}

// Clear removes every entry.
func (l *Ledger) Clear() {
	l.weeks = make(map[string]map[string]PaymentStatus)
}

// Load replaces the content with entries, normalizing weeks.
func (l *Ledger) Load(entries []LedgerEntry) {
	l.Clear()
	for _, e := range entries {
		l.put(LedgerKey{Week: WeekStart(e.Week), MemberID: e.MemberID}, e.Status)
	}
}

// Week returns a copy of the statuses recorded for week.
func (l *Ledger) Week(week Date) map[string]PaymentStatus {
	out := make(map[string]PaymentStatus)
	for m, s := range l.weeks[WeekStart(week).String()] {
		out[m] = s
	}
	return out
}

// Entries returns every entry ordered by week then member.
func (l *Ledger) Entries() []LedgerEntry {
	var out []LedgerEntry
	for wk, members := range l.weeks {
		week, err := ParseDate(wk)
		if err != nil {
			continue
		}
		for m, s := range members {
			out = append(out, LedgerEntry{LedgerKey: LedgerKey{Week: week, MemberID: m}, Status: s})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Week.Equal(out[j].Week) {
			return out[i].Week.Before(out[j].Week.Time)
		}
		return out[i].MemberID < out[j].MemberID
	})
	return out
}

func (l *Ledger) get(k LedgerKey) (PaymentStatus, bool) {
	s, ok := l.weeks[k.Week.String()][k.MemberID]
	return s, ok
}

func (l *Ledger) put(k LedgerKey, s PaymentStatus) {
	wk := k.Week.String()
	if l.weeks[wk] == nil {
		l.weeks[wk] = make(map[string]PaymentStatus)
	}
	l.weeks[wk][k.MemberID] = s
}

func (l *Ledger) del(k LedgerKey) {
	wk := k.Week.String()
	delete(l.weeks[wk], k.MemberID)
	if len(l.weeks[wk]) == 0 {
		delete(l.weeks, wk)
	}
}
