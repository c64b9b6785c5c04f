package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"depositos/internal/core"
	"depositos/internal/store"
)

// DefaultMembers seed a fresh store when no seed file is present.
var DefaultMembers = []core.Member{
	{ID: "1001", FirstName: "João"},
	{ID: "1002", FirstName: "Maria"},
	{ID: "1003", FirstName: "Carlos"},
}

// Store keeps the persisted state in process memory. It is lost on restart.
type Store struct {
	mu       sync.Mutex
	members  map[string]core.Member
	deposits map[string]core.Deposit
	ledger   map[core.LedgerKey]core.PaymentStatus
	hash     []byte
}

var (
	_ store.Store         = (*Store)(nil)
	_ store.PasswordStore = (*Store)(nil)
)

func New(members []core.Member) *Store {
	s := &Store{
		members:  make(map[string]core.Member),
		deposits: make(map[string]core.Deposit),
		ledger:   make(map[core.LedgerKey]core.PaymentStatus),
	}
	for _, m := range members {
		if m.Validate() == nil {
			s.members[m.ID] = m
		}
	}
	return s
}

// NewFromFiles seeds members from base/seed_members.txt, one "id first name"
// per line. Missing or empty files fall back to DefaultMembers.
func NewFromFiles(base string) *Store {
	members := readMembers(filepath.Join(base, "seed_members.txt"))
	if len(members) == 0 {
		members = DefaultMembers
	}
	return New(members)
}

// Load returns a copy of the current state.
func (s *Store) Load(_ context.Context) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap core.Snapshot
	for _, m := range s.members {
		snap.Members = append(snap.Members, m)
	}
	sort.Slice(snap.Members, func(i, j int) bool { return snap.Members[i].ID < snap.Members[j].ID })
	for _, d := range s.deposits {
		snap.Deposits = append(snap.Deposits, d)
	}
	sort.Slice(snap.Deposits, func(i, j int) bool { return snap.Deposits[i].CreatedAt.After(snap.Deposits[j].CreatedAt) })
	for k, st := range s.ledger {
		snap.Ledger = append(snap.Ledger, core.LedgerEntry{LedgerKey: k, Status: st})
	}
	return snap, nil
}

// Apply writes c. It never fails.
func (s *Store) Apply(_ context.Context, c core.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Reset {
		s.deposits = make(map[string]core.Deposit)
		s.ledger = make(map[core.LedgerKey]core.PaymentStatus)
	}
	for _, m := range c.Members {
		s.members[m.ID] = m
	}
	for _, d := range c.Deposits {
		s.deposits[d.UID] = d
	}
	for _, uid := range c.DeletedDeposits {
		delete(s.deposits, uid)
	}
	for _, k := range c.Ledger.Deleted {
		delete(s.ledger, normalize(k))
	}
	for _, e := range c.Ledger.Set {
		s.ledger[normalize(e.LedgerKey)] = e.Status
	}
	return nil
}

func (s *Store) AdminPasswordHash(_ context.Context) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.hash) == 0 {
		return nil, false, nil
	}
	return append([]byte(nil), s.hash...), true, nil
}

func (s *Store) SetAdminPasswordHash(_ context.Context, hash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hash = append([]byte(nil), hash...)
	return nil
}

func (s *Store) Close() error { return nil }

// normalize makes keys comparable regardless of how the Date was built.
func normalize(k core.LedgerKey) core.LedgerKey {
	return core.LedgerKey{Week: core.DateOf(k.Week.Time), MemberID: k.MemberID}
}

func readMembers(path string) []core.Member {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	seen := map[string]struct{}{}
	var out []core.Member
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, name, ok := strings.Cut(line, " ")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, core.Member{ID: id, FirstName: name})
	}
	return out
}
