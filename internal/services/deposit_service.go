package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"depositos/internal/core"
	applog "depositos/internal/log"
	"depositos/internal/store"
)

// DepositService owns the in-memory book and applies every confirmed change
// to the store before announcing it downstream.
type DepositService struct {
	mu        sync.Mutex
	book      *core.Book
	store     store.Store
	publisher store.EventPublisher
	logger    *applog.Logger
	now       func() time.Time
	newUID    func() string

	healthMu sync.Mutex
	health   PersistenceHealth

	// publishing tracks in-flight event sends so Close can drain them.
	publishing sync.WaitGroup
}

// PersistenceHealth reports how the save boundary has been doing.
type PersistenceHealth struct {
	Failures      int64     `json:"failures"`
	LastError     string    `json:"lastError,omitempty"`
	LastErrorAt   time.Time `json:"lastErrorAt,omitempty"`
	LastSuccessAt time.Time `json:"lastSuccessAt,omitempty"`
	// Healthy is false while the most recent save attempt failed.
	Healthy bool `json:"healthy"`
}

type options struct {
	publisher store.EventPublisher
	logger    *applog.Logger
	now       func() time.Time
	newUID    func() string
	resolver  core.MoveResolver
}

type Option func(*options)

// WithPublisher sets where change events go. Without one, events are skipped.
func WithPublisher(p store.EventPublisher) Option { return func(o *options) { o.publisher = p } }

func WithLogger(l *applog.Logger) Option { return func(o *options) { o.logger = l } }

func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

func WithUIDGenerator(f func() string) Option { return func(o *options) { o.newUID = f } }

// WithMoveResolver swaps the ledger policy used when an edit collides with an
// existing (week, member) entry.
func WithMoveResolver(r core.MoveResolver) Option { return func(o *options) { o.resolver = r } }

// NewDepositService loads the persisted snapshot into a fresh book.
func NewDepositService(ctx context.Context, st store.Store, opts ...Option) (*DepositService, error) {
	if st == nil {
		return nil, errors.New("deposit service requires a store")
	}
	o := options{
		now:    time.Now,
		newUID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = applog.Wrap(nil, applog.ComponentDeposit)
	}

	snap, err := st.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	book := core.NewBook(o.resolver)
	book.Load(snap)

	s := &DepositService{
		book:      book,
		store:     st,
		publisher: o.publisher,
		logger:    o.logger.WithComponent(applog.ComponentDeposit),
		now:       o.now,
		newUID:    o.newUID,
		health:    PersistenceHealth{Healthy: true},
	}
	if s.publisher == nil {
		s.logger.WarnContext(ctx, "Event publisher not configured, change events will be skipped")
	}
	s.logger.InfoContext(ctx, "Deposit book loaded",
		"members", len(snap.Members),
		"deposits", len(snap.Deposits),
		"ledger_entries", len(snap.Ledger))
	return s, nil
}

// CreateDeposit registers a deposit and opens its ledger entry.
func (s *DepositService) CreateDeposit(ctx context.Context, in core.NewDeposit) (core.Deposit, error) {
	s.mu.Lock()
	d, change, err := s.book.AddDeposit(in, s.newUID(), s.now())
	if err != nil {
		s.mu.Unlock()
		return core.Deposit{}, err
	}
	saved := s.persist(ctx, change, applog.OpCreate)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Deposit created", applog.NewFields().WithDeposit(d).ToSlice()...)
	if saved {
		s.publish(ctx, core.Event{Type: core.EventDepositCreated, UID: d.UID, MemberID: d.MemberID, Week: core.WeekStart(d.Date).String()})
	}
	return d, nil
}

// UpdateDeposit applies patch and reconciles the ledger.
func (s *DepositService) UpdateDeposit(ctx context.Context, uid string, patch core.DepositPatch) (core.Deposit, error) {
	s.mu.Lock()
	d, change, err := s.book.EditDeposit(uid, patch)
	if err != nil {
		s.mu.Unlock()
		return core.Deposit{}, err
	}
	saved := s.persist(ctx, change, applog.OpUpdate)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Deposit updated",
		append(applog.NewFields().WithDeposit(d).ToSlice(),
			"ledger_set", len(change.Ledger.Set),
			"ledger_deleted", len(change.Ledger.Deleted))...)
	if saved {
		s.publish(ctx, core.Event{Type: core.EventDepositUpdated, UID: d.UID, MemberID: d.MemberID, Week: core.WeekStart(d.Date).String()})
	}
	return d, nil
}

// DeleteDeposit removes a deposit together with its (week, member) ledger entry.
func (s *DepositService) DeleteDeposit(ctx context.Context, uid string) (core.Deposit, error) {
	s.mu.Lock()
	d, change, err := s.book.RemoveDeposit(uid)
	if err != nil {
		s.mu.Unlock()
		return core.Deposit{}, err
	}
	saved := s.persist(ctx, change, applog.OpDelete)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Deposit deleted", applog.NewFields().WithDeposit(d).ToSlice()...)
	if saved {
		s.publish(ctx, core.Event{Type: core.EventDepositDeleted, UID: d.UID, MemberID: d.MemberID, Week: core.WeekStart(d.Date).String()})
	}
	return d, nil
}

// SetPaymentStatus records an admin decision.
func (s *DepositService) SetPaymentStatus(ctx context.Context, week core.Date, memberID string, status core.PaymentStatus) (core.LedgerEntry, error) {
	s.mu.Lock()
	change, err := s.book.SetStatus(week, memberID, status)
	if err != nil {
		s.mu.Unlock()
		return core.LedgerEntry{}, err
	}
	saved := s.persist(ctx, change, applog.OpUpdate)
	s.mu.Unlock()

	entry := change.Ledger.Set[0]
	s.logger.WithComponent(applog.ComponentLedger).InfoContext(ctx, "Payment status set",
		applog.NewFields().WithLedger(entry.Week, entry.MemberID, entry.Status).ToSlice()...)
	if saved {
		s.publish(ctx, core.Event{Type: core.EventStatusChanged, MemberID: entry.MemberID, Week: entry.Week.String(), Status: entry.Status})
	}
	return entry, nil
}

// UpsertMember creates or renames a member.
func (s *DepositService) UpsertMember(ctx context.Context, m core.Member) (core.Member, error) {
	s.mu.Lock()
	stored, change, err := s.book.UpsertMember(m)
	if err != nil {
		s.mu.Unlock()
		return core.Member{}, err
	}
	if change.IsEmpty() {
		s.mu.Unlock()
		return stored, nil
	}
	saved := s.persist(ctx, change, applog.OpUpdate)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Member saved", applog.FieldMemberID, stored.ID)
	if saved {
		s.publish(ctx, core.Event{Type: core.EventMemberUpserted, MemberID: stored.ID})
	}
	return stored, nil
}

// ClearAll drops every deposit and ledger entry. Members stay.
func (s *DepositService) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	change := s.book.Reset()
	saved := s.persist(ctx, change, applog.OpDelete)
	s.mu.Unlock()

	s.logger.WarnContext(ctx, "All deposits cleared")
	if saved {
		s.publish(ctx, core.Event{Type: core.EventBookCleared})
	}
	return nil
}

// ListDeposits returns every deposit, newest first.
func (s *DepositService) ListDeposits() []core.Deposit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Deposits()
}

// Deposit returns one deposit by uid.
func (s *DepositService) Deposit(uid string) (core.Deposit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Deposit(uid)
}

// DepositsForWeek returns the week containing day and its deposits.
func (s *DepositService) DepositsForWeek(day core.Date) (core.WeekRange, []core.Deposit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.DepositsInWeek(day)
}

// LedgerForWeek returns the statuses recorded for the week containing day.
func (s *DepositService) LedgerForWeek(day core.Date) (core.Date, map[string]core.PaymentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.WeekStart(day), s.book.Ledger().Week(day)
}

func (s *DepositService) Members() []core.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Members()
}

func (s *DepositService) NextCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.NextCode()
}

func (s *DepositService) Summary() core.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Summary()
}

// Now is the service clock.
func (s *DepositService) Now() time.Time { return s.now() }

// PersistenceHealth returns a copy of the save boundary status.
func (s *DepositService) PersistenceHealth() PersistenceHealth {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	return s.health
}

// persist applies change. A failure is reported and counted but the in-memory
// state is kept, so memory and storage may diverge until the next good write.
func (s *DepositService) persist(ctx context.Context, change core.Change, op string) bool {
	if change.IsEmpty() {
		return true
	}
	err := s.store.Apply(ctx, change)

	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	if err != nil {
		s.health.Failures++
		s.health.LastError = err.Error()
		s.health.LastErrorAt = s.now()
		s.health.Healthy = false
		s.logger.WithComponent(applog.ComponentStorage).ErrorContext(ctx, "State persistence failed",
			applog.NewFields().
				WithError(err).
				WithErrorType(applog.ErrorTypeDatabase).
				WithOperation(op).
				ToSlice()...)
		return false
	}
	s.health.LastSuccessAt = s.now()
	s.health.Healthy = true
	return true
}

// publish sends e in the background. The request context is detached so a
// finished request does not cancel the send; the publisher bounds its own wait.
func (s *DepositService) publish(ctx context.Context, e core.Event) {
	if s.publisher == nil {
		return
	}
	e.Timestamp = s.now()
	ctx = context.WithoutCancel(ctx)

	s.publishing.Add(1)
	go func() {
		defer s.publishing.Done()
		if err := s.publisher.Publish(ctx, e); err != nil {
			s.logger.WithComponent(applog.ComponentAMQP).WarnContext(ctx, "Failed to publish change event",
				append(applog.NewFields().
					WithError(err).
					WithErrorType(applog.ErrorTypeNetwork).
					WithOperation(applog.OpPublish).
					ToSlice(),
					"event_type", string(e.Type))...)
		}
	}()
}

// Close waits for in-flight events, then closes the store and the publisher
// when it holds resources.
func (s *DepositService) Close() error {
	s.publishing.Wait()

	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close deposit service: %w", errors.Join(errs...))
	}
	return nil
}
