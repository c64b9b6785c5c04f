package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending  PaymentStatus = "pending"
	StatusApproved PaymentStatus = "approved"
	StatusDenied   PaymentStatus = "denied"
)

type (
	// PaymentStatus is the tri-state flag kept per (week, member).
	PaymentStatus string

	// Date is a calendar date without time of day, always in UTC.
	Date struct {
		time.Time
	}

	Member struct {
		ID        string `json:"id"`
		FirstName string `json:"firstName"`
	}

	Deposit struct {
		UID       string          `json:"uid"`
		MemberID  string          `json:"memberId"`
		Amount    decimal.Decimal `json:"amount"`
		Date      Date            `json:"date"`
		Photo     string          `json:"photo,omitempty"` // data URL, empty when absent
		Code      string          `json:"code"`
		CreatedAt time.Time       `json:"createdAt"`
	}

	// NewDeposit is the input for registering a deposit.
	NewDeposit struct {
		MemberID  string
		FirstName string
		Amount    decimal.Decimal
		Date      Date
		Photo     string
		Code      string // generated when empty
	}

	// DepositPatch lists the mutable fields of a deposit. Nil fields are left untouched.
	DepositPatch struct {
		MemberID    *string          `json:"memberId,omitempty"`
		FirstName   *string          `json:"firstName,omitempty"`
		Amount      *decimal.Decimal `json:"amount,omitempty"`
		Date        *Date            `json:"date,omitempty"`
		Code        *string          `json:"code,omitempty"`
		Photo       *string          `json:"photo,omitempty"`
		RemovePhoto bool             `json:"removePhoto,omitempty"`
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidStatus   = errors.New("invalid payment status")
	ErrEmptyMemberID   = errors.New("empty member id")
	ErrEmptyFirstName  = errors.New("empty first name")
	ErrEmptyCode       = errors.New("empty code")
	ErrEmptyPatch      = errors.New("patch has no fields")
	ErrDepositNotFound = errors.New("deposit not found")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date as seen in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// AddDays returns the date n calendar days after d.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Equal reports whether both dates fall on the same calendar day.
func (d Date) Equal(o Date) bool {
	return d.String() == o.String()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (s PaymentStatus) Validate() error {
	switch s {
	case StatusPending, StatusApproved, StatusDenied:
		return nil
	default:
		return ErrInvalidStatus
	}
}

// ParseStatus normalizes and validates a status string.
func ParseStatus(s string) (PaymentStatus, error) {
	st := PaymentStatus(strings.ToLower(strings.TrimSpace(s)))
	if err := st.Validate(); err != nil {
		return "", err
	}
	return st, nil
}

func (m Member) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return ErrEmptyMemberID
	}
	if strings.TrimSpace(m.FirstName) == "" {
		return ErrEmptyFirstName
	}
	return nil
}

func (n NewDeposit) Validate() error {
	if strings.TrimSpace(n.MemberID) == "" {
		return ErrEmptyMemberID
	}
	if strings.TrimSpace(n.FirstName) == "" {
		return ErrEmptyFirstName
	}
	if n.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if err := n.Date.Validate(); err != nil {
		return err
	}
	return nil
}

// IsEmpty reports whether the patch would change nothing.
func (p DepositPatch) IsEmpty() bool {
	return p.MemberID == nil && p.FirstName == nil && p.Amount == nil &&
		p.Date == nil && p.Code == nil && p.Photo == nil && !p.RemovePhoto
}

// Validate checks every present field before anything is applied.
func (p DepositPatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if p.MemberID != nil && strings.TrimSpace(*p.MemberID) == "" {
		return ErrEmptyMemberID
	}
	if p.FirstName != nil && strings.TrimSpace(*p.FirstName) == "" {
		return ErrEmptyFirstName
	}
	if p.Amount != nil && p.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if p.Date != nil {
		if err := p.Date.Validate(); err != nil {
			return err
		}
	}
	if p.Code != nil && strings.TrimSpace(*p.Code) == "" {
		return ErrEmptyCode
	}
	if p.Photo != nil && p.RemovePhoto {
		return errors.New("photo and removePhoto are mutually exclusive")
	}
	return nil
}
