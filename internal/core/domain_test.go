package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("case %d expected ErrInvalidDate, got %v", i, err)
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2025, 12, 8))
	if err != nil || string(b) != `"2025-12-08"` {
		t.Fatalf("marshal = %s, %v", b, err)
	}
	var d Date
	if err := json.Unmarshal([]byte(`"2025-12-07T22:15:00-03:00"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.String() != "2025-12-07" {
		t.Fatalf("expected calendar date as written, got %s", d)
	}
	if err := json.Unmarshal([]byte(`"07/12/2025"`), &d); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	for _, in := range []string{"pending", " Approved ", "DENIED"} {
		if _, err := ParseStatus(in); err != nil {
			t.Fatalf("%q: unexpected error %v", in, err)
		}
	}
	for _, in := range []string{"", "paid", "ok"} {
		if _, err := ParseStatus(in); !errors.Is(err, ErrInvalidStatus) {
			t.Fatalf("%q: expected ErrInvalidStatus, got %v", in, err)
		}
	}
}

func TestNewDepositValidate(t *testing.T) {
	good := NewDeposit{
		MemberID:  "1001",
		FirstName: "João",
		Amount:    decimal.RequireFromString("0"),
		Date:      NewDate(2025, 12, 8),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		in   NewDeposit
		want error
	}{
		{NewDeposit{MemberID: " ", FirstName: "a", Date: NewDate(2025, 1, 1)}, ErrEmptyMemberID},
		{NewDeposit{MemberID: "1", FirstName: "", Date: NewDate(2025, 1, 1)}, ErrEmptyFirstName},
		{NewDeposit{MemberID: "1", FirstName: "a", Amount: decimal.NewFromInt(-1), Date: NewDate(2025, 1, 1)}, ErrInvalidAmount},
		{NewDeposit{MemberID: "1", FirstName: "a"}, ErrInvalidDate},
	}
	for i, tc := range bads {
		if err := tc.in.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestDepositPatchValidate(t *testing.T) {
	str := func(s string) *string { return &s }
	neg := decimal.NewFromInt(-5)
	zero := Date{}

	if err := (DepositPatch{}).Validate(); !errors.Is(err, ErrEmptyPatch) {
		t.Fatalf("expected ErrEmptyPatch, got %v", err)
	}
	if err := (DepositPatch{Code: str("ADS-0009")}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		p    DepositPatch
		want error
	}{
		{DepositPatch{MemberID: str("")}, ErrEmptyMemberID},
		{DepositPatch{FirstName: str("  ")}, ErrEmptyFirstName},
		{DepositPatch{Amount: &neg}, ErrInvalidAmount},
		{DepositPatch{Date: &zero}, ErrInvalidDate},
		{DepositPatch{Code: str("")}, ErrEmptyCode},
	}
	for i, tc := range cases {
		if err := tc.p.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
	if err := (DepositPatch{Photo: str("data:x"), RemovePhoto: true}).Validate(); err == nil {
		t.Fatalf("expected error for photo with removePhoto")
	}
}
