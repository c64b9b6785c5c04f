package http

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"depositos/internal/core"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 24)...)

func TestNormalizePhoto(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString(pngBytes)

	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"bare base64", raw, false},
		{"data url", "data:image/png;base64," + raw, false},
		{"mislabelled data url", "data:image/jpeg;base64," + raw, false},
		{"not base64", "data:image/png;base64,%%%", true},
		{"not a base64 data url", "data:image/png," + raw, true},
		{"text content", base64.StdEncoding.EncodeToString([]byte("hello world")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizePhoto(tt.in)
			if tt.wantErr {
				if !errors.Is(err, errInvalidPhoto) {
					t.Fatalf("expected errInvalidPhoto, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.HasPrefix(got, "data:image/png;base64,") {
				t.Errorf("got %.40q", got)
			}
		})
	}
}

func TestAmountField(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{`12.345`, "12.35", false},
		{`"12,5"`, "12.5", false},
		{`"0"`, "0", false},
		{`"-3"`, "", true},
		{`"abc"`, "", true},
	}
	for _, tt := range tests {
		var a amountField
		err := a.UnmarshalJSON([]byte(tt.in))
		if tt.wantErr {
			if !errors.Is(err, core.ErrInvalidAmount) {
				t.Errorf("%s: expected ErrInvalidAmount, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", tt.in, err)
			continue
		}
		if !a.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("%s: got %s, want %s", tt.in, a.Decimal, tt.want)
		}
	}
}

func TestToPatchSanitizesName(t *testing.T) {
	name := "  Ana\x00 "
	in := depositInput{FirstName: &name}
	p := in.toPatch()
	if p.FirstName == nil || *p.FirstName != "Ana" {
		t.Errorf("first name not sanitized: %v", p.FirstName)
	}
	if p.Amount != nil || p.Date != nil {
		t.Error("absent fields must stay nil")
	}
}
