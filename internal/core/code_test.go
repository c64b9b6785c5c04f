package core

import (
	"regexp"
	"testing"
)

func TestNextCode(t *testing.T) {
	cases := []struct {
		name  string
		codes []string
		want  string
	}{
		{"empty", nil, "ADS-0001"},
		{"max plus one", []string{"ADS-0001", "ADS-0007", "ADS-0003"}, "ADS-0008"},
		{"order independent", []string{"ADS-0007", "ADS-0003", "ADS-0001"}, "ADS-0008"},
		{"case insensitive", []string{"ads-0041"}, "ADS-0042"},
		{"ignores others", []string{"manual", "X-9999", "ADS-"}, "ADS-0001"},
		{"grows past four digits", []string{"ADS-9999"}, "ADS-10000"},
		{"unpadded input", []string{"ADS-12"}, "ADS-0013"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NextCode(tc.codes); got != tc.want {
				t.Fatalf("NextCode(%v) = %s, want %s", tc.codes, got, tc.want)
			}
		})
	}
}

func TestNextCodeFallsBackOnOverflow(t *testing.T) {
	got := NextCode([]string{"ADS-0002", "ADS-99999999999999999999999"})
	if !regexp.MustCompile(`^ADS-\d{4}$`).MatchString(got) {
		t.Fatalf("expected random four digit code, got %s", got)
	}
}
