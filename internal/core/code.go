package core

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
)

// CodePrefix starts every generated deposit code.
const CodePrefix = "ADS-"

var codePattern = regexp.MustCompile(`(?i)ADS-(\d+)`)

// NextCode returns the code following the highest ADS-N found in codes,
// zero-padded to four digits. With no matching codes it returns ADS-0001.
//
// A suffix that does not fit an int64 is treated as corrupt state and a
// random code is returned instead of an error.
func NextCode(codes []string) string {
	var highest int64
	for _, c := range codes {
		m := codePattern.FindStringSubmatch(c)
		if m == nil {
			continue
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || n == 1<<63-1 {
			return RandomCode()
		}
		if n > highest {
			highest = n
		}
	}
	return FormatCode(highest + 1)
}

// FormatCode renders n with the ADS- prefix. Numbers above 9999 are not truncated.
func FormatCode(n int64) string {
	return fmt.Sprintf("%s%04d", CodePrefix, n)
}

// RandomCode returns ADS-0000 through ADS-9999.
func RandomCode() string {
	return FormatCode(rand.Int64N(10000))
}
