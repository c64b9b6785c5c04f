package http

import (
	"net/http"
	"strings"
	"time"

	"depositos/internal/core"
)

// weekParam resolves the week query parameter. Older clients send "date".
func weekParam(r *http.Request, now time.Time) (core.Date, error) {
	q := r.URL.Query()
	v := q.Get("week")
	if v == "" {
		v = q.Get("date")
	}
	return core.ParseWeek(v, now)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
