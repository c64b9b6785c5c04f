package http

import (
	"fmt"
	"net/http"

	"depositos/internal/core"
)

type weekLedger struct {
	Week     core.Date                     `json:"week"`
	Statuses map[string]core.PaymentStatus `json:"statuses"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	day, err := weekParam(r, s.deposits.Now())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	week, statuses := s.deposits.LedgerForWeek(day)
	if statuses == nil {
		statuses = map[string]core.PaymentStatus{}
	}
	NewJSONResponse().Body(weekLedger{Week: week, Statuses: statuses}).Write(w)
}

// handleSetStatus sets the flag of one member for the week containing the
// {week} path date.
func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	week, err := core.ParseDate(r.PathValue("week"))
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	memberID := sanitizeInput(r.PathValue("memberId"))
	if memberID == "" {
		FromError(r, core.ErrEmptyMemberID).Write(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		FromError(r, err).Write(w)
		return
	}
	status, err := core.ParseStatus(req.Status)
	if err != nil {
		FromError(r, fmt.Errorf("%w: %q", err, req.Status)).Write(w)
		return
	}

	entry, err := s.deposits.SetPaymentStatus(r.Context(), week, memberID, status)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	s.appMetrics.statusChanges.Add(1)
	NewJSONResponse().Body(entry).Write(w)
}
