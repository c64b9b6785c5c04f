package http

import (
	"net/http"

	"depositos/internal/core"
)

type weekDeposits struct {
	Week     core.WeekRange `json:"week"`
	Deposits []core.Deposit `json:"deposits"`
}

// handleListDeposits returns every deposit, or only one week's when a week
// (or date) parameter is present.
func (s *Server) handleListDeposits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("week") && !q.Has("date") {
		NewJSONResponse().Body(s.deposits.ListDeposits()).Write(w)
		return
	}

	day, err := weekParam(r, s.deposits.Now())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	week, deposits := s.deposits.DepositsForWeek(day)
	NewJSONResponse().Body(weekDeposits{Week: week, Deposits: deposits}).Write(w)
}

func (s *Server) handleNextCode(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"code": s.deposits.NextCode()}).Write(w)
}

func (s *Server) handleGetDeposit(w http.ResponseWriter, r *http.Request) {
	d, ok := s.deposits.Deposit(r.PathValue("uid"))
	if !ok {
		NotFoundError(core.ErrDepositNotFound.Error()).Write(w)
		return
	}
	NewJSONResponse().Body(d).Write(w)
}

func (s *Server) handleCreateDeposit(w http.ResponseWriter, r *http.Request) {
	in, err := parseDepositInput(w, r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	nd, err := in.toNew()
	if err != nil {
		FromError(r, err).Write(w)
		return
	}

	d, err := s.deposits.CreateDeposit(r.Context(), nd)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	s.appMetrics.depositsCreated.Add(1)
	NewJSONResponse().Status(http.StatusCreated).Body(d).Write(w)
}

func (s *Server) handleUpdateDeposit(w http.ResponseWriter, r *http.Request) {
	in, err := parseDepositInput(w, r)
	if err != nil {
		FromError(r, err).Write(w)
		return
	}

	d, err := s.deposits.UpdateDeposit(r.Context(), r.PathValue("uid"), in.toPatch())
	if err != nil {
		FromError(r, err).Write(w)
		return
	}
	s.appMetrics.depositsUpdated.Add(1)
	NewJSONResponse().Body(d).Write(w)
}

func (s *Server) handleDeleteDeposit(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deposits.DeleteDeposit(r.Context(), r.PathValue("uid")); err != nil {
		FromError(r, err).Write(w)
		return
	}
	s.appMetrics.depositsDeleted.Add(1)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleClearDeposits empties deposits and ledger. Members are kept.
func (s *Server) handleClearDeposits(w http.ResponseWriter, r *http.Request) {
	if err := s.deposits.ClearAll(r.Context()); err != nil {
		FromError(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.deposits.Summary()).Write(w)
}
