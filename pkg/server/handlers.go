package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"hookly/helios/pkg/health"
	"hookly/helios/pkg/ledger"
)

// errorResponse is the JSON error envelope for all admin endpoints.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// handleHealthz answers the liveness probe.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAllProviderHealth returns health metrics for every known provider.
func (s *Server) handleAllProviderHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.GetAllHealthMetrics())
}

// handleProviderHealth returns health metrics for one provider.
func (s *Server) handleProviderHealth(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.monitor.GetHealthMetrics(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, health.ErrProviderNotFound) {
			writeError(w, http.StatusNotFound, "provider not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

// handleGetBreaker returns the breaker snapshot for one provider.
func (s *Server) handleGetBreaker(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.monitor.GetBreakerState(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, health.ErrProviderNotFound) {
			writeError(w, http.StatusNotFound, "provider not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handleSetBreaker forces a breaker into the given state.
func (s *Server) handleSetBreaker(w http.ResponseWriter, r *http.Request) {
	var body struct {
		State health.BreakerState `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := r.PathValue("id")
	if err := s.monitor.SetBreakerState(r.Context(), id, body.State); err != nil {
		switch {
		case errors.Is(err, health.ErrProviderNotFound):
			writeError(w, http.StatusNotFound, "provider not found")
		case errors.Is(err, health.ErrInvalidBreakerState):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	snapshot, err := s.monitor.GetBreakerState(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handleResetBreaker closes a breaker and clears its failure history.
func (s *Server) handleResetBreaker(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.monitor.ResetBreaker(r.Context(), id); err != nil {
		if errors.Is(err, health.ErrProviderNotFound) {
			writeError(w, http.StatusNotFound, "provider not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	snapshot, err := s.monitor.GetBreakerState(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handleHealthRanking returns providers ordered by composite health score.
func (s *Server) handleHealthRanking(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.ProviderRanking())
}

// handleCostRanking returns providers ordered by cost efficiency.
func (s *Server) handleCostRanking(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.ProviderCostRanking(nil))
}

// costsResponse combines the global aggregate with per-provider breakdowns.
type costsResponse struct {
	Global    *ledger.CostMetrics   `json:"global"`
	Providers []*ledger.CostMetrics `json:"providers"`
}

// handleCosts returns spend aggregates. The period query parameter selects
// day (default), month, or all; a provider parameter narrows the response
// to one provider.
func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	period := ledger.Period(r.URL.Query().Get("period"))
	if period == "" {
		period = ledger.PeriodDay
	}

	if providerID := r.URL.Query().Get("provider"); providerID != "" {
		metrics, err := s.tracker.GetCostMetrics(providerID, period)
		if err != nil {
			switch {
			case errors.Is(err, ledger.ErrProviderNotFound):
				writeError(w, http.StatusNotFound, "provider not found")
			case errors.Is(err, ledger.ErrInvalidPeriod):
				writeError(w, http.StatusBadRequest, "invalid period")
			default:
				writeError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}
		writeJSON(w, http.StatusOK, metrics)
		return
	}

	global, err := s.tracker.GetCostMetrics("", period)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidPeriod) {
			writeError(w, http.StatusBadRequest, "invalid period")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	providers, err := s.tracker.GetAllCostMetrics(period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, costsResponse{Global: global, Providers: providers})
}

// handleGetBudget returns the budget ceilings and current spend.
func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.GetBudget())
}

// handleUpdateBudget replaces the budget ceilings.
func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var update ledger.BudgetStatus
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.tracker.UpdateBudget(r.Context(), update); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.tracker.GetBudget())
}

// handleListAlerts returns cost alerts, optionally filtered by
// acknowledgement state.
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	var acknowledged *bool
	if raw := r.URL.Query().Get("acknowledged"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid acknowledged filter")
			return
		}
		acknowledged = &v
	}

	alerts, err := s.tracker.GetCostAlerts(r.Context(), acknowledged)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

// handleAcknowledgeAlert marks an alert as acknowledged.
func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.AcknowledgeCostAlert(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, ledger.ErrAlertNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}
