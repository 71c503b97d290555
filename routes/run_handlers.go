package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/runner"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

const (
	defaultRunDays = 7
	maxRunDays     = 366
)

// RunService is what the operator API needs from the runner
type RunService interface {
	RecentRuns(ctx context.Context, days int) ([]models.ETLRunLog, error)
	State(ctx context.Context) (*models.ETLStateMonitor, error)
	Trigger(ctx context.Context) (string, error)
}

// RunsResponse is the body of GET /api/runs
type RunsResponse struct {
	Days int                `json:"days"`
	Runs []models.ETLRunLog `json:"runs"`
}

// TriggerResponse is the body of POST /api/runs
type TriggerResponse struct {
	RunID string `json:"run_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// GetRunsHandler lists the runs of the last ?days=N days
func GetRunsHandler(runs RunService, logger *utils.ETLLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := defaultRunDays
		if s := r.URL.Query().Get("days"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > maxRunDays {
				writeJSON(w, logger, http.StatusBadRequest, errorResponse{Error: "days must be a whole number between 1 and 366"})
				return
			}
			days = n
		}

		list, err := runs.RecentRuns(r.Context(), days)
		if err != nil {
			logger.Error("list runs", "error", err)
			writeJSON(w, logger, http.StatusInternalServerError, errorResponse{Error: "run log unavailable"})
			return
		}
		if list == nil {
			list = []models.ETLRunLog{}
		}
		writeJSON(w, logger, http.StatusOK, RunsResponse{Days: days, Runs: list})
	}
}

// GetRunStateHandler reports the last success, last failure and current run
func GetRunStateHandler(runs RunService, logger *utils.ETLLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := runs.State(r.Context())
		if err != nil {
			logger.Error("read run state", "error", err)
			writeJSON(w, logger, http.StatusInternalServerError, errorResponse{Error: "run log unavailable"})
			return
		}
		writeJSON(w, logger, http.StatusOK, state)
	}
}

// TriggerRunHandler starts a run; progress is reported on the run feed
func TriggerRunHandler(runs RunService, logger *utils.ETLLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, err := runs.Trigger(r.Context())
		if errors.Is(err, runner.ErrRunInProgress) {
			writeJSON(w, logger, http.StatusConflict, errorResponse{Error: err.Error()})
			return
		}
		if err != nil {
			logger.Error("trigger run", "error", err)
			writeJSON(w, logger, http.StatusInternalServerError, errorResponse{Error: "could not start run"})
			return
		}
		logger.Info("run triggered via api", "run_id", runID)
		writeJSON(w, logger, http.StatusAccepted, TriggerResponse{RunID: runID})
	}
}

func writeJSON(w http.ResponseWriter, logger *utils.ETLLogger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("encode response", "error", err)
	}
}
