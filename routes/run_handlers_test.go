package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/LilVoxy/delivery_analytics/ETL/models"
	"github.com/LilVoxy/delivery_analytics/ETL/runner"
	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

type fakeRuns struct {
	days       int
	runs       []models.ETLRunLog
	state      *models.ETLStateMonitor
	triggerID  string
	triggerErr error
	err        error
}

func (f *fakeRuns) RecentRuns(_ context.Context, days int) ([]models.ETLRunLog, error) {
	f.days = days
	return f.runs, f.err
}

func (f *fakeRuns) State(context.Context) (*models.ETLStateMonitor, error) {
	return f.state, f.err
}

func (f *fakeRuns) Trigger(context.Context) (string, error) {
	return f.triggerID, f.triggerErr
}

func newRouter(runs RunService) *mux.Router {
	router := mux.NewRouter()
	feed := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) }
	SetupRoutes(router, runs, feed, utils.NopLogger())
	return router
}

func serve(router http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestGetRuns(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantDays   int
	}{
		{name: "default window", target: "/api/runs", wantStatus: http.StatusOK, wantDays: 7},
		{name: "explicit window", target: "/api/runs?days=30", wantStatus: http.StatusOK, wantDays: 30},
		{name: "zero days", target: "/api/runs?days=0", wantStatus: http.StatusBadRequest},
		{name: "not a number", target: "/api/runs?days=week", wantStatus: http.StatusBadRequest},
		{name: "too far back", target: "/api/runs?days=400", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := &fakeRuns{runs: []models.ETLRunLog{{RunID: "run-1", Status: models.RunStatusSuccess}}}
			rec := serve(newRouter(runs), http.MethodGet, tt.target)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body RunsResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if runs.days != tt.wantDays || body.Days != tt.wantDays {
				t.Errorf("days = %d (service %d), want %d", body.Days, runs.days, tt.wantDays)
			}
			if len(body.Runs) != 1 || body.Runs[0].RunID != "run-1" {
				t.Errorf("runs = %+v", body.Runs)
			}
		})
	}
}

func TestGetRuns_EmptyListIsArray(t *testing.T) {
	rec := serve(newRouter(&fakeRuns{}), http.MethodGet, "/api/runs")
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatal(err)
	}
	if string(raw["runs"]) != "[]" {
		t.Errorf("runs = %s, want []", raw["runs"])
	}
}

func TestGetRunState(t *testing.T) {
	runs := &fakeRuns{state: &models.ETLStateMonitor{TotalSuccessfulRuns: 3, TotalFactsPublished: 42}}
	rec := serve(newRouter(runs), http.MethodGet, "/api/runs/state")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var state models.ETLStateMonitor
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatal(err)
	}
	if state.TotalSuccessfulRuns != 3 || state.TotalFactsPublished != 42 {
		t.Errorf("state = %+v", state)
	}

	runs.err = errors.New("connection refused")
	if rec := serve(newRouter(runs), http.MethodGet, "/api/runs/state"); rec.Code != http.StatusInternalServerError {
		t.Errorf("status on store failure = %d", rec.Code)
	}
}

func TestTriggerRun(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "started", wantStatus: http.StatusAccepted},
		{name: "already running", err: runner.ErrRunInProgress, wantStatus: http.StatusConflict},
		{name: "run log down", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := &fakeRuns{triggerID: "run-9", triggerErr: tt.err}
			rec := serve(newRouter(runs), http.MethodPost, "/api/runs")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusAccepted {
				return
			}
			var body TriggerResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.RunID != "run-9" {
				t.Errorf("run_id = %q", body.RunID)
			}
		})
	}
}

func TestRoutes_CORSAndFeed(t *testing.T) {
	router := newRouter(&fakeRuns{})

	rec := serve(router, http.MethodOptions, "/api/runs")
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %v", rec.Code, rec.Header())
	}
	if rec := serve(router, http.MethodGet, "/ws/runs"); rec.Code != http.StatusTeapot {
		t.Errorf("feed route status = %d", rec.Code)
	}
	if rec := serve(router, http.MethodDelete, "/api/runs"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE status = %d, want 405", rec.Code)
	}
}
