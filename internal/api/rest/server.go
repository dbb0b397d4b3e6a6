package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nemanja-m/parmr/internal/runs/core"
	"github.com/nemanja-m/parmr/internal/runs/service"
	"github.com/nemanja-m/parmr/internal/shared/config"
	"github.com/nemanja-m/parmr/internal/shared/logging"
	mrcore "github.com/nemanja-m/parmr/pkg/core"
	"github.com/nemanja-m/parmr/pkg/jobs"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

type API struct {
	runService service.RunService
	validate   *validator.Validate
	logger     logging.Logger
}

func NewAPI(runService service.RunService, logger logging.Logger) *API {
	return &API{
		runService: runService,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logger,
	}
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/runs", a.submitRun)
	mux.HandleFunc("GET /api/runs", a.listRuns)
	mux.HandleFunc("GET /api/runs/{id}", a.getRun)
	mux.HandleFunc("GET /api/jobs", a.listJobs)
}

func (a *API) submitRun(w http.ResponseWriter, r *http.Request) {
	var req SubmitRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := a.validate.Struct(&req); err != nil {
		a.respondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	run, err := a.runService.SubmitRun(req.ToSubmitRequest())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownJob):
			a.respondError(w, http.StatusNotFound, "job not found", err.Error())
		case errors.Is(err, service.ErrInvalidParams), errors.Is(err, service.ErrNoInputFiles):
			a.respondError(w, http.StatusBadRequest, "invalid run", err.Error())
		case errors.Is(err, service.ErrInputOutsideRoot):
			a.respondError(w, http.StatusBadRequest, "input outside of input root", err.Error())
		case errors.Is(err, service.ErrShuttingDown):
			a.respondError(w, http.StatusServiceUnavailable, "shutting down", err.Error())
		default:
			a.logger.Error("Failed to submit run", "job", req.Job, "error", err)
			a.respondError(w, http.StatusInternalServerError, "failed to submit run", err.Error())
		}
		return
	}

	a.respondJSON(w, http.StatusCreated, ToSubmitRunResponse(run))
}

// getRun handles GET /api/runs/{id}
func (a *API) getRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid run ID", err.Error())
		return
	}

	run, err := a.runService.GetRun(id)
	if err != nil {
		if errors.Is(err, core.ErrRunNotFound) {
			a.respondError(w, http.StatusNotFound, "run not found", "")
			return
		}
		a.respondError(w, http.StatusInternalServerError, "failed to get run", err.Error())
		return
	}

	a.respondJSON(w, http.StatusOK, ToGetRunResponse(run))
}

// listRuns handles GET /api/runs with filters and pagination
func (a *API) listRuns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := core.RunFilter{Limit: defaultLimit}
	if statusStr := query.Get("status"); statusStr != "" {
		status, ok := parseStatus(statusStr)
		if !ok {
			a.respondError(w, http.StatusBadRequest, "invalid status", statusStr)
			return
		}
		filter.Status = &status
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			filter.Limit = min(l, maxLimit)
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			filter.Offset = o
		}
	}

	runs, total, err := a.runService.GetRuns(filter)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, "failed to list runs", err.Error())
		return
	}

	summaries := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, ToRunSummary(run))
	}

	var nextOffset *int
	if end := filter.Offset + len(runs); end < total {
		nextOffset = &end
	}

	a.respondJSON(w, http.StatusOK, ListRunsResponse{
		Runs:       summaries,
		Total:      total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
		NextOffset: nextOffset,
	})
}

// listJobs handles GET /api/jobs
func (a *API) listJobs(w http.ResponseWriter, _ *http.Request) {
	names := jobs.List()
	infos := make([]JobInfo, 0, len(names))
	for _, name := range names {
		job, err := jobs.Get(name)
		if err != nil {
			continue
		}
		infos = append(infos, JobInfo{Name: name, Description: job.Describe()})
	}
	a.respondJSON(w, http.StatusOK, ListJobsResponse{Jobs: infos})
}

func parseStatus(s string) (mrcore.RunStatus, bool) {
	status := mrcore.RunStatus(strings.ToUpper(s))
	switch status {
	case mrcore.RunStatusCreated, mrcore.RunStatusReading, mrcore.RunStatusMapping,
		mrcore.RunStatusShuffling, mrcore.RunStatusReducing, mrcore.RunStatusWriting,
		mrcore.RunStatusCompleted, mrcore.RunStatusFailed:
		return status, true
	}
	return "", false
}

func (a *API) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger.Warn("Failed to encode response", "error", err)
	}
}

func (a *API) respondError(w http.ResponseWriter, statusCode int, error string, message string) {
	resp := ErrorResponse{
		Error:   error,
		Message: message,
		Code:    statusCode,
	}
	a.respondJSON(w, statusCode, resp)
}

func NewServer(cfg config.RESTConfig, runService service.RunService, logger logging.Logger) *http.Server {
	api := NewAPI(runService, logger)
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	handler := ChainMiddleware(
		mux,
		RequestIDMiddleware,
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
	)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
