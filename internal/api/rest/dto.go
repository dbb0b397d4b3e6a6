package rest

import (
	"time"
)

type SubmitRunRequest struct {
	Job    string            `json:"job" validate:"required"`
	Params map[string]string `json:"params,omitempty"`
	Inputs []string          `json:"inputs" validate:"required,min=1,dive,required"`
}

type SubmitRunResponse struct {
	RunID       string    `json:"run_id"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
	NumFiles    int       `json:"num_files"`
	Links       Links     `json:"links"`
}

type Links struct {
	Self string `json:"self"`
}

type GetRunResponse struct {
	RunID      string            `json:"run_id"`
	Job        string            `json:"job"`
	Params     map[string]string `json:"params,omitempty"`
	Inputs     []string          `json:"inputs"`
	Files      []string          `json:"files"`
	Status     string            `json:"status"`
	Progress   []PhaseProgress   `json:"progress"`
	Timestamps TimestampsInfo    `json:"timestamps"`
	Output     string            `json:"output"`
	Errors     []ErrorInfo       `json:"errors"`
}

// PhaseProgress is reported for every phase whose barrier has been crossed.
type PhaseProgress struct {
	Phase  string `json:"phase"`
	Tasks  int    `json:"tasks"`
	Failed int    `json:"failed"`
}

type TimestampsInfo struct {
	Submitted time.Time  `json:"submitted"`
	Started   *time.Time `json:"started"`
	Completed *time.Time `json:"completed"`
}

type ErrorInfo struct {
	Phase     string    `json:"phase,omitempty"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

type ListRunsResponse struct {
	Runs       []RunSummary `json:"runs"`
	Total      int          `json:"total"`
	Limit      int          `json:"limit"`
	Offset     int          `json:"offset"`
	NextOffset *int         `json:"next_offset,omitempty"`
}

type RunSummary struct {
	RunID       string     `json:"run_id"`
	Job         string     `json:"job"`
	Status      string     `json:"status"`
	SubmittedAt time.Time  `json:"submitted_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type ListJobsResponse struct {
	Jobs []JobInfo `json:"jobs"`
}

type JobInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
