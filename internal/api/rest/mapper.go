package rest

import (
	"fmt"

	"github.com/nemanja-m/parmr/internal/runs/core"
	"github.com/nemanja-m/parmr/internal/runs/service"
	mrcore "github.com/nemanja-m/parmr/pkg/core"
)

func (req *SubmitRunRequest) ToSubmitRequest() service.SubmitRequest {
	return service.SubmitRequest{
		Job:    req.Job,
		Params: req.Params,
		Inputs: req.Inputs,
	}
}

func ToSubmitRunResponse(run *core.Run) SubmitRunResponse {
	return SubmitRunResponse{
		RunID:       run.ID.String(),
		Status:      string(run.Status),
		SubmittedAt: run.SubmittedAt,
		NumFiles:    len(run.Files),
		Links: Links{
			Self: fmt.Sprintf("/api/runs/%s", run.ID),
		},
	}
}

func ToGetRunResponse(run *core.Run) GetRunResponse {
	progress := make([]PhaseProgress, 0, len(run.Progress))
	for _, phase := range mrcore.Phases {
		p, ok := run.Progress[phase]
		if !ok {
			continue
		}
		progress = append(progress, PhaseProgress{
			Phase:  string(phase),
			Tasks:  p.Tasks,
			Failed: p.Failed,
		})
	}

	errors := make([]ErrorInfo, 0, len(run.Errors))
	for _, e := range run.Errors {
		errors = append(errors, ErrorInfo{
			Phase:     string(e.Phase),
			Error:     e.Error,
			Timestamp: e.Timestamp,
		})
	}

	return GetRunResponse{
		RunID:    run.ID.String(),
		Job:      run.Job,
		Params:   run.Params,
		Inputs:   run.Inputs,
		Files:    run.Files,
		Status:   string(run.Status),
		Progress: progress,
		Timestamps: TimestampsInfo{
			Submitted: run.SubmittedAt,
			Started:   run.StartedAt,
			Completed: run.CompletedAt,
		},
		Output: run.Output,
		Errors: errors,
	}
}

func ToRunSummary(run *core.Run) RunSummary {
	return RunSummary{
		RunID:       run.ID.String(),
		Job:         run.Job,
		Status:      string(run.Status),
		SubmittedAt: run.SubmittedAt,
		CompletedAt: run.CompletedAt,
	}
}
