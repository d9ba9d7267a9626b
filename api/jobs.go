package api

import (
	"context"
	"net/http"

	"github.com/garnizeh/freelance/pkg/models"
	"github.com/garnizeh/freelance/pkg/repository"
)

// Payer is the payment engine as seen by the HTTP layer.
type Payer interface {
	PayJob(ctx context.Context, jobID int64, caller *models.Profile) (*models.Job, error)
}

type JobsHandler struct {
	repo  repository.JobRepo
	payer Payer
}

func NewJobsHandler(repo repository.JobRepo, payer Payer) *JobsHandler {
	return &JobsHandler{repo: repo, payer: payer}
}

type jobsResponse struct {
	Success bool         `json:"success"`
	Jobs    []models.Job `json:"jobs"`
}

type payResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Job     *models.Job `json:"job"`
}

func (h *JobsHandler) ListUnpaid(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}

	jobs, err := h.repo.ListUnpaidJobs(r.Context(), p.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []models.Job{}
	}

	writeJSON(w, jobsResponse{Success: true, Jobs: jobs}, http.StatusOK)
}

func (h *JobsHandler) Pay(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	jobID, ok := pathID(r, "job_id")
	if !ok {
		badRequest(w, "invalid job id")
		return
	}

	job, err := h.payer.PayJob(r.Context(), jobID, p)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, payResponse{Success: true, Message: "Job paid", Job: job}, http.StatusCreated)
}
