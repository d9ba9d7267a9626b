package api

import (
	"fmt"
	"net/http"

	"github.com/garnizeh/freelance/pkg/models"
	"github.com/garnizeh/freelance/pkg/repository"
)

type ContractsHandler struct {
	repo repository.ContractRepo
}

func NewContractsHandler(repo repository.ContractRepo) *ContractsHandler {
	return &ContractsHandler{repo: repo}
}

type contractResponse struct {
	Success  bool             `json:"success"`
	Contract *models.Contract `json:"contract"`
}

type contractsResponse struct {
	Success   bool              `json:"success"`
	Contracts []models.Contract `json:"contracts"`
}

// GetContract returns one contract the caller is a party to.
func (h *ContractsHandler) GetContract(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid contract id")
		return
	}

	c, err := h.repo.GetContractForProfile(r.Context(), id, p.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if c == nil {
		writeError(w, r, fmt.Errorf("%w: contract %d", models.ErrNotFound, id))
		return
	}

	writeJSON(w, contractResponse{Success: true, Contract: c}, http.StatusOK)
}

// ListContracts returns the caller's contracts that are not terminated.
func (h *ContractsHandler) ListContracts(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}

	cs, err := h.repo.ListActiveContracts(r.Context(), p.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cs == nil {
		cs = []models.Contract{}
	}

	writeJSON(w, contractsResponse{Success: true, Contracts: cs}, http.StatusOK)
}
