package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/garnizeh/freelance/pkg/models"
	"github.com/qri-io/jsonschema"
	"github.com/shopspring/decimal"
)

// Depositor is the deposit engine as seen by the HTTP layer.
type Depositor interface {
	Deposit(ctx context.Context, targetID int64, caller *models.Profile, amount decimal.Decimal) (*models.Profile, error)
}

const depositSchemaJSON = `{
	"type": "object",
	"required": ["amount"],
	"properties": {
		"amount": {"type": "number"}
	},
	"additionalProperties": false
}`

// maxDepositBody bounds the request body read by Deposit.
const maxDepositBody = 1 << 12

type BalancesHandler struct {
	depositor Depositor
	schema    *jsonschema.Schema
}

func NewBalancesHandler(d Depositor) *BalancesHandler {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(depositSchemaJSON), rs); err != nil {
		panic(fmt.Sprintf("deposit schema: %v", err))
	}
	return &BalancesHandler{depositor: d, schema: rs}
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type depositResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Client  *models.Profile `json:"client"`
}

func (h *BalancesHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}
	targetID, ok := pathID(r, "userId")
	if !ok {
		badRequest(w, "invalid user id")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxDepositBody))
	if err != nil {
		badRequest(w, "invalid request")
		return
	}
	if !json.Valid(body) {
		badRequest(w, "invalid json")
		return
	}

	keyErrs, err := h.schema.ValidateBytes(r.Context(), body)
	if err != nil {
		badRequest(w, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if len(keyErrs) > 0 {
		msgs := make([]string, 0, len(keyErrs))
		for _, ke := range keyErrs {
			msgs = append(msgs, ke.Error())
		}
		badRequest(w, strings.Join(msgs, "; "))
		return
	}

	var req depositRequest
	if err := json.Unmarshal(body, &req); err != nil {
		badRequest(w, "invalid amount")
		return
	}

	client, err := h.depositor.Deposit(r.Context(), targetID, p, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, depositResponse{Success: true, Message: "Cash deposited", Client: client}, http.StatusCreated)
}
