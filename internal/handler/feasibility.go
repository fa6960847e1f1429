package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/brokeshield/brokeshield/internal/feasibility"
	"github.com/brokeshield/brokeshield/internal/model"
)

// FeasibilityHandler classifies a proposed plan without persisting anything.
type FeasibilityHandler struct {
	base
	now func() time.Time
}

func NewFeasibilityHandler(log *slog.Logger) *FeasibilityHandler {
	return &FeasibilityHandler{
		base: base{log: log},
		now:  time.Now,
	}
}

type classifyRequest struct {
	AmountRequired model.Money `json:"amount_required"`
	Deadline       string      `json:"deadline"`
	MonthlyIncome  model.Money `json:"monthly_income"`
}

type classifyResponse struct {
	Classification feasibility.Classification `json:"classification"`
	Plan           feasibility.Plan           `json:"plan"`
}

func (h *FeasibilityHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	deadline, err := model.ParseDeadline(req.Deadline)
	if err != nil {
		writeError(w, http.StatusBadRequest, "deadline must be a YYYY-MM-DD date")
		return
	}

	in := feasibility.Input{
		AmountRequired: req.AmountRequired.Decimal(),
		MonthlyIncome:  req.MonthlyIncome.Decimal(),
		Deadline:       deadline,
		AsOf:           h.now().UTC(),
	}

	classification, err := feasibility.Classify(in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := feasibility.PlanDailyBudget(in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, classifyResponse{
		Classification: classification,
		Plan:           plan,
	})
}
