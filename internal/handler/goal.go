package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/brokeshield/brokeshield/internal/ctxkeys"
	"github.com/brokeshield/brokeshield/internal/model"
	"github.com/brokeshield/brokeshield/internal/service"
)

type GoalHandler struct {
	base
	goalService *service.GoalService
	now         func() time.Time
}

func NewGoalHandler(goalService *service.GoalService, log *slog.Logger) *GoalHandler {
	return &GoalHandler{
		base:        base{log: log},
		goalService: goalService,
		now:         time.Now,
	}
}

type createGoalRequest struct {
	GroupID        string      `json:"group_id"`
	Description    string      `json:"description"`
	AmountRequired model.Money `json:"amount_required"`
	Deadline       string      `json:"deadline"`
	MonthlyIncome  model.Money `json:"monthly_income"`
	AmountSaved    model.Money `json:"amount_saved"`
}

type updateTermsRequest struct {
	Description    *string      `json:"description"`
	AmountRequired *model.Money `json:"amount_required"`
	Deadline       *string      `json:"deadline"`
	MonthlyIncome  *model.Money `json:"monthly_income"`
}

func (h *GoalHandler) Goals(w http.ResponseWriter, r *http.Request) {
	identity := ctxkeys.Identity(r.Context())

	page, err := h.goalService.Goals(r.Context(), identity, service.GoalQuery{
		GroupID: r.URL.Query().Get("group_id"),
		Filter:  r.URL.Query().Get("filter"),
		Page:    queryInt(r, "page"),
		Limit:   queryInt(r, "limit"),
	})
	if err != nil {
		h.fail(w, r, "list goals", err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := ctxkeys.Identity(r.Context())

	var req createGoalRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	deadline, err := model.ParseDeadline(req.Deadline)
	if err != nil {
		writeError(w, http.StatusBadRequest, "deadline must be a YYYY-MM-DD date")
		return
	}

	goal, err := h.goalService.Create(r.Context(), identity, service.CreateGoalInput{
		GroupID:        req.GroupID,
		Description:    req.Description,
		AmountRequired: req.AmountRequired,
		Deadline:       deadline,
		MonthlyIncome:  req.MonthlyIncome,
		AmountSaved:    req.AmountSaved,
	})
	if err != nil {
		h.fail(w, r, "create goal", err)
		return
	}

	writeJSON(w, http.StatusCreated, goal)
}

// Goal returns the goal with its time remaining and savings projection.
func (h *GoalHandler) Goal(w http.ResponseWriter, r *http.Request) {
	identity := ctxkeys.Identity(r.Context())
	goalID := r.PathValue("id")

	projection, err := h.goalService.Projection(r.Context(), identity, goalID, h.now().UTC())
	if err != nil {
		h.fail(w, r, "load goal", err)
		return
	}

	writeJSON(w, http.StatusOK, projection)
}

func (h *GoalHandler) UpdateTerms(w http.ResponseWriter, r *http.Request) {
	identity := ctxkeys.Identity(r.Context())
	goalID := r.PathValue("id")

	var req updateTermsRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	in := service.UpdateTermsInput{
		Description:    req.Description,
		AmountRequired: req.AmountRequired,
		MonthlyIncome:  req.MonthlyIncome,
	}
	if req.Deadline != nil {
		deadline, err := model.ParseDeadline(*req.Deadline)
		if err != nil {
			writeError(w, http.StatusBadRequest, "deadline must be a YYYY-MM-DD date")
			return
		}
		in.Deadline = &deadline
	}

	goal, err := h.goalService.UpdateTerms(r.Context(), identity, goalID, in)
	if err != nil {
		h.fail(w, r, "update goal", err)
		return
	}

	writeJSON(w, http.StatusOK, goal)
}

func (h *GoalHandler) MarkComplete(w http.ResponseWriter, r *http.Request) {
	identity := ctxkeys.Identity(r.Context())
	goalID := r.PathValue("id")

	goal, err := h.goalService.MarkComplete(r.Context(), identity, goalID, h.now().UTC())
	if err != nil {
		h.fail(w, r, "mark goal complete", err)
		return
	}

	writeJSON(w, http.StatusOK, goal)
}

func (h *GoalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := ctxkeys.Identity(r.Context())
	goalID := r.PathValue("id")

	err := h.goalService.Delete(r.Context(), identity, goalID)
	if err != nil {
		h.fail(w, r, "delete goal", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
