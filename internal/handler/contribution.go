package handler

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/brokeshield/brokeshield/internal/ctxkeys"
	"github.com/brokeshield/brokeshield/internal/model"
	"github.com/brokeshield/brokeshield/internal/service"
)

type ContributionHandler struct {
	base
	ledgerService *service.LedgerService
}

func NewContributionHandler(ledgerService *service.LedgerService, log *slog.Logger) *ContributionHandler {
	return &ContributionHandler{
		base:          base{log: log},
		ledgerService: ledgerService,
	}
}

type appendContributionRequest struct {
	ContributorID string      `json:"contributor_id"`
	Amount        model.Money `json:"amount"`
}

func (h *ContributionHandler) Append(w http.ResponseWriter, r *http.Request) {
	identity := ctxkeys.Identity(r.Context())
	goalID := r.PathValue("id")

	var req appendContributionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	contribution, err := h.ledgerService.Append(r.Context(), identity, goalID, req.ContributorID, req.Amount)
	if err != nil {
		h.fail(w, r, "append contribution", err)
		return
	}

	writeJSON(w, http.StatusCreated, contribution)
}

func (h *ContributionHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := ctxkeys.Identity(r.Context())
	goalID := r.PathValue("id")

	page, err := h.ledgerService.List(r.Context(), identity, goalID, queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		h.fail(w, r, "list contributions", err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// Export downloads the goal's ledger as CSV.
func (h *ContributionHandler) Export(w http.ResponseWriter, r *http.Request) {
	identity := ctxkeys.Identity(r.Context())
	goalID := r.PathValue("id")

	var buf bytes.Buffer
	if _, err := h.ledgerService.Export(r.Context(), identity, goalID, &buf); err != nil {
		h.fail(w, r, "export contributions", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="ledger-`+goalID+`.csv"`)
	_, _ = buf.WriteTo(w)
}
