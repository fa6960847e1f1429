package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brokeshield/brokeshield/internal/ctxkeys"
	"github.com/brokeshield/brokeshield/internal/db/dbtest"
	"github.com/brokeshield/brokeshield/internal/model"
	"github.com/brokeshield/brokeshield/internal/service"
)

var (
	alice = model.Identity{UserID: "alice", Email: "alice@example.com"}
	bob   = model.Identity{UserID: "bob", Email: "bob@example.com"}
)

type fixture struct {
	goals         *GoalHandler
	contributions *ContributionHandler
	feasibility   *FeasibilityHandler
}

func setup(t *testing.T) *fixture {
	t.Helper()
	database := dbtest.Open(t)
	log := slog.New(slog.DiscardHandler)

	users := service.NewUserService(database, log)
	for _, id := range []model.Identity{alice, bob} {
		if err := users.Resolve(context.Background(), id); err != nil {
			t.Fatalf("Resolve(%s): %v", id.UserID, err)
		}
	}

	return &fixture{
		goals:         NewGoalHandler(service.NewGoalService(database, log), log),
		contributions: NewContributionHandler(service.NewLedgerService(database, log), log),
		feasibility:   NewFeasibilityHandler(log),
	}
}

func deadlineIn(days int) string {
	return time.Now().UTC().AddDate(0, 0, days).Format(time.DateOnly)
}

func call(t *testing.T, h http.HandlerFunc, identity model.Identity, method, target, id string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, target, &buf)
	if id != "" {
		req.SetPathValue("id", id)
	}
	if identity.Valid() {
		req = req.WithContext(ctxkeys.WithIdentity(req.Context(), identity))
	}

	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func (f *fixture) createGoal(t *testing.T, identity model.Identity, description string, required, saved string) *model.Goal {
	t.Helper()
	body := fmt.Sprintf(`{"description":%q,"amount_required":%s,"amount_saved":%s,"monthly_income":3000,"deadline":%q}`,
		description, required, saved, deadlineIn(10))
	rec := call(t, f.goals.Create, identity, http.MethodPost, "/api/goals", "", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	return decodeBody[*model.Goal](t, rec)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad", service.ErrValidation), http.StatusBadRequest},
		{service.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: %w", service.ErrValidation, service.ErrNotFound), http.StatusNotFound},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrConflict, http.StatusConflict},
		{service.ErrExpired, http.StatusUnprocessableEntity},
		{service.ErrInsufficientProgress, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: disk", service.ErrPersistence), http.StatusInternalServerError},
		{errors.New("surprise"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		got, message := statusFor(tt.err)
		if got != tt.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
		if got == http.StatusInternalServerError && message != "internal error" {
			t.Fatalf("internal errors must not leak details, got %q", message)
		}
	}
}

func TestCreateGoal(t *testing.T) {
	f := setup(t)

	goal := f.createGoal(t, alice, "bike", "500.00", "120.50")
	if goal.Status != model.GoalStatusPending || goal.AmountSaved != model.MustMoney("120.50") {
		t.Fatalf("goal = %+v", goal)
	}

	rec := call(t, f.goals.Create, alice, http.MethodPost, "/api/goals", "",
		fmt.Sprintf(`{"description":"bike","amount_required":10,"deadline":%q}`, deadlineIn(3)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate open goal status = %d, want 409", rec.Code)
	}
}

func TestCreateGoalRejectsBadInput(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"description":`},
		{"unknown field", `{"description":"bike","colour":"red"}`},
		{"bad deadline", `{"description":"bike","amount_required":10,"deadline":"next week"}`},
		{"sub-cent amount", fmt.Sprintf(`{"description":"bike","amount_required":10.001,"deadline":%q}`, deadlineIn(3))},
		{"amount beyond range", fmt.Sprintf(`{"description":"bike","amount_required":100000000000000000000,"deadline":%q}`, deadlineIn(3))},
		{"income beyond range", fmt.Sprintf(`{"description":"bike","amount_required":10,"monthly_income":1e25,"deadline":%q}`, deadlineIn(3))},
		{"past deadline", fmt.Sprintf(`{"description":"bike","amount_required":10,"deadline":%q}`, deadlineIn(-1))},
		{"empty description", fmt.Sprintf(`{"description":"  ","amount_required":10,"deadline":%q}`, deadlineIn(3))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(t, f.goals.Create, alice, http.MethodPost, "/api/goals", "", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGoalVisibility(t *testing.T) {
	f := setup(t)
	goal := f.createGoal(t, alice, "bike", "500", "0")

	rec := call(t, f.goals.Goal, alice, http.MethodGet, "/api/goals/"+goal.ID, goal.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner status = %d: %s", rec.Code, rec.Body.String())
	}
	projection := decodeBody[service.GoalProjection](t, rec)
	if projection.Goal.ID != goal.ID || projection.Remaining.TimeUp {
		t.Fatalf("projection = %+v", projection)
	}

	rec = call(t, f.goals.Goal, bob, http.MethodGet, "/api/goals/"+goal.ID, goal.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("stranger status = %d, want 404", rec.Code)
	}

	rec = call(t, f.goals.Goal, alice, http.MethodGet, "/api/goals/missing", "missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing goal status = %d, want 404", rec.Code)
	}
}

func TestListGoals(t *testing.T) {
	f := setup(t)
	f.createGoal(t, alice, "bike", "500", "0")
	f.createGoal(t, alice, "laptop", "900", "0")
	f.createGoal(t, bob, "car", "9000", "0")

	rec := call(t, f.goals.Goals, alice, http.MethodGet, "/api/goals?filter=open&limit=1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	page := decodeBody[model.GoalPage](t, rec)
	if page.Total != 2 || len(page.Items) != 1 || page.Limit != 1 {
		t.Fatalf("page = %+v", page)
	}

	rec = call(t, f.goals.Goals, alice, http.MethodGet, "/api/goals?filter=someday", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown filter status = %d, want 400", rec.Code)
	}
}

func TestUpdateTermsAndDelete(t *testing.T) {
	f := setup(t)
	goal := f.createGoal(t, alice, "bike", "500", "0")

	rec := call(t, f.goals.UpdateTerms, alice, http.MethodPatch, "/api/goals/"+goal.ID, goal.ID,
		`{"amount_required":650.25}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}
	updated := decodeBody[*model.Goal](t, rec)
	if updated.AmountRequired != model.MustMoney("650.25") || !updated.Edited {
		t.Fatalf("updated = %+v", updated)
	}

	rec = call(t, f.goals.UpdateTerms, alice, http.MethodPatch, "/api/goals/"+goal.ID, goal.ID,
		`{"deadline":"2001-01-01"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("past deadline status = %d, want 400", rec.Code)
	}

	rec = call(t, f.goals.Delete, bob, http.MethodDelete, "/api/goals/"+goal.ID, goal.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("stranger delete status = %d, want 404", rec.Code)
	}

	rec = call(t, f.goals.Delete, alice, http.MethodDelete, "/api/goals/"+goal.ID, goal.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
}

func TestMarkComplete(t *testing.T) {
	f := setup(t)
	goal := f.createGoal(t, alice, "bike", "500", "100")

	rec := call(t, f.goals.MarkComplete, alice, http.MethodPost, "/api/goals/"+goal.ID+"/complete", goal.ID, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("insufficient progress status = %d, want 422", rec.Code)
	}

	rec = call(t, f.contributions.Append, alice, http.MethodPost, "/api/goals/"+goal.ID+"/contributions", goal.ID,
		`{"amount":400}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("append status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = call(t, f.goals.MarkComplete, alice, http.MethodPost, "/api/goals/"+goal.ID+"/complete", goal.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark complete status = %d: %s", rec.Code, rec.Body.String())
	}
	if !decodeBody[*model.Goal](t, rec).Complete {
		t.Fatal("goal should be marked complete")
	}
}

func TestContributions(t *testing.T) {
	f := setup(t)
	goal := f.createGoal(t, alice, "bike", "500", "20")

	for _, amount := range []string{"10.25", "30"} {
		rec := call(t, f.contributions.Append, alice, http.MethodPost, "/api/goals/"+goal.ID+"/contributions", goal.ID,
			fmt.Sprintf(`{"amount":%s}`, amount))
		if rec.Code != http.StatusCreated {
			t.Fatalf("append %s status = %d: %s", amount, rec.Code, rec.Body.String())
		}
	}

	rec := call(t, f.contributions.Append, alice, http.MethodPost, "/api/goals/"+goal.ID+"/contributions", goal.ID,
		`{"amount":0}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("zero amount status = %d, want 400", rec.Code)
	}

	rec = call(t, f.contributions.Append, alice, http.MethodPost, "/api/goals/missing/contributions", "missing",
		`{"amount":5}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing goal status = %d, want 404", rec.Code)
	}

	rec = call(t, f.contributions.List, alice, http.MethodGet, "/api/goals/"+goal.ID+"/contributions", goal.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d: %s", rec.Code, rec.Body.String())
	}
	page := decodeBody[model.ContributionPage](t, rec)
	if page.Total != 3 || page.GoalTotal != model.MustMoney("60.25") {
		t.Fatalf("page = %+v", page)
	}
	if page.Items[0].Amount != model.MustMoney("30") {
		t.Fatalf("newest contribution first, got %s", page.Items[0].Amount)
	}

	rec = call(t, f.contributions.List, bob, http.MethodGet, "/api/goals/"+goal.ID+"/contributions", goal.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("stranger list status = %d, want 404", rec.Code)
	}
}

func TestExportContributions(t *testing.T) {
	f := setup(t)
	goal := f.createGoal(t, alice, "bike", "500", "20")

	rec := call(t, f.contributions.Export, alice, http.MethodGet, "/api/goals/"+goal.ID+"/contributions.csv", goal.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "id,goal_id,contributor_id,amount,created_at\n") ||
		!strings.Contains(rec.Body.String(), ",alice,20.00,") {
		t.Fatalf("body = %q", rec.Body.String())
	}

	rec = call(t, f.contributions.Export, bob, http.MethodGet, "/api/goals/"+goal.ID+"/contributions.csv", goal.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("stranger export status = %d, want 404", rec.Code)
	}
}

func TestClassify(t *testing.T) {
	f := setup(t)
	f.feasibility.now = func() time.Time { return time.Date(2026, 10, 22, 9, 0, 0, 0, time.UTC) }

	rec := call(t, f.feasibility.Classify, model.Identity{}, http.MethodPost, "/api/feasibility", "",
		`{"amount_required":1000,"monthly_income":3000,"deadline":"2026-11-01"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var got struct {
		Classification string          `json:"classification"`
		Plan           json.RawMessage `json:"plan"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Classification == "" || len(got.Plan) == 0 {
		t.Fatalf("response = %s", rec.Body.String())
	}

	rec = call(t, f.feasibility.Classify, model.Identity{}, http.MethodPost, "/api/feasibility", "",
		`{"amount_required":1000,"monthly_income":3000,"deadline":"2026-10-01"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("past deadline status = %d, want 400", rec.Code)
	}
}
