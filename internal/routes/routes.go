package routes

import (
	"net/http"

	"github.com/brokeshield/brokeshield/internal/app"
	"github.com/brokeshield/brokeshield/internal/handler"
	"github.com/brokeshield/brokeshield/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	health := handler.NewHealthHandler(app.DB)
	goal := handler.NewGoalHandler(app.GoalService, app.Log)
	contribution := handler.NewContributionHandler(app.LedgerService, app.Log)
	feasibility := handler.NewFeasibilityHandler(app.Log)

	// Write endpoints share one budget per caller
	limit := app.RateLimiter.Limit(app.Log)
	auth := middleware.RequireIdentity

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("POST /api/feasibility", limit(feasibility.Classify))

	// ============================================================================
	// PROTECTED ROUTES (/api/*)
	// ============================================================================

	// Goals
	mux.HandleFunc("GET /api/goals", auth(goal.Goals))
	mux.HandleFunc("POST /api/goals", auth(limit(goal.Create)))
	mux.HandleFunc("GET /api/goals/{id}", auth(goal.Goal))
	mux.HandleFunc("PATCH /api/goals/{id}", auth(limit(goal.UpdateTerms)))
	mux.HandleFunc("DELETE /api/goals/{id}", auth(limit(goal.Delete)))
	mux.HandleFunc("POST /api/goals/{id}/complete", auth(limit(goal.MarkComplete)))

	// Contributions
	mux.HandleFunc("GET /api/goals/{id}/contributions", auth(contribution.List))
	mux.HandleFunc("GET /api/goals/{id}/contributions.csv", auth(contribution.Export))
	mux.HandleFunc("POST /api/goals/{id}/contributions", auth(limit(contribution.Append)))

	// Global middleware - executed in order (top to bottom)
	handler := middleware.Chain(
		mux,
		middleware.Recover(app.Log),
		middleware.RequestLogging(app.Log),
		middleware.Authenticate(app.AuthService, app.UserService, app.Log),
	)

	return handler
}
