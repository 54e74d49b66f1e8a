package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/quillwiki/growthtasks/internal/api"
	apimiddleware "github.com/quillwiki/growthtasks/internal/api/middleware"
)

// setupRouter configures the application router with all routes and
// middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.Trace)

	suggestionHandler := api.NewSuggestionHandler(app.taskSuggester, app.logger)
	linkHandler := api.NewLinkRecommendationHandler(
		app.recService, app.subService, app.wikiClient, app.logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/users/{userID}/suggestions", suggestionHandler.GetSuggestions)
		r.Get("/pages/{title}/link-recommendation", linkHandler.GetRecommendation)
		r.Post("/pages/{pageID}/link-recommendation/submission", linkHandler.SubmitDecision)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return r
}
