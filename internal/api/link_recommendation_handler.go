package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/quillwiki/growthtasks/internal/api/shared"
	"github.com/quillwiki/growthtasks/internal/domain"
	"github.com/quillwiki/growthtasks/internal/platform/logger"
	"github.com/quillwiki/growthtasks/internal/service"
	"github.com/quillwiki/growthtasks/internal/wiki"
)

// LinkRecommendationResponse represents a stored recommendation.
type LinkRecommendationResponse struct {
	PageID     int64                    `json:"page_id"`
	RevisionID int64                    `json:"revision_id"`
	Links      []RecommendedLinkResponse `json:"links"`
}

// RecommendedLinkResponse is one suggested link.
type RecommendedLinkResponse struct {
	LinkTarget     string  `json:"link_target"`
	TargetPageID   int64   `json:"target_page_id"`
	Score          float64 `json:"score"`
	Text           string  `json:"link_text"`
	WikitextOffset int     `json:"wikitext_offset"`
	Index          int     `json:"link_index"`
}

// SubmissionRequest is the POST body for recording a user's decision.
type SubmissionRequest struct {
	UserID            int64   `json:"user_id" validate:"required,gt=0"`
	BaseRevisionID    int64   `json:"base_revision_id" validate:"required,gt=0"`
	EditRevisionID    *int64  `json:"edit_revision_id,omitempty" validate:"omitempty,gt=0"`
	AcceptedTargetIDs []int64 `json:"accepted_target_ids"`
	RejectedTargetIDs []int64 `json:"rejected_target_ids"`
	SkippedTargetIDs  []int64 `json:"skipped_target_ids"`
}

// SubmissionResponse reports a recorded submission.
type SubmissionResponse struct {
	Success  bool     `json:"success"`
	Warnings []string `json:"warnings,omitempty"`
}

// LinkRecommendationHandler handles link-recommendation HTTP requests.
type LinkRecommendationHandler struct {
	recService *service.LinkRecommendationService
	subService *service.SubmissionService
	pages      wiki.PageStore
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewLinkRecommendationHandler creates a new LinkRecommendationHandler.
func NewLinkRecommendationHandler(
	recService *service.LinkRecommendationService,
	subService *service.SubmissionService,
	pages wiki.PageStore,
	log *slog.Logger,
) *LinkRecommendationHandler {
	if recService == nil || subService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("services cannot be nil for LinkRecommendationHandler")
	}
	if log == nil {
		log = slog.Default()
	}

	return &LinkRecommendationHandler{
		recService: recService,
		subService: subService,
		pages:      pages,
		validate:   validator.New(),
		logger:     log.With(slog.String("component", "link_recommendation_handler")),
	}
}

// GetRecommendation handles GET /pages/{title}/link-recommendation
// requests. Responds 204 when the page has no stored recommendation.
func (h *LinkRecommendationHandler) GetRecommendation(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	title := chi.URLParam(r, "title")
	if title == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing page title")
		return
	}

	rec, err := h.recService.GetForTitle(r.Context(), title)
	if err != nil {
		log.Error("failed to load link recommendation",
			slog.String("title", title),
			slog.String("error", err.Error()))
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}
	if rec == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, toRecommendationResponse(rec))
}

// SubmitDecision handles
// POST /pages/{pageID}/link-recommendation/submission requests.
func (h *LinkRecommendationHandler) SubmitDecision(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	pageID, err := strconv.ParseInt(chi.URLParam(r, "pageID"), 10, 64)
	if err != nil || pageID <= 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid page ID")
		return
	}

	var req SubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request data")
		return
	}

	page, err := h.pages.GetPageByID(r.Context(), pageID)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusNotFound, "Page not found")
		return
	}

	if err := h.subService.Validate(r.Context(), page, req.UserID); err != nil {
		log.Warn("submission pre-check failed",
			slog.Int64("page_id", pageID),
			slog.Int64("user_id", req.UserID),
			slog.String("error", err.Error()))
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	result, err := h.subService.Handle(
		r.Context(), page, req.UserID, req.BaseRevisionID, req.EditRevisionID,
		service.SubmissionData{
			AcceptedTargetIDs: req.AcceptedTargetIDs,
			RejectedTargetIDs: req.RejectedTargetIDs,
			SkippedTargetIDs:  req.SkippedTargetIDs,
		})
	if err != nil {
		log.Warn("submission rejected",
			slog.Int64("page_id", pageID),
			slog.Int64("user_id", req.UserID),
			slog.String("error", err.Error()))
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, SubmissionResponse{
		Success:  true,
		Warnings: result.Warnings,
	})
}

func toRecommendationResponse(rec *domain.LinkRecommendation) LinkRecommendationResponse {
	resp := LinkRecommendationResponse{
		PageID:     rec.PageID,
		RevisionID: rec.RevisionID,
		Links:      make([]RecommendedLinkResponse, len(rec.Links)),
	}
	for i, link := range rec.Links {
		resp.Links[i] = RecommendedLinkResponse{
			LinkTarget:     link.LinkTarget,
			TargetPageID:   link.TargetPageID,
			Score:          link.Score,
			Text:           link.Text,
			WikitextOffset: link.WikitextOffset,
			Index:          link.Index,
		}
	}
	return resp
}
