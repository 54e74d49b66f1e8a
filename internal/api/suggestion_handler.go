package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quillwiki/growthtasks/internal/api/shared"
	"github.com/quillwiki/growthtasks/internal/domain"
	"github.com/quillwiki/growthtasks/internal/platform/logger"
	"github.com/quillwiki/growthtasks/internal/suggester"
)

// maxSuggestionLimit caps how many tasks one request may ask for.
const maxSuggestionLimit = 250

// TaskResponse represents one suggested task.
type TaskResponse struct {
	TaskType          string               `json:"task_type"`
	Difficulty        string               `json:"difficulty"`
	Title             string               `json:"title"`
	Topics            []TopicScoreResponse `json:"topics,omitempty"`
	SurfacedTemplates []string             `json:"surfaced_templates,omitempty"`
}

// TopicScoreResponse is one matched topic with its relevance score.
type TopicScoreResponse struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// QualityGateResponse is the state of one per-task-type daily limit.
type QualityGateResponse struct {
	DailyCount     int  `json:"daily_count"`
	MaxTasksPerDay int  `json:"max_tasks_per_day"`
	Exceeded       bool `json:"exceeded"`
}

// TaskSetResponse represents the response data for a suggestion lookup.
type TaskSetResponse struct {
	Tasks        []TaskResponse                 `json:"tasks"`
	TotalCount   int                            `json:"total_count"`
	Offset       int                            `json:"offset"`
	QualityGates map[string]QualityGateResponse `json:"quality_gates,omitempty"`
}

// SuggestionHandler handles task suggestion HTTP requests.
type SuggestionHandler struct {
	suggester suggester.TaskSuggester
	logger    *slog.Logger
}

// NewSuggestionHandler creates a new SuggestionHandler.
func NewSuggestionHandler(s suggester.TaskSuggester, log *slog.Logger) *SuggestionHandler {
	if s == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("suggester cannot be nil for SuggestionHandler")
	}
	if log == nil {
		log = slog.Default()
	}

	return &SuggestionHandler{
		suggester: s,
		logger:    log.With(slog.String("component", "suggestion_handler")),
	}
}

// GetSuggestions handles GET /users/{userID}/suggestions requests.
func (h *SuggestionHandler) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid user ID")
		return
	}

	req := suggester.Request{
		UserID:    userID,
		TaskTypes: splitParam(r.URL.Query().Get("taskTypes")),
		Topics:    splitParam(r.URL.Query().Get("topics")),
		Limit:     10,
		Debug:     r.URL.Query().Get("debug") == "1",
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxSuggestionLimit {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit")
			return
		}
		req.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid offset")
			return
		}
		req.Offset = offset
	}

	taskSet, err := h.suggester.Suggest(r.Context(), req)
	if err != nil {
		log.Error("suggestion lookup failed",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()))
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, toTaskSetResponse(taskSet))
}

func toTaskSetResponse(set *domain.TaskSet) TaskSetResponse {
	resp := TaskSetResponse{
		Tasks:      make([]TaskResponse, 0, len(set.Tasks)),
		TotalCount: set.TotalCount,
		Offset:     set.Offset,
	}
	for _, t := range set.Tasks {
		tr := TaskResponse{
			TaskType:          t.TaskType.ID,
			Difficulty:        string(t.TaskType.Difficulty),
			Title:             t.Title,
			SurfacedTemplates: t.SurfacedTemplates,
		}
		for _, ts := range t.MatchedTopics {
			tr.Topics = append(tr.Topics, TopicScoreResponse{ID: ts.TopicID, Score: ts.Score})
		}
		resp.Tasks = append(resp.Tasks, tr)
	}
	for id, gate := range set.QualityGateConfig {
		if resp.QualityGates == nil {
			resp.QualityGates = make(map[string]QualityGateResponse, len(set.QualityGateConfig))
		}
		resp.QualityGates[id] = QualityGateResponse{
			DailyCount:     gate.DailyCount,
			MaxTasksPerDay: gate.MaxTasksPerDay,
			Exceeded:       gate.Exceeded,
		}
	}
	return resp
}

// splitParam splits a pipe-separated query parameter, returning nil for an
// empty value.
func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, "|")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
