package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/sheetgrader/internal/engine"
	"github.com/pavelanni/sheetgrader/internal/extract"
	"github.com/pavelanni/sheetgrader/internal/model"
	"github.com/pavelanni/sheetgrader/internal/store"
)

// 10 MB is plenty for a scanned page.
const maxUploadBytes = 10 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	extractor *extract.Client
	engine    *engine.Engine
	config    model.ServiceConfig
}

// New creates a new Handler. extractor may be nil when no vision
// endpoint is configured; page upload then returns 503.
func New(s *store.Store, ex *extract.Client, eng *engine.Engine, cfg model.ServiceConfig) *Handler {
	return &Handler{store: s, extractor: ex, engine: eng, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealthz)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Post("/api/papers", h.handleCreatePaper)
		r.Get("/api/papers", h.handleListPapers)
		r.Get("/api/papers/{paperID}", h.handleGetPaper)
		r.Post("/api/papers/{paperID}/submissions", h.handleCreateSubmission)
		r.Get("/api/papers/{paperID}/submissions", h.handleListSubmissions)
		r.Get("/api/papers/{paperID}/export", h.handleExportPaper)

		r.Get("/api/submissions/{submissionID}", h.handleGetSubmission)
		r.Post("/api/submissions/{submissionID}/answers", h.handleUploadAnswers)
		r.Post("/api/submissions/{submissionID}/pages", h.handleUploadPage)
		r.Post("/api/submissions/{submissionID}/grade", h.handleGrade)
		r.Get("/api/submissions/{submissionID}/report", h.handleReport)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/api/admin/users", h.handleListUsers)
			r.Post("/api/admin/users", h.handleCreateUser)
			r.Post("/api/admin/users/{userID}/toggle", h.handleToggleUserActive)
		})
	})
}

// BasePathMiddleware stores the configured URL prefix in the request
// context for link building.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createPaperRequest struct {
	Name    string               `json:"name"`
	Subject string               `json:"subject"`
	Format  model.QuestionFormat `json:"format"`
	Mode    model.EvalMode       `json:"mode"`
	Keys    json.RawMessage      `json:"keys"`
}

func (h *Handler) handleCreatePaper(w http.ResponseWriter, r *http.Request) {
	var req createPaperRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("paper name is required"))
		return
	}
	if req.Format == "" {
		req.Format = model.FormatMultipleChoice
	}
	if req.Mode == "" {
		req.Mode = h.config.Mode
	}

	keys, err := model.ParseQuestionKeys(req.Keys)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse answer keys: %w", err))
		return
	}
	if len(keys) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("at least one answer key is required"))
		return
	}

	paperID, err := h.store.CreatePaper(model.Paper{
		Name:    req.Name,
		Subject: req.Subject,
		Format:  req.Format,
		Mode:    req.Mode,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := h.store.InsertQuestionKeys(paperID, keys); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	slog.Info("created paper", "id", paperID, "name", req.Name, "questions", len(keys))
	respondJSON(w, http.StatusCreated, map[string]any{"id": paperID, "questions": len(keys)})
}

func (h *Handler) handleListPapers(w http.ResponseWriter, r *http.Request) {
	papers, err := h.store.ListPapers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, papers)
}

func (h *Handler) handleGetPaper(w http.ResponseWriter, r *http.Request) {
	paperID, ok := idParam(w, r, "paperID")
	if !ok {
		return
	}
	paper, err := h.store.GetPaper(paperID)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("paper %d not found", paperID))
		return
	}
	keys, err := h.store.GetQuestionKeys(paperID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"paper": paper, "keys": keys})
}

type createSubmissionRequest struct {
	StudentName string `json:"student_name"`
	RollNumber  string `json:"roll_number"`
}

func (h *Handler) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	paperID, ok := idParam(w, r, "paperID")
	if !ok {
		return
	}
	if _, err := h.store.GetPaper(paperID); err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("paper %d not found", paperID))
		return
	}

	var req createSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	subID, err := h.store.CreateSubmission(model.Submission{
		PaperID:     paperID,
		StudentName: req.StudentName,
		RollNumber:  req.RollNumber,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]int64{"id": subID})
}

func (h *Handler) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	paperID, ok := idParam(w, r, "paperID")
	if !ok {
		return
	}
	subs, err := h.store.ListSubmissions(paperID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, subs)
}

func (h *Handler) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	subID, ok := idParam(w, r, "submissionID")
	if !ok {
		return
	}
	view, err := h.store.GetSubmissionView(subID)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("submission %d not found", subID))
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// handleUploadAnswers accepts pre-extracted answers as JSON, for OMR
// pipelines and manual correction flows that bypass the vision model.
func (h *Handler) handleUploadAnswers(w http.ResponseWriter, r *http.Request) {
	subID, ok := idParam(w, r, "submissionID")
	if !ok {
		return
	}
	if _, err := h.store.GetSubmission(subID); err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("submission %d not found", subID))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	answers, err := model.ParseExtractedAnswers(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse answers: %w", err))
		return
	}

	if err := h.store.ReplaceExtractedAnswers(subID, answers); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := h.store.UpdateSubmissionStatus(subID, model.StatusExtracted); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"answers": len(answers)})
}

func (h *Handler) handleUploadPage(w http.ResponseWriter, r *http.Request) {
	if h.extractor == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("no vision endpoint configured"))
		return
	}
	subID, ok := idParam(w, r, "submissionID")
	if !ok {
		return
	}
	sub, err := h.store.GetSubmission(subID)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("submission %d not found", subID))
		return
	}
	paper, err := h.store.GetPaper(sub.PaperID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
		return
	}
	file, header, err := r.FormFile("page")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing page file: %w", err))
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	answers, raw, err := h.extractor.ExtractPage(r.Context(), image, header.Header.Get("Content-Type"), paper.Format)
	if err != nil {
		slog.Error("page extraction failed", "submission", subID, "error", err)
		writeError(w, http.StatusBadGateway, fmt.Errorf("extract page: %w", err))
		return
	}
	slog.Debug("extracted page", "submission", subID, "answers", len(answers), "raw_len", len(raw))

	if err := h.store.ReplaceExtractedAnswers(subID, answers); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := h.store.UpdateSubmissionStatus(subID, model.StatusExtracted); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"answers": len(answers)})
}

func (h *Handler) handleGrade(w http.ResponseWriter, r *http.Request) {
	subID, ok := idParam(w, r, "submissionID")
	if !ok {
		return
	}
	sub, err := h.store.GetSubmission(subID)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("submission %d not found", subID))
		return
	}
	paper, err := h.store.GetPaper(sub.PaperID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	keys, err := h.store.GetQuestionKeys(sub.PaperID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	answers, err := h.store.GetExtractedAnswers(subID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	result := h.engine.Evaluate(keys, answers, paper.Format, paper.Mode)
	if err := h.store.SaveEvaluation(subID, result); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := h.store.UpdateSubmissionStatus(subID, model.StatusGraded); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	slog.Info("graded submission", "id", subID, "score", result.TotalScore, "grade", result.Grade)
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleExportPaper(w http.ResponseWriter, r *http.Request) {
	paperID, ok := idParam(w, r, "paperID")
	if !ok {
		return
	}
	export, err := h.store.ExportPaper(paperID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, export)
}

// handleReport renders a plain-text grading report in the configured
// language.
func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	subID, ok := idParam(w, r, "submissionID")
	if !ok {
		return
	}
	view, err := h.store.GetSubmissionView(subID)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("submission %d not found", subID))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, buildReport(r.Context(), view))
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid %s", strings.TrimSuffix(name, "ID")+" ID"))
		return 0, false
	}
	return id, true
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "error", err)
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
