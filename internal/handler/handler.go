package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/omrgrader/internal/grading"
	"github.com/pavelanni/omrgrader/internal/i18n"
	"github.com/pavelanni/omrgrader/internal/keyfile"
	"github.com/pavelanni/omrgrader/internal/llm"
	"github.com/pavelanni/omrgrader/internal/model"
	"github.com/pavelanni/omrgrader/internal/report"
	"github.com/pavelanni/omrgrader/internal/review"
	"github.com/pavelanni/omrgrader/internal/store"
)

const maxBodyBytes = 4 << 20

// insightsTimeout bounds one LLM round trip.
const insightsTimeout = 90 * time.Second

var errBadRequest = errors.New("bad request")

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	reviews *review.Manager
	llm     *llm.Client
}

// New creates a new Handler. A nil LLM client disables the insights endpoint.
func New(m *review.Manager, l *llm.Client) *Handler {
	return &Handler{reviews: m, llm: l}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Get("/answers", h.handleAnswers)
			r.Put("/answers/{question}", h.handleOverride)
			r.Get("/summary", h.handleSummary)
			r.Get("/overrides", h.handleOverrides)
			r.Post("/finalize", h.handleFinalize)
			r.Get("/export", h.handleExport)
			r.Get("/insights", h.handleInsights)
		})
	})
}

type createRequest struct {
	Exam      model.ExamInfo        `json:"exam"`
	Alphabet  []string              `json:"alphabet,omitempty" validate:"omitempty,unique,dive,required,max=8"`
	Key       []keyfile.KeyQuestion `json:"key" validate:"required,dive"`
	Responses map[int]string        `json:"responses" validate:"dive,keys,gt=0,endkeys"`
}

type overrideRequest struct {
	Selection grading.Option `json:"selection"`
	Reviewer  string         `json:"reviewer" validate:"max=100"`
	Comment   string         `json:"comment" validate:"max=500"`
}

type answersResponse struct {
	Query   grading.Query          `json:"query"`
	Answers []grading.AnswerRecord `json:"answers"`
	Summary grading.Summary        `json:"summary"`
}

type summaryLabels struct {
	Score      string `json:"score"`
	Verdict    string `json:"verdict"`
	Correct    string `json:"correct"`
	Incorrect  string `json:"incorrect"`
	Unanswered string `json:"unanswered"`
}

type summaryResponse struct {
	grading.Summary
	Shares map[grading.Status]float64 `json:"shares"`
	Labels summaryLabels              `json:"labels"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := keyfile.Validate(req); err != nil {
		h.fail(w, r, err)
		return
	}

	kf := keyfile.KeyFile{Version: 1, Exam: req.Exam, Alphabet: req.Alphabet, Questions: req.Key}
	key, err := kf.Entries()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	alphabet, err := kf.OptionAlphabet()
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	responses, err := keyfile.ResponseFile{Version: 1, Responses: req.Responses}.Selections()
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	view, err := h.reviews.Create(review.CreateRequest{
		Info:      req.Exam,
		Alphabet:  alphabet,
		Key:       key,
		Responses: responses,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", path.Join(r.URL.Path, view.Session.ID))
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.reviews.List()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.reviews.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleAnswers(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	status, err := grading.ParseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: status %q: %v", errBadRequest, r.URL.Query().Get("status"), err))
		return
	}
	q := grading.Query{Term: r.URL.Query().Get("q"), Status: status}

	snap, err := h.reviews.Query(sessionID, q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answersResponse{Query: q, Answers: snap.Answers, Summary: snap.Scoped})
}

func (h *Handler) handleOverride(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	raw := chi.URLParam(r, "question")
	question, err := strconv.Atoi(raw)
	if err != nil {
		h.fail(w, r, fmt.Errorf("%w: invalid question number %q", errBadRequest, raw))
		return
	}

	var req overrideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := keyfile.Validate(req); err != nil {
		h.fail(w, r, err)
		return
	}

	rec, err := h.reviews.Override(sessionID, model.OverrideRequest{
		QuestionNumber: question,
		Selection:      req.Selection,
		Reviewer:       req.Reviewer,
		Comment:        req.Comment,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.reviews.Summary(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := r.Context()
	writeJSON(w, http.StatusOK, summaryResponse{
		Summary: sum,
		Shares: map[grading.Status]float64{
			grading.StatusCorrect:    sum.Share(grading.StatusCorrect),
			grading.StatusIncorrect:  sum.Share(grading.StatusIncorrect),
			grading.StatusUnanswered: sum.Share(grading.StatusUnanswered),
		},
		Labels: summaryLabels{
			Score:      i18n.ScoreLine(ctx, sum.Tally),
			Verdict:    i18n.Verdict(ctx, sum.Verdict),
			Correct:    i18n.Status(ctx, grading.StatusCorrect),
			Incorrect:  i18n.Status(ctx, grading.StatusIncorrect),
			Unanswered: i18n.Status(ctx, grading.StatusUnanswered),
		},
	})
}

func (h *Handler) handleOverrides(w http.ResponseWriter, r *http.Request) {
	events, err := h.reviews.Overrides(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	sess, err := h.reviews.Finalize(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "xlsx" {
		h.fail(w, r, fmt.Errorf("%w: unknown export format %q", errBadRequest, format))
		return
	}

	exp, err := h.reviews.Export(sessionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	filename := "session-" + sessionID + "." + format
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if format == "json" {
		writeJSON(w, http.StatusOK, exp)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := report.WriteXLSX(r.Context(), w, exp); err != nil {
		slog.Error("write xlsx", "session_id", sessionID, "error", err)
	}
}

func (h *Handler) handleInsights(w http.ResponseWriter, r *http.Request) {
	if h.llm == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "insights are disabled: no LLM configured"})
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	snap, err := h.reviews.Query(sessionID, grading.Query{})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), insightsTimeout)
	defer cancel()
	insights, err := h.llm.Insights(ctx, snap.Session.Info, snap.Summary, llm.Missed(snap.Answers))
	if err != nil {
		slog.Error("LLM insights failed", "session_id", sessionID, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "insights unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

// fail maps an error to a status code and writes it as JSON.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		slog.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	var (
		malformed  *grading.MalformedKeyError
		selection  *grading.InvalidSelectionError
		unknown    *grading.UnknownQuestionError
		validation *keyfile.ValidationError
		tooLarge   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &malformed), errors.As(err, &selection):
		return http.StatusUnprocessableEntity
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &validation),
		errors.Is(err, keyfile.ErrDuplicateQuestion),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.As(err, &unknown), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, review.ErrSessionFinalized):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: decode body: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
