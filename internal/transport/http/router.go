package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"fge-test-platform/internal/app"
	"fge-test-platform/internal/auth"
	"fge-test-platform/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// RouterOptions toggles the optional surfaces of the API.
type RouterOptions struct {
	AllowedOrigins []string
	EnableGuest    bool
}

type handlers struct {
	quiz *app.QuizService
	auth *auth.AuthService
	opts RouterOptions
}

// NewRouter wires the REST API and the signal relay.
func NewRouter(quiz *app.QuizService, authSvc *auth.AuthService, relay *SignalRelay, opts RouterOptions) http.Handler {
	h := &handlers{quiz: quiz, auth: authSvc, opts: opts}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Post("/api/auth/guest", h.guestLogin)
	r.Group(func(r chi.Router) {
		r.Use(authSvc.Middleware)
		r.Get("/api/questions/random/{category}", h.randomQuestions)
		r.Post("/api/results", h.recordResult)
		r.Get("/api/results", h.listResults)
		if relay != nil {
			r.Get("/ws/signals", relay.ServeWS)
		}
	})
	return r
}

type envelope struct {
	Success         bool     `json:"success"`
	Message         string   `json:"message,omitempty"`
	Data            any      `json:"data,omitempty"`
	ValidCategories []string `json:"validCategories,omitempty"`
}

func (h *handlers) guestLogin(w http.ResponseWriter, r *http.Request) {
	if !h.opts.EnableGuest {
		writeJSON(w, http.StatusForbidden, envelope{Message: "guest auth disabled"})
		return
	}
	sub, tok, err := h.auth.IssueGuest()
	if err != nil {
		log.Printf("issue guest token: %v", err)
		writeJSON(w, http.StatusInternalServerError, envelope{Message: "issue token"})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]string{
		"access_token": tok,
		"subject":      sub,
	}})
}

func (h *handlers) randomQuestions(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	language := r.URL.Query().Get("language")

	questions, err := h.quiz.RandomQuestions(r.Context(), category, limit, language)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: questions})
	case errors.Is(err, domain.ErrInvalidCategory):
		writeJSON(w, http.StatusBadRequest, envelope{Message: "Invalid category", ValidCategories: app.Categories})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, envelope{Message: "No questions found for category: " + category, Data: []domain.Question{}})
	default:
		log.Printf("random questions %s: %v", category, err)
		writeJSON(w, http.StatusInternalServerError, envelope{Message: "Server error fetching questions"})
	}
}

func (h *handlers) recordResult(w http.ResponseWriter, r *http.Request) {
	var entry domain.HistoryEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "bad json"})
		return
	}
	result, err := h.quiz.RecordResult(r.Context(), auth.SubjectFromContext(r.Context()), entry)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, envelope{Success: true, Data: result})
	case errors.Is(err, domain.ErrInvalidCategory):
		writeJSON(w, http.StatusBadRequest, envelope{Message: "Invalid category", ValidCategories: app.Categories})
	default:
		log.Printf("record result: %v", err)
		writeJSON(w, http.StatusInternalServerError, envelope{Message: "Server error saving result"})
	}
}

func (h *handlers) listResults(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.quiz.Results(r.Context(), auth.SubjectFromContext(r.Context()), limit)
	if err != nil {
		log.Printf("list results: %v", err)
		writeJSON(w, http.StatusInternalServerError, envelope{Message: "Server error listing results"})
		return
	}
	if results == nil {
		results = []domain.TestResult{}
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: results})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
