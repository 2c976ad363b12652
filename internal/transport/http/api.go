package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/notify"
)

var validate = validator.New()

// API exposes the quiz engine over JSON/HTTP.
type API struct {
	service *app.QuizService
	logger  *slog.Logger
}

func NewAPI(service *app.QuizService, logger *slog.Logger) *API {
	return &API{service: service, logger: logger}
}

// NewRouter wires the REST API, the participant websocket and health check.
func NewRouter(service *app.QuizService, tree notify.Tree, logger *slog.Logger) http.Handler {
	api := NewAPI(service, logger)
	ws := NewWSHandler(service, tree, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(logger.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)

	r.Route("/questions", func(r chi.Router) {
		r.Post("/", api.CreateQuestion)
		r.Get("/{id}", api.GetQuestion)
	})
	r.Route("/question-sets", func(r chi.Router) {
		r.Post("/", api.CreateQuestionSet)
		r.Get("/{id}", api.GetQuestionSet)
	})
	r.Route("/quizzes", func(r chi.Router) {
		r.Post("/", api.CreateQuiz)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", api.GetQuiz)
			r.Post("/launch", api.LaunchQuiz)
			r.Post("/advance", api.AdvanceQuiz)
			r.Post("/participants", api.RegisterParticipant)
			r.Get("/question", api.CurrentQuestion)
			r.Post("/answers", api.SubmitAnswer)
			r.Get("/report", api.Report)
		})
	})
	return r
}

type CreateQuestionRequest struct {
	Text    string   `json:"text" validate:"required"`
	Answers []string `json:"answers" validate:"required,min=1,dive,required"`
	Correct int      `json:"correct" validate:"required"`
}

type CreateQuestionSetRequest struct {
	QuestionIDs []int64 `json:"questionIds" validate:"required,min=1"`
}

type CreateQuizRequest struct {
	SetID  int64 `json:"setId" validate:"required"`
	Points []int `json:"points" validate:"required,min=1,dive,gte=0,lte=2147483647"`
}

type RegisterRequest struct {
	ParticipantID *int64 `json:"participantId" validate:"required"`
}

type AnswerRequest struct {
	ParticipantID *int64 `json:"participantId" validate:"required"`
	Choice        int    `json:"choice" validate:"required"`
}

type IDResponse struct {
	ID int64 `json:"id"`
}

type LaunchResponse struct {
	QuizID int64        `json:"quizId"`
	State  domain.State `json:"state"`
}

type AdvanceResponse struct {
	QuizID int64                `json:"quizId"`
	Result domain.AdvanceResult `json:"result"`
}

type RegisterResponse struct {
	QuizID       int64   `json:"quizId"`
	Participants []int64 `json:"participants"`
}

type AnswerResponse struct {
	QuizID  int64 `json:"quizId"`
	Correct bool  `json:"correct"`
}

// ErrorResponse carries a domain.Kind name and a human readable message.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (a *API) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req CreateQuestionRequest
	if !a.decode(w, r, &req) {
		return
	}
	id, err := a.service.CreateQuestion(r.Context(), req.Text, req.Answers, req.Correct)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, IDResponse{ID: id})
}

func (a *API) GetQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	view, err := a.service.GetQuestion(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) CreateQuestionSet(w http.ResponseWriter, r *http.Request) {
	var req CreateQuestionSetRequest
	if !a.decode(w, r, &req) {
		return
	}
	id, err := a.service.CreateQuestionSet(r.Context(), req.QuestionIDs)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, IDResponse{ID: id})
}

func (a *API) GetQuestionSet(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	set, err := a.service.GetQuestionSet(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (a *API) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	var req CreateQuizRequest
	if !a.decode(w, r, &req) {
		return
	}
	quiz, err := a.service.CreateQuiz(r.Context(), req.SetID, req.Points)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (a *API) GetQuiz(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	quiz, err := a.service.QuizState(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (a *API) LaunchQuiz(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	if err := a.service.LaunchQuiz(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LaunchResponse{QuizID: id, State: domain.StateOngoing})
}

func (a *API) AdvanceQuiz(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	result, err := a.service.AdvanceQuiz(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AdvanceResponse{QuizID: id, Result: result})
}

func (a *API) RegisterParticipant(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	var req RegisterRequest
	if !a.decode(w, r, &req) {
		return
	}
	participants, err := a.service.RegisterParticipant(r.Context(), id, *req.ParticipantID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, RegisterResponse{QuizID: id, Participants: participants})
}

func (a *API) CurrentQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	participantID, err := strconv.ParseInt(r.URL.Query().Get("participantId"), 10, 64)
	if err != nil {
		a.writeError(w, r, domain.InvalidArgument("participantId query parameter must be an integer"))
		return
	}
	view, err := a.service.CurrentQuestion(r.Context(), id, participantID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	var req AnswerRequest
	if !a.decode(w, r, &req) {
		return
	}
	correct, err := a.service.SubmitAnswer(r.Context(), id, *req.ParticipantID, req.Choice)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, AnswerResponse{QuizID: id, Correct: correct})
}

func (a *API) Report(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	report, err := a.service.Report(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		a.writeError(w, r, domain.InvalidArgument("invalid JSON body: %v", err))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		a.writeError(w, r, domain.InvalidArgument("%v", err))
		return false
	}
	return true
}

func (a *API) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		a.writeError(w, r, domain.InvalidArgument("id %q is not an integer", raw))
		return 0, false
	}
	return id, true
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	message := err.Error()
	if kind == domain.KindInternal {
		a.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		message = "internal error"
	}
	var e *domain.Error
	if errors.As(err, &e) {
		message = e.Message
	}
	writeJSON(w, StatusFor(kind), ErrorResponse{Kind: kind.String(), Message: message})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidState, domain.KindConflict:
		return http.StatusConflict
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
