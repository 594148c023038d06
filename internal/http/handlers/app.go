package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"reelgen/internal/domain"
	"reelgen/internal/jobs"
)

// VideoJobs is the lifecycle surface the handlers need; *jobs.Controller
// satisfies it.
type VideoJobs interface {
	Create(ctx context.Context, req jobs.CreateRequest) (*domain.Job, error)
	Refresh(ctx context.Context, job *domain.Job) (domain.Status, error)
	Get(ctx context.Context, key string) (*domain.Job, error)
	List(ctx context.Context) ([]*domain.Job, error)
	Limits() domain.Limits
}

// Defaults fill in create parameters the caller leaves out.
type Defaults struct {
	Duration   int
	FPS        int
	Resolution string
}

type App struct {
	Jobs     VideoJobs
	Defaults Defaults
}

func NewApp(videoJobs VideoJobs, defaults Defaults) *App {
	return &App{Jobs: videoJobs, Defaults: defaults}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Job     any    `json:"job,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, msg string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: errCode, Message: msg}})
}

// fail maps lifecycle errors onto HTTP responses. job, when present, is the
// state the failed operation left behind.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error, job *domain.Job) {
	code, errCode := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, domain.ErrInvalidConfig):
		code, errCode = http.StatusBadRequest, "invalid_config"
	case errors.Is(err, domain.ErrNotFound):
		code, errCode = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrSubmission):
		code, errCode = http.StatusBadGateway, "submission_failed"
	case errors.Is(err, domain.ErrStatusCheck):
		code, errCode = http.StatusBadGateway, "status_check_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code, errCode = http.StatusServiceUnavailable, "unavailable"
	}

	log := zerolog.Ctx(r.Context())
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", code).Msg("http: request failed")
	} else {
		log.Debug().Err(err).Int("status", code).Msg("http: request rejected")
	}

	body := errorBody{Error: errorDetail{Code: errCode, Message: err.Error()}}
	if job != nil {
		body.Error.Job = newJobView(job)
	}
	a.json(w, code, body)
}
