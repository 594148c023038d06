package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"reelgen/internal/domain"
	"reelgen/internal/http/handlers"
	"reelgen/internal/jobs"
)

type emptyJobs struct{}

func (emptyJobs) Create(context.Context, jobs.CreateRequest) (*domain.Job, error) {
	return nil, &domain.VideoGenerationError{Op: "create", Err: domain.ErrInvalidConfig}
}

func (emptyJobs) Refresh(_ context.Context, job *domain.Job) (domain.Status, error) {
	return job.Status, nil
}

func (emptyJobs) Get(_ context.Context, key string) (*domain.Job, error) {
	return nil, &domain.VideoGenerationError{Op: "get", Key: key, Err: domain.ErrNotFound}
}

func (emptyJobs) List(context.Context) ([]*domain.Job, error) { return nil, nil }

func (emptyJobs) Limits() domain.Limits { return domain.DefaultLimits() }

func TestRouterRoutes(t *testing.T) {
	router := NewRouter(handlers.NewApp(emptyJobs{}, handlers.Defaults{}), Options{
		Logger:          zerolog.Nop(),
		CreatePerMinute: 1,
	})

	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/v1/healthz", "", http.StatusOK},
		{http.MethodGet, "/v1/config", "", http.StatusOK},
		{http.MethodGet, "/v1/stats", "", http.StatusOK},
		{http.MethodGet, "/v1/openapi.json", "", http.StatusOK},
		{http.MethodGet, "/v1/docs", "", http.StatusOK},
		{http.MethodGet, "/v1/videos", "", http.StatusOK},
		{http.MethodGet, "/v1/videos/job_20240501_103015", "", http.StatusNotFound},
		{http.MethodPost, "/v1/videos/job_20240501_103015/refresh", "", http.StatusNotFound},
		{http.MethodPost, "/v1/videos", `{"prompt":"x"}`, http.StatusBadRequest},
		{http.MethodPost, "/v1/videos", `{"prompt":"x"}`, http.StatusTooManyRequests},
		{http.MethodDelete, "/v1/videos", "", http.StatusMethodNotAllowed},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != tc.want {
			t.Fatalf("%s %s: status %d, want %d", tc.method, tc.path, rr.Code, tc.want)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s %s: missing request id", tc.method, tc.path)
		}
	}
}
