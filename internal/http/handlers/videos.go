package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"reelgen/internal/domain"
	"reelgen/internal/jobs"
)

type videoCreateRequest struct {
	Prompt     string `json:"prompt"`
	Duration   *int   `json:"duration"`
	FPS        *int   `json:"fps"`
	Resolution string `json:"resolution"`
	Seed       *int   `json:"seed"`
}

type configView struct {
	Duration   int    `json:"duration"`
	FPS        int    `json:"fps"`
	Resolution string `json:"resolution"`
	Seed       int    `json:"seed"`
}

type jobView struct {
	Key           string     `json:"key"`
	Prompt        string     `json:"prompt"`
	Config        configView `json:"config"`
	InvocationARN string     `json:"invocation_arn,omitempty"`
	InvocationID  string     `json:"invocation_id,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	OutputPath    string     `json:"output_path,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
}

func newJobView(job *domain.Job) jobView {
	v := jobView{
		Key:    job.Key(),
		Prompt: job.Prompt,
		Config: configView{
			Duration:   job.Config.Duration,
			FPS:        job.Config.FPS,
			Resolution: job.Config.Resolution,
			Seed:       job.Config.Seed,
		},
		InvocationARN: job.InvocationARN,
		InvocationID:  job.InvocationID(),
		Status:        string(job.Status),
		CreatedAt:     job.CreatedAt,
		OutputPath:    job.OutputPath,
		ErrorMessage:  job.ErrorMessage,
	}
	if !job.CompletedAt.IsZero() {
		completed := job.CompletedAt
		v.CompletedAt = &completed
	}
	return v
}

// VideosCreate submits a new generation job.
func (a *App) VideosCreate(w http.ResponseWriter, r *http.Request) {
	var req videoCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	create := jobs.CreateRequest{
		Prompt:     req.Prompt,
		Duration:   a.Defaults.Duration,
		FPS:        a.Defaults.FPS,
		Resolution: a.Defaults.Resolution,
		Seed:       req.Seed,
	}
	if req.Duration != nil {
		create.Duration = *req.Duration
	}
	if req.FPS != nil {
		create.FPS = *req.FPS
	}
	if req.Resolution != "" {
		create.Resolution = req.Resolution
	}

	job, err := a.Jobs.Create(r.Context(), create)
	if err != nil {
		a.fail(w, r, err, job)
		return
	}
	zerolog.Ctx(r.Context()).Info().Str("job_key", job.Key()).Msg("http: video job created")
	a.json(w, http.StatusCreated, newJobView(job))
}

// VideosList returns the job history, newest first. ?limit=N caps the
// number of items.
func (a *App) VideosList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	all, err := a.Jobs.List(r.Context())
	if err != nil {
		a.fail(w, r, err, nil)
		return
	}
	total := len(all)
	if limit > 0 {
		all, _ = jobs.SplitRecent(all, limit)
	}
	items := make([]jobView, 0, len(all))
	for _, job := range all {
		items = append(items, newJobView(job))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

// VideoGet returns one job as persisted.
func (a *App) VideoGet(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		a.fail(w, r, err, nil)
		return
	}
	a.json(w, http.StatusOK, newJobView(job))
}

// VideoRefresh reconciles one job with the generation service.
func (a *App) VideoRefresh(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		a.fail(w, r, err, nil)
		return
	}
	if _, err := a.Jobs.Refresh(r.Context(), job); err != nil {
		a.fail(w, r, err, job)
		return
	}
	a.json(w, http.StatusOK, newJobView(job))
}
