package handlers

import (
	"net/http"
	"time"

	"reelgen/internal/domain"
)

type statsView struct {
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"by_status"`
	CreatedLast24 int            `json:"created_last_24h"`
	Completed24   int            `json:"completed_last_24h"`
	OldestActive  *time.Time     `json:"oldest_active,omitempty"`
}

func newStatsView(all []*domain.Job, now time.Time) statsView {
	v := statsView{
		Total: len(all),
		ByStatus: map[string]int{
			string(domain.StatusPending):    0,
			string(domain.StatusInProgress): 0,
			string(domain.StatusCompleted):  0,
			string(domain.StatusFailed):     0,
		},
	}
	since := now.Add(-24 * time.Hour)
	for _, job := range all {
		v.ByStatus[string(job.Status)]++
		if job.CreatedAt.After(since) {
			v.CreatedLast24++
		}
		if job.Status == domain.StatusCompleted && job.CompletedAt.After(since) {
			v.Completed24++
		}
		if !job.Status.Terminal() && (v.OldestActive == nil || job.CreatedAt.Before(*v.OldestActive)) {
			created := job.CreatedAt
			v.OldestActive = &created
		}
	}
	return v
}

// VideoStats summarises the persisted jobs by status.
func (a *App) VideoStats(w http.ResponseWriter, r *http.Request) {
	all, err := a.Jobs.List(r.Context())
	if err != nil {
		a.fail(w, r, err, nil)
		return
	}
	a.json(w, http.StatusOK, newStatsView(all, time.Now()))
}
