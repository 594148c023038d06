package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VideoConfig exposes the accepted parameter sets and the defaults.
func (a *App) VideoConfig(w http.ResponseWriter, r *http.Request) {
	limits := a.Jobs.Limits()
	a.json(w, http.StatusOK, map[string]any{
		"min_duration":       limits.MinDuration,
		"max_duration":       limits.MaxDuration,
		"fps":                limits.FPS,
		"resolutions":        limits.Resolutions,
		"default_duration":   a.Defaults.Duration,
		"default_fps":        a.Defaults.FPS,
		"default_resolution": a.Defaults.Resolution,
	})
}
