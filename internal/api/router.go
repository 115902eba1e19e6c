package api

import (
	"time"

	"github.com/go-chi/chi/v5"
)

// NewRouter mounts the item, interval, and queue routes.
func NewRouter(d Deps) chi.Router {
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &Handler{sched: d.Scheduler, custom: d.CustomIntervals, now: d.Now}
	q := &QueueHandler{reviews: d.Reviews, now: d.Now}

	r := chi.NewRouter()
	r.Use(AuthMiddleware(d.AuthEnabled, d.Token))

	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.ListItems)
		r.Get("/due", h.DueItems)
		r.Post("/priority", h.SetPriority)
		r.Post("/interval", h.ChooseInterval)
		r.Post("/done", h.MarkDone)
	})

	r.Get("/intervals/preview", h.PreviewInterval)
	r.Get("/intervals/presets", h.Presets)

	if d.Reviews != nil {
		r.Get("/queue/current", q.Current)
		r.Post("/queue/advance", q.Advance)
		r.Post("/queue/refresh", q.Refresh)
	}

	if d.Events != nil {
		r.Get("/events", d.Events.ServeHTTP)
	}
	return r
}
