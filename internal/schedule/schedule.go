// internal/schedule/schedule.go
package schedule

import (
	"net/http"

	"clubbackend/internal/data"
	"clubbackend/internal/middleware"
)

// Handlers serves the academic calendar lookup.
type Handlers struct {
	Repo *data.ScheduleRepository
}

func NewHandlers(repo *data.ScheduleRepository) *Handlers {
	return &Handlers{Repo: repo}
}

// List handles GET /api/schedule: every term as a bare array.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.Repo.List()
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, schedules)
}
