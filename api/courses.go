package api

import (
	"context"
	"net/http"

	"github.com/lectern/lectern/internal/log"
)

// Catalog exposes read and admin operations over the indexed courses.
type Catalog interface {
	Analytics(ctx context.Context) (int, []string, error)
	ClearAll(ctx context.Context) error
}

// CourseHandler handles course catalog endpoints.
type CourseHandler struct {
	catalog Catalog
	logger  log.Logger
}

// NewCourseHandler creates a new course handler.
func NewCourseHandler(catalog Catalog, logger log.Logger) *CourseHandler {
	return &CourseHandler{catalog: catalog, logger: logger}
}

// RegisterRoutes registers course routes on the given mux.
func (h *CourseHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/courses", h.stats)
	mux.HandleFunc("DELETE /api/courses", h.clear)
}

// CourseStatsResponse is the response body for GET /api/courses.
type CourseStatsResponse struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// stats returns the number of indexed courses and their titles.
func (h *CourseHandler) stats(w http.ResponseWriter, r *http.Request) {
	count, titles, err := h.catalog.Analytics(r.Context())
	if err != nil {
		h.logger.Error("failed to read course analytics", "error", err)
		writeError(w, http.StatusServiceUnavailable, "index_unavailable", "failed to read course analytics")
		return
	}
	if titles == nil {
		titles = []string{}
	}
	writeJSON(w, http.StatusOK, CourseStatsResponse{TotalCourses: count, CourseTitles: titles})
}

// clear removes all indexed courses and chunks.
func (h *CourseHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.ClearAll(r.Context()); err != nil {
		h.logger.Error("failed to clear index", "error", err)
		writeError(w, http.StatusServiceUnavailable, "index_unavailable", "failed to clear the index")
		return
	}
	h.logger.Info("index cleared via API")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
