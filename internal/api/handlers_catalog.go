package api

import (
	"net/http"
	"time"

	"labsched/internal/models"
)

func (s *HTTPServer) handleListLabs(w http.ResponseWriter, r *http.Request) {
	labs, err := s.catalog.GetActiveLabs(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"labs": labs})
}

func (s *HTTPServer) handleCreateLab(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var lab models.Lab
	if err := decodeJSON(r, &lab); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.catalog.CreateLab(r.Context(), claims.UserID, &lab); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"lab": lab})
}

func (s *HTTPServer) handleDeactivateLab(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	labID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid lab id")
		return
	}

	if err := s.catalog.DeactivateLab(r.Context(), claims.UserID, labID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": labID, "is_active": false})
}

func (s *HTTPServer) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.catalog.GetActiveCourses(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"courses": courses})
}

func (s *HTTPServer) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var course models.Course
	if err := decodeJSON(r, &course); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.catalog.CreateCourse(r.Context(), claims.UserID, &course); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"course": course})
}

func (s *HTTPServer) handleDeactivateCourse(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	courseID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid course id")
		return
	}

	if err := s.catalog.DeactivateCourse(r.Context(), claims.UserID, courseID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": courseID, "is_active": false})
}

func (s *HTTPServer) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.catalog.GetDashboardStats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *HTTPServer) handleUsageReport(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims.Role != models.RoleAdmin {
		writeError(w, http.StatusForbidden, "admin role required")
		return
	}

	from, to, err := parseWindow(r, 30*24*time.Hour)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.reports.BuildUsageReport(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "xlsx" {
		path, err := s.reports.ExportUsageReport(r.Context(), s.cfg.Exports.Path, from, to)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"report": report, "file": path})
		return
	}
	writeJSON(w, http.StatusOK, report)
}
