package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// handleGetPropertyHistory returns recorded values of a property, newest
// first. History outlives the tree, so the property need not be discovered.
//
// Query parameters:
//   - limit: maximum entries (default 50, max 200)
//   - since: RFC3339 timestamp; only later entries are returned
func (s *Server) handleGetPropertyHistory(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")
	nodeID := chi.URLParam(r, "node")
	propertyID := chi.URLParam(r, "property")

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	since, err := parseSinceParam(r.URL.Query().Get("since"))
	if err != nil {
		writeBadRequest(w, "invalid since timestamp")
		return
	}

	if s.history == nil {
		writeServiceUnavailable(w, "property history unavailable")
		return
	}

	entries, err := s.history.List(r.Context(), deviceID, nodeID, propertyID, limit)
	if err != nil {
		s.logger.Error("loading property history failed", "device", deviceID, "node", nodeID, "property", propertyID, "error", err)
		writeInternalError(w, "failed to load property history")
		return
	}

	if !since.IsZero() {
		filtered := entries[:0]
		for _, e := range entries {
			if e.RecordedAt.After(since) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device":   deviceID,
		"node":     nodeID,
		"property": propertyID,
		"history":  entries,
		"count":    len(entries),
	})
}

// parseHistoryLimit parses the limit query parameter.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}
	return limit, nil
}

// parseSinceParam parses since as RFC3339 or RFC3339Nano.
func parseSinceParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}
