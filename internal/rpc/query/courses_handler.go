package query

import (
	"encoding/json"
	"net/http"

	"github.com/courselens/courselens/internal/rpc"
)

// CoursesHandler serves catalog analytics as JSON.
type CoursesHandler struct {
	Runner *Runner
}

// ServeHTTP renders course statistics for GET /api/courses.
func (h CoursesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := h.Runner.Analytics(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

// ClearSessionHandler drops a session's history.
type ClearSessionHandler struct {
	Runner *Runner
}

// ServeHTTP handles POST /api/sessions/clear.
func (h ClearSessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rpc.ClearSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	h.Runner.ClearSession(req.SessionID)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpc.ClearSessionResponse{SessionID: req.SessionID, Cleared: true})
}
