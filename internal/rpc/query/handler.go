package query

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/courselens/courselens/internal/observability"
	"github.com/courselens/courselens/internal/rpc"
)

// Handler processes query requests and streams NDJSON events.
type Handler struct {
	runner  *Runner
	metrics *observability.Metrics
}

// NewHandler constructs a handler instance.
func NewHandler(runner *Runner, metrics *observability.Metrics) *Handler {
	return &Handler{runner: runner, metrics: metrics}
}

// ServeHTTP handles POST /api/query with an NDJSON stream of QueryEvent.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		if h.metrics != nil {
			h.metrics.RecordTransportError("ndjson", "method_not_allowed")
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.metrics != nil {
		h.metrics.IncActiveSessions("ndjson")
		defer h.metrics.DecActiveSessions("ndjson")
	}

	var req rpc.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if h.metrics != nil {
			h.metrics.RecordTransportError("ndjson", "decode")
		}
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	if req.SessionID == "" {
		req.SessionID = fmt.Sprintf("session-%d", time.Now().UnixNano())
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	writer := bufio.NewWriter(w)
	emit := func(ev rpc.QueryEvent) bool {
		ev.SessionID = req.SessionID
		if err := json.NewEncoder(writer).Encode(ev); err != nil {
			return false
		}
		writer.Flush()
		flusher.Flush()
		return true
	}

	ans, err := h.runner.Answer(r.Context(), req.SessionID, req.Model, req.Query)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordTransportError("ndjson", "invalid_query")
		}
		emit(rpc.QueryEvent{Type: "error", Error: err.Error()})
		emit(rpc.QueryEvent{Type: "done", Done: true})
		return
	}

	if !emit(rpc.QueryEvent{Type: "answer", Answer: ans.Text}) {
		return
	}
	if len(ans.Sources) > 0 {
		if !emit(rpc.QueryEvent{Type: "sources", Sources: ans.Sources}) {
			return
		}
	}
	emit(rpc.QueryEvent{Type: "done", Done: true})
}
