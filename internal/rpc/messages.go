package rpc

// QueryRequest is the top-level request for answering a course question.
type QueryRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Model     string `json:"model,omitempty"`
	Query     string `json:"query"`
}

// QueryEvent streams back progress from the daemon.
type QueryEvent struct {
	Type      string   `json:"type"` // answer|sources|error|done
	SessionID string   `json:"session_id,omitempty"`
	Answer    string   `json:"answer,omitempty"`
	Sources   []string `json:"sources,omitempty"`
	Error     string   `json:"error,omitempty"`
	Done      bool     `json:"done,omitempty"`
}

// AskRequest is the unary Connect request for answering a course question.
type AskRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Model     string `json:"model,omitempty"`
	Query     string `json:"query"`
}

// AskResponse carries the generated answer and its sources.
type AskResponse struct {
	SessionID string   `json:"session_id"`
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources,omitempty"`
}

// CourseStats summarizes the indexed catalog.
type CourseStats struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// ClearSessionRequest asks the daemon to drop a session's history.
type ClearSessionRequest struct {
	SessionID string `json:"session_id"`
}

// ClearSessionResponse acknowledges a cleared session.
type ClearSessionResponse struct {
	SessionID string `json:"session_id"`
	Cleared   bool   `json:"cleared"`
}
