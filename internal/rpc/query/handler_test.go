package query

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/courselens/courselens/internal/agent"
	"github.com/courselens/courselens/internal/config"
	"github.com/courselens/courselens/internal/llm"
	llmmock "github.com/courselens/courselens/internal/llm/mock"
	"github.com/courselens/courselens/internal/rpc"
	"github.com/courselens/courselens/internal/session"
	"github.com/courselens/courselens/internal/store"
)

func newTestRunner(answer string) *Runner {
	provider := &llmmock.Provider{Responses: []llm.ChatResponse{{
		Message:    llm.AssistantText(answer),
		StopReason: llm.StopEndTurn,
	}}}
	reg := llm.NewRegistry()
	reg.RegisterProvider("mock", provider)
	reg.RegisterModel("default", llm.ModelRoute{Provider: "mock", Model: "m"}, true)

	return &Runner{
		Generator: agent.New(reg, config.AgentConfig{MaxRounds: 2, MaxTokens: 800}, nil, nil),
		Sessions:  session.NewManager(2),
		Store:     store.NewMemoryStore(nil),
	}
}

func TestHandlerStreamsEvents(t *testing.T) {
	handler := NewHandler(newTestRunner("streamed answer"), nil)
	body := bytes.NewBufferString(`{"session_id":"test","query":"hello world"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/query", body)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	resp := rr.Result()
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("unexpected content type %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	var events []rpc.QueryEvent
	for scanner.Scan() {
		var evt rpc.QueryEvent
		if err := json.Unmarshal(scanner.Bytes(), &evt); err != nil {
			t.Fatalf("invalid json event: %v", err)
		}
		events = append(events, evt)
	}

	if len(events) < 2 {
		t.Fatalf("expected answer and done events, got %d", len(events))
	}
	if events[0].Type != "answer" || events[0].Answer != "streamed answer" {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	last := events[len(events)-1]
	if last.Type != "done" || !last.Done {
		t.Fatalf("unexpected final event %+v", last)
	}
	if events[0].SessionID != "test" {
		t.Fatalf("expected session id on events, got %q", events[0].SessionID)
	}
}

func TestHandlerRejectsNonPost(t *testing.T) {
	handler := NewHandler(newTestRunner("ignored"), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/query", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestHandlerEmptyQueryEmitsErrorEvent(t *testing.T) {
	handler := NewHandler(newTestRunner("ignored"), nil)
	body := bytes.NewBufferString(`{"query":""}`)
	req := httptest.NewRequest(http.MethodPost, "/api/query", body)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	scanner := bufio.NewScanner(rr.Body)
	if !scanner.Scan() {
		t.Fatal("expected an event")
	}
	var evt rpc.QueryEvent
	if err := json.Unmarshal(scanner.Bytes(), &evt); err != nil {
		t.Fatalf("invalid json event: %v", err)
	}
	if evt.Type != "error" || evt.Error == "" {
		t.Fatalf("expected error event, got %+v", evt)
	}
}

func TestCoursesHandler(t *testing.T) {
	runner := newTestRunner("ignored")
	meta := store.CourseMeta{Title: "Building RAG Applications"}
	if err := runner.Store.AddCourse(context.Background(), meta, nil); err != nil {
		t.Fatal(err)
	}

	h := CoursesHandler{Runner: runner}
	req := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var stats rpc.CourseStats
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if stats.TotalCourses != 1 || len(stats.CourseTitles) != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestClearSessionHandler(t *testing.T) {
	runner := newTestRunner("ignored")
	runner.Sessions.AddExchange("s1", "q", "a")

	h := ClearSessionHandler{Runner: runner}
	body := bytes.NewBufferString(`{"session_id":"s1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/clear", body)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := runner.Sessions.FormatHistory("s1"); got != "" {
		t.Fatalf("expected cleared history, got %q", got)
	}
}

func TestRunnerTracksSessionHistory(t *testing.T) {
	runner := newTestRunner("first answer")

	ans, err := runner.Answer(context.Background(), "s1", "", "first question")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Text != "first answer" {
		t.Fatalf("unexpected answer %q", ans.Text)
	}

	history := runner.Sessions.FormatHistory("s1")
	if history != "User: first question\nAssistant: first answer" {
		t.Fatalf("unexpected history %q", history)
	}
}
