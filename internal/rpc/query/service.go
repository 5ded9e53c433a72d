// Package query exposes the question-answering pipeline over HTTP transports.
package query

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/courselens/courselens/internal/agent"
	"github.com/courselens/courselens/internal/observability"
	"github.com/courselens/courselens/internal/rpc"
	"github.com/courselens/courselens/internal/session"
	"github.com/courselens/courselens/internal/store"
	"github.com/courselens/courselens/internal/tools"
)

// Runner bridges the generation core, session history, and the course store
// for the transport handlers.
type Runner struct {
	Generator *agent.Generator
	Sessions  *session.Manager
	Tools     *tools.Registry
	Store     store.CourseStore
	Metrics   *observability.Metrics
	Logger    *zap.Logger
}

// Answer handles one query end to end: history lookup, generation, and
// history update. The returned error covers only invalid requests.
func (r *Runner) Answer(ctx context.Context, sessionID, model, queryText string) (agent.Answer, error) {
	start := time.Now()

	var history string
	if r.Sessions != nil && sessionID != "" {
		history = r.Sessions.FormatHistory(sessionID)
	}

	ans, err := r.Generator.Respond(ctx, agent.Request{
		Model:   model,
		Query:   queryText,
		History: history,
		Tools:   r.Tools,
	})
	if err != nil {
		r.Metrics.RecordQuery("invalid", time.Since(start))
		return agent.Answer{}, err
	}

	if r.Sessions != nil && sessionID != "" {
		r.Sessions.AddExchange(sessionID, queryText, ans.Text)
	}

	outcome := "ok"
	if strings.HasPrefix(ans.Text, "Error generating") {
		outcome = "degraded"
	}
	r.Metrics.RecordQuery(outcome, time.Since(start))
	r.log().Debug("query answered",
		zap.String("session_id", sessionID),
		zap.String("outcome", outcome),
		zap.Int("sources", len(ans.Sources)))
	return ans, nil
}

// Analytics returns the indexed course catalog summary.
func (r *Runner) Analytics(ctx context.Context) (rpc.CourseStats, error) {
	if r.Store == nil {
		return rpc.CourseStats{CourseTitles: []string{}}, nil
	}

	titles, err := r.Store.ListCourseTitles(ctx)
	if err != nil {
		return rpc.CourseStats{}, err
	}
	count, err := r.Store.CourseCount(ctx)
	if err != nil {
		return rpc.CourseStats{}, err
	}
	if titles == nil {
		titles = []string{}
	}
	return rpc.CourseStats{TotalCourses: count, CourseTitles: titles}, nil
}

// ClearSession drops a session's conversation history.
func (r *Runner) ClearSession(sessionID string) {
	if r.Sessions != nil {
		r.Sessions.Clear(sessionID)
	}
}

func (r *Runner) log() *zap.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return zap.NewNop()
}
