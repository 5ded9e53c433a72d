package query

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bufbuild/connect-go"

	"github.com/courselens/courselens/internal/observability"
	"github.com/courselens/courselens/internal/rpc"
	"github.com/courselens/courselens/internal/rpc/connectjson"
)

const ConnectAskProcedure = "/connect.query.v1.QueryService/Ask"

// NewConnectHandler builds a Connect unary handler for Ask.
func NewConnectHandler(runner *Runner, metrics *observability.Metrics) (string, http.Handler) {
	h := &connectAskHandler{runner: runner, metrics: metrics}
	return ConnectAskProcedure, connect.NewUnaryHandler(ConnectAskProcedure, h.handle, connect.WithCodec(connectjson.Codec{}))
}

type connectAskHandler struct {
	runner  *Runner
	metrics *observability.Metrics
}

func (h *connectAskHandler) handle(ctx context.Context, req *connect.Request[rpc.AskRequest]) (*connect.Response[rpc.AskResponse], error) {
	if h.metrics != nil {
		h.metrics.IncActiveSessions("connect")
		defer h.metrics.DecActiveSessions("connect")
	}

	msg := req.Msg
	if msg == nil || strings.TrimSpace(msg.Query) == "" {
		if h.metrics != nil {
			h.metrics.RecordTransportError("connect", "missing_query")
		}
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("query is required"))
	}

	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("session-%d", time.Now().UnixNano())
	}

	ans, err := h.runner.Answer(ctx, sessionID, msg.Model, msg.Query)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordTransportError("connect", "invalid_query")
		}
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	return connect.NewResponse(&rpc.AskResponse{
		SessionID: sessionID,
		Answer:    ans.Text,
		Sources:   ans.Sources,
	}), nil
}
