package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jensneuse/abstractlogger"

	"github.com/commercegraph/storefront-gateway/internal/executor"
	"github.com/commercegraph/storefront-gateway/internal/metric"
	"github.com/commercegraph/storefront-gateway/internal/reqcontext"
)

// GraphQLHandler serves the unified GraphQL endpoint. Caller identity headers
// are lifted onto the request context before execution so every source sees
// the same view of the caller.
type GraphQLHandler struct {
	log      abstractlogger.Logger
	executor *executor.Executor
	metrics  *metric.Metrics
}

// NewGraphQLHandler returns the handler for POST requests carrying a GraphQL
// request body.
func NewGraphQLHandler(exec *executor.Executor, logger abstractlogger.Logger, metrics *metric.Metrics) *GraphQLHandler {
	return &GraphQLHandler{log: logger, executor: exec, metrics: metrics}
}

func (g *GraphQLHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req executor.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.writeError(w, http.StatusBadRequest, "decode request body: "+err.Error())
		return
	}
	if req.Query == "" {
		g.writeError(w, http.StatusBadRequest, "request body carries no query")
		return
	}

	rc := reqcontext.FromHeaders(r.Header)
	ctx := reqcontext.WithContext(r.Context(), rc)

	start := time.Now()
	resp := g.executor.Execute(ctx, req)
	elapsed := time.Since(start)

	operation := req.OperationName
	if operation == "" {
		operation = "anonymous"
	}
	status := "ok"
	if len(resp.Errors) > 0 {
		status = "error"
	}
	g.metrics.RecordRequest(operation, status, elapsed)
	g.metrics.RecordFieldErrors(operation, len(resp.Errors))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		g.log.Error("write graphql response",
			abstractlogger.String("operation", operation),
			abstractlogger.Error(err),
		)
	}
}

func (g *GraphQLHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"errors": []map[string]string{{"message": message}},
	})
}
