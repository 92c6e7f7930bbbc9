package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/54b3r/paperqa-go/internal/agent"
	"github.com/54b3r/paperqa-go/internal/generator"
	"github.com/54b3r/paperqa-go/internal/loader"
	"github.com/54b3r/paperqa-go/internal/logging"
	"github.com/54b3r/paperqa-go/internal/rag"
)

// Operation outcomes recorded in paperqa_agent_operations_total.
const (
	outcomeOK            = "ok"
	outcomeClientError   = "client_error"
	outcomeUpstreamError = "upstream_error"
	outcomeTimeout       = "timeout"
	outcomeError         = "error"
)

// writeJSON encodes v with the given status.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(ctx).Error("server: encode response", slog.Any("error", err))
	}
}

// writeError sends an errorResponse.
func writeError(ctx context.Context, w http.ResponseWriter, status int, msg string) {
	writeJSON(ctx, w, status, errorResponse{Error: msg})
}

// classify maps a core error to an HTTP status, a user-facing message and a
// metrics outcome.
//
//	*loader.DocumentLoadError           422
//	*rag.EmbeddingServiceError          502
//	*generator.GenerationServiceError   502
//	context.DeadlineExceeded            504
//	anything else                       500
func classify(err error) (int, string, string) {
	var (
		loadErr *loader.DocumentLoadError
		embErr  *rag.EmbeddingServiceError
		genErr  *generator.GenerationServiceError
	)
	switch {
	case errors.As(err, &loadErr):
		return http.StatusUnprocessableEntity, loadErr.Error(), outcomeClientError
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "operation timed out", outcomeTimeout
	case errors.As(err, &embErr):
		return http.StatusBadGateway, embErr.Error(), outcomeUpstreamError
	case errors.As(err, &genErr):
		return http.StatusBadGateway, genErr.Error(), outcomeUpstreamError
	case errors.Is(err, agent.ErrNoSession):
		return http.StatusNotFound, "document not found", outcomeClientError
	default:
		return http.StatusInternalServerError, "internal error", outcomeError
	}
}

// fail logs err, writes the classified response and returns the outcome.
func fail(ctx context.Context, w http.ResponseWriter, op string, err error) string {
	status, msg, outcome := classify(err)
	log := logging.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		log.Error("server: operation failed", slog.String("op", op), slog.Any("error", err))
	} else {
		log.Warn("server: operation rejected", slog.String("op", op), slog.Any("error", err))
	}
	writeError(ctx, w, status, msg)
	return outcome
}
