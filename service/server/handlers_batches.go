package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/brojonat/solscope/service/solana"
	"github.com/brojonat/solscope/service/temporal"
)

type startBatchRequest struct {
	Network    string   `json:"network"`
	Signatures []string `json:"signatures"`
	Persist    bool     `json:"persist"`
	Publish    bool     `json:"publish"`
}

type startBatchResponse struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
	Network    string `json:"network"`
	Requested  int    `json:"requested"`
}

// handleStartBatch returns a handler that starts a batch inspection workflow.
// POST /api/v1/batches
// Signatures are validated up front so the workflow only sees well-formed input.
func handleStartBatch(batches temporal.BatchInspector, def solana.Network, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req startBatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Debug("failed to decode batch request", "error", err)
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, "request body too large: maximum size is 1MB", http.StatusRequestEntityTooLarge)
				return
			}
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		network, err := parseNetwork(req.Network, def)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if len(req.Signatures) == 0 {
			writeError(w, "signatures is required", http.StatusBadRequest)
			return
		}
		if len(req.Signatures) > temporal.MaxBatchSignatures {
			writeError(w, errorf("too many signatures: maximum is %d", temporal.MaxBatchSignatures).Error(), http.StatusBadRequest)
			return
		}
		for i, sig := range req.Signatures {
			if _, err := parseSignature(sig); err != nil {
				writeError(w, errorf("signatures[%d]: %v", i, err).Error(), http.StatusBadRequest)
				return
			}
		}

		workflowID, runID, err := batches.StartInspectBatch(r.Context(), temporal.InspectBatchInput{
			Network:    string(network),
			Signatures: req.Signatures,
			Persist:    req.Persist,
			Publish:    req.Publish,
		})
		if err != nil {
			logger.Error("failed to start batch inspection", "network", network, "error", err)
			writeError(w, "failed to start batch inspection", http.StatusInternalServerError)
			return
		}

		logger.Info("batch inspection started",
			"workflow_id", workflowID,
			"network", network,
			"signatures", len(req.Signatures),
		)

		writeJSON(w, startBatchResponse{
			WorkflowID: workflowID,
			RunID:      runID,
			Network:    string(network),
			Requested:  len(req.Signatures),
		}, http.StatusAccepted)
	})
}

// handleGetBatch returns a handler that waits for a batch workflow and returns its result.
// GET /api/v1/batches/{workflow_id}?run_id={run_id}
func handleGetBatch(batches temporal.BatchInspector, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workflowID := r.PathValue("workflow_id")
		if workflowID == "" {
			writeError(w, "workflow_id is required", http.StatusBadRequest)
			return
		}

		result, err := batches.GetInspectBatchResult(r.Context(), workflowID, r.URL.Query().Get("run_id"))
		if err != nil {
			logger.Error("failed to get batch result", "workflow_id", workflowID, "error", err)
			writeError(w, "failed to get batch result: "+err.Error(), http.StatusBadGateway)
			return
		}

		writeJSON(w, result, http.StatusOK)
	})
}
