package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/solscope/service/db"
	"github.com/brojonat/solscope/service/solana"
)

// inspectionResponse is the API representation of a stored transaction.
type inspectionResponse struct {
	Signature            string          `json:"signature"`
	Network              string          `json:"network"`
	Slot                 int64           `json:"slot"`
	BlockTime            *time.Time      `json:"block_time,omitempty"`
	Fee                  int64           `json:"fee"`
	Success              bool            `json:"success"`
	Error                *string         `json:"error,omitempty"`
	PriorityFee          *int64          `json:"priority_fee,omitempty"`
	MaxComputeUnits      *int64          `json:"max_compute_units,omitempty"`
	ComputeUnitsConsumed *int64          `json:"compute_units_consumed,omitempty"`
	Version              *string         `json:"version,omitempty"`
	InstructionCount     int32           `json:"instruction_count"`
	SolTransferred       int64           `json:"sol_transferred"`
	Transaction          json.RawMessage `json:"transaction,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// inspectionToResponse converts a stored row. The decoded payload is only
// included when withPayload is set.
func inspectionToResponse(t *db.InspectedTransaction, withPayload bool) inspectionResponse {
	resp := inspectionResponse{
		Signature:            t.Signature,
		Network:              t.Network,
		Slot:                 t.Slot,
		BlockTime:            t.BlockTime,
		Fee:                  t.Fee,
		Success:              t.Success,
		Error:                t.Error,
		PriorityFee:          t.PriorityFee,
		MaxComputeUnits:      t.MaxComputeUnits,
		ComputeUnitsConsumed: t.ComputeUnitsConsumed,
		Version:              t.Version,
		InstructionCount:     t.InstructionCount,
		SolTransferred:       t.SolTransferred,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
	if withPayload {
		resp.Transaction = t.Payload
	}
	return resp
}

// handleListInspections returns a handler that lists stored transactions, newest slot first.
// GET /api/v1/inspections?network={network}&limit=N&offset=N
// Without a network parameter every network is listed.
func handleListInspections(store TransactionStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var network string
		if raw := r.URL.Query().Get("network"); raw != "" {
			n, err := parseNetwork(raw, "")
			if err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			network = string(n)
		}

		limit, offset, err := parsePagination(r)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		rows, err := store.ListTransactions(r.Context(), db.ListTransactionsParams{
			Network: network,
			Limit:   limit,
			Offset:  offset,
		})
		if err != nil {
			logger.Error("failed to list inspections", "network", network, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		total, err := store.CountTransactions(r.Context(), network)
		if err != nil {
			logger.Error("failed to count inspections", "network", network, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		resp := make([]inspectionResponse, len(rows))
		for i, row := range rows {
			resp[i] = inspectionToResponse(row, false)
		}

		logger.Debug("inspections listed", "network", network, "count", len(resp), "total", total)

		writeJSON(w, map[string]interface{}{
			"transactions": resp,
			"count":        len(resp),
			"total":        total,
			"limit":        limit,
			"offset":       offset,
		}, http.StatusOK)
	})
}

// handleGetInspection returns a handler that retrieves one stored transaction
// including its decoded payload.
// GET /api/v1/inspections/{signature}?network={network}
func handleGetInspection(store TransactionStore, def solana.Network, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature, err := parseSignature(r.PathValue("signature"))
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		network, err := parseNetwork(r.URL.Query().Get("network"), def)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		row, err := store.GetTransaction(r.Context(), signature.String(), string(network))
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, "inspection not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("failed to get inspection", "signature", signature.String(), "network", network, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, inspectionToResponse(row, true), http.StatusOK)
	})
}
