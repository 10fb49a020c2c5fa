package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	natspkg "github.com/brojonat/solscope/service/nats"
	"github.com/brojonat/solscope/service/solana"
)

// handleGetTransaction returns a handler that fetches and decodes a transaction.
// GET /api/v1/transactions/{signature}?network={network}
// When a store or publisher is configured the decoded transaction is also
// persisted or published; those side effects never fail the request.
func handleGetTransaction(inspectors map[solana.Network]Inspector, def solana.Network, store TransactionStore, publisher natspkg.Publisher, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature, err := parseSignature(r.PathValue("signature"))
		if err != nil {
			logger.Debug("invalid signature", "signature", r.PathValue("signature"), "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		network, inspector, err := resolveInspector(inspectors, r.URL.Query().Get("network"), def)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		data, err := inspector.FetchTransaction(r.Context(), signature)
		if err != nil {
			writeFetchError(w, logger, "transaction", signature.String(), err)
			return
		}

		if store != nil {
			if _, err := store.UpsertTransaction(r.Context(), network, data); err != nil {
				logger.Warn("failed to store transaction", "signature", signature.String(), "network", network, "error", err)
			}
		}
		if publisher != nil {
			if err := publisher.PublishInspection(r.Context(), natspkg.FromTransactionData(network, data)); err != nil {
				logger.Warn("failed to publish inspection", "signature", signature.String(), "network", network, "error", err)
			}
		}

		logger.Debug("transaction decoded",
			"signature", signature.String(),
			"network", network,
			"instructions", len(data.Instructions),
		)
		writeJSON(w, data, http.StatusOK)
	})
}

// handleDecode returns a handler that decodes a transaction record supplied in
// the request body, without any RPC call.
// POST /api/v1/decode?signature={signature}
func handleDecode(decoder *solana.Decoder, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Limit request body size to prevent memory exhaustion
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, "request body too large: maximum size is 1MB", http.StatusRequestEntityTooLarge)
				return
			}
			writeError(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		rec, err := solana.ParseTransactionRecord(body)
		if err != nil {
			logger.Debug("failed to parse transaction record", "error", err)
			if errors.Is(err, solana.ErrTransactionNotFound) {
				writeError(w, "request body must be a transaction record", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid transaction record: "+err.Error(), http.StatusBadRequest)
			return
		}

		var data *solana.TransactionData
		if raw := r.URL.Query().Get("signature"); raw != "" {
			signature, perr := parseSignature(raw)
			if perr != nil {
				writeError(w, perr.Error(), http.StatusBadRequest)
				return
			}
			data, err = decoder.Decode(signature, rec)
		} else {
			data, err = decoder.DecodeRecord(rec)
		}
		if err != nil {
			writeDecodeError(w, err)
			return
		}

		writeJSON(w, data, http.StatusOK)
	})
}

// handleGetAccount returns a handler that builds the account view of an address.
// GET /api/v1/accounts/{address}?network={network}
func handleGetAccount(inspectors map[solana.Network]Inspector, def solana.Network, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address, err := parseAddress(r.PathValue("address"))
		if err != nil {
			logger.Debug("invalid address", "address", r.PathValue("address"), "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		_, inspector, err := resolveInspector(inspectors, r.URL.Query().Get("network"), def)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		account, err := inspector.FetchAccount(r.Context(), address)
		if err != nil {
			writeFetchError(w, logger, "account", address.String(), err)
			return
		}

		writeJSON(w, account, http.StatusOK)
	})
}

// handleListPrograms returns a handler that lists the program registry.
// GET /api/v1/programs
func handleListPrograms() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		programs := solana.KnownPrograms()
		writeJSON(w, map[string]interface{}{
			"programs": programs,
			"count":    len(programs),
		}, http.StatusOK)
	})
}

// handleUnavailable returns a handler for endpoints whose backend is not configured.
func handleUnavailable(message string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, message, http.StatusServiceUnavailable)
	})
}

// resolveInspector picks the client for the requested network.
func resolveInspector(inspectors map[solana.Network]Inspector, raw string, def solana.Network) (solana.Network, Inspector, error) {
	network, err := parseNetwork(raw, def)
	if err != nil {
		return "", nil, err
	}
	inspector, ok := inspectors[network]
	if !ok {
		return "", nil, errorf("network %s is not configured", network)
	}
	return network, inspector, nil
}

// writeFetchError maps RPC fetch failures to status codes.
func writeFetchError(w http.ResponseWriter, logger *slog.Logger, kind, id string, err error) {
	switch {
	case errors.Is(err, solana.ErrTransactionNotFound), errors.Is(err, solana.ErrAccountNotFound):
		writeError(w, kind+" not found", http.StatusNotFound)
	case errors.Is(err, solana.ErrNoMetadata), errors.Is(err, solana.ErrInvalidProgramIndex):
		writeDecodeError(w, err)
	default:
		logger.Error("failed to fetch "+kind, "id", id, "error", err)
		writeError(w, "failed to fetch "+kind+" from RPC", http.StatusBadGateway)
	}
}

// writeDecodeError reports a record that cannot be decoded.
func writeDecodeError(w http.ResponseWriter, err error) {
	writeError(w, "failed to decode transaction: "+err.Error(), http.StatusUnprocessableEntity)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
