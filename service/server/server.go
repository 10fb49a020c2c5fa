package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/solscope/service/db"
	"github.com/brojonat/solscope/service/metrics"
	natspkg "github.com/brojonat/solscope/service/nats"
	"github.com/brojonat/solscope/service/solana"
	"github.com/brojonat/solscope/service/temporal"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Inspector fetches decoded views from one network. *solana.Client satisfies it.
type Inspector interface {
	FetchTransaction(ctx context.Context, signature solanago.Signature) (*solana.TransactionData, error)
	FetchAccount(ctx context.Context, address solanago.PublicKey) (*solana.AccountData, error)
}

// TransactionStore is the persistence used by the API. *db.Store satisfies it.
type TransactionStore interface {
	UpsertTransaction(ctx context.Context, network solana.Network, data *solana.TransactionData) (*db.InspectedTransaction, error)
	GetTransaction(ctx context.Context, signature string, network string) (*db.InspectedTransaction, error)
	ListTransactions(ctx context.Context, params db.ListTransactionsParams) ([]*db.InspectedTransaction, error)
	CountTransactions(ctx context.Context, network string) (int64, error)
}

// Options holds the optional collaborators of a Server. A nil field disables
// the endpoints or side effects that need it.
type Options struct {
	Store     TransactionStore        // persistence of fetched transactions, /api/v1/inspections
	Publisher natspkg.Publisher       // InspectionEvent publishing for fetched transactions
	Batches   temporal.BatchInspector // /api/v1/batches
	Metrics   *metrics.Metrics        // request metrics and /metrics
}

// Server represents the HTTP server for the inspection API.
type Server struct {
	addr           string
	defaultNetwork solana.Network
	inspectors     map[solana.Network]Inspector
	decoder        *solana.Decoder
	opts           Options
	logger         *slog.Logger
	server         *http.Server
}

// New creates a new HTTP server. inspectors holds one client per configured
// network; requests without a network use defaultNetwork.
func New(addr string, defaultNetwork solana.Network, inspectors map[solana.Network]Inspector, decoder *solana.Decoder, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:           addr,
		defaultNetwork: defaultNetwork,
		inspectors:     inspectors,
		decoder:        decoder,
		opts:           opts,
		logger:         logger,
	}
}

// Handler builds the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	m := s.opts.Metrics
	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(m, name)(h))
	}

	route("GET /api/v1/transactions/{signature}", "get_transaction",
		handleGetTransaction(s.inspectors, s.defaultNetwork, s.opts.Store, s.opts.Publisher, s.logger))
	route("POST /api/v1/decode", "decode",
		handleDecode(s.decoder, s.logger))
	route("GET /api/v1/accounts/{address}", "get_account",
		handleGetAccount(s.inspectors, s.defaultNetwork, s.logger))
	route("GET /api/v1/programs", "list_programs",
		handleListPrograms())

	// Stored inspections (if a database is configured)
	if s.opts.Store != nil {
		route("GET /api/v1/inspections", "list_inspections",
			handleListInspections(s.opts.Store, s.logger))
		route("GET /api/v1/inspections/{signature}", "get_inspection",
			handleGetInspection(s.opts.Store, s.defaultNetwork, s.logger))
	} else {
		mux.Handle("/api/v1/inspections", handleUnavailable("persistence is not configured"))
		mux.Handle("/api/v1/inspections/", handleUnavailable("persistence is not configured"))
		s.logger.Warn("database not configured, inspection endpoints disabled")
	}

	// Batch inspection (if a Temporal client is configured)
	if s.opts.Batches != nil {
		route("POST /api/v1/batches", "start_batch",
			handleStartBatch(s.opts.Batches, s.defaultNetwork, s.logger))
		route("GET /api/v1/batches/{workflow_id}", "get_batch",
			handleGetBatch(s.opts.Batches, s.logger))
	} else {
		mux.Handle("/api/v1/batches", handleUnavailable("batch inspection is not configured"))
		mux.Handle("/api/v1/batches/", handleUnavailable("batch inspection is not configured"))
		s.logger.Warn("temporal not configured, batch endpoints disabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if m != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server",
		"addr", s.addr,
		"default_network", s.defaultNetwork,
		"networks", len(s.inspectors),
	)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
