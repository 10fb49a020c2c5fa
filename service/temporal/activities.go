package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solscope/service/db"
	"github.com/brojonat/solscope/service/metrics"
	natspkg "github.com/brojonat/solscope/service/nats"
	"github.com/brojonat/solscope/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// InspectTransactionInput contains the parameters for the InspectTransaction activity.
type InspectTransactionInput struct {
	Network   string `json:"network"` // "mainnet", "devnet" or "testnet"
	Signature string `json:"signature"`
	Persist   bool   `json:"persist"` // store the decoded transaction
	Publish   bool   `json:"publish"` // publish an InspectionEvent
}

// InspectionResult summarizes one inspected signature.
type InspectionResult struct {
	Signature        string  `json:"signature"`
	Network          string  `json:"network"`
	Decoded          bool    `json:"decoded"`
	Slot             uint64  `json:"slot,omitempty"`
	Fee              uint64  `json:"fee,omitempty"`
	Status           string  `json:"status,omitempty"`
	InstructionCount int     `json:"instruction_count"`
	SolTransferred   uint64  `json:"sol_transferred"`
	PriorityFee      *uint64 `json:"priority_fee,omitempty"`
	Persisted        bool    `json:"persisted"`
	Published        bool    `json:"published"`
	Error            *string `json:"error,omitempty"`
}

// TransactionFetcher fetches and decodes a transaction from one network.
// *solana.Client satisfies it.
type TransactionFetcher interface {
	FetchTransaction(ctx context.Context, signature solanago.Signature) (*solana.TransactionData, error)
}

// StoreInterface defines the database operations needed by activities.
// This allows for easy mocking in tests.
type StoreInterface interface {
	UpsertTransaction(ctx context.Context, network solana.Network, data *solana.TransactionData) (*db.InspectedTransaction, error)
}

// PublisherInterface defines the NATS publishing operations needed by activities.
// This allows for easy mocking in tests.
type PublisherInterface interface {
	PublishInspection(ctx context.Context, event *natspkg.InspectionEvent) error
}

// Error types that the workflow's retry policy never retries.
const (
	ErrTypeInvalidInput  = "InvalidInput"
	ErrTypeNotFound      = "TransactionNotFound"
	ErrTypeUndecodable   = "Undecodable"
	ErrTypeNotConfigured = "NotConfigured"
)

// Activities holds the dependencies needed by Temporal activities.
// Following go-kit pattern, all dependencies are explicit.
type Activities struct {
	fetchers  map[solana.Network]TransactionFetcher
	store     StoreInterface
	publisher PublisherInterface
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// store and publisher may be nil, in which case Persist and Publish requests fail.
// If metrics is nil, no metrics will be recorded.
func NewActivities(
	fetchers map[solana.Network]TransactionFetcher,
	store StoreInterface,
	publisher PublisherInterface,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		fetchers:  fetchers,
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// InspectTransaction fetches and decodes one transaction, then optionally
// stores it and publishes an event. Input, lookup and decode failures are
// non-retryable; RPC, database and NATS failures are retried.
func (a *Activities) InspectTransaction(ctx context.Context, input InspectTransactionInput) (*InspectionResult, error) {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordActivityDuration("InspectTransaction", input.Network, time.Since(start).Seconds())
		}
	}()

	network, err := solana.ParseNetwork(input.Network)
	if err != nil {
		return nil, temporalsdk.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidInput, err)
	}
	signature, err := solanago.SignatureFromBase58(input.Signature)
	if err != nil {
		err = fmt.Errorf("invalid signature %q: %w", input.Signature, err)
		return nil, temporalsdk.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidInput, err)
	}
	fetcher, ok := a.fetchers[network]
	if !ok {
		err := fmt.Errorf("no RPC client configured for %s", network)
		return nil, temporalsdk.NewNonRetryableApplicationError(err.Error(), ErrTypeNotConfigured, err)
	}

	a.logger.DebugContext(ctx, "inspecting transaction",
		"signature", input.Signature,
		"network", input.Network,
	)

	data, err := fetcher.FetchTransaction(ctx, signature)
	switch {
	case errors.Is(err, solana.ErrTransactionNotFound):
		return nil, temporalsdk.NewNonRetryableApplicationError(err.Error(), ErrTypeNotFound, err)
	case errors.Is(err, solana.ErrNoMetadata), errors.Is(err, solana.ErrInvalidProgramIndex):
		return nil, temporalsdk.NewNonRetryableApplicationError(err.Error(), ErrTypeUndecodable, err)
	case err != nil:
		a.logger.ErrorContext(ctx, "failed to fetch transaction",
			"signature", input.Signature,
			"error", err,
		)
		return nil, fmt.Errorf("failed to fetch transaction: %w", err)
	}

	result := NewInspectionResult(network, data)

	if input.Persist {
		if a.store == nil {
			err := errors.New("persistence requested but no database is configured")
			return nil, temporalsdk.NewNonRetryableApplicationError(err.Error(), ErrTypeNotConfigured, err)
		}
		if _, err := a.store.UpsertTransaction(ctx, network, data); err != nil {
			return nil, fmt.Errorf("failed to store transaction: %w", err)
		}
		result.Persisted = true
	}

	if input.Publish {
		if a.publisher == nil {
			err := errors.New("publishing requested but no NATS connection is configured")
			return nil, temporalsdk.NewNonRetryableApplicationError(err.Error(), ErrTypeNotConfigured, err)
		}
		if err := a.publisher.PublishInspection(ctx, natspkg.FromTransactionData(network, data)); err != nil {
			return nil, fmt.Errorf("failed to publish inspection: %w", err)
		}
		result.Published = true
	}

	a.logger.InfoContext(ctx, "inspected transaction",
		"signature", input.Signature,
		"network", input.Network,
		"status", result.Status,
		"instructions", result.InstructionCount,
		"persisted", result.Persisted,
		"published", result.Published,
	)

	return result, nil
}

// NewInspectionResult summarizes a decoded transaction.
func NewInspectionResult(network solana.Network, data *solana.TransactionData) *InspectionResult {
	return &InspectionResult{
		Signature:        data.Signature.String(),
		Network:          string(network),
		Decoded:          true,
		Slot:             data.Slot,
		Fee:              data.Fee,
		Status:           data.Status.String(),
		InstructionCount: len(data.Instructions),
		SolTransferred:   data.TotalSolTransferred(),
		PriorityFee:      data.PriorityFee,
	}
}
