package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solscope/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/sync/errgroup"
)

// ErrAccountNotFound is returned when the node has no account at an address.
var ErrAccountNotFound = errors.New("account not found")

// DefaultRecentSignatureLimit is how many recent transactions an account lookup lists.
const DefaultRecentSignatureLimit = 10

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	// GetTransaction returns the raw jsonParsed getTransaction result, which is
	// JSON null for unknown signatures.
	GetTransaction(ctx context.Context, signature solana.Signature) (json.RawMessage, error)

	// GetAccountInfo returns nil when no account exists at address.
	GetAccountInfo(ctx context.Context, address solana.PublicKey) (*AccountInfoResult, error)

	GetTokenAccountsByOwner(ctx context.Context, owner, programID solana.PublicKey) ([]TokenAccountRecord, error)

	GetSignaturesForAddress(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)

	GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error)
}

// Client fetches transactions and accounts from one RPC endpoint and decodes them.
type Client struct {
	rpc            RPCClient
	decoder        *Decoder
	logger         *slog.Logger
	metrics        *metrics.Metrics
	endpoint       string // RPC endpoint identifier for metrics (e.g., "mainnet", "devnet")
	signatureLimit int
	timeout        time.Duration // per-operation deadline, zero means none
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRecentSignatureLimit sets how many recent transactions FetchAccount lists.
func WithRecentSignatureLimit(limit int) ClientOption {
	return func(c *Client) {
		if limit > 0 {
			c.signatureLimit = limit
		}
	}
}

// WithRequestTimeout bounds each FetchRecord and FetchAccount call.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling (e.g., "mainnet", "devnet", or RPC hostname).
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, decoder *Decoder, endpoint string, m *metrics.Metrics, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		rpc:            rpcClient,
		decoder:        decoder,
		logger:         logger,
		metrics:        m,
		endpoint:       endpoint,
		signatureLimit: DefaultRecentSignatureLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchRecord fetches the raw transaction record for a signature.
func (c *Client) FetchRecord(ctx context.Context, signature solana.Signature) (*TransactionRecord, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var raw json.RawMessage
	err := c.call(ctx, "GetTransaction", func() error {
		var err error
		raw, err = c.rpc.GetTransaction(ctx, signature)
		return err
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get transaction",
			"signature", signature.String(),
			"error", err,
		)
		return nil, fmt.Errorf("failed to get transaction %s: %w", signature, err)
	}

	rec, err := ParseTransactionRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", signature, err)
	}
	return rec, nil
}

// FetchTransaction fetches and decodes a transaction.
func (c *Client) FetchTransaction(ctx context.Context, signature solana.Signature) (*TransactionData, error) {
	rec, err := c.FetchRecord(ctx, signature)
	if err != nil {
		return nil, err
	}

	data, err := c.decoder.Decode(signature, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction %s: %w", signature, err)
	}

	c.logger.DebugContext(ctx, "decoded transaction",
		"signature", signature.String(),
		"slot", data.Slot,
		"status", data.Status.String(),
		"instructions", len(data.Instructions),
		"inner_instructions", len(data.InnerInstructions),
	)
	return data, nil
}

// FetchAccount builds the account view of an address. Account info is
// required; token holdings, recent signatures and the rent-exempt minimum are
// best effort and left empty when their calls fail.
func (c *Client) FetchAccount(ctx context.Context, address solana.PublicKey) (*AccountData, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var (
		info    *AccountInfoResult
		tokens  []TokenAccountRecord
		token22 []TokenAccountRecord
		sigs    []*rpc.TransactionSignature
		minimum *uint64
	)
	limit := c.signatureLimit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.call(gctx, "GetAccountInfo", func() error {
			var err error
			info, err = c.rpc.GetAccountInfo(gctx, address)
			return err
		})
	})
	g.Go(func() error {
		tokens = c.tokenAccounts(gctx, address, TokenProgramID)
		return nil
	})
	g.Go(func() error {
		token22 = c.tokenAccounts(gctx, address, Token2022ProgramID)
		return nil
	})
	g.Go(func() error {
		err := c.call(gctx, "GetSignaturesForAddress", func() error {
			var err error
			sigs, err = c.rpc.GetSignaturesForAddress(gctx, address, &rpc.GetSignaturesForAddressOpts{Limit: &limit})
			return err
		})
		if err != nil {
			c.logger.WarnContext(gctx, "failed to get recent signatures", "address", address.String(), "error", err)
			sigs = nil
			return nil
		}
		if c.metrics != nil {
			c.metrics.RecordRPCSignaturesPerCall(c.endpoint, float64(len(sigs)))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		c.logger.ErrorContext(ctx, "failed to get account info", "address", address.String(), "error", err)
		return nil, fmt.Errorf("failed to get account %s: %w", address, err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}

	size := uint64(0)
	if info.Space != nil {
		size = *info.Space
	}
	err := c.call(ctx, "GetMinimumBalanceForRentExemption", func() error {
		v, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, size)
		if err == nil {
			minimum = &v
		}
		return err
	})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to get rent-exempt minimum", "address", address.String(), "error", err)
	}

	return BuildAccountData(AccountSnapshot{
		Address:                    address,
		Info:                       *info,
		TokenAccounts:              append(tokens, token22...),
		Signatures:                 sigs,
		MinBalanceForRentExemption: minimum,
	}, c.signatureLimit), nil
}

func (c *Client) tokenAccounts(ctx context.Context, owner, programID solana.PublicKey) []TokenAccountRecord {
	var records []TokenAccountRecord
	err := c.call(ctx, "GetTokenAccountsByOwner", func() error {
		var err error
		records, err = c.rpc.GetTokenAccountsByOwner(ctx, owner, programID)
		return err
	})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to get token accounts",
			"owner", owner.String(),
			"program", programID.String(),
			"error", err,
		)
		return nil
	}
	return records
}

// withTimeout applies the configured request timeout, if any, to ctx.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// call times one RPC call and records it.
func (c *Client) call(ctx context.Context, method string, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall(method, status, c.endpoint, duration)
	}
	c.logger.DebugContext(ctx, "rpc call",
		"method", method,
		"status", status,
		"duration_seconds", duration,
	)
	return err
}
