package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/solscope/service/metrics"
	"github.com/brojonat/solscope/service/solana"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no stored transaction matches.
var ErrNotFound = errors.New("transaction not found")

//go:embed schema.sql
var schema string

const table = "inspected_transactions"

// Store provides database operations for decoded transactions.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// If metrics is nil, no metrics will be recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{
		pool:    pool,
		metrics: m,
	}
}

// InspectedTransaction is a decoded transaction as stored. Payload holds the
// full TransactionData JSON; the other columns are indexed summaries of it.
type InspectedTransaction struct {
	Signature            string
	Network              string
	Slot                 int64
	BlockTime            *time.Time
	Fee                  int64
	Success              bool
	Error                *string
	PriorityFee          *int64
	MaxComputeUnits      *int64
	ComputeUnitsConsumed *int64
	Version              *string
	InstructionCount     int32
	SolTransferred       int64
	Payload              json.RawMessage
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// TransactionData decodes the stored payload.
func (t *InspectedTransaction) TransactionData() (*solana.TransactionData, error) {
	var data solana.TransactionData
	if err := json.Unmarshal(t.Payload, &data); err != nil {
		return nil, fmt.Errorf("failed to decode stored payload for %s: %w", t.Signature, err)
	}
	return &data, nil
}

// ListTransactionsParams contains filter and pagination parameters.
// An empty Network lists every network.
type ListTransactionsParams struct {
	Network string
	Limit   int32
	Offset  int32
}

const columns = `signature, network, slot, block_time, fee, success, error, priority_fee,
	max_compute_units, compute_units_consumed, version, instruction_count,
	sol_transferred, payload, created_at, updated_at`

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.observe("migrate", func() error {
		_, err := s.pool.Exec(ctx, schema)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// UpsertTransaction stores a decoded transaction, replacing any earlier
// decode of the same signature on the same network.
func (s *Store) UpsertTransaction(ctx context.Context, network solana.Network, data *solana.TransactionData) (*InspectedTransaction, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction payload: %w", err)
	}

	var errText *string
	if data.Status.Failed {
		errText = &data.Status.Reason
	}

	query := `INSERT INTO inspected_transactions (
		signature, network, slot, block_time, fee, success, error, priority_fee,
		max_compute_units, compute_units_consumed, version, instruction_count,
		sol_transferred, payload
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (signature, network) DO UPDATE SET
		slot = EXCLUDED.slot,
		block_time = EXCLUDED.block_time,
		fee = EXCLUDED.fee,
		success = EXCLUDED.success,
		error = EXCLUDED.error,
		priority_fee = EXCLUDED.priority_fee,
		max_compute_units = EXCLUDED.max_compute_units,
		compute_units_consumed = EXCLUDED.compute_units_consumed,
		version = EXCLUDED.version,
		instruction_count = EXCLUDED.instruction_count,
		sol_transferred = EXCLUDED.sol_transferred,
		payload = EXCLUDED.payload,
		updated_at = NOW()
	RETURNING ` + columns

	var txn *InspectedTransaction
	err = s.observe("upsert", func() error {
		row := s.pool.QueryRow(ctx, query,
			data.Signature.String(),
			string(network),
			int64(data.Slot),
			pgTimestamptzFromTimePtr(data.BlockTime),
			int64(data.Fee),
			!data.Status.Failed,
			pgtextFromStringPtr(errText),
			pgint8FromUint64Ptr(data.PriorityFee),
			pgint8FromUint64Ptr(data.MaxComputeUnits),
			pgint8FromUint64Ptr(data.ComputeUnitsConsumed),
			pgtextFromStringPtr(data.Version),
			int32(len(data.Instructions)),
			int64(data.TotalSolTransferred()),
			payload,
		)
		var err error
		txn, err = scanTransaction(row)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert transaction %s: %w", data.Signature, err)
	}
	return txn, nil
}

// GetTransaction retrieves a transaction by its signature and network.
func (s *Store) GetTransaction(ctx context.Context, signature string, network string) (*InspectedTransaction, error) {
	query := `SELECT ` + columns + ` FROM inspected_transactions WHERE signature = $1 AND network = $2`

	var txn *InspectedTransaction
	err := s.observe("get", func() error {
		var err error
		txn, err = scanTransaction(s.pool.QueryRow(ctx, query, signature, network))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", signature, err)
	}
	return txn, nil
}

// ListTransactions retrieves stored transactions, most recent slot first.
func (s *Store) ListTransactions(ctx context.Context, params ListTransactionsParams) ([]*InspectedTransaction, error) {
	query := `SELECT ` + columns + ` FROM inspected_transactions
	WHERE ($1 = '' OR network = $1)
	ORDER BY slot DESC, signature
	LIMIT $2 OFFSET $3`

	var transactions []*InspectedTransaction
	err := s.observe("list", func() error {
		rows, err := s.pool.Query(ctx, query, params.Network, params.Limit, params.Offset)
		if err != nil {
			return err
		}
		defer rows.Close()

		transactions = []*InspectedTransaction{}
		for rows.Next() {
			txn, err := scanTransaction(rows)
			if err != nil {
				return err
			}
			transactions = append(transactions, txn)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, nil
}

// CountTransactions counts stored transactions. An empty network counts all.
func (s *Store) CountTransactions(ctx context.Context, network string) (int64, error) {
	var count int64
	err := s.observe("count", func() error {
		return s.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM inspected_transactions WHERE ($1 = '' OR network = $1)`,
			network,
		).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// DeleteTransaction removes a stored transaction.
func (s *Store) DeleteTransaction(ctx context.Context, signature string, network string) error {
	var affected int64
	err := s.observe("delete", func() error {
		tag, err := s.pool.Exec(ctx,
			`DELETE FROM inspected_transactions WHERE signature = $1 AND network = $2`,
			signature, network,
		)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", signature, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) observe(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	if s.metrics != nil {
		s.metrics.RecordDBQuery(operation, table, time.Since(start).Seconds(), err)
	}
	return err
}

// Helper functions to convert between pgx types and domain types

func scanTransaction(row pgx.Row) (*InspectedTransaction, error) {
	var (
		txn                  InspectedTransaction
		blockTime            pgtype.Timestamptz
		errText              pgtype.Text
		priorityFee          pgtype.Int8
		maxComputeUnits      pgtype.Int8
		computeUnitsConsumed pgtype.Int8
		version              pgtype.Text
		payload              []byte
	)
	err := row.Scan(
		&txn.Signature,
		&txn.Network,
		&txn.Slot,
		&blockTime,
		&txn.Fee,
		&txn.Success,
		&errText,
		&priorityFee,
		&maxComputeUnits,
		&computeUnitsConsumed,
		&version,
		&txn.InstructionCount,
		&txn.SolTransferred,
		&payload,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.BlockTime = timePtrFromPgTimestamptz(blockTime)
	txn.Error = stringPtrFromPgtext(errText)
	txn.PriorityFee = int64PtrFromPgint8(priorityFee)
	txn.MaxComputeUnits = int64PtrFromPgint8(maxComputeUnits)
	txn.ComputeUnitsConsumed = int64PtrFromPgint8(computeUnitsConsumed)
	txn.Version = stringPtrFromPgtext(version)
	txn.Payload = payload
	return &txn, nil
}

func pgtextFromStringPtr(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func stringPtrFromPgtext(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func pgint8FromUint64Ptr(v *uint64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: int64(*v), Valid: true}
}

func int64PtrFromPgint8(i pgtype.Int8) *int64 {
	if !i.Valid {
		return nil
	}
	return &i.Int64
}

func pgTimestamptzFromTimePtr(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func timePtrFromPgTimestamptz(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
