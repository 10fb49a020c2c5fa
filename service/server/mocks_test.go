package server

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/brojonat/solscope/service/db"
	"github.com/brojonat/solscope/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

// mockInspector serves fixed transactions and accounts.
type mockInspector struct {
	transactions map[solanago.Signature]*solana.TransactionData
	accounts     map[solanago.PublicKey]*solana.AccountData
	err          error
}

func newMockInspector() *mockInspector {
	return &mockInspector{
		transactions: make(map[solanago.Signature]*solana.TransactionData),
		accounts:     make(map[solanago.PublicKey]*solana.AccountData),
	}
}

func (m *mockInspector) FetchTransaction(ctx context.Context, signature solanago.Signature) (*solana.TransactionData, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, ok := m.transactions[signature]
	if !ok {
		return nil, solana.ErrTransactionNotFound
	}
	return data, nil
}

func (m *mockInspector) FetchAccount(ctx context.Context, address solanago.PublicKey) (*solana.AccountData, error) {
	if m.err != nil {
		return nil, m.err
	}
	account, ok := m.accounts[address]
	if !ok {
		return nil, solana.ErrAccountNotFound
	}
	return account, nil
}

// mockStore is an in-memory TransactionStore.
type mockStore struct {
	mu        sync.Mutex
	rows      map[string]*db.InspectedTransaction
	upsertErr error
	listErr   error
}

func newMockStore() *mockStore {
	return &mockStore{rows: make(map[string]*db.InspectedTransaction)}
}

func (m *mockStore) UpsertTransaction(ctx context.Context, network solana.Network, data *solana.TransactionData) (*db.InspectedTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var reason *string
	if data.Status.Failed {
		reason = &data.Status.Reason
	}
	now := time.Now()
	row := &db.InspectedTransaction{
		Signature:        data.Signature.String(),
		Network:          string(network),
		Slot:             int64(data.Slot),
		BlockTime:        data.BlockTime,
		Fee:              int64(data.Fee),
		Success:          !data.Status.Failed,
		Error:            reason,
		InstructionCount: int32(len(data.Instructions)),
		SolTransferred:   int64(data.TotalSolTransferred()),
		Payload:          payload,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	m.rows[row.Signature+"/"+row.Network] = row
	return row, nil
}

func (m *mockStore) GetTransaction(ctx context.Context, signature string, network string) (*db.InspectedTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[signature+"/"+network]
	if !ok {
		return nil, db.ErrNotFound
	}
	return row, nil
}

func (m *mockStore) ListTransactions(ctx context.Context, params db.ListTransactionsParams) ([]*db.InspectedTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, m.listErr
	}
	rows := m.filter(params.Network)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Slot > rows[j].Slot })

	start := min(int(params.Offset), len(rows))
	end := min(start+int(params.Limit), len(rows))
	return rows[start:end], nil
}

func (m *mockStore) CountTransactions(ctx context.Context, network string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.filter(network))), nil
}

func (m *mockStore) filter(network string) []*db.InspectedTransaction {
	rows := []*db.InspectedTransaction{}
	for _, row := range m.rows {
		if network == "" || row.Network == network {
			rows = append(rows, row)
		}
	}
	return rows
}

func (m *mockStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
