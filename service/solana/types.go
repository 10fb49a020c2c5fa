package solana

import (
	"math"
	"time"

	"github.com/gagliardetto/solana-go"
)

// TransactionStatus is the execution outcome of a confirmed transaction.
// The zero value is a successful transaction.
type TransactionStatus struct {
	Failed bool   `json:"failed"`
	Reason string `json:"reason,omitempty"`
}

// Success returns the status of a transaction that executed without error.
func Success() TransactionStatus { return TransactionStatus{} }

// Failure returns the status of a transaction that failed with reason.
func Failure(reason string) TransactionStatus {
	return TransactionStatus{Failed: true, Reason: reason}
}

func (s TransactionStatus) String() string {
	if !s.Failed {
		return "Success"
	}
	return "Failed: " + s.Reason
}

// AccountMeta describes one account's participation in a transaction.
// RoleLabel is only set when the account was taken from a named field of a
// pre-parsed instruction (e.g. "authority", "destination").
type AccountMeta struct {
	Pubkey      solana.PublicKey `json:"pubkey"`
	IsSigner    bool             `json:"is_signer"`
	IsWritable  bool             `json:"is_writable"`
	PreBalance  *uint64          `json:"pre_balance,omitempty"`
	PostBalance *uint64          `json:"post_balance,omitempty"`
	RoleLabel   *string          `json:"role_label,omitempty"`
}

// BalanceChange returns post minus pre balance in lamports.
// ok is false when either balance is unknown or the difference does not fit
// in an int64.
func (a AccountMeta) BalanceChange() (delta int64, ok bool) {
	if a.PreBalance == nil || a.PostBalance == nil {
		return 0, false
	}
	pre, post := *a.PreBalance, *a.PostBalance
	if post >= pre {
		d := post - pre
		if d > math.MaxInt64 {
			return 0, false
		}
		return int64(d), true
	}
	d := pre - post
	if d > 1<<63 {
		return 0, false
	}
	return int64(-d), true
}

// InstructionInfo is the normalized form of a single instruction, independent
// of the message encoding it was read from. InstructionType is never empty.
type InstructionInfo struct {
	ProgramID            solana.PublicKey `json:"program_id"`
	ProgramName          *string          `json:"program_name,omitempty"`
	InstructionType      string           `json:"instruction_type"`
	RawData              string           `json:"raw_data"`
	Accounts             []AccountMeta    `json:"accounts"`
	ComputeUnitsConsumed *uint64          `json:"compute_units_consumed,omitempty"`

	// unresolved marks an instruction whose program key was not a valid
	// address. ProgramID then holds the zero key, which is not the program.
	unresolved bool
}

// ProgramResolved reports whether ProgramID is the instruction's real program.
func (ix InstructionInfo) ProgramResolved() bool { return !ix.unresolved }

// InnerInstructionInfo is an instruction emitted during execution of the
// top-level instruction at ParentIndex.
type InnerInstructionInfo struct {
	ParentIndex int `json:"parent_index"`
	InstructionInfo
}

// SolTransfer is a native lamport transfer reconstructed from a System
// Program Transfer instruction.
type SolTransfer struct {
	From   solana.PublicKey `json:"from"`
	To     solana.PublicKey `json:"to"`
	Amount uint64           `json:"amount"`
}

// TokenTransfer is an SPL token movement.
type TokenTransfer struct {
	From      solana.PublicKey `json:"from"`
	To        solana.PublicKey `json:"to"`
	Mint      solana.PublicKey `json:"mint"`
	Amount    uint64           `json:"amount"`
	Decimals  uint8            `json:"decimals"`
	TokenName *string          `json:"token_name,omitempty"`
	Program   string           `json:"program"`
}

// TransactionData is the fully decoded view of one confirmed transaction.
// It is built once by a Decoder and not modified afterwards.
type TransactionData struct {
	Signature            solana.Signature       `json:"signature"`
	Slot                 uint64                 `json:"slot"`
	BlockTime            *time.Time             `json:"block_time,omitempty"`
	Fee                  uint64                 `json:"fee"`
	Status               TransactionStatus      `json:"status"`
	Instructions         []InstructionInfo      `json:"instructions"`
	InnerInstructions    []InnerInstructionInfo `json:"inner_instructions"`
	Accounts             []AccountMeta          `json:"accounts"`
	Logs                 []string               `json:"logs"`
	ComputeUnitsConsumed *uint64                `json:"compute_units_consumed,omitempty"`
	Version              *string                `json:"version,omitempty"`
	RecentBlockhash      string                 `json:"recent_blockhash,omitempty"`
	TokenTransfers       []TokenTransfer        `json:"token_transfers"`
	SolTransfers         []SolTransfer          `json:"sol_transfers"`
	Memos                []string               `json:"memos"`
	PriorityFee          *uint64                `json:"priority_fee,omitempty"`
	MaxComputeUnits      *uint64                `json:"max_compute_units,omitempty"`
}

// TotalSolTransferred sums the lamports moved by all SOL transfers.
func (t *TransactionData) TotalSolTransferred() uint64 {
	var total uint64
	for _, tr := range t.SolTransfers {
		total += tr.Amount
	}
	return total
}

// ProgramNames returns the distinct registry names of the top-level programs
// invoked, in first-seen order. Unknown programs are reported by address;
// programs whose key did not resolve are left out.
func (t *TransactionData) ProgramNames() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, ix := range t.Instructions {
		if ix.unresolved {
			continue
		}
		name := ix.ProgramID.String()
		if ix.ProgramName != nil {
			name = *ix.ProgramName
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// TokenAccountInfo is one SPL token holding of an account.
type TokenAccountInfo struct {
	Mint      solana.PublicKey `json:"mint"`
	Amount    uint64           `json:"amount"`
	Decimals  uint8            `json:"decimals"`
	TokenName *string          `json:"token_name,omitempty"`
	UIAmount  float64          `json:"ui_amount"`
}

// TransactionSummary is a lightweight reference to a transaction touching an account.
type TransactionSummary struct {
	Signature   solana.Signature  `json:"signature"`
	Slot        uint64            `json:"slot"`
	Timestamp   *time.Time        `json:"timestamp,omitempty"`
	Status      TransactionStatus `json:"status"`
	Fee         uint64            `json:"fee"`
	Description string            `json:"description"`
}

// AccountData is the account-lookup view of an address.
type AccountData struct {
	Pubkey                     solana.PublicKey     `json:"pubkey"`
	Lamports                   uint64               `json:"lamports"`
	Owner                      solana.PublicKey     `json:"owner"`
	OwnerName                  *string              `json:"owner_name,omitempty"`
	Executable                 bool                 `json:"executable"`
	RentEpoch                  uint64               `json:"rent_epoch"`
	DataSize                   uint64               `json:"data_size"`
	TokenAccounts              []TokenAccountInfo   `json:"token_accounts"`
	RecentTransactions         []TransactionSummary `json:"recent_transactions"`
	AccountType                string               `json:"account_type"`
	IsRentExempt               bool                 `json:"is_rent_exempt"`
	MinBalanceForRentExemption *uint64              `json:"min_balance_for_rent_exemption,omitempty"`
}
