package solana

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// Sizes of SPL token program accounts.
const (
	tokenMintSize    = 82
	tokenAccountSize = 165
)

// AccountInfoResult is the value of a getAccountInfo response.
type AccountInfoResult struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"`
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
	Space      *uint64  `json:"space,omitempty"`
}

// TokenAccountRecord is one entry of a jsonParsed getTokenAccountsByOwner response.
type TokenAccountRecord struct {
	Pubkey  string            `json:"pubkey"`
	Account TokenAccountState `json:"account"`
}

// TokenAccountState is the account object of a TokenAccountRecord.
type TokenAccountState struct {
	Lamports uint64           `json:"lamports"`
	Owner    string           `json:"owner"`
	Data     TokenAccountData `json:"data"`
}

// TokenAccountData is the jsonParsed data of a token account.
type TokenAccountData struct {
	Program string `json:"program"`
	Parsed  struct {
		Type string                 `json:"type"`
		Info TokenAccountParsedInfo `json:"info"`
	} `json:"parsed"`
}

// TokenAccountParsedInfo holds the fields used from a parsed token account.
type TokenAccountParsedInfo struct {
	Mint        string      `json:"mint"`
	Owner       string      `json:"owner"`
	TokenAmount TokenAmount `json:"tokenAmount"`
}

// TokenAmount is a token balance as reported by the node.
type TokenAmount struct {
	Amount         string   `json:"amount"`
	Decimals       uint8    `json:"decimals"`
	UIAmount       *float64 `json:"uiAmount"`
	UIAmountString string   `json:"uiAmountString"`
}

// AccountSnapshot is everything fetched for one account lookup.
type AccountSnapshot struct {
	Address                    solana.PublicKey
	Info                       AccountInfoResult
	TokenAccounts              []TokenAccountRecord
	Signatures                 []*rpc.TransactionSignature
	MinBalanceForRentExemption *uint64
}

// BuildAccountData assembles the account view. At most limit recent
// transactions are kept; limit <= 0 keeps all.
func BuildAccountData(s AccountSnapshot, limit int) *AccountData {
	owner, ownerOK := parsePubkey(s.Info.Owner)

	dataSize := uint64(0)
	if s.Info.Space != nil {
		dataSize = *s.Info.Space
	}

	data := &AccountData{
		Pubkey:                     s.Address,
		Lamports:                   s.Info.Lamports,
		Owner:                      owner,
		Executable:                 s.Info.Executable,
		RentEpoch:                  s.Info.RentEpoch,
		DataSize:                   dataSize,
		TokenAccounts:              tokenHoldings(s.TokenAccounts),
		RecentTransactions:         recentTransactions(s.Signatures, limit),
		MinBalanceForRentExemption: s.MinBalanceForRentExemption,
	}
	if ownerOK {
		data.OwnerName = programNameRef(owner)
		data.AccountType = classifyAccount(data)
	} else {
		data.AccountType = classifyUnownedAccount(data)
	}
	if s.MinBalanceForRentExemption != nil {
		data.IsRentExempt = data.Lamports >= *s.MinBalanceForRentExemption
	}
	return data
}

func classifyAccount(a *AccountData) string {
	switch {
	case a.Executable:
		return "Program"
	case isTokenProgram(a.Owner) && a.DataSize == tokenMintSize:
		return "Token Mint"
	case isTokenProgram(a.Owner):
		return "Token Account"
	case a.Owner.Equals(SystemProgramID):
		return "Wallet"
	case a.OwnerName != nil:
		return *a.OwnerName + " Account"
	default:
		return "Unknown"
	}
}

// classifyUnownedAccount classifies an account whose owner is not a valid
// address. Owner holds the zero key then, so only Executable is trusted.
func classifyUnownedAccount(a *AccountData) string {
	if a.Executable {
		return "Program"
	}
	return "Unknown"
}

// tokenHoldings skips records without a mint or an amount.
func tokenHoldings(records []TokenAccountRecord) []TokenAccountInfo {
	holdings := []TokenAccountInfo{}
	for _, r := range records {
		info := r.Account.Data.Parsed.Info
		if info.Mint == "" || info.TokenAmount.Amount == "" {
			continue
		}
		mint, _ := parsePubkey(info.Mint)
		amount, err := strconv.ParseUint(info.TokenAmount.Amount, 10, 64)
		if err != nil {
			amount = 0
		}

		uiAmount := 0.0
		switch {
		case info.TokenAmount.UIAmount != nil:
			uiAmount = *info.TokenAmount.UIAmount
		case info.TokenAmount.UIAmountString != "":
			if v, err := strconv.ParseFloat(info.TokenAmount.UIAmountString, 64); err == nil {
				uiAmount = v
			}
		}

		holdings = append(holdings, TokenAccountInfo{
			Mint:      mint,
			Amount:    amount,
			Decimals:  info.TokenAmount.Decimals,
			TokenName: knownMintRef(mint),
			UIAmount:  uiAmount,
		})
	}
	return holdings
}

func recentTransactions(sigs []*rpc.TransactionSignature, limit int) []TransactionSummary {
	if limit > 0 && len(sigs) > limit {
		sigs = sigs[:limit]
	}

	out := make([]TransactionSummary, 0, len(sigs))
	for _, sig := range sigs {
		if sig == nil {
			continue
		}
		summary := TransactionSummary{
			Signature: sig.Signature,
			Slot:      sig.Slot,
			Status:    Success(),
		}
		if sig.BlockTime != nil {
			ts := sig.BlockTime.Time().UTC()
			summary.Timestamp = &ts
		}
		if sig.Err != nil {
			summary.Status = Failure(renderRPCError(sig.Err))
		}
		out = append(out, summary)
	}
	return out
}

// renderRPCError formats an error value already decoded by the RPC client.
func renderRPCError(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return renderTransactionError(raw)
}

// FormatLamports renders lamports as SOL with nine decimals, e.g. "1.500000000 SOL".
func FormatLamports(lamports uint64) string {
	return fmt.Sprintf("%d.%09d SOL", lamports/LamportsPerSOL, lamports%LamportsPerSOL)
}

// FormatLamportsDelta renders a signed balance change, e.g. "+0.000005000 SOL".
func FormatLamportsDelta(delta int64) string {
	sign := "+"
	magnitude := uint64(delta)
	if delta < 0 {
		sign = "-"
		magnitude = uint64(-delta)
	}
	return sign + FormatLamports(magnitude)
}

// TruncateAddress shortens long addresses to their first and last eight characters.
func TruncateAddress(s string) string {
	if len(s) <= 16 {
		return s
	}
	return s[:8] + "..." + s[len(s)-8:]
}
