package solana

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var usdcMint = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

func tokenAccount(mint, amount string, decimals uint8, ui *float64) TokenAccountRecord {
	var r TokenAccountRecord
	r.Pubkey = testKey(7).String()
	r.Account.Data.Program = "spl-token"
	r.Account.Data.Parsed.Type = "account"
	r.Account.Data.Parsed.Info = TokenAccountParsedInfo{
		Mint:  mint,
		Owner: payerKey.String(),
		TokenAmount: TokenAmount{
			Amount:   amount,
			Decimals: decimals,
			UIAmount: ui,
		},
	}
	return r
}

func TestBuildAccountData_Wallet(t *testing.T) {
	blockTime := solana.UnixTimeSeconds(1_700_000_000)
	snapshot := AccountSnapshot{
		Address: payerKey,
		Info: AccountInfoResult{
			Lamports: 2_500_000_000,
			Owner:    SystemProgramID.String(),
			Space:    ptr(uint64(0)),
		},
		TokenAccounts: []TokenAccountRecord{
			tokenAccount(usdcMint.String(), "1500000", 6, ptr(1.5)),
			tokenAccount("", "1", 0, nil),
			tokenAccount(testKey(8).String(), "", 0, nil),
		},
		Signatures: []*rpc.TransactionSignature{
			{Signature: testSig, Slot: 10, BlockTime: &blockTime},
			{Signature: testSig, Slot: 9, Err: map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 1}}}},
			{Signature: testSig, Slot: 8},
		},
		MinBalanceForRentExemption: ptr(uint64(890_880)),
	}

	data := BuildAccountData(snapshot, 2)

	assert.Equal(t, payerKey, data.Pubkey)
	assert.Equal(t, SystemProgramID, data.Owner)
	require.NotNil(t, data.OwnerName)
	assert.Equal(t, "System Program", *data.OwnerName)
	assert.Equal(t, "Wallet", data.AccountType)
	assert.True(t, data.IsRentExempt)

	require.Len(t, data.TokenAccounts, 1)
	holding := data.TokenAccounts[0]
	assert.Equal(t, usdcMint, holding.Mint)
	assert.Equal(t, uint64(1_500_000), holding.Amount)
	assert.Equal(t, uint8(6), holding.Decimals)
	assert.Equal(t, 1.5, holding.UIAmount)
	require.NotNil(t, holding.TokenName)
	assert.Equal(t, "USDC", *holding.TokenName)

	require.Len(t, data.RecentTransactions, 2)
	first := data.RecentTransactions[0]
	assert.Equal(t, uint64(10), first.Slot)
	require.NotNil(t, first.Timestamp)
	assert.Equal(t, time.Unix(1_700_000_000, 0).UTC(), *first.Timestamp)
	assert.Equal(t, Success(), first.Status)
	assert.Equal(t, Failure("InstructionError(0, Custom(1))"), data.RecentTransactions[1].Status)
}

func TestBuildAccountData_InvalidOwner(t *testing.T) {
	data := BuildAccountData(AccountSnapshot{Address: payerKey, Info: AccountInfoResult{Owner: "not-an-owner"}}, 0)
	assert.Nil(t, data.OwnerName)
	assert.Equal(t, "Unknown", data.AccountType)
}

func TestBuildAccountData_Classification(t *testing.T) {
	tests := []struct {
		name string
		info AccountInfoResult
		want string
	}{
		{"program", AccountInfoResult{Owner: BPFLoaderUpgradeableID.String(), Executable: true}, "Program"},
		{"token mint", AccountInfoResult{Owner: TokenProgramID.String(), Space: ptr(uint64(82))}, "Token Mint"},
		{"token account", AccountInfoResult{Owner: Token2022ProgramID.String(), Space: ptr(uint64(165))}, "Token Account"},
		{"wallet", AccountInfoResult{Owner: SystemProgramID.String()}, "Wallet"},
		{"known owner", AccountInfoResult{Owner: StakeProgramID.String(), Space: ptr(uint64(200))}, "Stake Program Account"},
		{"unknown owner", AccountInfoResult{Owner: testKey(5).String()}, "Unknown"},
		{"invalid owner", AccountInfoResult{Owner: "not-an-owner"}, "Unknown"},
		{"invalid owner executable", AccountInfoResult{Owner: "not-an-owner", Executable: true}, "Program"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := BuildAccountData(AccountSnapshot{Address: payerKey, Info: tt.info}, 0)
			assert.Equal(t, tt.want, data.AccountType)
		})
	}
}

func TestBuildAccountData_RentExemption(t *testing.T) {
	info := AccountInfoResult{Lamports: 100, Owner: SystemProgramID.String()}

	data := BuildAccountData(AccountSnapshot{Address: payerKey, Info: info}, 0)
	assert.False(t, data.IsRentExempt, "unknown minimum is never exempt")
	assert.Nil(t, data.MinBalanceForRentExemption)

	data = BuildAccountData(AccountSnapshot{Address: payerKey, Info: info, MinBalanceForRentExemption: ptr(uint64(101))}, 0)
	assert.False(t, data.IsRentExempt)

	data = BuildAccountData(AccountSnapshot{Address: payerKey, Info: info, MinBalanceForRentExemption: ptr(uint64(100))}, 0)
	assert.True(t, data.IsRentExempt)
}

func TestBuildAccountData_EmptyCollections(t *testing.T) {
	data := BuildAccountData(AccountSnapshot{Address: payerKey}, 5)
	assert.NotNil(t, data.TokenAccounts)
	assert.NotNil(t, data.RecentTransactions)
	assert.Empty(t, data.TokenAccounts)
	assert.Empty(t, data.RecentTransactions)
}

func TestFormatLamports(t *testing.T) {
	assert.Equal(t, "0.000000000 SOL", FormatLamports(0))
	assert.Equal(t, "0.000005000 SOL", FormatLamports(5000))
	assert.Equal(t, "1.500000000 SOL", FormatLamports(1_500_000_000))
	assert.Equal(t, "-0.001505050 SOL", FormatLamportsDelta(-1_505_050))
	assert.Equal(t, "+1.000000000 SOL", FormatLamportsDelta(1_000_000_000))
}

func TestTruncateAddress(t *testing.T) {
	assert.Equal(t, "short", TruncateAddress("short"))
	addr := payerKey.String()
	assert.Equal(t, addr[:8]+"..."+addr[len(addr)-8:], TruncateAddress(addr))
	assert.Len(t, TruncateAddress(addr), 19)
	assert.Equal(t, "11111111...11111111", TruncateAddress(SystemProgramID.String()))
}
