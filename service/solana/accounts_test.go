package solana

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCompiledAccounts_HeaderRanges(t *testing.T) {
	keys := []string{payerKey.String(), recipientKey.String(), SystemProgramID.String()}
	header := MessageHeader{NumRequiredSignatures: 1, NumReadonlySignedAccounts: 0, NumReadonlyUnsignedAccounts: 1}

	accounts, invalid := ResolveCompiledAccounts(keys, header, []uint64{10, 20, 30}, []uint64{5, 25, 30})
	require.Empty(t, invalid)
	require.Len(t, accounts, 3)

	assert.True(t, accounts[0].IsSigner)
	assert.True(t, accounts[0].IsWritable)
	assert.False(t, accounts[1].IsSigner)
	assert.True(t, accounts[1].IsWritable)
	assert.False(t, accounts[2].IsSigner)
	assert.False(t, accounts[2].IsWritable)

	assert.Equal(t, payerKey, accounts[0].Pubkey)
	assert.Equal(t, uint64(10), *accounts[0].PreBalance)
	assert.Equal(t, uint64(5), *accounts[0].PostBalance)
	assert.Nil(t, accounts[0].RoleLabel)
}

func TestResolveCompiledAccounts_MissingBalances(t *testing.T) {
	keys := []string{payerKey.String(), recipientKey.String()}
	header := MessageHeader{NumRequiredSignatures: 1}

	accounts, _ := ResolveCompiledAccounts(keys, header, []uint64{10}, nil)
	require.Len(t, accounts, 2)
	assert.Equal(t, uint64(10), *accounts[0].PreBalance)
	assert.Nil(t, accounts[0].PostBalance)
	assert.Nil(t, accounts[1].PreBalance)
	assert.Nil(t, accounts[1].PostBalance)
}

func TestResolveCompiledAccounts_InvalidKeyKeepsPosition(t *testing.T) {
	keys := []string{payerKey.String(), "not-a-key", recipientKey.String()}
	header := MessageHeader{NumRequiredSignatures: 1}

	accounts, invalid := ResolveCompiledAccounts(keys, header, nil, nil)
	require.Len(t, accounts, 3)
	assert.Equal(t, []int{1}, invalid)
	assert.True(t, accounts[1].Pubkey.IsZero())
	assert.Equal(t, recipientKey, accounts[2].Pubkey)
}

func TestResolveCompiledAccounts_MalformedHeaderSaturates(t *testing.T) {
	keys := []string{payerKey.String(), recipientKey.String()}
	// Counts larger than the account list must not underflow.
	header := MessageHeader{NumRequiredSignatures: 5, NumReadonlySignedAccounts: 9, NumReadonlyUnsignedAccounts: 200}

	accounts, _ := ResolveCompiledAccounts(keys, header, nil, nil)
	require.Len(t, accounts, 2)
	for _, a := range accounts {
		assert.True(t, a.IsSigner)
		assert.False(t, a.IsWritable)
	}
}

func TestResolveParsedAccounts(t *testing.T) {
	keys := []ParsedAccountKey{
		{Pubkey: payerKey.String(), Signer: true, Writable: true},
		{Pubkey: recipientKey.String(), Signer: false, Writable: false},
	}

	accounts, invalid := ResolveParsedAccounts(keys, []uint64{1, 2}, []uint64{3, 4})
	require.Empty(t, invalid)
	require.Len(t, accounts, 2)
	assert.True(t, accounts[0].IsSigner)
	assert.True(t, accounts[0].IsWritable)
	assert.False(t, accounts[1].IsSigner)
	assert.False(t, accounts[1].IsWritable)
	assert.Equal(t, uint64(4), *accounts[1].PostBalance)
}

func TestHeaderRanges_Partition(t *testing.T) {
	// Every index lands in exactly one range and the signer ranges together
	// cover exactly the required signatures.
	for nrs := 0; nrs <= 4; nrs++ {
		for nros := 0; nros <= nrs; nros++ {
			for total := nrs; total <= nrs+4; total++ {
				for nrou := 0; nrou <= total-nrs; nrou++ {
					header := MessageHeader{
						NumRequiredSignatures:       uint8(nrs),
						NumReadonlySignedAccounts:   uint8(nros),
						NumReadonlyUnsignedAccounts: uint8(nrou),
					}
					ranges := ComputeHeaderRanges(header, total)

					counts := map[AccountRole]int{}
					for i := 0; i < total; i++ {
						role := ranges.Role(i)
						counts[role]++

						signer := role == RoleWritableSigned || role == RoleReadonlySigned
						writable := role == RoleWritableSigned || role == RoleWritableUnsigned
						assert.Equal(t, signer, ranges.IsSigner(i), "signer flag for %d in %+v/%d", i, header, total)
						assert.Equal(t, writable, ranges.IsWritable(i), "writable flag for %d in %+v/%d", i, header, total)
					}

					assert.Equal(t, nrs, counts[RoleWritableSigned]+counts[RoleReadonlySigned])
					assert.Equal(t, nrs-nros, ranges.WritableSigned)
					assert.Equal(t, nrou, counts[RoleReadonlyUnsigned])
					assert.Equal(t, total, counts[RoleWritableSigned]+counts[RoleReadonlySigned]+counts[RoleWritableUnsigned]+counts[RoleReadonlyUnsigned])
				}
			}
		}
	}
}

func TestAccountMeta_BalanceChange(t *testing.T) {
	delta, ok := AccountMeta{PreBalance: ptr(uint64(100)), PostBalance: ptr(uint64(40))}.BalanceChange()
	assert.True(t, ok)
	assert.Equal(t, int64(-60), delta)

	_, ok = AccountMeta{PreBalance: ptr(uint64(100))}.BalanceChange()
	assert.False(t, ok)
}

func TestAccountMeta_BalanceChange_Extremes(t *testing.T) {
	tests := []struct {
		name      string
		pre, post uint64
		want      int64
		ok        bool
	}{
		{name: "large balances", pre: math.MaxUint64 - 10, post: math.MaxUint64, want: 10, ok: true},
		{name: "largest decrease", pre: 1 << 63, post: 0, want: math.MinInt64, ok: true},
		{name: "largest increase", pre: 0, post: math.MaxInt64, want: math.MaxInt64, ok: true},
		{name: "increase overflows", pre: 0, post: math.MaxUint64, ok: false},
		{name: "decrease overflows", pre: math.MaxUint64, post: 0, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, ok := AccountMeta{PreBalance: ptr(tt.pre), PostBalance: ptr(tt.post)}.BalanceChange()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, delta)
		})
	}
}
