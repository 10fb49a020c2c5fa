package solana

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccounts() []AccountMeta {
	accounts, _ := ResolveCompiledAccounts(
		[]string{payerKey.String(), recipientKey.String(), SystemProgramID.String()},
		MessageHeader{NumRequiredSignatures: 1, NumReadonlyUnsignedAccounts: 1},
		[]uint64{100, 0, 1},
		[]uint64{50, 50, 1},
	)
	return accounts
}

func TestNormalizeCompiled(t *testing.T) {
	norm := NewNormalizer(DefaultClassifier(), testAccounts())
	var reasons []string
	norm.OnDegraded = func(reason string) { reasons = append(reasons, reason) }

	data := systemTransferData(50)
	info, err := norm.NormalizeCompiled(&CompiledInstruction{
		ProgramIDIndex: 2,
		Accounts:       []uint16{0, 1, 42},
		Data:           data,
	})
	require.NoError(t, err)

	assert.Equal(t, SystemProgramID, info.ProgramID)
	require.NotNil(t, info.ProgramName)
	assert.Equal(t, "System Program", *info.ProgramName)
	assert.Equal(t, "Transfer", info.InstructionType)
	assert.Equal(t, data+" (12 bytes)", info.RawData)
	assert.Nil(t, info.ComputeUnitsConsumed)

	// Index 42 is out of range and dropped.
	require.Len(t, info.Accounts, 2)
	assert.Equal(t, payerKey, info.Accounts[0].Pubkey)
	assert.True(t, info.Accounts[0].IsSigner)
	assert.Equal(t, uint64(100), *info.Accounts[0].PreBalance)
	assert.Equal(t, recipientKey, info.Accounts[1].Pubkey)
	assert.Equal(t, []string{DegradedAccountOutOfRange}, reasons)
}

func TestNormalizeCompiled_InvalidProgramIndex(t *testing.T) {
	norm := NewNormalizer(DefaultClassifier(), testAccounts())

	_, err := norm.NormalizeCompiled(&CompiledInstruction{ProgramIDIndex: 3, Data: systemTransferData(1)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidProgramIndex))
}

func TestNormalizeCompiled_UndecodableData(t *testing.T) {
	norm := NewNormalizer(DefaultClassifier(), testAccounts())

	info, err := norm.NormalizeCompiled(&CompiledInstruction{ProgramIDIndex: 2, Data: "not base58!"})
	require.NoError(t, err)
	assert.Equal(t, UnknownInstruction, info.InstructionType)
	assert.Equal(t, "not base58!", info.RawData)
	assert.Empty(t, info.Accounts)
}

func TestNormalizeParsed_TypedInfo(t *testing.T) {
	authority := testKey(3)
	mint := testKey(4)
	parsed := fmt.Sprintf(`{"type":"transferChecked","info":{"source":%q,"destination":%q,"authority":%q,"mint":%q,"tokenAmount":{"amount":"1000","decimals":6}}}`,
		payerKey, recipientKey, authority, mint)

	norm := NewNormalizer(DefaultClassifier(), testAccounts())
	info := norm.NormalizeParsed(&ParsedInstruction{
		Program:   "spl-token",
		ProgramID: TokenProgramID.String(),
		Parsed:    json.RawMessage(parsed),
	})

	assert.Equal(t, TokenProgramID, info.ProgramID)
	assert.Equal(t, "Token Program", *info.ProgramName)
	assert.Equal(t, "transferChecked", info.InstructionType)

	wantData := fmt.Sprintf(`{"authority":%q,"destination":%q,"mint":%q,"source":%q,"tokenAmount":{"amount":"1000","decimals":6}}`,
		authority, recipientKey, mint, payerKey)
	assert.Equal(t, wantData, info.RawData)

	// Address-valued fields in key order with the naming heuristic applied.
	require.Len(t, info.Accounts, 4)
	want := []struct {
		role     string
		signer   bool
		writable bool
	}{
		{"authority", true, false},
		{"destination", false, true},
		{"mint", false, false},
		{"source", false, true},
	}
	for i, w := range want {
		acc := info.Accounts[i]
		require.NotNil(t, acc.RoleLabel)
		assert.Equal(t, w.role, *acc.RoleLabel)
		assert.Equal(t, w.signer, acc.IsSigner, w.role)
		assert.Equal(t, w.writable, acc.IsWritable, w.role)
		assert.Nil(t, acc.PreBalance)
	}
	assert.Equal(t, authority, info.Accounts[0].Pubkey)
	assert.Equal(t, payerKey, info.Accounts[3].Pubkey)
}

func TestNormalizeParsed_OwnerIsSigner(t *testing.T) {
	parsed := fmt.Sprintf(`{"type":"closeAccount","info":{"account":%q,"owner":%q}}`, payerKey, recipientKey)
	info := NewNormalizer(DefaultClassifier(), nil).NormalizeParsed(&ParsedInstruction{
		ProgramID: TokenProgramID.String(),
		Parsed:    json.RawMessage(parsed),
	})

	require.Len(t, info.Accounts, 2)
	assert.False(t, info.Accounts[0].IsSigner)
	assert.True(t, info.Accounts[1].IsSigner)
	assert.Equal(t, "owner", *info.Accounts[1].RoleLabel)
}

func TestNormalizeParsed_Untyped(t *testing.T) {
	norm := NewNormalizer(DefaultClassifier(), nil)

	t.Run("bare string", func(t *testing.T) {
		info := norm.NormalizeParsed(&ParsedInstruction{
			ProgramID: MemoProgramIDSPL.String(),
			Parsed:    json.RawMessage(`"gm"`),
		})
		assert.Equal(t, UnknownInstruction, info.InstructionType)
		assert.Equal(t, `"gm"`, info.RawData)
		assert.Empty(t, info.Accounts)
	})

	t.Run("object without type", func(t *testing.T) {
		info := norm.NormalizeParsed(&ParsedInstruction{
			ProgramID: StakeProgramID.String(),
			Parsed:    json.RawMessage(`{ "z": 1, "a": [true, null] }`),
		})
		assert.Equal(t, UnknownInstruction, info.InstructionType)
		assert.Equal(t, `{"a":[true,null],"z":1}`, info.RawData)
	})

	t.Run("type without info", func(t *testing.T) {
		info := norm.NormalizeParsed(&ParsedInstruction{
			ProgramID: VoteProgramID.String(),
			Parsed:    json.RawMessage(`{"type":"vote"}`),
		})
		assert.Equal(t, "vote", info.InstructionType)
		assert.Equal(t, "", info.RawData)
		assert.Empty(t, info.Accounts)
	})
}

func TestNormalizeParsed_ExactNumbers(t *testing.T) {
	info := NewNormalizer(DefaultClassifier(), nil).NormalizeParsed(&ParsedInstruction{
		ProgramID: SystemProgramID.String(),
		Parsed:    json.RawMessage(`{"type":"transfer","info":{"lamports":18446744073709551615}}`),
	})
	assert.Equal(t, `{"lamports":18446744073709551615}`, info.RawData)
}

func TestNormalizeParsed_InvalidProgramID(t *testing.T) {
	norm := NewNormalizer(DefaultClassifier(), nil)
	var reasons []string
	norm.OnDegraded = func(reason string) { reasons = append(reasons, reason) }

	info := norm.NormalizeParsed(&ParsedInstruction{ProgramID: "garbage", Parsed: json.RawMessage(`{"type":"transfer"}`)})
	assert.True(t, info.ProgramID.IsZero())
	assert.False(t, info.ProgramResolved())
	assert.Nil(t, info.ProgramName)
	assert.Equal(t, UnknownInstruction, info.InstructionType)
	assert.Equal(t, []string{DegradedInvalidProgramID}, reasons)
}

func TestNormalizePartiallyDecoded_InvalidProgramID(t *testing.T) {
	norm := NewNormalizer(DefaultClassifier(), testAccounts())
	data := systemTransferData(1_000_000_000)

	info := norm.NormalizePartiallyDecoded(&PartiallyDecodedInstruction{
		ProgramID: "not-a-program",
		Accounts:  []string{payerKey.String(), recipientKey.String()},
		Data:      data,
	})
	assert.False(t, info.ProgramResolved())
	assert.Nil(t, info.ProgramName)
	assert.Equal(t, UnknownInstruction, info.InstructionType)
	assert.Equal(t, data+" (12 bytes)", info.RawData)
	assert.Len(t, info.Accounts, 2)
	assert.Empty(t, ExtractSolTransfers([]InstructionInfo{info}))
}

func TestNormalizeCompiled_InvalidProgramKey(t *testing.T) {
	accounts, invalid := ResolveCompiledAccounts(
		[]string{payerKey.String(), recipientKey.String(), "not-a-program"},
		MessageHeader{NumRequiredSignatures: 1, NumReadonlyUnsignedAccounts: 1},
		nil, nil,
	)
	require.Equal(t, []int{2}, invalid)

	norm := NewNormalizer(DefaultClassifier(), accounts)
	norm.MarkInvalidAccounts(invalid...)
	var reasons []string
	norm.OnDegraded = func(reason string) { reasons = append(reasons, reason) }

	info, err := norm.NormalizeCompiled(&CompiledInstruction{
		ProgramIDIndex: 2,
		Accounts:       []uint16{0, 1},
		Data:           systemTransferData(1_000_000_000),
	})
	require.NoError(t, err)
	assert.False(t, info.ProgramResolved())
	assert.Nil(t, info.ProgramName)
	assert.Equal(t, UnknownInstruction, info.InstructionType)
	assert.Len(t, info.Accounts, 2)
	assert.Equal(t, []string{DegradedInvalidProgramID}, reasons)
	assert.Empty(t, ExtractSolTransfers([]InstructionInfo{info}))
}

func TestNormalizer_InvalidKeysNotMatchedByAddress(t *testing.T) {
	accounts, invalid := ResolveCompiledAccounts(
		[]string{payerKey.String(), "not-a-key", SystemProgramID.String()},
		MessageHeader{NumRequiredSignatures: 1, NumReadonlyUnsignedAccounts: 1},
		[]uint64{10, 20, 30},
		[]uint64{10, 20, 31},
	)
	norm := NewNormalizer(DefaultClassifier(), accounts)
	norm.MarkInvalidAccounts(invalid...)

	info := norm.NormalizePartiallyDecoded(&PartiallyDecodedInstruction{
		ProgramID: ComputeBudgetProgramID.String(),
		Accounts:  []string{SystemProgramID.String()},
	})
	require.Len(t, info.Accounts, 1)
	require.NotNil(t, info.Accounts[0].PreBalance)
	assert.Equal(t, uint64(30), *info.Accounts[0].PreBalance)
}

func TestNormalizeParsed_DecimalLimitKeptVerbatim(t *testing.T) {
	info := NewNormalizer(DefaultClassifier(), nil).NormalizeParsed(&ParsedInstruction{
		ProgramID: ComputeBudgetProgramID.String(),
		Parsed:    json.RawMessage(`{"type":"SetComputeUnitLimit","info":12345}`),
	})
	assert.Equal(t, "12345", info.RawData)

	limit := ExtractMaxComputeUnits([]InstructionInfo{info})
	require.NotNil(t, limit)
	assert.Equal(t, uint64(12345), *limit)
}

func TestNormalizePartiallyDecoded(t *testing.T) {
	norm := NewNormalizer(DefaultClassifier(), testAccounts())
	stranger := testKey(7)

	data := computeUnitPriceData(1000)
	info := norm.NormalizePartiallyDecoded(&PartiallyDecodedInstruction{
		ProgramID: ComputeBudgetProgramID.String(),
		Accounts:  []string{payerKey.String(), "bogus", stranger.String()},
		Data:      data,
	})

	assert.Equal(t, ComputeBudgetProgramID, info.ProgramID)
	assert.Equal(t, "Compute Budget", *info.ProgramName)
	assert.Equal(t, "SetComputeUnitPrice", info.InstructionType)
	assert.Equal(t, data+" (9 bytes)", info.RawData)

	require.Len(t, info.Accounts, 2)
	assert.Equal(t, payerKey, info.Accounts[0].Pubkey)
	assert.True(t, info.Accounts[0].IsSigner)
	assert.True(t, info.Accounts[0].IsWritable)
	assert.Equal(t, stranger, info.Accounts[1].Pubkey)
	assert.False(t, info.Accounts[1].IsSigner)
	assert.Nil(t, info.Accounts[1].PreBalance)
}

func TestNormalize_Dispatch(t *testing.T) {
	norm := NewNormalizer(DefaultClassifier(), testAccounts())

	info, err := norm.Normalize(&CompiledInstruction{ProgramIDIndex: 2, Data: systemTransferData(1)})
	require.NoError(t, err)
	assert.Equal(t, "Transfer", info.InstructionType)

	info, err = norm.Normalize(&ParsedInstruction{ProgramID: SystemProgramID.String(), Parsed: json.RawMessage(`{"type":"transfer"}`)})
	require.NoError(t, err)
	assert.Equal(t, "transfer", info.InstructionType)

	info, err = norm.Normalize(&PartiallyDecodedInstruction{ProgramID: SystemProgramID.String(), Data: systemTransferData(1)})
	require.NoError(t, err)
	assert.Equal(t, "Transfer", info.InstructionType)
}

func TestCompiledPlaceholder(t *testing.T) {
	info := compiledPlaceholder(&CompiledInstruction{ProgramIDIndex: 9, Data: "3Bxs"})
	assert.True(t, info.ProgramID.IsZero())
	assert.Nil(t, info.ProgramName)
	assert.Equal(t, UnknownCompiledInstruction, info.InstructionType)
	assert.Equal(t, "3Bxs", info.RawData)
	assert.Empty(t, info.Accounts)
}

func TestAnnotateData(t *testing.T) {
	three := base58.Encode([]byte{1, 2, 3})

	assert.Equal(t, three+" (3 bytes)", annotateData(three))
	assert.Equal(t, "0xdeadbeef", annotateData("0xdeadbeef"))
	assert.Equal(t, "", annotateData(""))
	assert.Equal(t, three, firstToken(annotateData(three)))
	assert.Equal(t, "", firstToken("   "))
}
