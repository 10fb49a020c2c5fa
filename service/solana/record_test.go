package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransactionRecord_NotFound(t *testing.T) {
	for _, in := range []string{"null", "", "  null\n"} {
		rec, err := ParseTransactionRecord([]byte(in))
		assert.ErrorIs(t, err, ErrTransactionNotFound)
		assert.Nil(t, rec)
	}
}

func TestParseTransactionRecord_Invalid(t *testing.T) {
	_, err := ParseTransactionRecord([]byte(`{"slot": "abc"}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTransactionNotFound)
}

func TestParseTransactionRecord_BinaryEncoding(t *testing.T) {
	rec, err := ParseTransactionRecord([]byte(`{
		"slot": 1,
		"meta": {"err": null, "fee": 5000, "preBalances": [], "postBalances": []},
		"transaction": ["AQID", "base64"]
	}`))
	require.NoError(t, err)
	assert.Nil(t, rec.Transaction.Message)
	assert.Empty(t, rec.Transaction.Signatures)
	require.NotNil(t, rec.Meta)
	assert.False(t, rec.Meta.Failed())
}

func TestParseTransactionRecord_Compiled(t *testing.T) {
	rec := loadRecord(t, "compiled_transfer.json")

	msg, ok := rec.Transaction.Message.(*CompiledMessage)
	require.True(t, ok, "expected compiled message, got %T", rec.Transaction.Message)
	assert.Equal(t, MessageHeader{NumRequiredSignatures: 1, NumReadonlyUnsignedAccounts: 1}, msg.Header)
	assert.Len(t, msg.AccountKeys, 3)
	require.Len(t, msg.Instructions, 1)

	ix, ok := msg.Instructions[0].(*CompiledInstruction)
	require.True(t, ok)
	assert.Equal(t, uint16(2), ix.ProgramIDIndex)
	assert.Equal(t, []uint16{0, 1}, ix.Accounts)
	assert.Nil(t, ix.StackHeight)

	require.Len(t, rec.Meta.InnerInstructions, 1)
	inner := rec.Meta.InnerInstructions[0]
	assert.Equal(t, 0, inner.Index)
	require.Len(t, inner.Instructions, 2)
	second, ok := inner.Instructions[1].(*CompiledInstruction)
	require.True(t, ok)
	require.NotNil(t, second.StackHeight)
	assert.Equal(t, uint32(2), *second.StackHeight)
}

func TestParseTransactionRecord_Parsed(t *testing.T) {
	rec := loadRecord(t, "parsed_transfer.json")

	msg, ok := rec.Transaction.Message.(*ParsedMessage)
	require.True(t, ok, "expected parsed message, got %T", rec.Transaction.Message)
	require.Len(t, msg.AccountKeys, 5)
	assert.True(t, msg.AccountKeys[0].Signer)
	assert.Equal(t, "transaction", msg.AccountKeys[0].Source)

	require.Len(t, msg.Instructions, 4)
	assert.IsType(t, &PartiallyDecodedInstruction{}, msg.Instructions[0])
	assert.IsType(t, &PartiallyDecodedInstruction{}, msg.Instructions[1])
	assert.IsType(t, &ParsedInstruction{}, msg.Instructions[2])
	assert.IsType(t, &ParsedInstruction{}, msg.Instructions[3])

	memo := msg.Instructions[3].(*ParsedInstruction)
	assert.Equal(t, "spl-memo", memo.Program)
	assert.JSONEq(t, `"hello solscope"`, string(memo.Parsed))
}

func TestInstructions_UnmarshalRejectsNonObjects(t *testing.T) {
	var ixs Instructions
	err := ixs.UnmarshalJSON([]byte(`[{"programIdIndex": 0, "accounts": [], "data": ""}, 5]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instruction 1")
}

func TestTransactionMeta_Failed(t *testing.T) {
	assert.False(t, (&TransactionMeta{}).Failed())
	assert.False(t, (&TransactionMeta{Err: []byte("null")}).Failed())
	assert.True(t, (&TransactionMeta{Err: []byte(`"AccountInUse"`)}).Failed())
}
