package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/brojonat/solscope/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testData() *solana.TransactionData {
	blockTime := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	fee := uint64(50_000)
	from := solanago.MustPublicKeyFromBase58("4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi")
	to := solanago.MustPublicKeyFromBase58("8qbHbw2BbbTHBW1sbeqakYXVKRQM8Ne7pLK7m6CVfeR")
	systemName := "System Program"

	return &solana.TransactionData{
		Signature: solanago.MustSignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"),
		Slot:      250_000_000,
		BlockTime: &blockTime,
		Fee:       5000,
		Status:    solana.Failure("InstructionError(1, Custom(6001))"),
		Instructions: []solana.InstructionInfo{
			{ProgramID: solana.ComputeBudgetProgramID, InstructionType: "SetComputeUnitPrice"},
			{ProgramID: solana.SystemProgramID, ProgramName: &systemName, InstructionType: "Transfer"},
		},
		SolTransfers: []solana.SolTransfer{
			{From: from, To: to, Amount: 1_000},
			{From: to, To: from, Amount: 500},
		},
		Memos:       []string{"invoice 7"},
		PriorityFee: &fee,
	}
}

func TestFromTransactionData(t *testing.T) {
	before := time.Now().UTC()
	event := FromTransactionData(solana.Devnet, testData())

	assert.Equal(t, "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7", event.Signature)
	assert.Equal(t, "devnet", event.Network)
	assert.Equal(t, uint64(250_000_000), event.Slot)
	assert.Equal(t, uint64(5000), event.Fee)
	assert.False(t, event.Success)
	assert.Equal(t, "InstructionError(1, Custom(6001))", event.Error)
	require.NotNil(t, event.PriorityFee)
	assert.Equal(t, uint64(50_000), *event.PriorityFee)
	assert.Equal(t, []string{"SetComputeUnitPrice", "Transfer"}, event.InstructionTypes)
	assert.Equal(t, []string{solana.ComputeBudgetProgramID.String(), "System Program"}, event.Programs)
	assert.Equal(t, uint64(1_500), event.SolTransferred)
	assert.Equal(t, []string{"invoice 7"}, event.Memos)
	assert.False(t, event.PublishedAt.Before(before))
	assert.Equal(t, "inspections.devnet", event.Subject())
}

func TestFromTransactionData_Empty(t *testing.T) {
	event := FromTransactionData(solana.Mainnet, &solana.TransactionData{Status: solana.Success()})

	assert.True(t, event.Success)
	assert.Empty(t, event.Error)
	assert.NotNil(t, event.InstructionTypes)
	assert.NotNil(t, event.Programs)

	raw, err := json.Marshal(event)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"error"`)
	assert.Contains(t, string(raw), `"programs":[]`)
}

func TestStreamConfig(t *testing.T) {
	cfg := StreamConfig()
	assert.Equal(t, "INSPECTIONS", cfg.Name)
	assert.Equal(t, []string{"inspections.*"}, cfg.Subjects)
	assert.Equal(t, StreamRetention, cfg.MaxAge)
}

func TestMockPublisher(t *testing.T) {
	ctx := context.Background()
	mock := NewMockPublisher()

	mainnet := FromTransactionData(solana.Mainnet, testData())
	devnet := FromTransactionData(solana.Devnet, testData())

	require.NoError(t, mock.PublishInspection(ctx, mainnet))
	require.NoError(t, mock.PublishInspectionBatch(ctx, []*InspectionEvent{devnet, devnet}))
	assert.Equal(t, 3, mock.GetPublishedEventCount())
	assert.Len(t, mock.GetPublishedEventsForNetwork("devnet"), 2)

	mock.SetPublishError(errors.New("nats down"))
	assert.Error(t, mock.PublishInspection(ctx, mainnet))
	assert.Equal(t, 3, mock.GetPublishedEventCount())

	require.NoError(t, mock.Close())
	assert.True(t, mock.IsClosed())

	mock.Reset()
	assert.Zero(t, mock.GetPublishedEventCount())
	assert.False(t, mock.IsClosed())
}
