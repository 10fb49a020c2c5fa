package temporal

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

func newWorkflowEnv(t *testing.T) (*testsuite.TestWorkflowEnvironment, *Activities) {
	t.Helper()
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	// Register activities first (before mocking)
	activities := &Activities{}
	env.RegisterActivity(activities.InspectTransaction)
	return env, activities
}

func succeeded(input InspectTransactionInput) *InspectionResult {
	return &InspectionResult{
		Signature:        input.Signature,
		Network:          input.Network,
		Decoded:          true,
		Slot:             1000,
		Fee:              5000,
		Status:           "Success",
		InstructionCount: 2,
		Persisted:        input.Persist,
		Published:        input.Publish,
	}
}

func TestInspectBatchWorkflow(t *testing.T) {
	tests := []struct {
		name           string
		input          InspectBatchInput
		activity       func(context.Context, InspectTransactionInput) (*InspectionResult, error)
		expectedError  bool
		validateResult func(*testing.T, *InspectBatchResult)
	}{
		{
			name: "all signatures succeed",
			input: InspectBatchInput{
				Network:    "mainnet",
				Signatures: []string{"sig1", "sig2", "sig3"},
				Persist:    true,
			},
			activity: func(_ context.Context, in InspectTransactionInput) (*InspectionResult, error) {
				return succeeded(in), nil
			},
			validateResult: func(t *testing.T, result *InspectBatchResult) {
				assert.Equal(t, "mainnet", result.Network)
				assert.Equal(t, 3, result.Requested)
				assert.Equal(t, 3, result.Succeeded)
				assert.Equal(t, 0, result.Failed)
				require.Len(t, result.Results, 3)
				for i, sig := range []string{"sig1", "sig2", "sig3"} {
					assert.Equal(t, sig, result.Results[i].Signature)
					assert.True(t, result.Results[i].Persisted)
					assert.False(t, result.Results[i].Published)
					assert.Nil(t, result.Results[i].Error)
				}
			},
		},
		{
			name: "failed signatures are recorded without failing the batch",
			input: InspectBatchInput{
				Network:    "devnet",
				Signatures: []string{"sig1", "missing", "sig3"},
			},
			activity: func(_ context.Context, in InspectTransactionInput) (*InspectionResult, error) {
				if in.Signature == "missing" {
					return nil, temporalsdk.NewNonRetryableApplicationError("transaction not found", ErrTypeNotFound, nil)
				}
				return succeeded(in), nil
			},
			validateResult: func(t *testing.T, result *InspectBatchResult) {
				assert.Equal(t, "devnet", result.Network)
				assert.Equal(t, 3, result.Requested)
				assert.Equal(t, 2, result.Succeeded)
				assert.Equal(t, 1, result.Failed)
				require.Len(t, result.Results, 3)

				failed := result.Results[1]
				assert.Equal(t, "missing", failed.Signature)
				assert.Equal(t, "devnet", failed.Network)
				assert.False(t, failed.Decoded)
				require.NotNil(t, failed.Error)
				assert.Contains(t, *failed.Error, "transaction not found")

				assert.True(t, result.Results[0].Decoded)
				assert.True(t, result.Results[2].Decoded)
			},
		},
		{
			name: "network aliases are normalized",
			input: InspectBatchInput{
				Network:    "mainnet-beta",
				Signatures: []string{"sig1"},
			},
			activity: func(_ context.Context, in InspectTransactionInput) (*InspectionResult, error) {
				if in.Network != "mainnet" {
					return nil, fmt.Errorf("unexpected network %q", in.Network)
				}
				return succeeded(in), nil
			},
			validateResult: func(t *testing.T, result *InspectBatchResult) {
				assert.Equal(t, "mainnet", result.Network)
				assert.Equal(t, 1, result.Succeeded)
			},
		},
		{
			name: "empty batch",
			input: InspectBatchInput{
				Network: "testnet",
			},
			activity: func(_ context.Context, in InspectTransactionInput) (*InspectionResult, error) {
				return nil, errors.New("should not be called")
			},
			validateResult: func(t *testing.T, result *InspectBatchResult) {
				assert.Equal(t, 0, result.Requested)
				assert.Equal(t, 0, result.Succeeded)
				assert.Equal(t, 0, result.Failed)
				assert.Empty(t, result.Results)
			},
		},
		{
			name: "unknown network fails the workflow",
			input: InspectBatchInput{
				Network:    "localnet",
				Signatures: []string{"sig1"},
			},
			activity: func(_ context.Context, in InspectTransactionInput) (*InspectionResult, error) {
				return succeeded(in), nil
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, activities := newWorkflowEnv(t)
			env.OnActivity(activities.InspectTransaction, mock.Anything, mock.Anything).Return(tt.activity)

			env.ExecuteWorkflow(InspectBatchWorkflow, tt.input)

			require.True(t, env.IsWorkflowCompleted())
			if tt.expectedError {
				assert.Error(t, env.GetWorkflowError())
				return
			}
			require.NoError(t, env.GetWorkflowError())

			var result InspectBatchResult
			require.NoError(t, env.GetWorkflowResult(&result))
			tt.validateResult(t, &result)
		})
	}
}

func TestInspectBatchWorkflow_PreservesOrderAcrossWindows(t *testing.T) {
	env, activities := newWorkflowEnv(t)

	signatures := make([]string, MaxParallelInspections*2+5)
	for i := range signatures {
		signatures[i] = fmt.Sprintf("sig%03d", i)
	}

	env.OnActivity(activities.InspectTransaction, mock.Anything, mock.Anything).
		Return(func(_ context.Context, in InspectTransactionInput) (*InspectionResult, error) {
			if in.Signature == "sig007" {
				return nil, temporalsdk.NewNonRetryableApplicationError("bad signature", ErrTypeInvalidInput, nil)
			}
			return succeeded(in), nil
		})

	env.ExecuteWorkflow(InspectBatchWorkflow, InspectBatchInput{Network: "mainnet", Signatures: signatures})
	require.NoError(t, env.GetWorkflowError())

	var result InspectBatchResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, len(signatures), result.Requested)
	assert.Equal(t, len(signatures)-1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Results, len(signatures))
	for i, sig := range signatures {
		assert.Equal(t, sig, result.Results[i].Signature)
	}
	assert.NotNil(t, result.Results[7].Error)
}

func TestInspectBatchWorkflow_TooManySignatures(t *testing.T) {
	env, _ := newWorkflowEnv(t)

	env.ExecuteWorkflow(InspectBatchWorkflow, InspectBatchInput{
		Network:    "mainnet",
		Signatures: make([]string, MaxBatchSignatures+1),
	})

	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
}

func TestInspectBatchWorkflow_ActivityRetries(t *testing.T) {
	env, activities := newWorkflowEnv(t)

	// Fail twice with a retryable error, then succeed
	callCount := 0
	env.OnActivity(activities.InspectTransaction, mock.Anything, mock.Anything).
		Return(func(_ context.Context, in InspectTransactionInput) (*InspectionResult, error) {
			callCount++
			if callCount < 3 {
				return nil, errors.New("rpc unavailable")
			}
			return succeeded(in), nil
		})

	env.ExecuteWorkflow(InspectBatchWorkflow, InspectBatchInput{Network: "mainnet", Signatures: []string{"sig1"}})
	require.NoError(t, env.GetWorkflowError())

	var result InspectBatchResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 3, callCount)
}

func TestInspectBatchWorkflow_RetriesExhausted(t *testing.T) {
	env, activities := newWorkflowEnv(t)

	callCount := 0
	env.OnActivity(activities.InspectTransaction, mock.Anything, mock.Anything).
		Return(func(_ context.Context, in InspectTransactionInput) (*InspectionResult, error) {
			callCount++
			return nil, errors.New("rpc unavailable")
		})

	startTime := env.Now()
	env.ExecuteWorkflow(InspectBatchWorkflow, InspectBatchInput{Network: "mainnet", Signatures: []string{"sig1"}})
	require.NoError(t, env.GetWorkflowError())

	var result InspectBatchResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 3, callCount)
	assert.Less(t, env.Now().Sub(startTime), 5*time.Minute)
}

func TestInspectBatchWorkflow_NonRetryableNotRetried(t *testing.T) {
	env, activities := newWorkflowEnv(t)

	callCount := 0
	env.OnActivity(activities.InspectTransaction, mock.Anything, mock.Anything).
		Return(func(_ context.Context, in InspectTransactionInput) (*InspectionResult, error) {
			callCount++
			return nil, temporalsdk.NewNonRetryableApplicationError("no metadata", ErrTypeUndecodable, nil)
		})

	env.ExecuteWorkflow(InspectBatchWorkflow, InspectBatchInput{Network: "mainnet", Signatures: []string{"sig1"}})
	require.NoError(t, env.GetWorkflowError())
	assert.Equal(t, 1, callCount)
}
