package temporal

import (
	"time"

	"github.com/brojonat/solscope/service/solana"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// MaxParallelInspections bounds how many InspectTransaction activities a
// batch keeps in flight at once.
const MaxParallelInspections = 20

// MaxBatchSignatures is the largest batch InspectBatchWorkflow accepts.
const MaxBatchSignatures = 1000

// InspectBatchInput contains the parameters for InspectBatchWorkflow.
type InspectBatchInput struct {
	Network    string   `json:"network"`
	Signatures []string `json:"signatures"`
	Persist    bool     `json:"persist"`
	Publish    bool     `json:"publish"`
}

// InspectBatchResult contains the outcome of a batch inspection.
// Results are in the same order as the input signatures.
type InspectBatchResult struct {
	Network   string             `json:"network"`
	Requested int                `json:"requested"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Results   []InspectionResult `json:"results"`
}

// InspectBatchWorkflow inspects every signature in the input with one
// InspectTransaction activity each. Decodes are independent, so activities
// run concurrently in windows of MaxParallelInspections. A failed activity
// is recorded in its result and never fails the workflow.
func InspectBatchWorkflow(ctx workflow.Context, input InspectBatchInput) (*InspectBatchResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("InspectBatchWorkflow started",
		"network", input.Network,
		"signatures", len(input.Signatures),
	)

	network, err := solana.ParseNetwork(input.Network)
	if err != nil {
		return nil, temporalsdk.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidInput, err)
	}
	if len(input.Signatures) > MaxBatchSignatures {
		return nil, temporalsdk.NewNonRetryableApplicationError(
			"too many signatures in batch", ErrTypeInvalidInput, nil, len(input.Signatures))
	}

	result := &InspectBatchResult{
		Network:   string(network),
		Requested: len(input.Signatures),
		Results:   make([]InspectionResult, len(input.Signatures)),
	}

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 60 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
			NonRetryableErrorTypes: []string{
				ErrTypeInvalidInput,
				ErrTypeNotFound,
				ErrTypeUndecodable,
				ErrTypeNotConfigured,
			},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	for start := 0; start < len(input.Signatures); start += MaxParallelInspections {
		end := min(start+MaxParallelInspections, len(input.Signatures))

		futures := make([]workflow.Future, 0, end-start)
		for _, sig := range input.Signatures[start:end] {
			futures = append(futures, workflow.ExecuteActivity(ctx, a.InspectTransaction, InspectTransactionInput{
				Network:   string(network),
				Signature: sig,
				Persist:   input.Persist,
				Publish:   input.Publish,
			}))
		}

		for i, f := range futures {
			idx := start + i
			sig := input.Signatures[idx]

			var inspected *InspectionResult
			if err := f.Get(ctx, &inspected); err != nil {
				logger.Warn("failed to inspect transaction", "signature", sig, "error", err)
				msg := err.Error()
				result.Results[idx] = InspectionResult{
					Signature: sig,
					Network:   string(network),
					Error:     &msg,
				}
				result.Failed++
				continue
			}
			if inspected == nil {
				inspected = &InspectionResult{Signature: sig, Network: string(network)}
			}
			result.Results[idx] = *inspected
			result.Succeeded++
		}
	}

	logger.Info("InspectBatchWorkflow completed",
		"network", result.Network,
		"requested", result.Requested,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)

	return result, nil
}
