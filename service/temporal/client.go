package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/solscope/service/metrics"
	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
)

// BatchInspector starts batch inspections. The HTTP server depends on this
// interface so it can be tested without a Temporal cluster.
type BatchInspector interface {
	StartInspectBatch(ctx context.Context, input InspectBatchInput) (workflowID, runID string, err error)
	GetInspectBatchResult(ctx context.Context, workflowID, runID string) (*InspectBatchResult, error)
}

var _ BatchInspector = (*Client)(nil)

// Client is a production implementation of BatchInspector that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		metrics:   m,
		logger:    logger,
	}, nil
}

// StartInspectBatch starts an InspectBatchWorkflow and returns without waiting for it.
func (c *Client) StartInspectBatch(ctx context.Context, input InspectBatchInput) (string, string, error) {
	id := workflowID(input.Network)

	c.logger.Debug("starting batch inspection",
		"workflow_id", id,
		"network", input.Network,
		"signatures", len(input.Signatures),
	)

	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: c.taskQueue,
		Memo: map[string]interface{}{
			"network":    input.Network,
			"signatures": len(input.Signatures),
			"created_by": "solscope",
		},
	}, InspectBatchWorkflow, input)
	if err != nil {
		c.logger.Error("failed to start batch inspection",
			"workflow_id", id,
			"error", err,
		)
		return "", "", fmt.Errorf("failed to start workflow %q: %w", id, err)
	}

	c.logger.Info("batch inspection started",
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
		"network", input.Network,
		"signatures", len(input.Signatures),
	)

	return run.GetID(), run.GetRunID(), nil
}

// GetInspectBatchResult blocks until the identified workflow completes and returns its result.
func (c *Client) GetInspectBatchResult(ctx context.Context, workflowID, runID string) (*InspectBatchResult, error) {
	var result InspectBatchResult
	if err := c.client.GetWorkflow(ctx, workflowID, runID).Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("workflow %q failed: %w", workflowID, err)
	}
	return &result, nil
}

// InspectBatch starts an InspectBatchWorkflow and waits for its result.
func (c *Client) InspectBatch(ctx context.Context, input InspectBatchInput) (*InspectBatchResult, error) {
	start := time.Now()

	id, runID, err := c.StartInspectBatch(ctx, input)
	if err != nil {
		return nil, err
	}

	result, err := c.GetInspectBatchResult(ctx, id, runID)
	if c.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		c.metrics.RecordWorkflowDuration(input.Network, status, time.Since(start).Seconds())
	}
	return result, err
}

// SDKClient returns the underlying Temporal SDK client for direct workflow operations.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// workflowID generates a unique workflow ID for a batch on a network.
func workflowID(network string) string {
	return "inspect-batch-" + network + "-" + uuid.NewString()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
