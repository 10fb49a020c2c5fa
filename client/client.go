package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/brojonat/solscope/service/solana"
)

// Inspection is a stored transaction as returned by the inspections endpoints.
// Transaction is only populated by GetInspection.
type Inspection struct {
	Signature            string                  `json:"signature"`
	Network              string                  `json:"network"`
	Slot                 int64                   `json:"slot"`
	BlockTime            *time.Time              `json:"block_time,omitempty"`
	Fee                  int64                   `json:"fee"`
	Success              bool                    `json:"success"`
	Error                *string                 `json:"error,omitempty"`
	PriorityFee          *int64                  `json:"priority_fee,omitempty"`
	MaxComputeUnits      *int64                  `json:"max_compute_units,omitempty"`
	ComputeUnitsConsumed *int64                  `json:"compute_units_consumed,omitempty"`
	Version              *string                 `json:"version,omitempty"`
	InstructionCount     int32                   `json:"instruction_count"`
	SolTransferred       int64                   `json:"sol_transferred"`
	Transaction          *solana.TransactionData `json:"transaction,omitempty"`
	CreatedAt            time.Time               `json:"created_at"`
	UpdatedAt            time.Time               `json:"updated_at"`
}

// InspectionList is one page of stored transactions.
type InspectionList struct {
	Transactions []*Inspection `json:"transactions"`
	Count        int           `json:"count"`
	Total        int64         `json:"total"`
	Limit        int32         `json:"limit"`
	Offset       int32         `json:"offset"`
}

// ListInspectionsParams filters ListInspections. Zero values use server defaults.
type ListInspectionsParams struct {
	Network string
	Limit   int
	Offset  int
}

// BatchRequest asks the server to inspect several signatures in a workflow.
type BatchRequest struct {
	Network    string   `json:"network,omitempty"`
	Signatures []string `json:"signatures"`
	Persist    bool     `json:"persist"`
	Publish    bool     `json:"publish"`
}

// Batch identifies a started batch inspection.
type Batch struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
	Network    string `json:"network"`
	Requested  int    `json:"requested"`
}

// BatchItem is the outcome for one signature of a batch.
type BatchItem struct {
	Signature        string  `json:"signature"`
	Network          string  `json:"network"`
	Decoded          bool    `json:"decoded"`
	Slot             uint64  `json:"slot,omitempty"`
	Fee              uint64  `json:"fee,omitempty"`
	Status           string  `json:"status,omitempty"`
	InstructionCount int     `json:"instruction_count"`
	SolTransferred   uint64  `json:"sol_transferred"`
	PriorityFee      *uint64 `json:"priority_fee,omitempty"`
	Persisted        bool    `json:"persisted"`
	Published        bool    `json:"published"`
	Error            *string `json:"error,omitempty"`
}

// BatchResult is the outcome of a completed batch inspection.
type BatchResult struct {
	Network   string      `json:"network"`
	Requested int         `json:"requested"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Results   []BatchItem `json:"results"`
}

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client is the HTTP client for the solscope inspection API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new inspection API client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// GetTransaction fetches and decodes a transaction through the server.
// An empty network uses the server's default.
func (c *Client) GetTransaction(ctx context.Context, signature, network string) (*solana.TransactionData, error) {
	var data solana.TransactionData
	u := withQuery("/api/v1/transactions/"+url.PathEscape(signature), url.Values{"network": {network}})
	if err := c.do(ctx, http.MethodGet, u, nil, http.StatusOK, &data); err != nil {
		return nil, err
	}
	c.logger.Debug("transaction fetched", "signature", signature, "network", network)
	return &data, nil
}

// Decode decodes a raw RPC transaction record without an RPC call. An empty
// signature uses the record's first signature.
func (c *Client) Decode(ctx context.Context, record []byte, signature string) (*solana.TransactionData, error) {
	var data solana.TransactionData
	u := withQuery("/api/v1/decode", url.Values{"signature": {signature}})
	if err := c.do(ctx, http.MethodPost, u, record, http.StatusOK, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetAccount fetches the account view of an address.
func (c *Client) GetAccount(ctx context.Context, address, network string) (*solana.AccountData, error) {
	var account solana.AccountData
	u := withQuery("/api/v1/accounts/"+url.PathEscape(address), url.Values{"network": {network}})
	if err := c.do(ctx, http.MethodGet, u, nil, http.StatusOK, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// ListPrograms returns the server's program registry.
func (c *Client) ListPrograms(ctx context.Context) ([]solana.Program, error) {
	var resp struct {
		Programs []solana.Program `json:"programs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/programs", nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Programs, nil
}

// ListInspections lists stored transactions, newest slot first.
func (c *Client) ListInspections(ctx context.Context, params ListInspectionsParams) (*InspectionList, error) {
	q := url.Values{"network": {params.Network}}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		q.Set("offset", strconv.Itoa(params.Offset))
	}

	var list InspectionList
	if err := c.do(ctx, http.MethodGet, withQuery("/api/v1/inspections", q), nil, http.StatusOK, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetInspection retrieves one stored transaction with its decoded payload.
func (c *Client) GetInspection(ctx context.Context, signature, network string) (*Inspection, error) {
	var inspection Inspection
	u := withQuery("/api/v1/inspections/"+url.PathEscape(signature), url.Values{"network": {network}})
	if err := c.do(ctx, http.MethodGet, u, nil, http.StatusOK, &inspection); err != nil {
		return nil, err
	}
	return &inspection, nil
}

// StartBatch starts a batch inspection workflow on the server.
func (c *Client) StartBatch(ctx context.Context, req BatchRequest) (*Batch, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var batch Batch
	if err := c.do(ctx, http.MethodPost, "/api/v1/batches", body, http.StatusAccepted, &batch); err != nil {
		return nil, err
	}
	c.logger.Debug("batch started", "workflow_id", batch.WorkflowID, "signatures", len(req.Signatures))
	return &batch, nil
}

// GetBatch waits for a batch workflow to complete and returns its result.
func (c *Client) GetBatch(ctx context.Context, workflowID, runID string) (*BatchResult, error) {
	var result BatchResult
	u := withQuery("/api/v1/batches/"+url.PathEscape(workflowID), url.Values{"run_id": {runID}})
	if err := c.do(ctx, http.MethodGet, u, nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, http.StatusOK, nil)
}

// do sends a request and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body []byte, want int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return c.parseErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// withQuery appends the non-empty values of q to path.
func withQuery(path string, q url.Values) string {
	for k, v := range q {
		if len(v) == 0 || v[0] == "" {
			q.Del(k)
		}
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(body))}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
}
