package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"cosmossdk.io/log"
	"github.com/cenkalti/backoff/v4"
)

// UpstreamError is returned for any non-2xx mirror-node response that
// survives retries. Status carries the HTTP status code so callers can
// distinguish 400 (contract revert, validation) from 5xx (transient).
type UpstreamError struct {
	Status int
	Body   []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("mirror node upstream error: status=%d body=%s", e.Status, string(e.Body))
}

// IsContractRevert reports whether the error body carries the mirror
// node's contract-revert status, per spec §4.7/§7 ("UpstreamContract").
func (e *UpstreamError) IsContractRevert() bool {
	var body ContractCallErrorResponse
	if err := json.Unmarshal(e.Body, &body); err != nil {
		return false
	}
	return body.Status == "CONTRACT_REVERT_EXECUTED" || body.Status == "CONTRACT_REVERT"
}

// IsFailInvalid reports whether the error body carries a mirror-node
// FAIL_INVALID/INVALID_TRANSACTION status (spec §4.7: "returns `0x`").
func (e *UpstreamError) IsFailInvalid() bool {
	var body ContractCallErrorResponse
	if err := json.Unmarshal(e.Body, &body); err != nil {
		return false
	}
	return body.Status == "FAIL_INVALID" || body.Status == "INVALID_TRANSACTION"
}

// Client is the MirrorReader capability set (spec §9) implemented over
// the mirror node's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64
	logger     log.Logger
}

// NewClient builds a mirror-node client. maxRetries bounds the
// exponential backoff retry loop used for transient (5xx / network)
// failures; client errors (4xx) are never retried (spec §7 taxonomy).
func NewClient(baseURL string, timeout time.Duration, maxRetries uint64, logger log.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (c *Client) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.Multiplier = 2
	b.MaxInterval = 2 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)
}

// do executes an HTTP request, retrying transient failures (network
// errors and 5xx responses) with exponential backoff. 4xx responses are
// returned immediately as a permanent *UpstreamError.
func (c *Client) do(ctx context.Context, req *http.Request, out any) error {
	var body []byte

	operation := func() error {
		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err != nil {
			return err // network error: retryable
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode >= 500 {
			return &UpstreamError{Status: resp.StatusCode, Body: b}
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(&UpstreamError{Status: resp.StatusCode, Body: b})
		}

		body = b
		return nil
	}

	err := backoff.Retry(operation, c.retryPolicy(ctx))
	if err != nil {
		return err
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return c.do(ctx, req, out)
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, req, out)
}

// GetBlock fetches a single block by hash or decimal number.
func (c *Client) GetBlock(ctx context.Context, hashOrNumber string) (*BlockResponse, error) {
	var out BlockResponse
	if err := c.get(ctx, "/api/v1/blocks/"+hashOrNumber, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBlocks lists blocks, most recent first when order is "desc".
func (c *Client) GetBlocks(ctx context.Context, order string, limit int) (*BlocksResponse, error) {
	q := url.Values{}
	if order != "" {
		q.Set("order", order)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out BlocksResponse
	if err := c.get(ctx, "/api/v1/blocks", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetContractResult fetches a single contract result by transaction hash
// or transaction id.
func (c *Client) GetContractResult(ctx context.Context, hashOrTxID string) (*ContractResult, error) {
	var out ContractResult
	if err := c.get(ctx, "/api/v1/contracts/results/"+hashOrTxID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ContractResultsQuery parameterizes the `/contracts/results` list
// endpoint (spec §4.5/§4.8 block-assembly range queries).
type ContractResultsQuery struct {
	TimestampGTE     string
	TimestampLTE     string
	TransactionIndex int64
	Limit            int
	Order            string
}

// GetContractResults lists contract results within a timestamp range.
func (c *Client) GetContractResults(ctx context.Context, q ContractResultsQuery) (*ContractResultsResponse, error) {
	params := url.Values{}
	if q.TimestampGTE != "" {
		params.Add("timestamp", "gte:"+q.TimestampGTE)
	}
	if q.TimestampLTE != "" {
		params.Add("timestamp", "lte:"+q.TimestampLTE)
	}
	if q.TransactionIndex > 0 {
		params.Set("transaction.index", strconv.FormatInt(q.TransactionIndex, 10))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Order != "" {
		params.Set("order", q.Order)
	}
	var out ContractResultsResponse
	if err := c.get(ctx, "/api/v1/contracts/results", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetContractResultsLogs lists logs across all contracts within a
// timestamp range (spec §4.8 "orphan log" discovery).
func (c *Client) GetContractResultsLogs(ctx context.Context, timestampGTE, timestampLTE string, limit int) (*LogsResponse, error) {
	params := url.Values{}
	if timestampGTE != "" {
		params.Add("timestamp", "gte:"+timestampGTE)
	}
	if timestampLTE != "" {
		params.Add("timestamp", "lte:"+timestampLTE)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var out LogsResponse
	if err := c.get(ctx, "/api/v1/contracts/results/logs", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetContractsResultsLogsByAddress lists logs for a single contract
// address within a timestamp range (spec §4.5 single-address getLogs
// fast path).
func (c *Client) GetContractsResultsLogsByAddress(ctx context.Context, address, timestampGTE, timestampLTE string, topics []string, limit int) (*LogsResponse, error) {
	params := url.Values{}
	if timestampGTE != "" {
		params.Add("timestamp", "gte:"+timestampGTE)
	}
	if timestampLTE != "" {
		params.Add("timestamp", "lte:"+timestampLTE)
	}
	for i, topic := range topics {
		if topic == "" {
			continue
		}
		params.Add(fmt.Sprintf("topic%d", i), topic)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var out LogsResponse
	if err := c.get(ctx, "/api/v1/contracts/"+address+"/results/logs", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetContractResultLogsByHash lists the logs recorded against a single
// transaction hash or id (spec §4.9 getTransactionByHash/Receipt fallback
// for orphan-log-only transactions).
func (c *Client) GetContractResultLogsByHash(ctx context.Context, hashOrTxID string) (*LogsResponse, error) {
	var out LogsResponse
	if err := c.get(ctx, "/api/v1/contracts/results/"+hashOrTxID+"/logs", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAccount fetches account state, including the ethereum_nonce and
// balance fields precheck (C8) depends on.
func (c *Client) GetAccount(ctx context.Context, address string) (*Account, error) {
	var out Account
	if err := c.get(ctx, "/api/v1/accounts/"+address, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAccountAt fetches an account as of a historical consensus
// timestamp, used by eth_getBalance's block-parameter branch (spec
// §4.5-adjacent; the mirror node's own timestamp query param supplies
// the historical balance directly rather than this relay replaying
// transfers).
func (c *Client) GetAccountAt(ctx context.Context, address, timestampTo string) (*Account, error) {
	var params url.Values
	if timestampTo != "" {
		params = url.Values{"timestamp": {timestampTo}}
	}
	var out Account
	if err := c.get(ctx, "/api/v1/accounts/"+address, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// IsNotFound reports whether err is a mirror-node 404, the signal
// callers use to distinguish "entity does not exist" (often a zero
// value, not an error) from a real upstream failure.
func IsNotFound(err error) bool {
	var upstreamErr *UpstreamError
	return errors.As(err, &upstreamErr) && upstreamErr.Status == 404
}

// GetContract fetches `/contracts/{idOrEvmAddress}`, used for getCode's
// entity-type resolution (spec §4.7). A 404 means the address is not a
// contract; callers fall back to GetAccount.
func (c *Client) GetContract(ctx context.Context, idOrEvmAddress string) (*ContractEntity, error) {
	var out ContractEntity
	if err := c.get(ctx, "/api/v1/contracts/"+idOrEvmAddress, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetContractStateByAddressAndSlot resolves a single storage slot at a
// point in time (spec §4.7 getStorageAt).
func (c *Client) GetContractStateByAddressAndSlot(ctx context.Context, address, slot, timestampTo string) (*ContractState, error) {
	params := url.Values{"slot": {slot}}
	if timestampTo != "" {
		params.Set("timestamp", timestampTo)
	}
	var out ContractStateResponse
	if err := c.get(ctx, "/api/v1/contracts/"+address+"/state", params, &out); err != nil {
		return nil, err
	}
	if len(out.State) == 0 {
		return nil, nil
	}
	return &out.State[0], nil
}

// GetNetworkFees fetches the current gas-per-transaction-type fee
// schedule (spec §4.5 gasPrice).
func (c *Client) GetNetworkFees(ctx context.Context) (*NetworkFeesResponse, error) {
	var out NetworkFeesResponse
	if err := c.get(ctx, "/api/v1/network/fees", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetNetworkExchangeRate fetches the current tinybar/USD exchange rate
// (spec §4.4 HFS fee estimation).
func (c *Client) GetNetworkExchangeRate(ctx context.Context) (*ExchangeRateResponse, error) {
	var out ExchangeRateResponse
	if err := c.get(ctx, "/api/v1/network/exchangerate", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PostContractCall executes `POST /contracts/call`, used by both
// eth_call and eth_estimateGas (spec §4.7).
func (c *Client) PostContractCall(ctx context.Context, req ContractCallRequest) (*ContractCallResponse, error) {
	var out ContractCallResponse
	if err := c.post(ctx, "/api/v1/contracts/call", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
