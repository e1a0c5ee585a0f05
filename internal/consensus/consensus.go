// Package consensus implements the ConsensusWriter capability set named
// in spec §9: submitEthereumTransaction, executeTransaction,
// executeAllTransaction, executeQuery, deleteFile,
// getTransactionRecordMetrics. It wraps a gRPC connection to the
// consensus node the same way the teacher's `rpc/backend` package wraps
// its query client — dial once, attach deadlines per call, surface
// headers/metadata errors as typed failures.
package consensus

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"cosmossdk.io/log"
	"github.com/cenkalti/backoff/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// Operator identifies the account that pays for and signs every
// transaction this relay submits.
type Operator struct {
	AccountID  string
	PrivateKey string
}

// Policy bundles the transport/retry knobs spec §6 names:
// SDK_GRPC_DEADLINE, SDK_MAX_ATTEMPTS, SDK_REQUEST_TIMEOUT.
type Policy struct {
	Deadline        time.Duration
	MaxAttempts     uint64
	RequestTimeout  time.Duration
	TLSEnabled      bool
}

// EthereumTransactionRequest carries an already-RLP-encoded Ethereum
// transaction, optionally with its call data relocated to an HFS file
// (spec §4.9 "oversized calldata" path).
type EthereumTransactionRequest struct {
	CallData    []byte
	CallDataFileID string
	// MaxTransactionFee is the generic max-tx-fee policy (spec §4.9 step 6a):
	// floor(gasPriceInTinybars * MAX_TX_FEE_THRESHOLD), applied to every
	// submission regardless of sender.
	MaxTransactionFee int64
	// MaxGasAllowance is the additional HBAR allowance granted only to
	// paymaster-subsidized recipients (spec §4.9 step 6b).
	MaxGasAllowance int64
}

// TransactionResponse is the consensus node's pre-execution
// acknowledgement: it confirms the transaction was accepted into
// consensus, not that it succeeded (spec §7: "ConsensusReject" vs
// "ConsensusPostExecution" are both possible after this returns).
type TransactionResponse struct {
	TransactionID string
	NodeID        string
	// EntityID carries the id of a newly created entity (e.g. the fileId
	// from a FileCreate), mirroring the receipt field the real HAPI
	// protobuf response would carry.
	EntityID string
}

// StatusError wraps a named consensus-node response status (WRONG_NONCE,
// INSUFFICIENT_PAYER_BALANCE, CONTRACT_REVERT_EXECUTED, ...) so callers
// can tell a pre-execution rejection (spec §7 "ConsensusReject") from a
// post-execution outcome ("ConsensusPostExecution") without depending on
// the underlying transport's error types.
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Status, e.Message)
	}
	return e.Status
}

// TransactionRecord is the post-consensus outcome used to reconcile
// against the mirror node and to report observed cost to the HBAR
// governor (spec §4.4, §4.9).
type TransactionRecord struct {
	TransactionID   string
	Status          string
	EthereumHash    []byte
	TransactionFee  int64
	ContractCallResult []byte
}

// FileInfo is the HFS file-info response used to verify a chunked
// upload landed with non-empty size before referencing it from an
// EthereumTransaction (spec §4.9 step: "FileInfo to verify non-empty
// size").
type FileInfo struct {
	FileID string
	Size   int64
	Deleted bool
}

// Client wraps the gRPC connection to one or more consensus nodes. The
// actual wire encoding of Hedera's HAPI protobufs is intentionally kept
// behind the NodeTransport seam below: this package owns connection
// management, deadlines, retries, and operator signing context, and
// delegates the protobuf construction/submission to whatever transport
// is wired in (cmd/relay wires UnconfiguredTransport; tests use a fake).
type Client struct {
	conn      *grpc.ClientConn
	transport NodeTransport
	operator  Operator
	policy    Policy
	logger    log.Logger
}

// NodeTransport is the seam between this package's policy/retry wrapper
// and the actual HAPI client that builds and signs protobuf messages.
type NodeTransport interface {
	SubmitEthereumTransaction(ctx context.Context, req EthereumTransactionRequest) (*TransactionResponse, error)
	ExecuteTransaction(ctx context.Context, kind string, payload []byte) (*TransactionResponse, error)
	ExecuteQuery(ctx context.Context, kind string, payload []byte) ([]byte, error)
	DeleteFile(ctx context.Context, fileID string) error
	GetTransactionRecord(ctx context.Context, transactionID string) (*TransactionRecord, error)
	GetFileInfo(ctx context.Context, fileID string) (*FileInfo, error)
}

// Dial opens the gRPC connection used for consensus-node I/O to the one
// target given, using TLS when policy.TLSEnabled and plaintext otherwise;
// the teacher's query-client dial in `rpc/backend` is the grounding for
// reusing a single long-lived *grpc.ClientConn across calls rather than
// dialing per-request.
func Dial(ctx context.Context, target string, policy Policy, operator Operator, transport NodeTransport, logger log.Logger) (*Client, error) {
	var creds credentials.TransportCredentials
	if policy.TLSEnabled {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	} else {
		creds = insecure.NewCredentials()
	}

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("dial consensus node %s: %w", target, err)
	}

	return &Client{
		conn:      conn,
		transport: transport,
		operator:  operator,
		policy:    policy,
		logger:    logger,
	}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = metadata.AppendToOutgoingContext(ctx, "operator-account", c.operator.AccountID)
	if c.policy.Deadline > 0 {
		return context.WithTimeout(ctx, c.policy.Deadline)
	}
	return context.WithCancel(ctx)
}

func (c *Client) retry(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	attempts := c.policy.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, attempts-1), ctx)
}

// SubmitEthereumTransaction submits a pre-signed Ethereum transaction
// envelope (spec §4.9). The SDK performs internal multi-node retry
// (spec §7 "Recovery policy"); this wrapper retries only transport-level
// failures before the node has acknowledged receipt.
func (c *Client) SubmitEthereumTransaction(ctx context.Context, req EthereumTransactionRequest) (*TransactionResponse, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	var resp *TransactionResponse
	err := backoff.Retry(func() error {
		var err error
		resp, err = c.transport.SubmitEthereumTransaction(callCtx, req)
		return err
	}, c.retry(callCtx))
	return resp, err
}

// ExecuteTransaction submits a non-Ethereum HAPI transaction (FileCreate,
// FileAppend) and returns once the node has acknowledged receipt.
func (c *Client) ExecuteTransaction(ctx context.Context, kind string, payload []byte) (*TransactionResponse, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()
	return c.transport.ExecuteTransaction(callCtx, kind, payload)
}

// ExecuteAllTransaction runs a sequence of HAPI transactions in order
// (the FileCreate → FileAppend* chunking sequence of spec §4.9), failing
// fast on the first error so the caller can still attempt file cleanup.
func (c *Client) ExecuteAllTransaction(ctx context.Context, kind string, payloads [][]byte) ([]*TransactionResponse, error) {
	out := make([]*TransactionResponse, 0, len(payloads))
	for _, payload := range payloads {
		resp, err := c.ExecuteTransaction(ctx, kind, payload)
		if err != nil {
			return out, err
		}
		out = append(out, resp)
	}
	return out, nil
}

// ExecuteQuery runs a paid HAPI query (FileInfo, TransactionRecord).
func (c *Client) ExecuteQuery(ctx context.Context, kind string, payload []byte) ([]byte, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()
	return c.transport.ExecuteQuery(callCtx, kind, payload)
}

// DeleteFile is best-effort HFS cleanup, deliberately detached from the
// request lifetime (spec §4.9, §8 invariant: "the file is deleted before
// the invocation's task tree terminates").
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()
	if err := c.transport.DeleteFile(callCtx, fileID); err != nil {
		c.logger.Error("HFS file delete failed, file will expire via its own TTL", "fileId", fileID, "error", err)
		return err
	}
	return nil
}

// GetTransactionRecordMetrics fetches the record used both for mirror
// reconciliation and for HBAR governor cost reporting.
func (c *Client) GetTransactionRecordMetrics(ctx context.Context, transactionID string) (*TransactionRecord, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()
	return c.transport.GetTransactionRecord(callCtx, transactionID)
}

func (c *Client) GetFileInfo(ctx context.Context, fileID string) (*FileInfo, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()
	return c.transport.GetFileInfo(callCtx, fileID)
}
