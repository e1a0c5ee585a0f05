package consensus

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type fakeTransport struct {
	submitErrs  []error
	submitCalls int
	records     map[string]*TransactionRecord
	deletedFile string
}

func (f *fakeTransport) SubmitEthereumTransaction(context.Context, EthereumTransactionRequest) (*TransactionResponse, error) {
	idx := f.submitCalls
	f.submitCalls++
	if idx < len(f.submitErrs) && f.submitErrs[idx] != nil {
		return nil, f.submitErrs[idx]
	}
	return &TransactionResponse{TransactionID: "0.0.1001@1.1"}, nil
}

func (f *fakeTransport) ExecuteTransaction(context.Context, string, []byte) (*TransactionResponse, error) {
	return &TransactionResponse{TransactionID: "0.0.1001@1.2"}, nil
}

func (f *fakeTransport) ExecuteQuery(context.Context, string, []byte) ([]byte, error) {
	return []byte("ok"), nil
}

func (f *fakeTransport) DeleteFile(_ context.Context, fileID string) error {
	f.deletedFile = fileID
	return nil
}

func (f *fakeTransport) GetTransactionRecord(_ context.Context, transactionID string) (*TransactionRecord, error) {
	if rec, ok := f.records[transactionID]; ok {
		return rec, nil
	}
	return &TransactionRecord{TransactionID: transactionID, Status: "SUCCESS"}, nil
}

func (f *fakeTransport) GetFileInfo(context.Context, string) (*FileInfo, error) {
	return &FileInfo{Size: 128}, nil
}

func newTestClient(t *testing.T, transport NodeTransport, policy Policy) *Client {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &Client{
		conn:      conn,
		transport: transport,
		operator:  Operator{AccountID: "0.0.2"},
		policy:    policy,
		logger:    log.NewNopLogger(),
	}
}

func TestSubmitEthereumTransactionSucceeds(t *testing.T) {
	t.Parallel()
	transport := &fakeTransport{}
	c := newTestClient(t, transport, Policy{MaxAttempts: 3, Deadline: time.Second})

	resp, err := c.SubmitEthereumTransaction(context.Background(), EthereumTransactionRequest{CallData: []byte{0x01}})
	require.NoError(t, err)
	require.Equal(t, "0.0.1001@1.1", resp.TransactionID)
}

func TestSubmitEthereumTransactionRetriesTransportFailures(t *testing.T) {
	t.Parallel()
	transport := &fakeTransport{submitErrs: []error{errors.New("unavailable"), errors.New("unavailable")}}
	c := newTestClient(t, transport, Policy{MaxAttempts: 3, Deadline: time.Second})

	resp, err := c.SubmitEthereumTransaction(context.Background(), EthereumTransactionRequest{})
	require.NoError(t, err)
	require.NotNil(t, resp)
	require.Equal(t, 3, transport.submitCalls)
}

func TestSubmitEthereumTransactionExhaustsRetries(t *testing.T) {
	t.Parallel()
	transport := &fakeTransport{submitErrs: []error{errors.New("down"), errors.New("down"), errors.New("down")}}
	c := newTestClient(t, transport, Policy{MaxAttempts: 2, Deadline: time.Second})

	_, err := c.SubmitEthereumTransaction(context.Background(), EthereumTransactionRequest{})
	require.Error(t, err)
	require.Equal(t, 2, transport.submitCalls)
}

func TestDeleteFileDelegatesToTransport(t *testing.T) {
	t.Parallel()
	transport := &fakeTransport{}
	c := newTestClient(t, transport, Policy{MaxAttempts: 1, Deadline: time.Second})

	require.NoError(t, c.DeleteFile(context.Background(), "0.0.9999"))
	require.Equal(t, "0.0.9999", transport.deletedFile)
}

func TestGetTransactionRecordMetricsReturnsFakeRecord(t *testing.T) {
	t.Parallel()
	transport := &fakeTransport{records: map[string]*TransactionRecord{
		"0.0.1001@1.1": {TransactionID: "0.0.1001@1.1", Status: "SUCCESS", TransactionFee: 500},
	}}
	c := newTestClient(t, transport, Policy{MaxAttempts: 1, Deadline: time.Second})

	rec, err := c.GetTransactionRecordMetrics(context.Background(), "0.0.1001@1.1")
	require.NoError(t, err)
	require.Equal(t, int64(500), rec.TransactionFee)
}
