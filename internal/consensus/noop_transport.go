package consensus

import (
	"context"
	"errors"
)

// ErrTransportNotConfigured is returned by UnconfiguredTransport for
// every call. No Hedera HAPI protobuf SDK is among this module's
// dependencies (see DESIGN.md), so the real NodeTransport a deployment
// needs is an integration point left for whoever wires in that SDK,
// the same way this package already keeps protobuf encoding behind the
// NodeTransport seam rather than guessing at a wire format.
var ErrTransportNotConfigured = errors.New("consensus node transport not configured")

// UnconfiguredTransport is the default NodeTransport: every mirror-node
// read path keeps working without it, but any write path
// (sendRawTransaction, eth_call routed to consensus) fails cleanly
// instead of panicking on a nil transport.
type UnconfiguredTransport struct{}

func (UnconfiguredTransport) SubmitEthereumTransaction(context.Context, EthereumTransactionRequest) (*TransactionResponse, error) {
	return nil, ErrTransportNotConfigured
}

func (UnconfiguredTransport) ExecuteTransaction(context.Context, string, []byte) (*TransactionResponse, error) {
	return nil, ErrTransportNotConfigured
}

func (UnconfiguredTransport) ExecuteQuery(context.Context, string, []byte) ([]byte, error) {
	return nil, ErrTransportNotConfigured
}

func (UnconfiguredTransport) DeleteFile(context.Context, string) error {
	return ErrTransportNotConfigured
}

func (UnconfiguredTransport) GetTransactionRecord(context.Context, string) (*TransactionRecord, error) {
	return nil, ErrTransportNotConfigured
}

func (UnconfiguredTransport) GetFileInfo(context.Context, string) (*FileInfo, error) {
	return nil, ErrTransportNotConfigured
}
