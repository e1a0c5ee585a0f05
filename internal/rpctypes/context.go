// Package rpctypes holds the Ethereum-shaped data model the relay core
// produces and consumes: the request context threaded through every
// operation, parsed transaction variants, blocks, receipts and logs.
//
// The shapes here mirror what `rpc/backend/*.go` in the teacher repo
// returns from its Backend methods (plain structs convertible to the
// `map[string]interface{}` the go-ethereum JSON-RPC server marshals),
// adapted from a Cosmos-SDK chain's event log to a Hedera mirror node's
// REST shapes.
package rpctypes

// RequestContext is the immutable record threaded through every operation
// for logging and cache namespacing (spec §3 "Request Context").
type RequestContext struct {
	RequestID        string
	ConnectionID     string
	IPAddress        string
	FormattedPrefix  string
}

// NewRequestContext builds the formatted log prefix once, matching the
// convention of `rpc/backend/*.go`'s `"eth_getTransactionByHash"`-style
// debug log lines: `[requestId] eth_methodName:`.
func NewRequestContext(requestID, connectionID, ipAddress string) RequestContext {
	prefix := requestID
	if connectionID != "" {
		prefix = requestID + " (conn " + connectionID + ")"
	}
	return RequestContext{
		RequestID:       requestID,
		ConnectionID:    connectionID,
		IPAddress:       ipAddress,
		FormattedPrefix: "[" + prefix + "]",
	}
}
