// Package jsonrpcerr implements the JSON-RPC error taxonomy of spec §6/§7.
// The upstream clients (internal/mirror, internal/consensus) return plain
// Go errors; the services above them classify failures into the
// stable-coded errors this package constructs.
package jsonrpcerr

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Code is a JSON-RPC error code, spec §6.
type Code int

const (
	CodeInvalidRequest       Code = -32600
	CodeInvalidParameter     Code = -32602
	CodeTransactionRejected  Code = -32003
	CodeGeneric              Code = -32000
	CodeContractRevert       Code = -32015
	CodeIPRateLimitExceeded  Code = -32605
	CodeHBarRateLimitExceeded Code = -32606
	CodeMirrorNodeUpstreamFail Code = -32020
	CodeInternalError        Code = -32603
)

// Error is a JSON-RPC shaped error carrying a stable code, a message, and
// optional revert data (spec §7 taxonomy categories 1-6).
type Error struct {
	Code    Code
	Message string
	Data    []byte // raw revert data, only set for CONTRACT_REVERT
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// ErrorCode and ErrorData satisfy go-ethereum/rpc's Error/DataError
// interfaces so the JSON-RPC server encodes the stable code and revert
// data this package computed rather than a generic -32000.
func (e *Error) ErrorCode() int { return int(e.Code) }

func (e *Error) ErrorData() interface{} {
	if len(e.Data) == 0 {
		return nil
	}
	return hexutil.Encode(e.Data)
}

func newErr(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, cause: cause}
}

// Client errors (category 1: never retried, surfaced verbatim).
func InvalidRequest(msg string) *Error   { return newErr(CodeInvalidRequest, msg, nil) }
func InvalidParameter(field, reason string) *Error {
	return newErr(CodeInvalidParameter, fmt.Sprintf("invalid parameter %s: %s", field, reason), nil)
}

// Generic(name, msg) covers the -32000 family of precheck/submission
// failures spec §6 groups under one code but distinguishes by name
// (NONCE_TOO_LOW, GAS_PRICE_TOO_LOW, INSUFFICIENT_ACCOUNT_BALANCE, ...).
func Generic(name, msg string) *Error {
	return newErr(CodeGeneric, fmt.Sprintf("%s: %s", name, msg), nil)
}

func NonceTooLow(sent, expected uint64) *Error {
	return Generic("NONCE_TOO_LOW", fmt.Sprintf("nonce %d too low, expected %d", sent, expected))
}

func NonceTooHigh(sent, expected uint64) *Error {
	return Generic("NONCE_TOO_HIGH", fmt.Sprintf("nonce %d too high, expected %d", sent, expected))
}

func GasPriceTooLow(sent, min uint64) *Error {
	return Generic("GAS_PRICE_TOO_LOW", fmt.Sprintf("gas price %d below network minimum %d", sent, min))
}

func GasLimitTooLow(sent, min uint64) *Error {
	return Generic("GAS_LIMIT_TOO_LOW", fmt.Sprintf("gas limit %d below intrinsic gas %d", sent, min))
}

func InsufficientAccountBalance() *Error {
	return Generic("INSUFFICIENT_ACCOUNT_BALANCE", "sender balance cannot cover value + gas")
}

func CallDataSizeLimitExceeded(size, limit int) *Error {
	return Generic("CALL_DATA_SIZE_LIMIT_EXCEEDED", fmt.Sprintf("%d bytes exceeds limit %d", size, limit))
}

func TransactionSizeLimitExceeded(size, limit int) *Error {
	return Generic("TRANSACTION_SIZE_LIMIT_EXCEEDED", fmt.Sprintf("%d bytes exceeds limit %d", size, limit))
}

func UnsupportedTransactionType(t uint8) *Error {
	return Generic("UNSUPPORTED_TRANSACTION_TYPE", fmt.Sprintf("type %d (blob transactions) is not supported", t))
}

func UnsupportedChainID(sent, expected string) *Error {
	return Generic("UNSUPPORTED_CHAIN_ID", fmt.Sprintf("chainId %s does not match configured %s", sent, expected))
}

func InvalidBlockRange() *Error { return Generic("INVALID_BLOCK_RANGE", "fromBlock is greater than toBlock") }

func TimestampRangeTooLarge() *Error {
	return Generic("TIMESTAMP_RANGE_TOO_LARGE", "block range timestamp span exceeds 7 days")
}

func ReceiverSignatureEnabled() *Error {
	return Generic("RECEIVER_SIGNATURE_ENABLED", "recipient account requires a receiver signature")
}

func MaxBlockSize() *Error {
	return Generic("MAX_BLOCK_SIZE", "block contains more transactions than can be returned with full details")
}

// CONTRACT_REVERT (category 3).
func ContractRevert(reason string, data []byte) *Error {
	return &Error{Code: CodeContractRevert, Message: reason, Data: data}
}

// TransactionRejected (category 4, anything not specifically classified).
func TransactionRejected(status, message string) *Error {
	return newErr(CodeTransactionRejected, fmt.Sprintf("%s: %s", status, message), nil)
}

// IPRateLimitExceeded / HBarRateLimitExceeded.
func IPRateLimitExceeded(method string) *Error {
	return newErr(CodeIPRateLimitExceeded, fmt.Sprintf("rate limit exceeded for %s", method), nil)
}

func HBarRateLimitExceeded() *Error {
	return newErr(CodeHBarRateLimitExceeded, "HBAR spending cap exceeded for today", nil)
}

// MirrorNodeUpstreamFail / RequestTimeout (category 2, retries exhausted).
func MirrorNodeUpstreamFail(cause error) *Error {
	return newErr(CodeMirrorNodeUpstreamFail, "mirror node upstream failure", cause)
}

func RequestTimeout(cause error) *Error {
	return newErr(CodeGeneric, "request timed out", cause)
}

// InternalError (category 6: invariant violations).
func InternalError(cause error) *Error {
	return newErr(CodeInternalError, "internal error", cause)
}

// Wrap annotates a lower-layer error with a request id exactly once,
// matching spec §7 "Request IDs are interpolated into messages exactly
// once", using the teacher's errorsmod.Wrapf convention.
func Wrap(requestID string, err error) error {
	if err == nil {
		return nil
	}
	return errorsmod.Wrapf(err, "[%s]", requestID)
}
