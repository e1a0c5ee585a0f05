// Package precheck implements the ordered sendRawTransaction checks of
// spec §4.6 (C8): ten checks, each failing with a specific JSON-RPC error
// code, run in the order the spec lists them so the first applicable
// failure is the one the client sees.
package precheck

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/jsonrpcerr"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/mirror"
	"github.com/hiero-ledger/hiero-json-rpc-relay-sub001/internal/rpctypes"
)

// Limits bundles the configured thresholds the checks are run against
// (spec §6 env vars).
type Limits struct {
	CallDataSize        int
	TransactionSize      int
	MaxTxFeeThreshold    uint64
	ChainID              uint64
	TinybarToWeibar      uint64
	GasPriceTinybarBuffer uint64
	DeterministicDeploymentRawTx string
	PaymasterEnabled     bool
	PaymasterWhitelist   map[string]struct{}
}

// AccountLookup resolves the sender's on-chain nonce/balance and the
// recipient's receiver-signature flag, both served from the mirror node
// (spec §4.6 checks 8-10).
type AccountLookup interface {
	GetAccount(ctx context.Context, address string) (*mirror.Account, error)
}

// GasPriceSource supplies the current network gas price for check 7.
type GasPriceSource interface {
	GasPrice(ctx context.Context) (*big.Int, error)
}

// Checker runs the ordered precheck pipeline.
type Checker struct {
	accounts AccountLookup
	gasPrice GasPriceSource
	limits   Limits
}

func NewChecker(accounts AccountLookup, gasPrice GasPriceSource, limits Limits) *Checker {
	return &Checker{accounts: accounts, gasPrice: gasPrice, limits: limits}
}

// Run executes checks 1-10 of spec §4.6 in order, returning the first
// failure encountered.
func (c *Checker) Run(ctx context.Context, tx *rpctypes.ParsedTransaction) error {
	if err := c.callDataSize(tx); err != nil {
		return err
	}
	if err := c.transactionSize(tx); err != nil {
		return err
	}
	if err := c.transactionType(tx); err != nil {
		return err
	}
	if err := c.gasLimit(tx); err != nil {
		return err
	}
	if err := c.chainID(tx); err != nil {
		return err
	}
	if err := c.value(tx); err != nil {
		return err
	}
	if err := c.gasPriceCheck(ctx, tx); err != nil {
		return err
	}

	account, err := c.accounts.GetAccount(ctx, tx.From.Hex())
	if err != nil {
		return err
	}

	if err := c.nonce(tx, account); err != nil {
		return err
	}
	if err := c.balance(tx, account); err != nil {
		return err
	}
	return c.receiverAccount(ctx, tx)
}

// 1. callDataSize: byte-length of `data` ≤ configured limit.
func (c *Checker) callDataSize(tx *rpctypes.ParsedTransaction) error {
	if len(tx.Data) > c.limits.CallDataSize {
		return jsonrpcerr.CallDataSizeLimitExceeded(len(tx.Data), c.limits.CallDataSize)
	}
	return nil
}

// 2. transactionSize: byte-length of serialized envelope ≤ limit.
func (c *Checker) transactionSize(tx *rpctypes.ParsedTransaction) error {
	if size := tx.SerializedSize(); size > c.limits.TransactionSize {
		return jsonrpcerr.TransactionSizeLimitExceeded(size, c.limits.TransactionSize)
	}
	return nil
}

// 3. transactionType: type 3 (blob) is rejected.
func (c *Checker) transactionType(tx *rpctypes.ParsedTransaction) error {
	if tx.Type == 3 {
		return jsonrpcerr.UnsupportedTransactionType(tx.Type)
	}
	return nil
}

// 4. gasLimit: intrinsicGas(data) ≤ gasLimit ≤ MAX_TX_FEE_THRESHOLD.
func (c *Checker) gasLimit(tx *rpctypes.ParsedTransaction) error {
	intrinsic := rpctypes.IntrinsicGas(tx.Data, tx.To == nil)
	if tx.GasLimit < intrinsic {
		return jsonrpcerr.GasLimitTooLow(tx.GasLimit, intrinsic)
	}
	if c.limits.MaxTxFeeThreshold > 0 && tx.GasLimit > c.limits.MaxTxFeeThreshold {
		return jsonrpcerr.Generic("GAS_LIMIT_TOO_HIGH", fmt.Sprintf("gas limit %d above maximum %d", tx.GasLimit, c.limits.MaxTxFeeThreshold))
	}
	return nil
}

// 5. chainId: parsed chainId equals configured chain, except for legacy
// pre-EIP-155 txs.
func (c *Checker) chainID(tx *rpctypes.ParsedTransaction) error {
	if tx.IsLegacyPreEIP155() {
		return nil
	}
	configured := new(big.Int).SetUint64(c.limits.ChainID)
	if tx.ChainID == nil || tx.ChainID.Cmp(configured) != 0 {
		sent := "<nil>"
		if tx.ChainID != nil {
			sent = tx.ChainID.String()
		}
		return jsonrpcerr.UnsupportedChainID(sent, configured.String())
	}
	return nil
}

// 6. value: either 0, ≥ tinybar→weibar coefficient, or < 0 rejected.
func (c *Checker) value(tx *rpctypes.ParsedTransaction) error {
	if tx.Value == nil || tx.Value.Sign() == 0 {
		return nil
	}
	if tx.Value.Sign() < 0 {
		return jsonrpcerr.InvalidParameter("value", "negative value is not representable")
	}
	coefficient := new(big.Int).SetUint64(c.limits.TinybarToWeibar)
	if tx.Value.Cmp(coefficient) < 0 {
		return jsonrpcerr.InvalidParameter("value", "value must be representable in whole tinybars")
	}
	return nil
}

// 7. gasPrice: txGasPrice ≥ networkGasPrice, with a configurable tinybar
// buffer tolerance; exempt the deterministic deployment raw tx and
// paymaster-subsidized recipients.
func (c *Checker) gasPriceCheck(ctx context.Context, tx *rpctypes.ParsedTransaction) error {
	if c.limits.DeterministicDeploymentRawTx != "" && hex.EncodeToString(tx.Raw) == c.limits.DeterministicDeploymentRawTx {
		return nil
	}
	if c.limits.PaymasterEnabled && tx.To != nil {
		if _, ok := c.limits.PaymasterWhitelist[tx.To.Hex()]; ok {
			return nil
		}
	}

	networkPrice, err := c.gasPrice.GasPrice(ctx)
	if err != nil {
		return err
	}

	effective := tx.EffectiveGasPrice(nil)
	if effective == nil {
		return nil
	}

	buffer := new(big.Int).SetUint64(c.limits.GasPriceTinybarBuffer * c.limits.TinybarToWeibar)
	tolerant := new(big.Int).Sub(networkPrice, buffer)
	if effective.Cmp(tolerant) < 0 {
		return jsonrpcerr.GasPriceTooLow(effective.Uint64(), networkPrice.Uint64())
	}
	return nil
}

// 8. nonce: senderNonce ≤ txNonce.
func (c *Checker) nonce(tx *rpctypes.ParsedTransaction, account *mirror.Account) error {
	if uint64(account.EthereumNonce) > tx.Nonce {
		return jsonrpcerr.NonceTooLow(tx.Nonce, uint64(account.EthereumNonce))
	}
	return nil
}

// 9. balance: accountBalanceWei ≥ value + gasPrice × gasLimit.
func (c *Checker) balance(tx *rpctypes.ParsedTransaction, account *mirror.Account) error {
	balance := new(big.Int).Mul(big.NewInt(account.Balance.Balance), new(big.Int).SetUint64(c.limits.TinybarToWeibar))

	value := tx.Value
	if value == nil {
		value = big.NewInt(0)
	}
	gasPrice := tx.EffectiveGasPrice(nil)
	if gasPrice == nil {
		gasPrice = big.NewInt(0)
	}
	required := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(tx.GasLimit))
	required.Add(required, value)

	if balance.Cmp(required) < 0 {
		return jsonrpcerr.InsufficientAccountBalance()
	}
	return nil
}

// 10. receiverAccount: if `to` exists and has receiver_sig_required,
// reject.
func (c *Checker) receiverAccount(ctx context.Context, tx *rpctypes.ParsedTransaction) error {
	if tx.To == nil {
		return nil
	}
	recipient, err := c.accounts.GetAccount(ctx, tx.To.Hex())
	if err != nil {
		return nil // unknown recipient (not yet created): nothing to reject
	}
	if recipient.ReceiverSigRequired {
		return jsonrpcerr.ReceiverSignatureEnabled()
	}
	return nil
}
