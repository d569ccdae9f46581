// Package chain submits relayer-signed transactions to the Confidee
// contract and waits for their receipts.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"confidee-relayer/internal/config"
)

var (
	ErrNoRelayerKey        = errors.New("relayer key not configured")
	ErrInvalidContract     = errors.New("invalid contract address")
	ErrTransactionNotMined = errors.New("transaction not mined before timeout")

	defaultReceiptPoll    = time.Second
	defaultReceiptTimeout = 2 * time.Minute
)

// Backend is the subset of ethclient.Client the relayer needs.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Client signs every transaction with the single custodial relayer key.
type Client struct {
	backend        Backend
	closer         func()
	contract       *bind.BoundContract
	address        common.Address
	key            *ecdsa.PrivateKey
	chainID        *big.Int
	receiptTimeout time.Duration
	pollInterval   time.Duration
	logger         *zap.Logger

	// one signing identity: serialize nonce assignment and broadcast
	submitMu sync.Mutex
}

// Dial connects to cfg.RPCURL. A nil key yields a client that reports
// Configured() == false and refuses to submit.
func Dial(ctx context.Context, cfg config.ChainConfig, key *ecdsa.PrivateKey, logger *zap.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc: %w", err)
	}

	var chainID *big.Int
	if cfg.ChainID > 0 {
		chainID = big.NewInt(cfg.ChainID)
	}

	c, err := NewClient(ctx, eth, cfg.ContractAddress, chainID, key, cfg.ReceiptTimeout, logger)
	if err != nil {
		eth.Close()
		return nil, err
	}
	c.closer = eth.Close
	return c, nil
}

// NewClient builds a client over an existing backend. chainID is fetched
// from the backend when nil.
func NewClient(ctx context.Context, backend Backend, contractAddress string, chainID *big.Int, key *ecdsa.PrivateKey, receiptTimeout time.Duration, logger *zap.Logger) (*Client, error) {
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidContract, contractAddress)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if receiptTimeout <= 0 {
		receiptTimeout = defaultReceiptTimeout
	}

	parsed, err := abi.JSON(strings.NewReader(ContractABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract abi: %w", err)
	}

	if chainID == nil {
		chainID, err = backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch chain id: %w", err)
		}
	}

	address := common.HexToAddress(contractAddress)
	c := &Client{
		backend:        backend,
		contract:       bind.NewBoundContract(address, parsed, backend, backend, backend),
		address:        address,
		key:            key,
		chainID:        chainID,
		receiptTimeout: receiptTimeout,
		pollInterval:   defaultReceiptPoll,
		logger:         logger,
	}

	fields := []zap.Field{
		zap.String("contract", address.Hex()),
		zap.String("chain_id", chainID.String()),
		zap.Bool("relayer_configured", key != nil),
	}
	if key != nil {
		fields = append(fields, zap.String("relayer", crypto.PubkeyToAddress(key.PublicKey).Hex()))
	}
	logger.Info("Chain client initialized", fields...)

	return c, nil
}

// Configured reports whether a relayer key is loaded.
func (c *Client) Configured() bool {
	return c != nil && c.key != nil
}

func (c *Client) ContractAddress() common.Address {
	return c.address
}

// Submit signs and broadcasts a call to entryPoint and returns its hash
// without waiting for inclusion.
func (c *Client) Submit(ctx context.Context, entryPoint string, args ...interface{}) (common.Hash, error) {
	if !c.Configured() {
		return common.Hash{}, ErrNoRelayerKey
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to build transactor: %w", err)
	}
	opts.Context = ctx

	c.submitMu.Lock()
	tx, err := c.contract.Transact(opts, entryPoint, args...)
	c.submitMu.Unlock()
	if err != nil {
		return common.Hash{}, fmt.Errorf("%s: %w", entryPoint, err)
	}

	c.logger.Debug("Transaction submitted",
		zap.String("method", entryPoint),
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.Uint64("nonce", tx.Nonce()))

	return tx.Hash(), nil
}

// WaitForReceipt polls until txHash is included (one confirmation) or the
// receipt timeout elapses.
func (c *Client) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			c.logger.Debug("Receipt lookup failed, retrying",
				zap.String("tx_hash", txHash.Hex()),
				zap.Error(err))
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrTransactionNotMined
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}
