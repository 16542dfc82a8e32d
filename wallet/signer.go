package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// RawTxSubmitter is an alternative submission path for signed transactions,
// used when MEV protection routes through a private relay.
type RawTxSubmitter interface {
	SendRawTransaction(ctx context.Context, rawTx string) (common.Hash, error)
}

// GasOracle supplies a live gas price. When set, it overrides the static
// configured price for new transactions.
type GasOracle interface {
	SuggestGasPrice() *big.Int
}

// Signer owns the hot key and serializes every submission from this account.
// The mutex is the single in-flight guard: two concurrent executions would
// otherwise race on the account nonce or double-commit the same balance.
type Signer struct {
	client   *ethclient.Client
	key      *ecdsa.PrivateKey
	address  common.Address
	chainID  *big.Int
	gasPrice *big.Int
	oracle   GasOracle
	relay    RawTxSubmitter
	logger   *zap.Logger
	mu       sync.Mutex
}

// NewSigner creates a signer from a hex private key.
func NewSigner(client *ethclient.Client, hexKey string, chainID uint64, gasPriceGwei uint64, logger *zap.Logger) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	gasPrice := new(big.Int).Mul(new(big.Int).SetUint64(gasPriceGwei), big.NewInt(1e9))

	return &Signer{
		client:   client,
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		chainID:  new(big.Int).SetUint64(chainID),
		gasPrice: gasPrice,
		logger:   logger,
	}, nil
}

// UseRelay routes future submissions through a private relay.
func (s *Signer) UseRelay(relay RawTxSubmitter) {
	s.relay = relay
}

// UseGasOracle prices future transactions off the oracle instead of the
// static configured gas price.
func (s *Signer) UseGasOracle(oracle GasOracle) {
	s.oracle = oracle
}

// Address returns the signing account's address.
func (s *Signer) Address() common.Address {
	return s.address
}

// SendContractTx signs and submits a contract call. Submissions are
// serialized per account.
func (s *Signer) SendContractTx(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (common.Hash, error) {
	tx, err := s.send(ctx, to, data, gasLimit)
	if err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}

// SendAndWait submits a contract call and blocks until it is mined,
// returning the receipt.
func (s *Signer) SendAndWait(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (*types.Receipt, error) {
	tx, err := s.send(ctx, to, data, gasLimit)
	if err != nil {
		return nil, err
	}

	receipt, err := bind.WaitMined(ctx, s.client, tx)
	if err != nil {
		return nil, fmt.Errorf("transaction receipt not available: %w", err)
	}
	return receipt, nil
}

func (s *Signer) send(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, err := s.client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice := s.gasPrice
	if s.oracle != nil {
		if live := s.oracle.SuggestGasPrice(); live != nil && live.Sign() > 0 {
			gasPrice = live
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	start := time.Now()
	if s.relay != nil {
		raw, err := signedTx.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("failed to encode transaction: %w", err)
		}
		if _, err := s.relay.SendRawTransaction(ctx, "0x"+common.Bytes2Hex(raw)); err != nil {
			return nil, fmt.Errorf("failed to submit via relay: %w", err)
		}
	} else {
		if err := s.client.SendTransaction(ctx, signedTx); err != nil {
			return nil, fmt.Errorf("failed to submit transaction: %w", err)
		}
	}

	s.logger.Debug("Submitted transaction",
		zap.String("tx_hash", signedTx.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Bool("via_relay", s.relay != nil),
		zap.Duration("submit_time", time.Since(start)))

	return signedTx, nil
}
