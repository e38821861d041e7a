package wallet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const defaultPollInterval = 200 * time.Millisecond

// Adapter exposes a Provider to the workflow. A nil provider models a
// browser without an injected wallet.
type Adapter struct {
	provider     Provider
	logger       *slog.Logger
	pollInterval time.Duration
	networkNames map[string]string

	mu          sync.Mutex
	callbacks   map[int]func(account string)
	nextID      int
	unsubscribe func()
}

type Option func(*Adapter)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(a *Adapter) {
		if interval > 0 {
			a.pollInterval = interval
		}
	}
}

// WithNetworkNames overrides display names keyed by decimal chain id.
func WithNetworkNames(names map[string]string) Option {
	return func(a *Adapter) {
		for id, name := range names {
			a.networkNames[id] = name
		}
	}
}

func NewAdapter(provider Provider, opts ...Option) *Adapter {
	a := &Adapter{
		provider:     provider,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		pollInterval: defaultPollInterval,
		networkNames: make(map[string]string),
		callbacks:    make(map[int]func(string)),
	}
	for _, opt := range opts {
		opt(a)
	}
	if provider != nil {
		a.unsubscribe = provider.SubscribeAccountsChanged(a.handleAccountsChanged)
	}
	return a
}

func (a *Adapter) IsAvailable() bool {
	return a.provider != nil
}

// GetConnectedAccount returns the first authorized account without
// prompting. ok is false when no provider exists or nothing is authorized.
func (a *Adapter) GetConnectedAccount(ctx context.Context) (account string, ok bool) {
	if a.provider == nil {
		return "", false
	}
	accounts, err := a.provider.Accounts(ctx)
	if err != nil {
		a.logger.Warn("failed to read wallet accounts", "error", err)
		return "", false
	}
	if len(accounts) == 0 {
		return "", false
	}
	return accounts[0].Hex(), true
}

func (a *Adapter) RequestConnection(ctx context.Context) (string, error) {
	if a.provider == nil {
		return "", ErrNoProviderFound
	}
	accounts, err := a.provider.RequestAccounts(ctx)
	if err != nil {
		if errors.Is(err, ErrUserRejected) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrUserRejected, err)
	}
	if len(accounts) == 0 {
		return "", ErrUserRejected
	}
	return accounts[0].Hex(), nil
}

// OnAccountChanged registers cb for account switches. An empty account means
// the wallet disconnected.
func (a *Adapter) OnAccountChanged(cb func(account string)) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.callbacks[id] = cb
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.callbacks, id)
			a.mu.Unlock()
		})
	}
}

func (a *Adapter) handleAccountsChanged(accounts []common.Address) {
	account := ""
	if len(accounts) > 0 {
		account = accounts[0].Hex()
	}

	a.mu.Lock()
	callbacks := make([]func(string), 0, len(a.callbacks))
	for _, cb := range a.callbacks {
		callbacks = append(callbacks, cb)
	}
	a.mu.Unlock()

	a.logger.Info("wallet account changed", "account", account)
	for _, cb := range callbacks {
		cb(account)
	}
}

func (a *Adapter) EstimateGas(ctx context.Context, intent TxIntent) (uint64, error) {
	if a.provider == nil {
		return 0, ErrNoProviderFound
	}
	if err := intent.Validate(); err != nil {
		return 0, err
	}
	msg, err := intent.CallMsg()
	if err != nil {
		return 0, err
	}
	gas, err := a.provider.EstimateGas(ctx, msg)
	if err != nil {
		return 0, classifySendError(fmt.Errorf("failed to estimate gas: %w", err))
	}
	return gas, nil
}

// SignAndSend asks the wallet to sign intent and broadcast it.
func (a *Adapter) SignAndSend(ctx context.Context, intent TxIntent) (*PendingTx, error) {
	if a.provider == nil {
		return nil, ErrNoProviderFound
	}
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	hash, err := a.provider.SendTransaction(ctx, intent)
	if err != nil {
		return nil, classifySendError(err)
	}
	a.logger.Info("transaction submitted", "hash", hash.Hex(), "from", intent.From, "to", intent.To)
	return &PendingTx{Hash: hash, adapter: a}, nil
}

func (a *Adapter) GetNetworkInfo(ctx context.Context) NetworkInfo {
	if a.provider == nil {
		return UnknownNetwork
	}
	chainID, err := a.provider.ChainID(ctx)
	if err != nil || chainID == nil {
		a.logger.Warn("failed to read network info", "error", err)
		return UnknownNetwork
	}
	return NetworkInfo{
		Name:    networkName(chainID, a.networkNames),
		ChainID: chainID.String(),
	}
}

// Close detaches the adapter from the provider's account events.
func (a *Adapter) Close() {
	a.mu.Lock()
	unsubscribe := a.unsubscribe
	a.unsubscribe = nil
	a.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

type Receipt struct {
	TransactionHash string
	BlockNumber     uint64
	GasUsed         uint64
	// ContractAddress is empty unless the transaction created a contract.
	ContractAddress string
	Logs            []*types.Log
}

type PendingTx struct {
	Hash    common.Hash
	adapter *Adapter
}

// Wait polls for the receipt until the transaction is mined or ctx ends.
func (p *PendingTx) Wait(ctx context.Context) (*Receipt, error) {
	ticker := time.NewTicker(p.adapter.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := p.adapter.provider.TransactionReceipt(ctx, p.Hash)
		switch {
		case err == nil && receipt != nil:
			return toReceipt(receipt)
		case err != nil && !errors.Is(err, ethereum.NotFound):
			return nil, fmt.Errorf("%w: failed to get receipt for %s: %v", ErrNetworkError, p.Hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: timed out waiting for %s: %v", ErrNetworkError, p.Hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func toReceipt(receipt *types.Receipt) (*Receipt, error) {
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: transaction %s reverted", ErrTransactionFailed, receipt.TxHash.Hex())
	}
	result := &Receipt{
		TransactionHash: receipt.TxHash.Hex(),
		GasUsed:         receipt.GasUsed,
		Logs:            receipt.Logs,
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.ContractAddress != (common.Address{}) {
		result.ContractAddress = receipt.ContractAddress.Hex()
	}
	return result, nil
}
