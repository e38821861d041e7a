package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type ApprovalKind string

const (
	ApprovalConnect     ApprovalKind = "connect"
	ApprovalTransaction ApprovalKind = "transaction"
)

type ApprovalRequest struct {
	Kind    ApprovalKind
	Account common.Address
	Intent  *TxIntent
}

// Approver decides whether a prompt is accepted, standing in for the user.
type Approver func(ctx context.Context, req ApprovalRequest) bool

// AutoApprove accepts every prompt.
func AutoApprove(context.Context, ApprovalRequest) bool { return true }

// KeyedProvider is a Provider backed by a local private key and an RPC client.
type KeyedProvider struct {
	client   EthClient
	approver Approver

	mu            sync.Mutex
	key           *ecdsa.PrivateKey
	connected     bool
	listeners     map[int]func([]common.Address)
	nextID        int
	cachedChainID *big.Int
}

type KeyedProviderOption func(*KeyedProvider)

func WithApprover(approver Approver) KeyedProviderOption {
	return func(p *KeyedProvider) {
		if approver != nil {
			p.approver = approver
		}
	}
}

// WithConnected marks the key as already authorized, as if the user had
// connected in a previous visit.
func WithConnected() KeyedProviderOption {
	return func(p *KeyedProvider) {
		p.connected = true
	}
}

func NewKeyedProvider(client EthClient, key *ecdsa.PrivateKey, opts ...KeyedProviderOption) *KeyedProvider {
	p := &KeyedProvider{
		client:    client,
		approver:  AutoApprove,
		key:       key,
		listeners: make(map[int]func([]common.Address)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewKeyedProviderFromHex parses a hex private key with or without 0x.
func NewKeyedProviderFromHex(client EthClient, hexKey string, opts ...KeyedProviderOption) (*KeyedProvider, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return NewKeyedProvider(client, key, opts...), nil
}

func (p *KeyedProvider) address() common.Address {
	return crypto.PubkeyToAddress(p.key.PublicKey)
}

func (p *KeyedProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected || p.key == nil {
		return []common.Address{}, nil
	}
	return []common.Address{p.address()}, nil
}

func (p *KeyedProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	p.mu.Lock()
	if p.key == nil {
		p.mu.Unlock()
		return nil, ErrNotConnected
	}
	account := p.address()
	connected := p.connected
	p.mu.Unlock()

	if connected {
		return []common.Address{account}, nil
	}
	if !p.approver(ctx, ApprovalRequest{Kind: ApprovalConnect, Account: account}) {
		return nil, ErrUserRejected
	}

	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()
	p.emit([]common.Address{account})
	return []common.Address{account}, nil
}

func (p *KeyedProvider) ChainID(ctx context.Context) (*big.Int, error) {
	p.mu.Lock()
	cached := p.cachedChainID
	p.mu.Unlock()
	if cached != nil {
		return new(big.Int).Set(cached), nil
	}

	chainID, err := p.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	p.mu.Lock()
	p.cachedChainID = new(big.Int).Set(chainID)
	p.mu.Unlock()
	return chainID, nil
}

func (p *KeyedProvider) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return p.client.EstimateGas(ctx, msg)
}

func (p *KeyedProvider) SendTransaction(ctx context.Context, intent TxIntent) (common.Hash, error) {
	p.mu.Lock()
	key := p.key
	connected := p.connected
	p.mu.Unlock()

	if key == nil || !connected {
		return common.Hash{}, ErrNotConnected
	}
	from := crypto.PubkeyToAddress(key.PublicKey)
	if intent.From != "" && intent.FromAddress() != from {
		return common.Hash{}, fmt.Errorf("%w: sender %s is not the connected account", ErrTransactionRejected, intent.From)
	}
	if !p.approver(ctx, ApprovalRequest{Kind: ApprovalTransaction, Account: from, Intent: &intent}) {
		return common.Hash{}, ErrTransactionRejected
	}

	msg, err := intent.CallMsg()
	if err != nil {
		return common.Hash{}, err
	}
	msg.From = from

	chainID, err := p.ChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	nonce, err := p.client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := p.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get gas price: %w", err)
	}
	gasLimit := intent.GasLimit
	if gasLimit == 0 {
		gasLimit, err = p.client.EstimateGas(ctx, msg)
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to estimate gas: %w", err)
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       msg.To,
		Value:    msg.Value,
		Data:     msg.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := p.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return signed.Hash(), nil
}

func (p *KeyedProvider) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return p.client.TransactionReceipt(ctx, hash)
}

func (p *KeyedProvider) SubscribeAccountsChanged(fn func(accounts []common.Address)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// SwitchAccount replaces the signing key and notifies listeners when the
// provider is connected.
func (p *KeyedProvider) SwitchAccount(key *ecdsa.PrivateKey) {
	p.mu.Lock()
	p.key = key
	connected := p.connected
	p.mu.Unlock()
	if connected {
		p.emit([]common.Address{crypto.PubkeyToAddress(key.PublicKey)})
	}
}

// Disconnect revokes the authorization and reports an empty account list.
func (p *KeyedProvider) Disconnect() {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	p.emit([]common.Address{})
}

func (p *KeyedProvider) emit(accounts []common.Address) {
	p.mu.Lock()
	listeners := make([]func([]common.Address), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(accounts)
	}
}
