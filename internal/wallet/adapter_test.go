package wallet_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rxtech-lab/auditsmart/internal/utils"
	"github.com/rxtech-lab/auditsmart/internal/wallet"
	"github.com/rxtech-lab/auditsmart/internal/wallet/wallettest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestAdapter_NoProvider(t *testing.T) {
	ctx := testContext(t)
	adapter := wallet.NewAdapter(nil)

	assert.False(t, adapter.IsAvailable())

	_, ok := adapter.GetConnectedAccount(ctx)
	assert.False(t, ok)

	_, err := adapter.RequestConnection(ctx)
	assert.ErrorIs(t, err, wallet.ErrNoProviderFound)

	_, err = adapter.SignAndSend(ctx, wallet.TxIntent{From: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"})
	assert.ErrorIs(t, err, wallet.ErrNoProviderFound)

	assert.Equal(t, wallet.UnknownNetwork, adapter.GetNetworkInfo(ctx))
}

func TestAdapter_Connection(t *testing.T) {
	ctx := testContext(t)
	chain := wallettest.NewChain(t, 1)

	t.Run("approved", func(t *testing.T) {
		adapter := wallet.NewAdapter(chain.Provider(0))
		defer adapter.Close()

		_, ok := adapter.GetConnectedAccount(ctx)
		assert.False(t, ok, "nothing is authorized before the prompt")

		account, err := adapter.RequestConnection(ctx)
		require.NoError(t, err)
		assert.Equal(t, chain.Address(0).Hex(), account)

		connected, ok := adapter.GetConnectedAccount(ctx)
		assert.True(t, ok)
		assert.Equal(t, account, connected)
	})

	t.Run("rejected", func(t *testing.T) {
		reject := func(context.Context, wallet.ApprovalRequest) bool { return false }
		adapter := wallet.NewAdapter(chain.Provider(0, wallet.WithApprover(reject)))
		defer adapter.Close()

		_, err := adapter.RequestConnection(ctx)
		assert.ErrorIs(t, err, wallet.ErrUserRejected)
	})

	t.Run("previously connected", func(t *testing.T) {
		adapter := wallet.NewAdapter(chain.Provider(0, wallet.WithConnected()))
		defer adapter.Close()

		account, ok := adapter.GetConnectedAccount(ctx)
		assert.True(t, ok)
		assert.Equal(t, chain.Address(0).Hex(), account)
	})
}

func TestAdapter_GetNetworkInfo(t *testing.T) {
	ctx := testContext(t)
	chain := wallettest.NewChain(t, 1)

	adapter := wallet.NewAdapter(chain.Provider(0))
	info := adapter.GetNetworkInfo(ctx)
	assert.Equal(t, "1337", info.ChainID)
	assert.Equal(t, "Localhost", info.Name)
	assert.True(t, info.IsKnown())

	named := wallet.NewAdapter(chain.Provider(0), wallet.WithNetworkNames(map[string]string{"1337": "L1X"}))
	assert.Equal(t, "L1X", named.GetNetworkInfo(ctx).Name)
}

func TestAdapter_DeployAndWait(t *testing.T) {
	ctx := testContext(t)
	chain := wallettest.NewChain(t, 1)
	adapter := wallet.NewAdapter(chain.Provider(0, wallet.WithConnected()), wallet.WithPollInterval(10*time.Millisecond))
	defer adapter.Close()

	intent := wallet.TxIntent{From: chain.Address(0).Hex(), Data: wallettest.StubBytecode}

	gas, err := adapter.EstimateGas(ctx, intent)
	require.NoError(t, err)
	assert.Greater(t, gas, uint64(21000))

	pending, err := adapter.SignAndSend(ctx, intent)
	require.NoError(t, err)

	receipt, err := pending.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, pending.Hash.Hex(), receipt.TransactionHash)
	assert.NotEmpty(t, receipt.ContractAddress)
	assert.NotZero(t, receipt.BlockNumber)
	assert.NotZero(t, receipt.GasUsed)
}

func TestAdapter_MintEmitsTransfer(t *testing.T) {
	ctx := testContext(t)
	chain := wallettest.NewChain(t, 1)
	nft := chain.Deploy(t, wallettest.MintStubBytecode)

	adapter := wallet.NewAdapter(chain.Provider(0, wallet.WithConnected()), wallet.WithPollInterval(10*time.Millisecond))
	defer adapter.Close()

	data, err := utils.EncodeContractFunctionCall(wallettest.MintStubABI, "mintToUser", []any{chain.Address(0).Hex(), "ipfs://cid"})
	require.NoError(t, err)

	pending, err := adapter.SignAndSend(ctx, wallet.TxIntent{From: chain.Address(0).Hex(), To: nft.Hex(), Data: data})
	require.NoError(t, err)
	receipt, err := pending.Wait(ctx)
	require.NoError(t, err)

	tokenID, ok := utils.FindTransferTokenID(receipt.Logs, nft)
	require.True(t, ok)
	assert.Equal(t, int64(1), tokenID.Int64())
}

func TestAdapter_TransactionRejected(t *testing.T) {
	ctx := testContext(t)
	chain := wallettest.NewChain(t, 1)

	rejectTx := func(_ context.Context, req wallet.ApprovalRequest) bool {
		return req.Kind != wallet.ApprovalTransaction
	}
	adapter := wallet.NewAdapter(chain.Provider(0, wallet.WithConnected(), wallet.WithApprover(rejectTx)))
	defer adapter.Close()

	_, err := adapter.SignAndSend(ctx, wallet.TxIntent{From: chain.Address(0).Hex(), Data: wallettest.StubBytecode})
	assert.ErrorIs(t, err, wallet.ErrTransactionRejected)
}

func TestAdapter_InvalidIntent(t *testing.T) {
	ctx := testContext(t)
	chain := wallettest.NewChain(t, 1)
	adapter := wallet.NewAdapter(chain.Provider(0, wallet.WithConnected()))
	defer adapter.Close()

	_, err := adapter.SignAndSend(ctx, wallet.TxIntent{From: "not-an-address"})
	assert.Error(t, err)

	_, err = adapter.SignAndSend(ctx, wallet.TxIntent{From: chain.Address(0).Hex(), Data: "zz"})
	assert.Error(t, err)
}

func TestAdapter_AccountChanged(t *testing.T) {
	chain := wallettest.NewChain(t, 2)
	provider := chain.Provider(0, wallet.WithConnected())
	adapter := wallet.NewAdapter(provider)
	defer adapter.Close()

	var mu sync.Mutex
	var seen []string
	unsubscribe := adapter.OnAccountChanged(func(account string) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, account)
	})

	provider.SwitchAccount(chain.Keys[1])
	provider.Disconnect()
	unsubscribe()
	unsubscribe()
	provider.SwitchAccount(chain.Keys[0])

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{chain.Address(1).Hex(), ""}, seen)
}

type failingProvider struct {
	receiptErr error
	receipt    *types.Receipt
}

func (p *failingProvider) Accounts(context.Context) ([]common.Address, error) {
	return nil, errors.New("boom")
}

func (p *failingProvider) RequestAccounts(context.Context) ([]common.Address, error) {
	return nil, errors.New("user closed the popup")
}

func (p *failingProvider) ChainID(context.Context) (*big.Int, error) {
	return nil, errors.New("rpc unavailable")
}

func (p *failingProvider) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 0, errors.New("execution reverted")
}

func (p *failingProvider) SendTransaction(context.Context, wallet.TxIntent) (common.Hash, error) {
	return common.HexToHash("0x01"), nil
}

func (p *failingProvider) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return p.receipt, p.receiptErr
}

func (p *failingProvider) SubscribeAccountsChanged(func([]common.Address)) func() {
	return func() {}
}

func TestAdapter_ProviderFailures(t *testing.T) {
	ctx := testContext(t)
	from := crypto.PubkeyToAddress(mustKey(t).PublicKey).Hex()

	t.Run("connection error is a rejection", func(t *testing.T) {
		adapter := wallet.NewAdapter(&failingProvider{})
		_, err := adapter.RequestConnection(ctx)
		assert.ErrorIs(t, err, wallet.ErrUserRejected)

		_, ok := adapter.GetConnectedAccount(ctx)
		assert.False(t, ok)
		assert.Equal(t, wallet.UnknownNetwork, adapter.GetNetworkInfo(ctx))
	})

	t.Run("estimate failure", func(t *testing.T) {
		adapter := wallet.NewAdapter(&failingProvider{})
		_, err := adapter.EstimateGas(ctx, wallet.TxIntent{From: from})
		assert.ErrorIs(t, err, wallet.ErrTransactionFailed)
	})

	t.Run("reverted receipt", func(t *testing.T) {
		adapter := wallet.NewAdapter(&failingProvider{receipt: &types.Receipt{Status: types.ReceiptStatusFailed}})
		pending, err := adapter.SignAndSend(ctx, wallet.TxIntent{From: from})
		require.NoError(t, err)
		_, err = pending.Wait(ctx)
		assert.ErrorIs(t, err, wallet.ErrTransactionFailed)
	})

	t.Run("receipt rpc error", func(t *testing.T) {
		adapter := wallet.NewAdapter(&failingProvider{receiptErr: errors.New("connection reset")})
		pending, err := adapter.SignAndSend(ctx, wallet.TxIntent{From: from})
		require.NoError(t, err)
		_, err = pending.Wait(ctx)
		assert.ErrorIs(t, err, wallet.ErrNetworkError)
	})

	t.Run("wait honours context", func(t *testing.T) {
		adapter := wallet.NewAdapter(&failingProvider{receiptErr: ethereum.NotFound}, wallet.WithPollInterval(5*time.Millisecond))
		pending, err := adapter.SignAndSend(ctx, wallet.TxIntent{From: from})
		require.NoError(t, err)

		short, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()
		_, err = pending.Wait(short)
		assert.ErrorIs(t, err, wallet.ErrNetworkError)
	})
}

func mustKey(t *testing.T) *ecdsa.PrivateKey {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}
