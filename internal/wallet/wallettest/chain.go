// Package wallettest runs wallet flows against an in-process go-ethereum
// chain.
package wallettest

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/rxtech-lab/auditsmart/internal/wallet"
	"github.com/stretchr/testify/require"
)

// ChainID is the chain id of the simulated backend.
const ChainID = 1337

// StubBytecode deploys a contract whose runtime is a single STOP. Constructor
// arguments appended to it are ignored.
const StubBytecode = "0x6001600c60003960016000f300"

// MintStubBytecode deploys a contract that answers any call by emitting
// Transfer(0x0, <first address argument>, 1).
const MintStubBytecode = "0x602e600c600039602e6000f3" +
	"6001" + "600435" + "6000" +
	"7fddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef" +
	"60006000" + "a4" + "00"

// MintStubABI describes the calls MintStubBytecode accepts.
const MintStubABI = `[
	{"type":"function","name":"mintToUser","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"uri","type":"string"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
	 {"name":"from","type":"address","indexed":true},
	 {"name":"to","type":"address","indexed":true},
	 {"name":"tokenId","type":"uint256","indexed":true}]}
]`

type Chain struct {
	Backend *simulated.Backend
	// Client mines a block after every accepted transaction.
	Client wallet.EthClient
	Keys   []*ecdsa.PrivateKey
}

// NewChain starts a simulated chain with accounts funded keys.
func NewChain(t testing.TB, accounts int) *Chain {
	t.Helper()
	if accounts < 1 {
		accounts = 1
	}

	balance, _ := new(big.Int).SetString("100000000000000000000", 10)
	alloc := types.GenesisAlloc{}
	keys := make([]*ecdsa.PrivateKey, 0, accounts)
	for i := 0; i < accounts; i++ {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		keys = append(keys, key)
		alloc[crypto.PubkeyToAddress(key.PublicKey)] = types.Account{Balance: balance}
	}

	backend := simulated.NewBackend(alloc)
	t.Cleanup(func() {
		_ = backend.Close()
	})

	return &Chain{
		Backend: backend,
		Client:  &autoMineClient{Client: backend.Client(), backend: backend},
		Keys:    keys,
	}
}

func (c *Chain) Address(i int) common.Address {
	return crypto.PubkeyToAddress(c.Keys[i].PublicKey)
}

// Provider returns an auto-approving provider signing with key i.
func (c *Chain) Provider(i int, opts ...wallet.KeyedProviderOption) *wallet.KeyedProvider {
	return wallet.NewKeyedProvider(c.Client, c.Keys[i], opts...)
}

// Deploy creates a contract from bytecode signed by key 0 and returns its
// address.
func (c *Chain) Deploy(t testing.TB, bytecode string) common.Address {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	code, err := hexutil.Decode(bytecode)
	require.NoError(t, err)

	from := c.Address(0)
	nonce, err := c.Client.PendingNonceAt(ctx, from)
	require.NoError(t, err)
	gasPrice, err := c.Client.SuggestGasPrice(ctx)
	require.NoError(t, err)

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      1_000_000,
		Data:     code,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(ChainID)), c.Keys[0])
	require.NoError(t, err)
	require.NoError(t, c.Client.SendTransaction(ctx, signed))

	receipt, err := c.Client.TransactionReceipt(ctx, signed.Hash())
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	return receipt.ContractAddress
}

type autoMineClient struct {
	simulated.Client
	backend *simulated.Backend
}

func (c *autoMineClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.Client.SendTransaction(ctx, tx); err != nil {
		return err
	}
	c.backend.Commit()
	return nil
}
