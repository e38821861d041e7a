package wallet

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"
)

// TxIntent is an unsigned transaction request. An empty To deploys a contract.
type TxIntent struct {
	From     string `json:"from" validate:"required,eth_addr"`
	To       string `json:"to,omitempty" validate:"omitempty,eth_addr"`
	Data     string `json:"data,omitempty" validate:"omitempty,hexadecimal"`
	Value    string `json:"value,omitempty" validate:"omitempty,number"`
	GasLimit uint64 `json:"gasLimit,omitempty"`
}

var intentValidator = validator.New()

func (t TxIntent) Validate() error {
	if err := intentValidator.Struct(t); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	return nil
}

func (t TxIntent) FromAddress() common.Address {
	return common.HexToAddress(t.From)
}

// ToAddress returns nil for contract creation.
func (t TxIntent) ToAddress() *common.Address {
	if t.To == "" {
		return nil
	}
	to := common.HexToAddress(t.To)
	return &to
}

func (t TxIntent) DataBytes() ([]byte, error) {
	if t.Data == "" {
		return nil, nil
	}
	data := t.Data
	if !strings.HasPrefix(data, "0x") && !strings.HasPrefix(data, "0X") {
		data = "0x" + data
	}
	decoded, err := hexutil.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction data: %w", err)
	}
	return decoded, nil
}

func (t TxIntent) ValueWei() (*big.Int, error) {
	if t.Value == "" {
		return new(big.Int), nil
	}
	value, ok := new(big.Int).SetString(t.Value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid transaction value: %s", t.Value)
	}
	return value, nil
}

// CallMsg converts the intent for gas estimation.
func (t TxIntent) CallMsg() (ethereum.CallMsg, error) {
	data, err := t.DataBytes()
	if err != nil {
		return ethereum.CallMsg{}, err
	}
	value, err := t.ValueWei()
	if err != nil {
		return ethereum.CallMsg{}, err
	}
	return ethereum.CallMsg{
		From:  t.FromAddress(),
		To:    t.ToAddress(),
		Gas:   t.GasLimit,
		Value: value,
		Data:  data,
	}, nil
}
