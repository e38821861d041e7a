package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/auditsmart/internal/models"
	"github.com/rxtech-lab/auditsmart/internal/utils"
)

type EvmService interface {
	// GetConstructorInputs lists the constructor parameters of abiJSON for the
	// args prompt. Address inputs are prefilled with walletAddress and made
	// read-only.
	GetConstructorInputs(abiJSON string, walletAddress string) ([]models.ConstructorInput, error)
	GetContractDeploymentTransaction(args ContractDeploymentTransactionArgs) (TransactionData, error)
	GetContractFunctionCallTransaction(args ContractFunctionCallTransactionArgs) (TransactionData, error)
}

type evmService struct {
	validator *validator.Validate
}

func NewEvmService() EvmService {
	validator := validator.New()
	return &evmService{validator: validator}
}

func (s *evmService) GetConstructorInputs(abiJSON string, walletAddress string) ([]models.ConstructorInput, error) {
	parsedABI, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	inputs := make([]models.ConstructorInput, 0, len(parsedABI.Constructor.Inputs))
	for i, arg := range parsedABI.Constructor.Inputs {
		input := models.ConstructorInput{
			Name: utils.ConstructorParamName(arg.Name, i),
			Type: arg.Type.String(),
		}
		if arg.Type.T == abi.AddressTy {
			input.Value = walletAddress
			input.ReadOnly = true
		}
		inputs = append(inputs, input)
	}
	return inputs, nil
}

// GetContractDeploymentTransaction returns the contract-creation transaction
// for bytecode with the encoded constructor arguments appended
func (s *evmService) GetContractDeploymentTransaction(args ContractDeploymentTransactionArgs) (TransactionData, error) {
	err := s.validator.Struct(args)
	if err != nil {
		return TransactionData{}, err
	}

	ordered, err := utils.OrderConstructorArgs(args.Abi, args.ConstructorArgs)
	if err != nil {
		return TransactionData{}, err
	}

	encodedArgs, err := utils.EncodeContractConstructorArgs(args.Abi, ordered)
	if err != nil {
		return TransactionData{}, fmt.Errorf("failed to encode constructor arguments: %w", err)
	}

	return TransactionData{
		Data:  utils.BuildDeploymentTransactionData(args.Bytecode, encodedArgs),
		Value: valueOrZero(args.Value),
	}, nil
}

// GetContractFunctionCallTransaction returns the transaction calling a contract function
func (s *evmService) GetContractFunctionCallTransaction(args ContractFunctionCallTransactionArgs) (TransactionData, error) {
	err := s.validator.Struct(args)
	if err != nil {
		return TransactionData{}, err
	}

	encodedData, err := utils.EncodeContractFunctionCall(args.Abi, args.FunctionName, args.FunctionArgs)
	if err != nil {
		return TransactionData{}, fmt.Errorf("failed to encode function call: %w", err)
	}

	return TransactionData{
		To:    args.ContractAddress,
		Data:  encodedData,
		Value: valueOrZero(args.Value),
	}, nil
}

func valueOrZero(value string) string {
	if value == "" {
		return "0"
	}
	return value
}

// ABIString accepts an ABI as raw JSON, a JSON string holding the ABI, or any
// decoded JSON value and returns it as a JSON array string.
func ABIString(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", fmt.Errorf("abi is empty")
	}
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return "", fmt.Errorf("failed to decode abi string: %w", err)
		}
		trimmed = strings.TrimSpace(inner)
	}
	if _, err := abi.JSON(strings.NewReader(trimmed)); err != nil {
		return "", fmt.Errorf("failed to parse ABI: %w", err)
	}
	return trimmed, nil
}
