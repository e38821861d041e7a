package utils

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ConstructorParamName is the display name of a constructor input; unnamed
// inputs are called param<index>.
func ConstructorParamName(name string, index int) string {
	if name == "" {
		return fmt.Sprintf("param%d", index)
	}
	return name
}

func EncodeContractConstructorArgs(abiJSON string, args []any) ([]byte, error) {
	parsedABI, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	constructor := parsedABI.Constructor

	if len(constructor.Inputs) > 0 && len(args) == 0 {
		return nil, fmt.Errorf("contract constructor requires %d arguments but none provided", len(constructor.Inputs))
	}
	if len(args) == 0 {
		return []byte{}, nil
	}

	processedArgs, err := processConstructorArgs(constructor.Inputs, args)
	if err != nil {
		return nil, fmt.Errorf("failed to process constructor arguments: %w", err)
	}

	encodedArgs, err := constructor.Inputs.Pack(processedArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode constructor arguments: %w", err)
	}

	return encodedArgs, nil
}

// OrderConstructorArgs arranges named form values in ABI input order.
func OrderConstructorArgs(abiJSON string, values map[string]string) ([]any, error) {
	parsedABI, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	args := make([]any, len(parsedABI.Constructor.Inputs))
	for i, input := range parsedABI.Constructor.Inputs {
		name := ConstructorParamName(input.Name, i)
		value, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("missing constructor argument %s", name)
		}
		args[i] = value
	}
	return args, nil
}

func processConstructorArgs(inputs abi.Arguments, args []any) ([]any, error) {
	if len(args) != len(inputs) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(inputs), len(args))
	}

	processedArgs := make([]any, len(args))
	for i, input := range inputs {
		processedArg, err := processArg(input.Type, args[i])
		if err != nil {
			return nil, fmt.Errorf("failed to process argument %d (%s): %w", i, ConstructorParamName(input.Name, i), err)
		}
		processedArgs[i] = processedArg
	}
	return processedArgs, nil
}

// processArg converts a loosely typed value (usually a form string) into the
// Go type the ABI packer expects for argType.
func processArg(argType abi.Type, value any) (any, error) {
	switch argType.T {
	case abi.AddressTy:
		switch v := value.(type) {
		case string:
			v = strings.TrimSpace(v)
			if !common.IsHexAddress(v) {
				return nil, fmt.Errorf("invalid address: %s", v)
			}
			return common.HexToAddress(v), nil
		case common.Address:
			return v, nil
		default:
			return nil, fmt.Errorf("unsupported address type: %T", value)
		}

	case abi.UintTy, abi.IntTy:
		bigInt, err := toBigInt(value)
		if err != nil {
			return nil, err
		}
		return sizedInteger(argType, bigInt)

	case abi.BoolTy:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "1":
				return true, nil
			case "false", "0", "":
				return false, nil
			}
			return nil, fmt.Errorf("invalid bool: %s", v)
		default:
			return nil, fmt.Errorf("unsupported bool type: %T", value)
		}

	case abi.StringTy:
		switch v := value.(type) {
		case string:
			return v, nil
		default:
			return nil, fmt.Errorf("unsupported string type: %T", value)
		}

	case abi.BytesTy, abi.FixedBytesTy:
		var raw []byte
		switch v := value.(type) {
		case string:
			decoded, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(v), "0x"))
			if err != nil {
				return nil, fmt.Errorf("invalid hex string: %w", err)
			}
			raw = decoded
		case []byte:
			raw = v
		default:
			return nil, fmt.Errorf("unsupported bytes type: %T", value)
		}
		if argType.T == abi.BytesTy {
			return raw, nil
		}
		if len(raw) != argType.Size {
			return nil, fmt.Errorf("expected %d bytes, got %d", argType.Size, len(raw))
		}
		fixed := reflect.New(argType.GetType()).Elem()
		reflect.Copy(fixed, reflect.ValueOf(raw))
		return fixed.Interface(), nil

	case abi.ArrayTy, abi.SliceTy:
		elems, err := toSlice(value)
		if err != nil {
			return nil, err
		}
		if argType.T == abi.ArrayTy && len(elems) != argType.Size {
			return nil, fmt.Errorf("expected %d array elements, got %d", argType.Size, len(elems))
		}

		goType := argType.GetType()
		var out reflect.Value
		if argType.T == abi.ArrayTy {
			out = reflect.New(goType).Elem()
		} else {
			out = reflect.MakeSlice(goType, len(elems), len(elems))
		}
		for i, elem := range elems {
			processed, err := processArg(*argType.Elem, elem)
			if err != nil {
				return nil, fmt.Errorf("failed to process array element %d: %w", i, err)
			}
			out.Index(i).Set(reflect.ValueOf(processed))
		}
		return out.Interface(), nil

	default:
		return nil, fmt.Errorf("unsupported argument type: %v", argType)
	}
}

func toBigInt(value any) (*big.Int, error) {
	switch v := value.(type) {
	case string:
		s := strings.TrimSpace(v)
		bigInt, ok := new(big.Int).SetString(s, 0)
		if !ok {
			bigInt, ok = new(big.Int).SetString(s, 16)
			if !ok {
				return nil, fmt.Errorf("invalid integer: %s", v)
			}
		}
		return bigInt, nil
	case json.Number:
		return toBigInt(v.String())
	case *big.Int:
		return v, nil
	case int64:
		return big.NewInt(v), nil
	case int:
		return big.NewInt(int64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case float64:
		return big.NewInt(int64(v)), nil
	default:
		return nil, fmt.Errorf("unsupported integer type: %T", value)
	}
}

// sizedInteger returns the native Go integer the packer requires for 8, 16,
// 32 and 64 bit types and *big.Int for every other width.
func sizedInteger(argType abi.Type, value *big.Int) (any, error) {
	if argType.T == abi.UintTy && value.Sign() < 0 {
		return nil, fmt.Errorf("negative value %s for %s", value, argType)
	}
	switch argType.Size {
	case 8, 16, 32, 64:
	default:
		return value, nil
	}

	out := reflect.New(argType.GetType()).Elem()
	if argType.T == abi.UintTy {
		if value.BitLen() > argType.Size {
			return nil, fmt.Errorf("value %s overflows %s", value, argType)
		}
		out.SetUint(value.Uint64())
	} else {
		if !value.IsInt64() || out.OverflowInt(value.Int64()) {
			return nil, fmt.Errorf("value %s overflows %s", value, argType)
		}
		out.SetInt(value.Int64())
	}
	return out.Interface(), nil
}

// toSlice accepts []any or a JSON array string such as `["0x..", "0x.."]`.
func toSlice(value any) ([]any, error) {
	switch v := value.(type) {
	case []any:
		return v, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	case string:
		decoder := json.NewDecoder(bytes.NewReader([]byte(strings.TrimSpace(v))))
		decoder.UseNumber()
		var out []any
		if err := decoder.Decode(&out); err != nil {
			return nil, fmt.Errorf("expected JSON array: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected array, got %T", value)
	}
}

func EncodeContractFunctionCall(abiJSON, functionName string, args []any) (string, error) {
	parsedABI, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return "", fmt.Errorf("failed to parse ABI: %w", err)
	}

	method, ok := parsedABI.Methods[functionName]
	if !ok {
		return "", fmt.Errorf("function %s not found in ABI", functionName)
	}
	if len(args) != len(method.Inputs) {
		return "", fmt.Errorf("function %s expects %d arguments, got %d", functionName, len(method.Inputs), len(args))
	}

	processedArgs := make([]any, len(args))
	for i, input := range method.Inputs {
		processedArg, err := processArg(input.Type, args[i])
		if err != nil {
			return "", fmt.Errorf("failed to process argument %d (%s): %w", i, input.Name, err)
		}
		processedArgs[i] = processedArg
	}

	encodedData, err := parsedABI.Pack(functionName, processedArgs...)
	if err != nil {
		return "", fmt.Errorf("failed to encode function call: %w", err)
	}

	return "0x" + hex.EncodeToString(encodedData), nil
}

func BuildDeploymentTransactionData(bytecode string, encodedConstructorArgs []byte) string {
	bytecode = strings.TrimPrefix(bytecode, "0x")
	return "0x" + bytecode + hex.EncodeToString(encodedConstructorArgs)
}
