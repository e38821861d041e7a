package services

type ContractDeploymentTransactionArgs struct {
	Abi      string `validate:"required"`
	Bytecode string `validate:"required,hexadecimal"`
	// ConstructorArgs are keyed by parameter name (param<index> when unnamed)
	ConstructorArgs map[string]string
	Value           string `validate:"omitempty,number"` // Optional value in wei, defaults to "0"
}

type ContractFunctionCallTransactionArgs struct {
	ContractAddress string `validate:"required,eth_addr"`
	FunctionName    string `validate:"required"`
	FunctionArgs    []any
	Abi             string `validate:"required"`
	Value           string `validate:"omitempty,number"` // Optional value in wei, defaults to "0"
}

// TransactionData is an unsigned transaction body. An empty To creates a
// contract.
type TransactionData struct {
	To    string `json:"to,omitempty"`
	Data  string `json:"data"`
	Value string `json:"value"`
}
