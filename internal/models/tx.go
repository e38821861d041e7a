package models

type TransactionStatus string

type TransactionType string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

const (
	TransactionTypeContractDeployment TransactionType = "contract_deployment"
	TransactionTypeNFTMint            TransactionType = "nft_mint"
)

// ConfirmedTransaction is what the workflow hands to confirmation hooks once a
// transaction has been mined successfully.
type ConfirmedTransaction struct {
	SessionID       string
	TransactionType TransactionType
	TransactionHash string
	BlockNumber     uint64
	GasUsed         uint64
	// ContractAddress is the created contract for deployments and the NFT
	// contract for mints.
	ContractAddress *string
	Deployment      *DeploymentResult
	Minting         *MintingResult
	// ConstructorArgs are the values the user entered for a deployment.
	ConstructorArgs map[string]string
}
