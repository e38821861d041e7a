package models

import "time"

// Deployment is the history row kept for every contract deployed through the
// workflow. It outlives the audit session that produced it.
type Deployment struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	SessionID       string            `gorm:"index" json:"session_id"`
	ContractName    string            `json:"contract_name"`
	ContractAddress string            `gorm:"index" json:"contract_address"`
	DeployerAddress string            `json:"deployer_address"`
	TransactionHash string            `gorm:"uniqueIndex" json:"transaction_hash"`
	BlockNumber     uint64            `json:"block_number"`
	GasUsed         uint64            `json:"gas_used"`
	Network         string            `json:"network"`
	ChainID         string            `json:"chain_id"`
	ConstructorArgs JSON              `gorm:"type:text" json:"constructor_args,omitempty"`
	Status          TransactionStatus `gorm:"default:pending" json:"status"`

	// Populated once the commemorative NFT for this deployment is minted
	NFTContract     string `json:"nft_contract,omitempty"`
	NFTTokenID      string `json:"nft_token_id,omitempty"`
	NFTTokenURI     string `json:"nft_token_uri,omitempty"`
	MintTransaction string `json:"mint_transaction_hash,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
