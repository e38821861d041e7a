package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rxtech-lab/auditsmart/internal/models"
	"github.com/rxtech-lab/auditsmart/internal/services"
	"github.com/rxtech-lab/auditsmart/internal/utils"
	"github.com/rxtech-lab/auditsmart/internal/wallet"
)

// DefaultImageGateway serves the commemorative artwork.
const DefaultImageGateway = "https://gateway.pinata.cloud/ipfs/"

// DefaultImageCIDs are the artworks a minted NFT picks from.
var DefaultImageCIDs = []string{
	"bafybeihre5jk4porbizbyhdb3cmhyci6xhs3horz4dxigk2tzdetixdlcu",
	"bafybeih4kxtwt2adymhf2cdmcpdcqamllgnenvnngviw4f2f6c4wcrtjqu",
	"bafybeid4emz6qjcgogo6woj2jwhyr2nfp5d5guzsxxfk2ihhxzcvtvdsn4",
	"bafybeidm3u4nt33vdszppgei7h5qbdlgra7bjfe273svvdlhs3oo6z7nii",
}

const mintFunction = "mintToUser"

// GasWithMargin returns floor(estimate * 1.2).
func GasWithMargin(estimate uint64) uint64 {
	return estimate + estimate/5
}

// RequestMint mints the commemorative NFT for the deployed contract.
func (e *Engine) RequestMint(ctx context.Context) error {
	e.mu.Lock()
	if e.stage.InFlight() {
		e.mu.Unlock()
		return ErrBusy
	}
	if e.session.DeploymentResult == nil || e.session.DeploymentResult.ContractAddress == "" {
		e.lastErr = ErrNoDeployment.Error()
		e.mu.Unlock()
		return ErrNoDeployment
	}
	if e.stage != StageDeployed {
		state := e.stage
		e.mu.Unlock()
		return fmt.Errorf("%w: cannot mint while %s", ErrInvalidStage, state)
	}
	gen := e.gen
	e.lastErr = ""
	e.setStageLocked(StageMinting)
	e.mu.Unlock()

	return e.runMint(ctx, gen)
}

// BuildNFTMetadata describes the deployment as ERC-721 metadata.
func BuildNFTMetadata(deployment models.DeploymentResult, recipient, network, image string, at time.Time) models.NFTMetadata {
	unix := at.Unix()
	date := at.UTC().Format("2006-01-02")
	return models.NFTMetadata{
		Name:            fmt.Sprintf("AuditSmart NFT - %s", deployment.ContractName),
		Description:     fmt.Sprintf("AuditSmart NFT for %s deployed at %s", deployment.ContractName, deployment.ContractAddress),
		Image:           image,
		ContractAddress: deployment.ContractAddress,
		TransactionHash: deployment.TransactionHash,
		DeployedBy:      recipient,
		Network:         network,
		ChainID:         deployment.ChainID,
		DeploymentTime:  unix,
		Attributes: []models.NFTAttribute{
			{TraitType: "Contract Address", Value: deployment.ContractAddress},
			{TraitType: "Deployed By", Value: recipient},
			{TraitType: "Network", Value: network},
			{TraitType: "Chain ID", Value: deployment.ChainID},
			{TraitType: "Deployment Date", Value: date},
			{TraitType: "Deployment Time", Value: unix},
			{TraitType: "Unix Timestamp", Value: unix},
		},
	}
}

// runMint pins metadata, fetches the NFT contract and mints to the connected
// account. It is entered in StageMinting.
func (e *Engine) runMint(ctx context.Context, gen uint64) error {
	account, ok := e.wallet.GetConnectedAccount(ctx)
	if !ok {
		e.mu.Lock()
		e.awaitWalletLocked(intentMint, gen, nil)
		e.mu.Unlock()
		return nil
	}

	e.mu.Lock()
	deployment := e.session.DeploymentResult
	sessionID := e.session.SessionID
	e.mu.Unlock()
	if deployment == nil {
		return e.fail(gen, StageDeployed, "mint", fmt.Errorf("NFT minting failed: %w", ErrNoDeployment))
	}

	image := e.imageGateway + e.pickImage(e.imageCIDs)
	metadata := BuildNFTMetadata(*deployment, account, e.networkLabel, image, e.now())

	pinned, err := e.audit.PinMetadata(ctx, metadata)
	if err != nil {
		return e.fail(gen, StageDeployed, "mint", fmt.Errorf("NFT minting failed: %w", err))
	}
	tokenURI := pinned.IPFSURI

	config, err := e.audit.FetchNFTConfig(ctx)
	if err != nil {
		return e.fail(gen, StageDeployed, "mint", fmt.Errorf("NFT minting failed: %w", err))
	}
	abiJSON, err := services.ABIString(config.ABI)
	if err != nil {
		return e.fail(gen, StageDeployed, "mint", fmt.Errorf("NFT minting failed: %w", err))
	}

	txData, err := e.evm.GetContractFunctionCallTransaction(services.ContractFunctionCallTransactionArgs{
		ContractAddress: config.ContractAddress,
		FunctionName:    mintFunction,
		FunctionArgs:    []any{account, tokenURI},
		Abi:             abiJSON,
	})
	if err != nil {
		return e.fail(gen, StageDeployed, "mint", fmt.Errorf("NFT minting failed: %w", err))
	}

	intent := wallet.TxIntent{From: account, To: txData.To, Data: txData.Data, Value: txData.Value}
	estimate, err := e.wallet.EstimateGas(ctx, intent)
	if err != nil {
		return e.fail(gen, StageDeployed, "mint", fmt.Errorf("NFT minting failed: %w", err))
	}
	intent.GasLimit = GasWithMargin(estimate)

	receipt, err := e.signAndWait(ctx, "mint", intent)
	if err != nil {
		return e.fail(gen, StageDeployed, "mint", fmt.Errorf("NFT minting failed: %w", err))
	}

	tokenID := models.UnknownTokenID
	if id, found := utils.FindTransferTokenID(receipt.Logs, common.HexToAddress(config.ContractAddress)); found {
		tokenID = id.String()
	}

	minting := &models.MintingResult{
		TransactionHash: receipt.TransactionHash,
		BlockNumber:     receipt.BlockNumber,
		GasUsed:         receipt.GasUsed,
		NFTContract:     config.ContractAddress,
		Recipient:       account,
		TokenURI:        tokenURI,
		TokenID:         tokenID,
		Metadata:        metadata,
	}

	e.mu.Lock()
	if e.gen == gen {
		next := e.session
		next.MintingResult = minting
		next.MintingAvailable = false
		if err := e.commitLocked(next, models.FieldMintingResults, models.FieldMintingAvailable); err != nil {
			e.mu.Unlock()
			return e.fail(gen, StageDeployed, "mint", err)
		}
		e.setStageLocked(StageMinted)
	}
	e.mu.Unlock()

	e.logger.Info("NFT minted", "token_id", tokenID, "nft_contract", config.ContractAddress, "tx", receipt.TransactionHash)
	nftContract := config.ContractAddress
	e.confirmed(ctx, models.ConfirmedTransaction{
		SessionID:       sessionID,
		TransactionType: models.TransactionTypeNFTMint,
		TransactionHash: minting.TransactionHash,
		BlockNumber:     minting.BlockNumber,
		GasUsed:         minting.GasUsed,
		ContractAddress: &nftContract,
		Minting:         minting,
	})
	return nil
}
