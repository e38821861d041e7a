package hooks

import (
	"context"
	"fmt"

	"github.com/rxtech-lab/auditsmart/internal/models"
	"github.com/rxtech-lab/auditsmart/internal/services"
	"github.com/rxtech-lab/auditsmart/internal/utils"
)

// DeploymentRecordHook keeps the deployment history table in step with
// confirmed deployments and mints.
type DeploymentRecordHook struct {
	deploymentService services.DeploymentService
}

// CanHandle implements Hook.
func (h *DeploymentRecordHook) CanHandle(txType models.TransactionType) bool {
	return txType == models.TransactionTypeContractDeployment ||
		txType == models.TransactionTypeNFTMint
}

// OnTransactionConfirmed implements Hook.
func (h *DeploymentRecordHook) OnTransactionConfirmed(ctx context.Context, tx models.ConfirmedTransaction) error {
	switch tx.TransactionType {
	case models.TransactionTypeContractDeployment:
		return h.recordDeployment(tx)
	case models.TransactionTypeNFTMint:
		return h.recordMint(tx)
	}
	return nil
}

func (h *DeploymentRecordHook) recordDeployment(tx models.ConfirmedTransaction) error {
	if tx.Deployment == nil {
		return fmt.Errorf("deployment %s has no deployment result", tx.TransactionHash)
	}

	args := models.JSON{}
	for name, value := range tx.ConstructorArgs {
		args[name] = value
	}

	deployment := &models.Deployment{
		SessionID:       tx.SessionID,
		ContractName:    tx.Deployment.ContractName,
		ContractAddress: tx.Deployment.ContractAddress,
		DeployerAddress: utils.ChecksumAddress(tx.Deployment.DeployedBy),
		TransactionHash: tx.TransactionHash,
		BlockNumber:     tx.BlockNumber,
		GasUsed:         tx.GasUsed,
		Network:         tx.Deployment.Network,
		ChainID:         tx.Deployment.ChainID,
		ConstructorArgs: args,
		Status:          models.TransactionStatusConfirmed,
	}
	if err := h.deploymentService.CreateDeployment(deployment); err != nil {
		return fmt.Errorf("failed to record deployment %s: %w", tx.TransactionHash, err)
	}
	return nil
}

func (h *DeploymentRecordHook) recordMint(tx models.ConfirmedTransaction) error {
	if tx.Minting == nil {
		return fmt.Errorf("mint %s has no minting result", tx.TransactionHash)
	}
	if err := h.deploymentService.RecordMint(tx.Minting.Metadata.ContractAddress, *tx.Minting); err != nil {
		return fmt.Errorf("failed to record mint %s: %w", tx.TransactionHash, err)
	}
	return nil
}

func NewDeploymentRecordHook(deploymentService services.DeploymentService) services.Hook {
	return &DeploymentRecordHook{
		deploymentService: deploymentService,
	}
}
