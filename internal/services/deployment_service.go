package services

import (
	"errors"

	"github.com/rxtech-lab/auditsmart/internal/models"
	"gorm.io/gorm"
)

type DeploymentService interface {
	CreateDeployment(deployment *models.Deployment) error
	GetDeploymentByID(id uint) (*models.Deployment, error)
	ListDeployments(filter DeploymentFilter) ([]models.Deployment, int64, error)
	GetDeploymentByContractAddress(contractAddress string) (*models.Deployment, error)
	GetDeploymentByTransactionHash(txHash string) (*models.Deployment, error)
	RecordMint(contractAddress string, minting models.MintingResult) error
	DeleteDeployment(id uint) error
}

// DeploymentFilter narrows ListDeployments. Zero values match everything.
type DeploymentFilter struct {
	SessionID string
	Status    models.TransactionStatus
	Deployer  string
	Minted    *bool
	Offset    int
	Limit     int
}

// deploymentService keeps the deployment history
type deploymentService struct {
	db *gorm.DB
}

func NewDeploymentService(db *gorm.DB) DeploymentService {
	return &deploymentService{db: db}
}

// CreateDeployment inserts a deployment, or updates the existing row recorded
// for the same transaction hash.
func (s *deploymentService) CreateDeployment(deployment *models.Deployment) error {
	existing, err := s.GetDeploymentByTransactionHash(deployment.TransactionHash)
	if err == nil {
		deployment.ID = existing.ID
		deployment.CreatedAt = existing.CreatedAt
		return s.db.Save(deployment).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return s.db.Create(deployment).Error
}

// GetDeploymentByID returns a deployment by its ID
func (s *deploymentService) GetDeploymentByID(id uint) (*models.Deployment, error) {
	var deployment models.Deployment
	err := s.db.First(&deployment, id).Error
	if err != nil {
		return nil, err
	}
	return &deployment, nil
}

// ListDeployments returns matching deployments newest first, and the total
// number of matches before pagination.
func (s *deploymentService) ListDeployments(filter DeploymentFilter) ([]models.Deployment, int64, error) {
	query := s.db.Model(&models.Deployment{})
	if filter.SessionID != "" {
		query = query.Where("session_id = ?", filter.SessionID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Deployer != "" {
		query = query.Where("LOWER(deployer_address) = LOWER(?)", filter.Deployer)
	}
	if filter.Minted != nil {
		if *filter.Minted {
			query = query.Where("mint_transaction <> ''")
		} else {
			query = query.Where("mint_transaction = '' OR mint_transaction IS NULL")
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var deployments []models.Deployment
	err := query.Order("created_at DESC, id DESC").Find(&deployments).Error
	return deployments, total, err
}

// GetDeploymentByContractAddress returns a deployment by its contract address
func (s *deploymentService) GetDeploymentByContractAddress(contractAddress string) (*models.Deployment, error) {
	var deployment models.Deployment
	err := s.db.Where("LOWER(contract_address) = LOWER(?)", contractAddress).First(&deployment).Error
	if err != nil {
		return nil, err
	}
	return &deployment, nil
}

// GetDeploymentByTransactionHash returns a deployment by its transaction hash
func (s *deploymentService) GetDeploymentByTransactionHash(txHash string) (*models.Deployment, error) {
	var deployment models.Deployment
	err := s.db.Where("transaction_hash = ?", txHash).First(&deployment).Error
	if err != nil {
		return nil, err
	}
	return &deployment, nil
}

// RecordMint attaches the minted NFT to the deployment of contractAddress.
func (s *deploymentService) RecordMint(contractAddress string, minting models.MintingResult) error {
	deployment, err := s.GetDeploymentByContractAddress(contractAddress)
	if err != nil {
		return err
	}

	return s.db.Model(deployment).Updates(map[string]interface{}{
		"nft_contract":     minting.NFTContract,
		"nft_token_id":     minting.TokenID,
		"nft_token_uri":    minting.TokenURI,
		"mint_transaction": minting.TransactionHash,
	}).Error
}

// DeleteDeployment deletes a deployment by its ID
func (s *deploymentService) DeleteDeployment(id uint) error {
	return s.db.Delete(&models.Deployment{}, id).Error
}
