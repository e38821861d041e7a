package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/auditsmart/internal/models"
	"github.com/rxtech-lab/auditsmart/internal/services"
	"github.com/rxtech-lab/auditsmart/internal/utils"
	"gorm.io/gorm"
)

type DeploymentListResponse struct {
	Deployments []models.Deployment `json:"deployments"`
	Pagination  services.Pagination `json:"pagination"`
}

// handleListDeployments lists the deployment history, newest first. Query
// parameters: page, limit, session_id, deployer and minted.
func (s *APIServer) handleListDeployments(c *fiber.Ctx) error {
	filter := services.DeploymentFilter{
		SessionID: c.Query("session_id"),
		Deployer:  c.Query("deployer"),
		Status:    models.TransactionStatus(c.Query("status")),
	}
	if minted := c.Query("minted"); minted != "" {
		value, err := strconv.ParseBool(minted)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "minted must be true or false")
		}
		filter.Minted = &value
	}
	if filter.Deployer != "" && !utils.IsValidEthereumAddress(filter.Deployer) {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid deployer address")
	}

	pagination := services.NewPagination(c.QueryInt("page", 1), c.QueryInt("limit", services.DefaultPageSize), 0)
	filter.Offset = pagination.Offset()
	filter.Limit = pagination.PageSize

	deployments, total, err := s.deployments.ListDeployments(filter)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if deployments == nil {
		deployments = []models.Deployment{}
	}
	return c.JSON(DeploymentListResponse{
		Deployments: deployments,
		Pagination:  services.NewPagination(pagination.CurrentPage, pagination.PageSize, total),
	})
}

func (s *APIServer) handleGetDeployment(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid deployment ID")
	}
	deployment, err := s.deployments.GetDeploymentByID(uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Deployment not found")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(deployment)
}

// handleDeleteDeployment removes a record from the history. The contract on
// chain is not affected.
func (s *APIServer) handleDeleteDeployment(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid deployment ID")
	}
	if _, err := s.deployments.GetDeploymentByID(uint(id)); errors.Is(err, gorm.ErrRecordNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Deployment not found")
	} else if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if err := s.deployments.DeleteDeployment(uint(id)); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}
