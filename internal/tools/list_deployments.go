package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/auditsmart/internal/models"
	"github.com/rxtech-lab/auditsmart/internal/services"
	"github.com/rxtech-lab/auditsmart/internal/utils"
)

type listDeploymentsTool struct {
	deploymentService services.DeploymentService
}

func NewListDeploymentsTool(deploymentService services.DeploymentService) *listDeploymentsTool {
	return &listDeploymentsTool{deploymentService: deploymentService}
}

func (l *listDeploymentsTool) GetTool() mcp.Tool {
	tool := mcp.NewTool("list_deployments",
		mcp.WithDescription("List contracts deployed through the audit workflow, newest first, with pagination support and filtering by session, deployer and whether the commemorative NFT was minted."),
		mcp.WithString("session_id",
			mcp.Description("Only list deployments of this audit session. Leave empty to list all sessions"),
		),
		mcp.WithString("deployer",
			mcp.Description("Only list deployments signed by this address"),
		),
		mcp.WithString("minted",
			mcp.Description("Filter by NFT minting (true or false). Leave empty to get all deployments"),
		),
		mcp.WithString("page",
			mcp.Description("Page number for pagination (default: 1)"),
		),
		mcp.WithString("limit",
			mcp.Description("Number of deployments per page (default: 10, max: 100)"),
		),
	)

	return tool
}

func (l *listDeploymentsTool) GetHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filter := services.DeploymentFilter{
			SessionID: request.GetString("session_id", ""),
			Deployer:  request.GetString("deployer", ""),
		}
		if minted := request.GetString("minted", ""); minted != "" {
			value, err := strconv.ParseBool(minted)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Invalid minted filter: %v", err)), nil
			}
			filter.Minted = &value
		}
		if filter.Deployer != "" && !utils.IsValidEthereumAddress(filter.Deployer) {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid deployer address: %s", filter.Deployer)), nil
		}

		// Invalid numbers fall back to the defaults
		page, _ := strconv.Atoi(request.GetString("page", "1"))
		limit, _ := strconv.Atoi(request.GetString("limit", strconv.Itoa(services.DefaultPageSize)))
		pagination := services.NewPagination(page, limit, 0)
		filter.Offset = pagination.Offset()
		filter.Limit = pagination.PageSize

		deployments, total, err := l.deploymentService.ListDeployments(filter)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error retrieving deployments: %v", err)), nil
		}
		if deployments == nil {
			deployments = []models.Deployment{}
		}

		result := map[string]interface{}{
			"deployments": deployments,
			"pagination":  services.NewPagination(pagination.CurrentPage, pagination.PageSize, total),
			"filters": map[string]interface{}{
				"session_id": filter.SessionID,
				"deployer":   filter.Deployer,
				"minted":     filter.Minted,
			},
		}

		resultJSON, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to encode deployments: %w", err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent("Deployments list: "),
				mcp.NewTextContent(string(resultJSON)),
			},
		}, nil
	}
}
