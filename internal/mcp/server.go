package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/auditsmart/internal/logger"
	"github.com/rxtech-lab/auditsmart/internal/services"
	"github.com/rxtech-lab/auditsmart/internal/tools"
)

type MCPServer struct {
	server *server.MCPServer
}

// tool is implemented by every tool in the tools package.
type tool interface {
	GetTool() mcp.Tool
	GetHandler() server.ToolHandlerFunc
}

func NewMCPServer(engine tools.Engine, deploymentService services.DeploymentService, version string) *MCPServer {
	mcpServer := &MCPServer{}
	mcpServer.InitializeTools(engine, deploymentService, version)
	return mcpServer
}

func (s *MCPServer) InitializeTools(engine tools.Engine, deploymentService services.DeploymentService, version string) {
	srv := server.NewMCPServer(
		"AuditSmart MCP Server",
		version,
		server.WithToolCapabilities(true),
	)

	srv.AddPrompt(mcp.NewPrompt("auditsmart-usage",
		mcp.WithPromptDescription("Instructions and guidance for using the AuditSmart MCP tools"),
		mcp.WithArgument("tool_category",
			mcp.ArgumentDescription("Category of tools to get instructions for (audit, deployment, minting, session, or all)"),
			mcp.RequiredArgument(),
		),
	), func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		category := request.Params.Arguments["tool_category"]
		if category == "" {
			return nil, fmt.Errorf("tool_category is required")
		}

		instructions := getToolInstructions(category)

		return mcp.NewGetPromptResult(
			fmt.Sprintf("AuditSmart MCP Tools - %s", category),
			[]mcp.PromptMessage{
				mcp.NewPromptMessage(
					mcp.RoleUser,
					mcp.NewTextContent(instructions),
				),
			},
		), nil
	})

	registered := []tool{
		// Audit
		tools.NewAuditContractTool(engine),

		// Deployment
		tools.NewDeployContractTool(engine),
		tools.NewSubmitConstructorArgsTool(engine),
		tools.NewConnectWalletTool(engine),
		tools.NewListDeploymentsTool(deploymentService),

		// Minting
		tools.NewMintNFTTool(engine),

		// Session
		tools.NewGetSessionTool(engine),
		tools.NewResetSessionTool(engine),
	}
	for _, t := range registered {
		definition := t.GetTool()
		srv.AddTool(definition, logged(definition.Name, t.GetHandler()))
	}

	s.server = srv
}

// logged tags the call context with the tool name and logs failed calls.
func logged(name string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = context.WithValue(ctx, logger.ToolKey, name)
		log := logger.WithContext(ctx)
		log.Debug("tool called")

		result, err := handler(ctx, request)
		switch {
		case err != nil:
			log.Error("tool failed", "error", err)
		case result != nil && result.IsError:
			log.Warn("tool returned an error")
		}
		return result, err
	}
}

func getToolInstructions(category string) string {
	switch category {
	case "audit":
		return `Audit Tools:

1. audit_contract - Audit a Solidity contract
   Usage: Pass the source as code or as a local file_path. Every previous result of the session is discarded.
   The response lists the vulnerabilities found and the fixed code returned by the audit service.`

	case "deployment":
		return `Deployment Tools:

1. deploy_contract - Compile and deploy the fixed code from the last audit
   Usage: Available once an audit returned fixed code

2. submit_constructor_args - Provide constructor argument values
   Usage: Call when deploy_contract reports that constructor arguments are needed.
   Address parameters are filled with the deploying account.

3. connect_wallet - Connect the signing wallet
   Usage: Call when a deployment or mint is waiting for the wallet

4. list_deployments - List deployed contracts with pagination and filtering
   Usage: Review the deployment history across sessions`

	case "minting":
		return `Minting Tools:

1. mint_nft - Mint the commemorative AuditSmart NFT for the deployed contract
   Usage: Available after a successful deployment. Each deployment can be minted once.`

	case "session":
		return `Session Tools:

1. get_session - Show the current stage, all results and the next action
   Usage: Inspect progress at any time

2. reset_session - Discard the source and all results of the session
   Usage: Start over with a new contract. The deployment history is kept.`

	case "all":
		return `AuditSmart MCP Tools Overview:

This MCP server walks a Solidity contract through audit, compilation, deployment and NFT minting with 8 tools:

AUDIT (1 tool):
- audit_contract: Audit pasted code or a local file

DEPLOYMENT (4 tools):
- deploy_contract: Compile and deploy the fixed code
- submit_constructor_args: Provide constructor arguments
- connect_wallet: Connect the signing wallet
- list_deployments: View the deployment history

MINTING (1 tool):
- mint_nft: Mint the commemorative NFT

SESSION (2 tools):
- get_session: Show the session state
- reset_session: Start over

Each step is only available after the previous one succeeded. get_session always names the next tool to call.`

	default:
		return `Invalid category. Available categories: audit, deployment, minting, session, all`
	}
}

func (s *MCPServer) Start() error {
	return server.ServeStdio(s.server)
}

// GetServer returns the underlying server for mounting on other transports
func (s *MCPServer) GetServer() *server.MCPServer {
	return s.server
}
