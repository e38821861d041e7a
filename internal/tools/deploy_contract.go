package tools

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/auditsmart/internal/workflow"
)

type deployContractTool struct {
	engine Engine
}

func NewDeployContractTool(engine Engine) *deployContractTool {
	return &deployContractTool{engine: engine}
}

func (d *deployContractTool) GetTool() mcp.Tool {
	tool := mcp.NewTool("deploy_contract",
		mcp.WithDescription("Compile the fixed code from the last audit and deploy it through the connected wallet. Contracts with constructor parameters stop and ask for submit_constructor_args. Without a connected wallet the deployment waits for connect_wallet."),
	)

	return tool
}

func (d *deployContractTool) GetHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := d.engine.RequestDeploy(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to deploy contract: %v", err)), nil
		}
		return deploymentResult(d.engine.Snapshot())
	}
}

// deploymentResult reports a finished deployment or what it is waiting for.
func deploymentResult(view workflow.View) (*mcp.CallToolResult, error) {
	if view.Stage == workflow.StageDeployed && view.DeploymentResult != nil {
		return sessionResult(fmt.Sprintf("Contract deployed at %s: ", view.DeploymentResult.ContractAddress), view)
	}
	return sessionResult("Deployment is waiting for input: ", view)
}

type submitConstructorArgsTool struct {
	engine Engine
}

type SubmitConstructorArgsArguments struct {
	Args map[string]any `json:"args" validate:"required"`
}

func NewSubmitConstructorArgsTool(engine Engine) *submitConstructorArgsTool {
	return &submitConstructorArgsTool{engine: engine}
}

func (s *submitConstructorArgsTool) GetTool() mcp.Tool {
	tool := mcp.NewTool("submit_constructor_args",
		mcp.WithDescription("Provide constructor argument values requested by deploy_contract and deploy the contract. Address parameters are filled with the deploying wallet account and cannot be overridden."),
		mcp.WithObject("args",
			mcp.Required(),
			mcp.Description("JSON object mapping constructor parameter names to values (e.g., {\"initialSupply\": \"1000000\"}). Provide uint256 values as decimal strings"),
		),
	)

	return tool
}

func (s *submitConstructorArgsTool) GetHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args SubmitConstructorArgsArguments
		if err := request.BindArguments(&args); err != nil {
			return nil, fmt.Errorf("failed to bind arguments: %w", err)
		}

		if err := validator.New().Struct(args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}

		values, err := stringValues(args.Args)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}

		if err := s.engine.SubmitConstructorArgs(ctx, values); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to deploy contract: %v", err)), nil
		}
		return deploymentResult(s.engine.Snapshot())
	}
}

// stringValues converts JSON argument values to the decimal or literal strings
// the ABI encoder parses.
func stringValues(args map[string]any) (map[string]string, error) {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make(map[string]string, len(args))
	for _, name := range names {
		switch v := args[name].(type) {
		case string:
			values[name] = v
		case float64:
			values[name] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			values[name] = strconv.FormatBool(v)
		case nil:
			values[name] = ""
		default:
			return nil, fmt.Errorf("unsupported value for %s: %T", name, v)
		}
	}
	return values, nil
}
