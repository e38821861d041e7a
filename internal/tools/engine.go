package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rxtech-lab/auditsmart/internal/workflow"
)

// Engine is the part of the workflow the MCP tools drive.
type Engine interface {
	Snapshot() workflow.View
	SetPastedCode(code string) error
	SelectFile(name, content string) error
	Submit(ctx context.Context) error
	RequestDeploy(ctx context.Context) error
	SubmitConstructorArgs(ctx context.Context, values map[string]string) error
	ConnectWallet(ctx context.Context) (string, error)
	RequestMint(ctx context.Context) error
	Reset() error
}

// nextStep tells the assistant which tool continues the workflow.
func nextStep(view workflow.View) string {
	switch {
	case view.ShowConstructorPrompt:
		names := make([]string, 0, len(view.ConstructorInputs))
		for _, input := range view.ConstructorInputs {
			if !input.ReadOnly {
				names = append(names, fmt.Sprintf("%s (%s)", input.Name, input.Type))
			}
		}
		return "The contract needs constructor arguments. Call submit_constructor_args with: " + strings.Join(names, ", ")
	case view.AwaitingWallet:
		return fmt.Sprintf("A wallet connection is required to %s. Call connect_wallet to continue.", view.PendingAction)
	case view.ShowDeploymentPrompt:
		return "The audit produced fixed code. Call deploy_contract to compile and deploy it."
	case view.ShowMintingPrompt:
		return "The contract is deployed. Call mint_nft to mint the commemorative NFT."
	case view.Stage == workflow.StageMinted:
		return "The workflow is complete."
	default:
		return ""
	}
}

// sessionResult returns message, the session view and the next step.
func sessionResult(message string, view workflow.View) (*mcp.CallToolResult, error) {
	viewJSON, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	content := []mcp.Content{
		mcp.NewTextContent(message),
		mcp.NewTextContent(string(viewJSON)),
	}
	if step := nextStep(view); step != "" {
		content = append(content, mcp.NewTextContent(step))
	}
	return &mcp.CallToolResult{Content: content}, nil
}
