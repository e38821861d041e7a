package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type auditContractTool struct {
	engine Engine
}

type AuditContractArguments struct {
	Code     string `json:"code,omitempty" validate:"required_without=FilePath"`
	FilePath string `json:"file_path,omitempty" validate:"required_without=Code"`
	FileName string `json:"file_name,omitempty"`
}

func NewAuditContractTool(engine Engine) *auditContractTool {
	return &auditContractTool{engine: engine}
}

func (a *auditContractTool) GetTool() mcp.Tool {
	tool := mcp.NewTool("audit_contract",
		mcp.WithDescription("Audit a Solidity contract with the remote audit service. Provide the source either as code or as a local file path. Any previous audit, compilation, deployment and minting results of the session are discarded."),
		mcp.WithString("code",
			mcp.Description("Solidity source code to audit. Required unless file_path is given"),
		),
		mcp.WithString("file_path",
			mcp.Description("Path to a local .sol file to audit. Required unless code is given"),
		),
		mcp.WithString("file_name",
			mcp.Description("File name reported to the audit service for pasted code (e.g., Token.sol). Optional"),
		),
	)

	return tool
}

func (a *auditContractTool) GetHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args AuditContractArguments
		if err := request.BindArguments(&args); err != nil {
			return nil, fmt.Errorf("failed to bind arguments: %w", err)
		}

		if err := validator.New().Struct(args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}

		var err error
		switch {
		case args.Code != "" && args.FileName == "":
			err = a.engine.SetPastedCode(args.Code)
		case args.Code != "":
			err = a.engine.SelectFile(args.FileName, args.Code)
		default:
			content, readErr := os.ReadFile(args.FilePath)
			if readErr != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Failed to read contract file: %v", readErr)), nil
			}
			err = a.engine.SelectFile(filepath.Base(args.FilePath), string(content))
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to set contract source: %v", err)), nil
		}

		if err := a.engine.Submit(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Audit failed: %v", err)), nil
		}

		view := a.engine.Snapshot()
		vulnerabilities := 0
		if view.AuditResult != nil {
			vulnerabilities = len(view.AuditResult.Vulnerabilities)
		}
		return sessionResult(fmt.Sprintf("Audit completed with %d vulnerabilities: ", vulnerabilities), view)
	}
}
