package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/auditsmart/internal/workflow"
)

type connectWalletTool struct {
	engine Engine
}

func NewConnectWalletTool(engine Engine) *connectWalletTool {
	return &connectWalletTool{engine: engine}
}

func (c *connectWalletTool) GetTool() mcp.Tool {
	tool := mcp.NewTool("connect_wallet",
		mcp.WithDescription("Connect the signing wallet. A deployment or mint waiting for the wallet is resumed and finished before this tool returns."),
	)

	return tool
}

func (c *connectWalletTool) GetHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		account, err := c.engine.ConnectWallet(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return sessionResult(fmt.Sprintf("Wallet connected as %s: ", account), c.engine.Snapshot())
	}
}

type mintNFTTool struct {
	engine Engine
}

func NewMintNFTTool(engine Engine) *mintNFTTool {
	return &mintNFTTool{engine: engine}
}

func (m *mintNFTTool) GetTool() mcp.Tool {
	tool := mcp.NewTool("mint_nft",
		mcp.WithDescription("Mint the commemorative AuditSmart NFT for the contract deployed in this session. The metadata is pinned to IPFS and the NFT is minted to the connected wallet."),
	)

	return tool
}

func (m *mintNFTTool) GetHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := m.engine.RequestMint(ctx); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		view := m.engine.Snapshot()
		if view.Stage == workflow.StageMinted && view.MintingResult != nil {
			return sessionResult(fmt.Sprintf("NFT minted with token ID %s: ", view.MintingResult.TokenID), view)
		}
		return sessionResult("Minting is waiting for input: ", view)
	}
}

type getSessionTool struct {
	engine Engine
}

func NewGetSessionTool(engine Engine) *getSessionTool {
	return &getSessionTool{engine: engine}
}

func (g *getSessionTool) GetTool() mcp.Tool {
	tool := mcp.NewTool("get_session",
		mcp.WithDescription("Show the current audit session: stage, audit results, compilation, deployment and minting results, and the next available action."),
	)

	return tool
}

func (g *getSessionTool) GetHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		view := g.engine.Snapshot()
		return sessionResult(fmt.Sprintf("Session %s is %s: ", view.SessionID, view.Stage), view)
	}
}

type resetSessionTool struct {
	engine Engine
}

func NewResetSessionTool(engine Engine) *resetSessionTool {
	return &resetSessionTool{engine: engine}
}

func (r *resetSessionTool) GetTool() mcp.Tool {
	tool := mcp.NewTool("reset_session",
		mcp.WithDescription("Discard the contract source and every result of the current session. The deployment history is kept."),
	)

	return tool
}

func (r *resetSessionTool) GetHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := r.engine.Reset(); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to reset session: %v", err)), nil
		}
		return mcp.NewToolResultText("Session reset"), nil
	}
}
