package auditapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rxtech-lab/auditsmart/internal/models"
)

// NoWalletConnected is sent in the wallet-address header when no account is
// connected.
const NoWalletConnected = "no-wallet-connected"

const compileFileName = "fixed_contract.sol"

// Analyze uploads the source for auditing.
func (c *Client) Analyze(ctx context.Context, source models.SourceInput, walletAddress string) (*models.AuditResult, error) {
	if source.IsEmpty() {
		return nil, fmt.Errorf("source is empty")
	}
	if walletAddress == "" {
		walletAddress = NoWalletConnected
	}

	resp, err := c.postFile(ctx, endpointAudit, source.UploadName(), source.Code, map[string]string{
		"wallet-address": walletAddress,
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, parseError(endpointAudit, "Audit failed", resp.Response, resp.body)
	}

	var result models.AuditResult
	if err := decode(endpointAudit, resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type compileResponse struct {
	Status       string          `json:"status"`
	ContractName string          `json:"contract_name"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
	SolcVersion  string          `json:"solc_version"`
}

// Compile compiles the fixed source remotely. Constructor inputs are left for
// the caller to derive from the ABI.
func (c *Client) Compile(ctx context.Context, fixedCode string) (*models.CompilationResult, error) {
	if strings.TrimSpace(fixedCode) == "" {
		return nil, fmt.Errorf("fixed code is empty")
	}

	resp, err := c.postFile(ctx, endpointCompile, compileFileName, fixedCode, nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, parseError(endpointCompile, "Compilation failed", resp.Response, resp.body)
	}

	var compiled compileResponse
	if err := decode(endpointCompile, resp, &compiled); err != nil {
		return nil, err
	}
	if len(compiled.ABI) == 0 || compiled.Bytecode == "" {
		return nil, &ResponseShapeError{
			Endpoint:    endpointCompile,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        excerpt(resp.body),
			Reason:      "compilation response is missing abi or bytecode",
		}
	}

	bytecode := compiled.Bytecode
	if !strings.HasPrefix(bytecode, "0x") {
		bytecode = "0x" + bytecode
	}
	return &models.CompilationResult{
		Status:       compiled.Status,
		ABI:          compiled.ABI,
		Bytecode:     bytecode,
		ContractName: compiled.ContractName,
		SolcVersion:  compiled.SolcVersion,
	}, nil
}
