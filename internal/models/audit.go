package models

import (
	"encoding/json"
	"strings"
)

// Vulnerability is a single finding reported by the audit service.
type Vulnerability struct {
	Title          string `json:"title,omitempty"`
	Severity       string `json:"severity,omitempty"`
	Description    string `json:"description,omitempty"`
	Location       string `json:"location,omitempty"`
	Impact         string `json:"impact,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
}

// AuditResult is the response of a successful analyze call.
type AuditResult struct {
	Vulnerabilities     []Vulnerability `json:"vulnerabilities"`
	FixedCode           string          `json:"fixed_code,omitempty"`
	ReportURI           string          `json:"report_uri,omitempty"`
	ContractName        string          `json:"contract_name"`
	ContractDescription string          `json:"contract_description"`
	SeverityBreakdown   map[string]int  `json:"severity_breakdown,omitempty"`
	Summary             string          `json:"summary,omitempty"`
	// Extra keeps response fields this type does not model so they survive
	// a persist and reload.
	Extra map[string]json.RawMessage `json:"-"`
}

type auditResultFields AuditResult

var auditResultKeys = []string{
	"vulnerabilities",
	"fixed_code",
	"report_uri",
	"contract_name",
	"contract_description",
	"severity_breakdown",
	"summary",
}

func (r *AuditResult) UnmarshalJSON(data []byte) error {
	var fields auditResultFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, key := range auditResultKeys {
		delete(all, key)
	}

	*r = AuditResult(fields)
	r.Extra = nil
	if len(all) > 0 {
		r.Extra = all
	}
	return nil
}

func (r AuditResult) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(auditResultFields(r))
	if err != nil || len(r.Extra) == 0 {
		return data, err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for key, value := range r.Extra {
		if _, known := all[key]; !known {
			all[key] = value
		}
	}
	return json.Marshal(all)
}

// HasFixedCode reports whether the audit produced a deployable source.
func (r *AuditResult) HasFixedCode() bool {
	return r != nil && strings.TrimSpace(r.FixedCode) != ""
}

// ConstructorInput is one constructor parameter as shown in the args prompt.
type ConstructorInput struct {
	Name string `json:"name"`
	Type string `json:"type"`
	// Value is the prefilled value. Address inputs are filled with the
	// connected wallet account.
	Value    string `json:"value,omitempty"`
	ReadOnly bool   `json:"readonly"`
}

// CompilationResult is the output of compiling the fixed source.
type CompilationResult struct {
	Status            string             `json:"status,omitempty"`
	ABI               json.RawMessage    `json:"abi"`
	Bytecode          string             `json:"bytecode"`
	ContractName      string             `json:"contract_name"`
	SolcVersion       string             `json:"solc_version,omitempty"`
	ConstructorInputs []ConstructorInput `json:"constructorInputs"`
}

// DeploymentResult records a confirmed contract creation.
type DeploymentResult struct {
	Status              string `json:"status"`
	ContractAddress     string `json:"contract_address"`
	TransactionHash     string `json:"transaction_hash"`
	BlockNumber         uint64 `json:"block_number"`
	GasUsed             uint64 `json:"gas_used"`
	ContractName        string `json:"contract_name"`
	Network             string `json:"network"`
	ChainID             string `json:"chain_id"`
	DeployedBy          string `json:"deployed_by"`
	DeploymentTimestamp string `json:"deployment_timestamp"`
}

// NFTAttribute follows the ERC-721 metadata attribute shape.
type NFTAttribute struct {
	TraitType   string `json:"trait_type"`
	Value       any    `json:"value"`
	DisplayType string `json:"display_type,omitempty"`
}

// NFTMetadata is pinned to IPFS before minting.
type NFTMetadata struct {
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Image           string         `json:"image"`
	ContractAddress string         `json:"contract_address"`
	TransactionHash string         `json:"transaction_hash"`
	DeployedBy      string         `json:"deployed_by"`
	Network         string         `json:"network"`
	ChainID         string         `json:"chain_id"`
	DeploymentTime  int64          `json:"deployment_time"`
	Attributes      []NFTAttribute `json:"attributes"`
}

// MintingResult records a confirmed mint of the commemorative NFT.
type MintingResult struct {
	TransactionHash string      `json:"transaction_hash"`
	BlockNumber     uint64      `json:"block_number"`
	GasUsed         uint64      `json:"gas_used"`
	NFTContract     string      `json:"nft_contract"`
	Recipient       string      `json:"recipient"`
	TokenURI        string      `json:"token_uri"`
	TokenID         string      `json:"token_id"`
	Metadata        NFTMetadata `json:"metadata"`
}

// UnknownTokenID is recorded when the mint receipt holds no Transfer event.
const UnknownTokenID = "N/A"
