package auditapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rxtech-lab/auditsmart/internal/models"
)

type PinResult struct {
	Status  string `json:"status,omitempty"`
	CID     string `json:"cid,omitempty"`
	IPFSURI string `json:"ipfs_uri"`
	IPFSURL string `json:"ipfs_url,omitempty"`
}

type NFTConfig struct {
	ContractAddress string          `json:"nft_contract_address"`
	ABI             json.RawMessage `json:"nft_abi"`
	RPCURL          string          `json:"rpc_url,omitempty"`
	ExplorerURL     string          `json:"explorer_url,omitempty"`
}

// MintingReport is the bookkeeping record sent after a confirmed mint.
type MintingReport struct {
	Metadata        models.NFTMetadata `json:"metadata"`
	TokenID         string             `json:"token_id"`
	TokenURI        string             `json:"token_uri"`
	NFTContract     string             `json:"nft_contract"`
	TransactionHash string             `json:"transaction_hash"`
	BlockNumber     uint64             `json:"block_number"`
	GasUsed         uint64             `json:"gas_used"`
	Recipient       string             `json:"recipient"`
}

// NewMintingReport copies the reported fields out of a minting result.
func NewMintingReport(result models.MintingResult) MintingReport {
	return MintingReport{
		Metadata:        result.Metadata,
		TokenID:         result.TokenID,
		TokenURI:        result.TokenURI,
		NFTContract:     result.NFTContract,
		TransactionHash: result.TransactionHash,
		BlockNumber:     result.BlockNumber,
		GasUsed:         result.GasUsed,
		Recipient:       result.Recipient,
	}
}

type ReportResult struct {
	ID          string `json:"id,omitempty"`
	Message     string `json:"message,omitempty"`
	IsDuplicate bool   `json:"is_duplicate"`
}

// PinMetadata pins the NFT metadata document and returns its token URI.
func (c *Client) PinMetadata(ctx context.Context, metadata models.NFTMetadata) (*PinResult, error) {
	resp, err := c.postJSON(ctx, endpointPinMetadata, metadata)
	if err != nil {
		return nil, err
	}
	if err := requireJSON(endpointPinMetadata, resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, &APIError{
			Endpoint:   endpointPinMetadata,
			StatusCode: resp.StatusCode,
			Detail:     fmt.Sprintf("failed to pin metadata to IPFS. Status: %d. Error: %s", resp.StatusCode, string(resp.body)),
		}
	}

	var result PinResult
	if err := decode(endpointPinMetadata, resp, &result); err != nil {
		return nil, err
	}
	if result.IPFSURI == "" {
		return nil, &ResponseShapeError{
			Endpoint:    endpointPinMetadata,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        excerpt(resp.body),
			Reason:      "no IPFS URI returned from metadata pinning service",
		}
	}
	return &result, nil
}

// FetchNFTConfig returns the commemorative NFT contract address and ABI.
func (c *Client) FetchNFTConfig(ctx context.Context) (*NFTConfig, error) {
	resp, err := c.get(ctx, endpointNFTConfig)
	if err != nil {
		return nil, err
	}
	if err := requireJSON(endpointNFTConfig, resp); err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, &APIError{
			Endpoint:   endpointNFTConfig,
			StatusCode: resp.StatusCode,
			Detail:     fmt.Sprintf("failed to get NFT contract configuration. Status: %d. Error: %s", resp.StatusCode, string(resp.body)),
		}
	}

	var config NFTConfig
	if err := decode(endpointNFTConfig, resp, &config); err != nil {
		return nil, err
	}
	if config.ContractAddress == "" || len(config.ABI) == 0 || string(config.ABI) == "null" {
		return nil, &ResponseShapeError{
			Endpoint:    endpointNFTConfig,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        excerpt(resp.body),
			Reason:      "invalid NFT contract configuration received",
		}
	}
	return &config, nil
}

// ReportMinting sends the bookkeeping record. The service answers 400 for a
// record it already holds, which is reported as a duplicate rather than an
// error.
func (c *Client) ReportMinting(ctx context.Context, report MintingReport) (*ReportResult, error) {
	resp, err := c.postJSON(ctx, endpointMintingReport, report)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusBadRequest {
		return &ReportResult{IsDuplicate: true, Message: "minting record already exists"}, nil
	}
	if !resp.ok() {
		return nil, parseError(endpointMintingReport, "Minting report failed", resp.Response, resp.body)
	}

	var result ReportResult
	if len(resp.body) == 0 {
		return &result, nil
	}
	if err := decode(endpointMintingReport, resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
