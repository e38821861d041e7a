package wallet

import (
	"fmt"
	"math/big"
)

type NetworkInfo struct {
	Name    string `json:"name"`
	ChainID string `json:"chain_id"`
}

// UnknownNetwork is returned when the provider cannot report its chain.
var UnknownNetwork = NetworkInfo{Name: "Unknown", ChainID: "unknown"}

func (n NetworkInfo) IsKnown() bool {
	return n != UnknownNetwork
}

var knownNetworks = map[string]string{
	"1":        "Ethereum Mainnet",
	"5":        "Goerli",
	"11155111": "Sepolia",
	"17000":    "Holesky",
	"56":       "BNB Smart Chain",
	"137":      "Polygon",
	"10":       "Optimism",
	"42161":    "Arbitrum One",
	"8453":     "Base",
	"1337":     "Localhost",
	"31337":    "Hardhat",
}

func networkName(chainID *big.Int, overrides map[string]string) string {
	id := chainID.String()
	if name, ok := overrides[id]; ok {
		return name
	}
	if name, ok := knownNetworks[id]; ok {
		return name
	}
	return fmt.Sprintf("chain-%s", id)
}
