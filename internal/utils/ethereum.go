package utils

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// TransferEventTopic is the topic of Transfer(address,address,uint256).
var TransferEventTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

func IsValidEthereumAddress(address string) bool {
	return common.IsHexAddress(address)
}

// ChecksumAddress returns the EIP-55 form of a hex address.
func ChecksumAddress(address string) string {
	return common.HexToAddress(address).Hex()
}

// FindTransferTokenID returns the token id of the first ERC-721 Transfer
// emitted by contract. ERC-20 transfers, which carry the amount in data
// instead of a third indexed topic, are skipped.
func FindTransferTokenID(logs []*types.Log, contract common.Address) (*big.Int, bool) {
	for _, log := range logs {
		if log == nil || log.Address != contract {
			continue
		}
		if len(log.Topics) != 4 || log.Topics[0] != TransferEventTopic {
			continue
		}
		return new(big.Int).SetBytes(log.Topics[3].Bytes()), true
	}
	return nil, false
}
