package clients

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// GatewayABI is the subset of the D-Gate contract ABI read by the SDK.
// Payment components follow the contract's struct declaration
// (id, from, to, amount, time, fee); tuples decode by position.
const GatewayABI = `[
  {
    "type": "function",
    "name": "findPayment",
    "stateMutability": "view",
    "inputs": [
      {"name": "account", "type": "address"},
      {"name": "id", "type": "uint256"}
    ],
    "outputs": [
      {
        "name": "",
        "type": "tuple",
        "internalType": "struct DGate.Payment",
        "components": [
          {"name": "id", "type": "uint256"},
          {"name": "from", "type": "address"},
          {"name": "to", "type": "address"},
          {"name": "amount", "type": "uint256"},
          {"name": "time", "type": "uint256"},
          {"name": "fee", "type": "uint256"}
        ]
      }
    ]
  },
  {
    "type": "function",
    "name": "getPayments",
    "stateMutability": "view",
    "inputs": [
      {"name": "account", "type": "address"}
    ],
    "outputs": [
      {
        "name": "",
        "type": "tuple[]",
        "internalType": "struct DGate.Payment[]",
        "components": [
          {"name": "id", "type": "uint256"},
          {"name": "from", "type": "address"},
          {"name": "to", "type": "address"},
          {"name": "amount", "type": "uint256"},
          {"name": "time", "type": "uint256"},
          {"name": "fee", "type": "uint256"}
        ]
      }
    ]
  },
  {
    "type": "event",
    "name": "NewPayment",
    "anonymous": false,
    "inputs": [
      {
        "name": "payment",
        "type": "tuple",
        "indexed": false,
        "internalType": "struct DGate.Payment",
        "components": [
          {"name": "id", "type": "uint256"},
          {"name": "from", "type": "address"},
          {"name": "to", "type": "address"},
          {"name": "amount", "type": "uint256"},
          {"name": "time", "type": "uint256"},
          {"name": "fee", "type": "uint256"}
        ]
      }
    ]
  }
]`

var gatewayABI = mustParseABI(GatewayABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ContractABI returns the parsed gateway contract ABI.
func ContractABI() abi.ABI {
	return gatewayABI
}
