package types

import (
	"fmt"
	"strings"
)

// Chain selects one of the supported networks.
type Chain string

const (
	ChainTestnet Chain = "Testnet"
	ChainMainnet Chain = "Mainnet"
)

func (c Chain) String() string {
	return string(c)
}

// IsTestnet reports whether payments on c carry no real value.
func (c Chain) IsTestnet() bool {
	return c == ChainTestnet
}

// NetworkConfig is the fixed connection tuple for one chain.
type NetworkConfig struct {
	Chain           Chain  `json:"chain"`
	Name            string `json:"name"`
	RPCURL          string `json:"rpcUrl"`
	ChainID         int64  `json:"chainId"`
	ContractAddress string `json:"contractAddress"`
	GatewayURL      string `json:"gatewayUrl"`
}

const defaultContractAddress = "0x85334EEB36e318cF6eA4c0DBD21D51891095dc05"

var (
	MainnetConfig = NetworkConfig{
		Chain:           ChainMainnet,
		Name:            "BSC Mainnet",
		RPCURL:          "https://bsc-dataseed.binance.org/",
		ChainID:         56,
		ContractAddress: defaultContractAddress,
		GatewayURL:      "https://bnb.d-gate.org/",
	}

	TestnetConfig = NetworkConfig{
		Chain:           ChainTestnet,
		Name:            "BSC Testnet",
		RPCURL:          "https://data-seed-prebsc-1-s1.binance.org:8545/",
		ChainID:         97,
		ContractAddress: defaultContractAddress,
		GatewayURL:      "https://test-bnb.d-gate.org/",
	}
)

// ResolveNetwork returns the configuration for chain. Unknown selectors are an error.
func ResolveNetwork(chain Chain) (NetworkConfig, error) {
	switch chain {
	case ChainMainnet:
		return MainnetConfig, nil
	case ChainTestnet:
		return TestnetConfig, nil
	default:
		return NetworkConfig{}, NewError(CodeUnsupportedChain, fmt.Sprintf("unsupported chain: %q", string(chain)), nil)
	}
}

// ParseChain accepts the chain name in any letter case.
func ParseChain(s string) (Chain, error) {
	switch {
	case strings.EqualFold(s, string(ChainMainnet)):
		return ChainMainnet, nil
	case strings.EqualFold(s, string(ChainTestnet)):
		return ChainTestnet, nil
	default:
		return "", NewError(CodeUnsupportedChain, fmt.Sprintf("unsupported chain: %q", s), nil)
	}
}

// SupportedChains lists every selector ResolveNetwork accepts.
func SupportedChains() []Chain {
	return []Chain{ChainMainnet, ChainTestnet}
}
