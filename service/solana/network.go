package solana

import (
	"fmt"
	"strings"
)

// Network identifies a Solana cluster.
type Network string

const (
	Mainnet Network = "mainnet"
	Devnet  Network = "devnet"
	Testnet Network = "testnet"
)

// Networks lists the supported clusters in cycling order.
var Networks = []Network{Mainnet, Devnet, Testnet}

// ParseNetwork accepts a cluster name, case-insensitively. "mainnet-beta" is
// an alias for mainnet.
func ParseNetwork(s string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mainnet", "mainnet-beta":
		return Mainnet, nil
	case "devnet":
		return Devnet, nil
	case "testnet":
		return Testnet, nil
	default:
		return "", fmt.Errorf("unknown network %q (must be one of mainnet, devnet, testnet)", s)
	}
}

// Name returns the display name of the cluster.
func (n Network) Name() string {
	switch n {
	case Mainnet:
		return "Mainnet"
	case Devnet:
		return "Devnet"
	case Testnet:
		return "Testnet"
	default:
		return string(n)
	}
}

// DefaultRPCURL returns the public RPC endpoint of the cluster.
func (n Network) DefaultRPCURL() string {
	switch n {
	case Devnet:
		return "https://api.devnet.solana.com"
	case Testnet:
		return "https://api.testnet.solana.com"
	default:
		return "https://api.mainnet-beta.solana.com"
	}
}

// Next returns the following cluster, wrapping around.
func (n Network) Next() Network {
	return n.offset(1)
}

// Prev returns the preceding cluster, wrapping around.
func (n Network) Prev() Network {
	return n.offset(len(Networks) - 1)
}

func (n Network) offset(by int) Network {
	for i, candidate := range Networks {
		if candidate == n {
			return Networks[(i+by)%len(Networks)]
		}
	}
	return Mainnet
}
