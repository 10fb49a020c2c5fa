package solana

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// realRPCClient adapts the actual solana-go RPC client to our RPCClient interface.
// Transaction and account payloads are requested as raw JSON so the decoder
// sees exactly what the node returned.
type realRPCClient struct {
	client     *rpc.Client
	commitment rpc.CommitmentType
}

// NewRPCClient creates a new RPCClient that wraps the solana-go RPC client.
// For premium RPC endpoints that require API keys, include the key in the URL:
// - Helius: https://mainnet.helius-rpc.com/?api-key=YOUR-KEY
// - QuickNode: https://YOUR-ENDPOINT.quiknode.pro/YOUR-KEY/
func NewRPCClient(rpcURL string) RPCClient {
	return &realRPCClient{
		client:     rpc.New(rpcURL),
		commitment: rpc.CommitmentConfirmed,
	}
}

func (r *realRPCClient) GetTransaction(ctx context.Context, signature solana.Signature) (json.RawMessage, error) {
	var out json.RawMessage
	err := r.client.RPCCallForInto(ctx, &out, "getTransaction", []interface{}{
		signature.String(),
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"commitment":                     r.commitment,
			"maxSupportedTransactionVersion": 0,
		},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *realRPCClient) GetAccountInfo(ctx context.Context, address solana.PublicKey) (*AccountInfoResult, error) {
	var out struct {
		Value *AccountInfoResult `json:"value"`
	}
	err := r.client.RPCCallForInto(ctx, &out, "getAccountInfo", []interface{}{
		address.String(),
		map[string]interface{}{
			"encoding":   "base64",
			"commitment": r.commitment,
			// Only the metadata is needed; skip downloading account data.
			"dataSlice": map[string]interface{}{"offset": 0, "length": 0},
		},
	})
	if err != nil {
		return nil, err
	}
	return out.Value, nil
}

func (r *realRPCClient) GetTokenAccountsByOwner(ctx context.Context, owner, programID solana.PublicKey) ([]TokenAccountRecord, error) {
	var out struct {
		Value []TokenAccountRecord `json:"value"`
	}
	err := r.client.RPCCallForInto(ctx, &out, "getTokenAccountsByOwner", []interface{}{
		owner.String(),
		map[string]interface{}{"programId": programID.String()},
		map[string]interface{}{
			"encoding":   "jsonParsed",
			"commitment": r.commitment,
		},
	})
	if err != nil {
		return nil, err
	}
	return out.Value, nil
}

func (r *realRPCClient) GetSignaturesForAddress(
	ctx context.Context,
	address solana.PublicKey,
	opts *rpc.GetSignaturesForAddressOpts,
) ([]*rpc.TransactionSignature, error) {
	return r.client.GetSignaturesForAddressWithOpts(ctx, address, opts)
}

func (r *realRPCClient) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error) {
	var out uint64
	err := r.client.RPCCallForInto(ctx, &out, "getMinimumBalanceForRentExemption", []interface{}{
		dataSize,
		map[string]interface{}{"commitment": r.commitment},
	})
	if err != nil {
		return 0, err
	}
	return out, nil
}

// SelectRandomEndpoint picks one RPC URL from a pool so load spreads across
// providers configured for the same network.
func SelectRandomEndpoint(endpoints []string) (string, error) {
	if len(endpoints) == 0 {
		return "", errors.New("no RPC endpoints configured")
	}
	return endpoints[rand.IntN(len(endpoints))], nil
}

// EndpointLabel derives a short metrics label from an RPC URL so API keys in
// the path or query never reach a label value.
//
//	"https://api.mainnet-beta.solana.com"         -> "mainnet"
//	"https://mainnet.helius-rpc.com/?api-key=..." -> "helius"
func EndpointLabel(rpcURL string) string {
	parsed, err := url.Parse(rpcURL)
	if err != nil || parsed.Hostname() == "" {
		return "unknown"
	}
	host := parsed.Hostname()

	for _, provider := range []string{"helius", "quiknode", "quicknode", "alchemy", "triton", "rpcpool"} {
		if strings.Contains(host, provider) {
			if provider == "quicknode" {
				return "quiknode"
			}
			return provider
		}
	}
	for _, network := range Networks {
		if strings.Contains(host, string(network)) {
			return string(network)
		}
	}
	return host
}
