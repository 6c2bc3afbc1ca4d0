// Package evmrpc provides a minimal Ethereum JSON-RPC client for the token
// balance lookups the credential verifier depends on.
package evmrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/veilworld/veilworld/internal/platform/timeouts"
)

// balanceOfSelector is the first four bytes of keccak256("balanceOf(address)").
const balanceOfSelector = "0x70a08231"

// Client issues eth_call requests against per-chain RPC endpoints.
type Client struct {
	endpoints  map[string]string
	httpClient *http.Client
}

// New creates a client from a chain-id to RPC-URL mapping.
func New(endpoints map[string]string) *Client {
	normalized := make(map[string]string, len(endpoints))
	for chainID, url := range endpoints {
		chainID = strings.TrimSpace(chainID)
		url = strings.TrimSpace(url)
		if chainID == "" || url == "" {
			continue
		}
		normalized[chainID] = url
	}
	return &Client{
		endpoints:  normalized,
		httpClient: &http.Client{Timeout: timeouts.ExternalCall},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type callParams struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

// ERC20Balance returns the current balanceOf(holder) for the token contract
// on the given chain.
func (c *Client) ERC20Balance(ctx context.Context, chainID, tokenAddress, holder string) (*big.Int, error) {
	if c == nil {
		return nil, fmt.Errorf("rpc client is not configured")
	}
	endpoint, ok := c.endpoints[strings.TrimSpace(chainID)]
	if !ok {
		return nil, fmt.Errorf("no rpc endpoint for chain %q", chainID)
	}
	data, err := balanceOfCallData(holder)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_call",
		Params:  []any{callParams{To: strings.TrimSpace(tokenAddress), Data: data}, "latest"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rpc request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rpc request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("call rpc endpoint: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rpc endpoint returned status %d", response.StatusCode)
	}

	var decoded rpcResponse
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode rpc response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}
	return parseHexQuantity(decoded.Result)
}

func balanceOfCallData(holder string) (string, error) {
	holder = strings.TrimPrefix(strings.TrimSpace(holder), "0x")
	if len(holder) != 40 {
		return "", fmt.Errorf("holder address must be 20 hex bytes, got %q", holder)
	}
	// ABI-encode the single address argument left-padded to 32 bytes.
	return balanceOfSelector + strings.Repeat("0", 24) + strings.ToLower(holder), nil
}

func parseHexQuantity(value string) (*big.Int, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if value == "" {
		return big.NewInt(0), nil
	}
	quantity, ok := new(big.Int).SetString(value, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", value)
	}
	return quantity, nil
}
