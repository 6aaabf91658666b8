// services/chain_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"prize-redemption-system/utils"
)

// ChainClient is the on-chain collaborator the redemption engine depends
// on. Implementations must bound their calls with the request context.
type ChainClient interface {
	// GetOwner returns the wallet currently holding the mint.
	GetOwner(ctx context.Context, mint string) (string, error)
	// Burn destroys the NFT and returns the transaction signature.
	// Irreversible once the transaction lands.
	Burn(ctx context.Context, mint, owner string) (string, error)
	// IsTransactionLanded reports whether a submitted signature is visible
	// on chain — used to disambiguate burn timeouts before surfacing
	// BurnFailed.
	IsTransactionLanded(ctx context.Context, txSignature string) (bool, error)
	// BurnStatus returns the signature of a burn the signer service already
	// submitted for mint, empty if none is recorded. The signer keys burns
	// by mint (a mint burns at most once), so this resolves what a timed-out
	// Burn call actually did.
	BurnStatus(ctx context.Context, mint string) (string, error)
	// FinalizePlay submits the play-finalization transaction that resolves
	// a session on chain, minting the prize NFT on a win. Returns the
	// transaction signature and the minted address (empty on a lose).
	FinalizePlay(ctx context.Context, gameID, sessionID string, roll uint16) (txSig string, nftMint string, err error)
}

// SolanaChainClient reads ownership straight from a Solana RPC node and
// delegates anything that needs the treasury keypair to the internal signer
// service.
type SolanaChainClient struct {
	RPCURL     string
	SignerURL  string
	Token      string
	HTTPClient *http.Client
}

func NewSolanaChainClient(rpcURL, signerURL, token string) *SolanaChainClient {
	return &SolanaChainClient{
		RPCURL:    rpcURL,
		SignerURL: signerURL,
		Token:     token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

func (c *SolanaChainClient) rpcCall(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to encode rpc request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.RPCURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpc call %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("rpc call %s returned status %d: %s", method, resp.StatusCode, string(snippet))
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode rpc response: %w", err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("rpc call %s failed: %d %s", method, envelope.Error.Code, envelope.Error.Message)
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("failed to decode rpc result: %w", err)
	}
	return nil
}

// GetOwner resolves the mint's largest token account (supply 1 for an NFT,
// so the holder's account) and reads its parsed owner.
func (c *SolanaChainClient) GetOwner(ctx context.Context, mint string) (string, error) {
	var largest struct {
		Value []struct {
			Address string `json:"address"`
			Amount  string `json:"amount"`
		} `json:"value"`
	}
	err := c.rpcCall(ctx, "getTokenLargestAccounts", []interface{}{mint}, &largest)
	if err != nil {
		return "", err
	}
	var holder string
	for _, acc := range largest.Value {
		if acc.Amount == "1" {
			holder = acc.Address
			break
		}
	}
	if holder == "" {
		return "", fmt.Errorf("mint %s has no holding token account", mint)
	}

	var info struct {
		Value struct {
			Data struct {
				Parsed struct {
					Info struct {
						Owner string `json:"owner"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"value"`
	}
	err = c.rpcCall(ctx, "getAccountInfo", []interface{}{
		holder,
		map[string]string{"encoding": "jsonParsed"},
	}, &info)
	if err != nil {
		return "", err
	}
	owner := info.Value.Data.Parsed.Info.Owner
	if owner == "" {
		return "", fmt.Errorf("token account %s has no parsed owner", holder)
	}
	return owner, nil
}

// IsTransactionLanded checks signature visibility at confirmed commitment.
func (c *SolanaChainClient) IsTransactionLanded(ctx context.Context, txSignature string) (bool, error) {
	var statuses struct {
		Value []*struct {
			ConfirmationStatus string `json:"confirmationStatus"`
			Err                any    `json:"err"`
		} `json:"value"`
	}
	err := c.rpcCall(ctx, "getSignatureStatuses", []interface{}{
		[]string{txSignature},
		map[string]bool{"searchTransactionHistory": true},
	}, &statuses)
	if err != nil {
		return false, err
	}
	if len(statuses.Value) == 0 || statuses.Value[0] == nil {
		return false, nil
	}
	return statuses.Value[0].Err == nil, nil
}

// signerCall POSTs to the internal signer service, which holds the treasury
// keypair and co-signs program transactions.
func (c *SolanaChainClient) signerCall(ctx context.Context, path string, payload interface{}, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode signer request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.SignerURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create signer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.Token)

	client := c.HTTPClient
	if client == nil {
		client = utils.HTTPClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("signer service call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("signer service returned status %d: %s", resp.StatusCode, string(snippet))
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

func (c *SolanaChainClient) Burn(ctx context.Context, mint, owner string) (string, error) {
	var out struct {
		Signature string `json:"signature"`
	}
	err := c.signerCall(ctx, "/api/v1/burn", map[string]string{
		"mint":  mint,
		"owner": owner,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.Signature == "" {
		return "", fmt.Errorf("signer service returned empty burn signature")
	}
	return out.Signature, nil
}

// BurnStatus looks up the signer's recorded burn for a mint. 404 means no
// submission exists, which is a definitive answer, not an error.
func (c *SolanaChainClient) BurnStatus(ctx context.Context, mint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.SignerURL+"/api/v1/burn/"+mint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create burn status request: %w", err)
	}
	req.Header.Set("X-Service-Token", c.Token)

	client := c.HTTPClient
	if client == nil {
		client = utils.HTTPClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("burn status call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("signer service returned status %d: %s", resp.StatusCode, string(snippet))
	}
	var out struct {
		Signature string `json:"signature"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode burn status response: %w", err)
	}
	return out.Signature, nil
}

func (c *SolanaChainClient) FinalizePlay(ctx context.Context, gameID, sessionID string, roll uint16) (string, string, error) {
	var out struct {
		Signature string `json:"signature"`
		Mint      string `json:"mint"`
	}
	err := c.signerCall(ctx, "/api/v1/finalize-play", map[string]interface{}{
		"gameId":    gameID,
		"sessionId": sessionID,
		"roll":      roll,
	}, &out)
	if err != nil {
		return "", "", err
	}
	if out.Signature == "" {
		return "", "", fmt.Errorf("signer service returned empty finalize signature")
	}
	return out.Signature, out.Mint, nil
}
