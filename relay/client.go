package relay

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goccy/go-json"
)

const (
	contentTypeJSON     = "application/json"
	signatureHeader     = "X-Flashbots-Signature"
	methodSendPrivateTx = "eth_sendPrivateTransaction"
)

// Client submits signed transactions to a private relay instead of the
// public mempool, shielding executions from frontrunning.
type Client struct {
	httpClient *http.Client
	relayURL   string
	authSigner *ecdsa.PrivateKey
}

// NewClient creates a relay client. authKey signs the request payload so the
// relay can attribute and rate-limit the searcher.
func NewClient(relayURL string, authKey *ecdsa.PrivateKey) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Second * 3,
		},
		relayURL:   relayURL,
		authSigner: authKey,
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SendRawTransaction submits an RLP-encoded signed transaction privately and
// returns the transaction hash the relay reports.
func (c *Client) SendRawTransaction(ctx context.Context, rawTx string) (common.Hash, error) {
	params := map[string]interface{}{
		"tx": rawTx,
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  methodSendPrivateTx,
		Params:  []interface{}{params},
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to marshal relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL, bytes.NewReader(body))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to build relay request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)

	signature, err := c.signPayload(body)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign relay payload: %w", err)
	}
	req.Header.Set(signatureHeader, signature)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return common.Hash{}, fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to read relay response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return common.Hash{}, fmt.Errorf("failed to parse relay response: %w", err)
	}
	if rpcResp.Error != nil {
		return common.Hash{}, fmt.Errorf("relay error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	var txHash string
	if err := json.Unmarshal(rpcResp.Result, &txHash); err != nil {
		return common.Hash{}, fmt.Errorf("failed to parse relay tx hash: %w", err)
	}

	return common.HexToHash(txHash), nil
}

// signPayload produces the relay's searcher-identity header value:
// address:signature over the keccak hash of the body.
func (c *Client) signPayload(body []byte) (string, error) {
	hashed := crypto.Keccak256Hash(body).Hex()
	sig, err := crypto.Sign(accounts.TextHash([]byte(hashed)), c.authSigner)
	if err != nil {
		return "", err
	}

	addr := crypto.PubkeyToAddress(c.authSigner.PublicKey)
	return fmt.Sprintf("%s:%s", addr.Hex(), common.Bytes2Hex(sig)), nil
}
