package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRawTransaction(t *testing.T) {
	authKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	wantHash := "0x52fb235dd2f1cbd35ba2cecf5e5770f52a1d4a3bfbebe5e0ba32de2f87b9b796"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, contentTypeJSON, r.Header.Get("Content-Type"))

		sig := r.Header.Get(signatureHeader)
		require.NotEmpty(t, sig)
		parts := strings.SplitN(sig, ":", 2)
		require.Len(t, parts, 2)
		assert.Equal(t, crypto.PubkeyToAddress(authKey.PublicKey).Hex(), parts[0])

		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, methodSendPrivateTx, req.Method)

		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":%q}`, wantHash)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, authKey)
	hash, err := client.SendRawTransaction(context.Background(), "0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash(wantHash), hash)
}

func TestSendRawTransactionRelayError(t *testing.T) {
	authKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"tx rejected"}}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, authKey)
	_, err = client.SendRawTransaction(context.Background(), "0xdeadbeef")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tx rejected")
}
