package pricefeed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

const coingeckoSimplePriceURL = "https://api.coingecko.com/api/v3/simple/price?ids=ethereum&vs_currencies=usd"

// Client fetches the USD price of the native asset from CoinGecko.
type Client struct {
	httpClient *http.Client
	url        string
}

// NewClient creates a CoinGecko price client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		url:        coingeckoSimplePriceURL,
	}
}

// NewClientWithURL creates a client against a custom endpoint. Used in tests.
func NewClientWithURL(url string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		url:        url,
	}
}

// FetchETHPriceUSD returns the current ETH/USD price.
func (c *Client) FetchETHPriceUSD(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build price request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch ETH price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read price response: %w", err)
	}

	var payload struct {
		Ethereum struct {
			USD float64 `json:"usd"`
		} `json:"ethereum"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("failed to parse price response: %w", err)
	}

	if payload.Ethereum.USD <= 0 {
		return 0, fmt.Errorf("price feed returned non-positive price")
	}

	return payload.Ethereum.USD, nil
}
