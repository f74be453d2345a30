// Package oracle provides price oracle clients. The goldchain client is the
// production source for the vGold/ALGO rate; the ledger engine collapses any
// failure here to its fallback price, so callers never see these errors end
// to end.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/goldchainlabs/goldbot/internal/domain"
)

var _ domain.PriceOracle = (*GoldchainClient)(nil)

// GoldchainClient is the REST client for the goldchain price API.
type GoldchainClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewGoldchainClient creates a price API client.
//
// baseURL is the API root, e.g. "https://api.goldchain.io". apiKey may be
// empty for unauthenticated endpoints.
func NewGoldchainClient(baseURL, apiKey string, timeout time.Duration) *GoldchainClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoldchainClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type priceResponse struct {
	Price     decimal.Decimal `json:"price"`
	Timestamp int64           `json:"timestamp"`
}

// GetPrice returns the current vGold price denominated in ALGO.
func (c *GoldchainClient) GetPrice(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/price/vgold", nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("oracle/goldchain: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", domain.ErrOracleUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: read response: %v", domain.ErrOracleUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decimal.Zero, fmt.Errorf("%w: status %d: %s", domain.ErrOracleUnavailable, resp.StatusCode, body)
	}

	var pr priceResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decode response: %v", domain.ErrOracleUnavailable, err)
	}
	if !pr.Price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive price %s", domain.ErrOracleUnavailable, pr.Price)
	}
	return pr.Price, nil
}
