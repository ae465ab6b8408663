package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tair/stock-ledger/internal/inventory/domain"
	"github.com/tair/stock-ledger/pkg/logger"
)

// Item is the catalog's view of an item
type Item struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	SKU  string    `json:"sku"`
}

// CatalogClient talks to the item catalog service over HTTP
type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewCatalogClient creates a new item catalog client
func NewCatalogClient(baseURL string) *CatalogClient {
	logger.Logger.Info().
		Str("base_url", baseURL).
		Msg("Item catalog client initialized")

	return &CatalogClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   3 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// GetItem fetches an item by id. Missing items map to domain.ErrNotFound so
// consumers can skip the affected line.
func (c *CatalogClient) GetItem(ctx context.Context, itemID uuid.UUID) (*Item, error) {
	url := fmt.Sprintf("%s/api/items/%s", c.baseURL, itemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", itemID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("item %s: %w", itemID, domain.ErrNotFound)
	default:
		return nil, fmt.Errorf("get item %s: unexpected status %d", itemID, resp.StatusCode)
	}

	var envelope struct {
		Data Item `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode item %s: %w", itemID, err)
	}
	return &envelope.Data, nil
}
