package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/services/storefront/internal/domain"
)

// CatalogClient reads products and delivery options from the catalog API.
type CatalogClient struct {
	base
}

// NewCatalogClient creates a catalog client rooted at baseURL.
func NewCatalogClient(doer httpclient.Doer, baseURL string) *CatalogClient {
	return &CatalogClient{base: newBase(doer, baseURL, "catalog")}
}

// GetProduct fetches the current state of a product, variants included.
func (c *CatalogClient) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var resp envelope[domain.Product]
	if err := c.do(ctx, http.MethodGet, "/api/v1/products/"+url.PathEscape(id), nil, &resp, nil); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// GetDeliveryOption fetches an admin-managed delivery option.
func (c *CatalogClient) GetDeliveryOption(ctx context.Context, id string) (*domain.DeliveryOption, error) {
	var resp envelope[domain.DeliveryOption]
	if err := c.do(ctx, http.MethodGet, "/api/v1/delivery-options/"+url.PathEscape(id), nil, &resp, nil); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
