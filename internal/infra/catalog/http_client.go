package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// カタログサービスのHTTPクライアント。
// GET {base}/products/{dish_id} で商品スナップショットを取る。
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) GetProduct(ctx context.Context, dishID string) (model.Product, error) {
	u := c.baseURL + "/products/" + url.PathEscape(dishID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.Product{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return model.Product{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return model.Product{}, repo.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return model.Product{}, fmt.Errorf("catalog: unexpected status %d", resp.StatusCode)
	}

	var p model.Product
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return model.Product{}, err
	}

	return p, nil
}
