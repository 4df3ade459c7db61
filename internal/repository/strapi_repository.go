package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yelena0000/fish-store/internal/domain"
	"github.com/yelena0000/fish-store/internal/errs"
)

// strapiRepository talks to the Strapi REST API. One instance is safe for
// concurrent use; the pooled http.Client is the only shared state.
type strapiRepository struct {
	baseURL string
	token   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

type StrapiConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// NewStrapiRepository builds the single store client used by all sessions.
func NewStrapiRepository(cfg StrapiConfig) Repository {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "strapi",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// 4xx answers are outcomes, not store outages; only transport
		// failures and 5xx may trip the breaker.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var be *errs.BackendError
			if errors.As(err, &be) {
				return be.Status >= 400 && be.Status < 500
			}
			return false
		},
	})

	return &strapiRepository{
		baseURL: strings.TrimRight(cfg.BaseURL, "/") + "/api",
		token:   cfg.Token,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: breaker,
	}
}

// do executes one request through the breaker and returns the response
// body. Non-2xx answers come back as *errs.BackendError with the status.
func (r *strapiRepository) do(ctx context.Context, op, method, path string, query url.Values, payload any) ([]byte, error) {
	return r.breaker.Execute(func() ([]byte, error) {
		u := r.baseURL + "/" + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}

		var body io.Reader
		if payload != nil {
			encoded, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("failed to encode %s payload: %w", op, err)
			}
			body = bytes.NewReader(encoded)
		}

		req, err := http.NewRequestWithContext(ctx, method, u, body)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s request: %w", op, err)
		}
		req.Header.Set("Authorization", "Bearer "+r.token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := r.client.Do(req)
		if err != nil {
			return nil, &errs.BackendError{Op: op, Err: err}
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &errs.BackendError{Op: op, Err: err}
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &errs.BackendError{Op: op, Status: resp.StatusCode}
		}
		return data, nil
	})
}

func (r *strapiRepository) GetProducts(ctx context.Context) ([]domain.Product, error) {
	query := url.Values{"populate": []string{"*"}}
	data, err := r.do(ctx, "get products", http.MethodGet, "products", query, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []productDTO `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	products := make([]domain.Product, 0, len(resp.Data))
	for _, dto := range resp.Data {
		product, err := dto.toDomain(r.baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to decode product %s: %w", dto.DocumentID, err)
		}
		products = append(products, product)
	}
	return products, nil
}

func (r *strapiRepository) GetCart(ctx context.Context, ownerKey string) (*domain.Cart, error) {
	query := url.Values{}
	query.Set("filters[ownerKey][$eq]", ownerKey)
	query.Set("populate[cart_items][populate]", "product")

	data, err := r.do(ctx, "get cart", http.MethodGet, "carts", query, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []cartDTO `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode carts: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errs.ErrCartNotFound
	}

	cart, err := resp.Data[0].toDomain(r.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	return cart, nil
}

func (r *strapiRepository) CreateCart(ctx context.Context, ownerKey string) (*domain.Cart, error) {
	payload := envelope{Data: map[string]any{"ownerKey": ownerKey}}
	data, err := r.do(ctx, "create cart", http.MethodPost, "carts", nil, payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data cartDTO `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode created cart: %w", err)
	}

	cart, err := resp.Data.toDomain(r.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to decode created cart: %w", err)
	}
	return cart, nil
}

func (r *strapiRepository) AddItem(ctx context.Context, cartID, productID string, quantity decimal.Decimal) (*domain.CartItem, error) {
	payload := envelope{Data: map[string]any{
		"quantity": json.Number(quantity.String()),
		"product":  productID,
		"cart":     cartID,
	}}
	data, err := r.do(ctx, "add cart item", http.MethodPost, "cart-items", nil, payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data cartItemDTO `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode created cart item: %w", err)
	}

	item, err := resp.Data.toDomain(r.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to decode created cart item: %w", err)
	}
	return &item, nil
}

func (r *strapiRepository) DeleteItem(ctx context.Context, itemID string) (bool, error) {
	_, err := r.do(ctx, "delete cart item", http.MethodDelete, "cart-items/"+itemID, nil, nil)
	if err != nil {
		var be *errs.BackendError
		if errors.As(err, &be) && be.Status == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *strapiRepository) TouchCart(ctx context.Context, cartID string) error {
	payload := envelope{Data: map[string]any{}}
	_, err := r.do(ctx, "touch cart", http.MethodPut, "carts/"+cartID, nil, payload)
	return err
}

func (r *strapiRepository) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	payload := envelope{Data: map[string]any{
		"email":          order.Email,
		"status":         string(order.Status),
		"total":          json.Number(order.Total.Amount.String()),
		"lineRefs":       order.ItemIDs,
		"idempotencyKey": order.IdempotencyKey,
	}}
	data, err := r.do(ctx, "create order", http.MethodPost, "orders", nil, payload)
	if err != nil {
		return domain.Order{}, err
	}

	var resp struct {
		Data struct {
			DocumentID string `json:"documentId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return domain.Order{}, fmt.Errorf("failed to decode created order: %w", err)
	}

	order.ID = resp.Data.DocumentID
	return order, nil
}
