package repository

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/yelena0000/fish-store/internal/domain"
)

// Writes are wrapped in Strapi's {"data": {...}} envelope.
type envelope struct {
	Data map[string]any `json:"data"`
}

type productDTO struct {
	DocumentID  string      `json:"documentId"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Price       json.Number `json:"price"`
	Image       *imageDTO   `json:"image"`
}

type imageDTO struct {
	URL     string `json:"url"`
	Formats struct {
		Small struct {
			URL string `json:"url"`
		} `json:"small"`
	} `json:"formats"`
}

type cartDTO struct {
	DocumentID string        `json:"documentId"`
	OwnerKey   string        `json:"ownerKey"`
	Items      []cartItemDTO `json:"cart_items"`
}

type cartItemDTO struct {
	DocumentID string      `json:"documentId"`
	Quantity   json.Number `json:"quantity"`
	Product    *productDTO `json:"product"`
}

// Prices are decoded through json.Number into decimal to keep money
// arithmetic exact; a float round trip would drift on repeated sums.
func (d productDTO) toDomain(baseURL string) (domain.Product, error) {
	price, err := decimal.NewFromString(d.Price.String())
	if err != nil {
		return domain.Product{}, fmt.Errorf("bad price %q: %w", d.Price, err)
	}

	return domain.Product{
		ID:          d.DocumentID,
		Title:       d.Title,
		Description: d.Description,
		Price:       domain.Money{Amount: price, Currency: currency.RUB},
		ImageURL:    d.imageURL(baseURL),
	}, nil
}

// imageURL prefers the small rendition and resolves store-relative paths
// against the API host.
func (d productDTO) imageURL(baseURL string) string {
	if d.Image == nil {
		return ""
	}
	path := d.Image.Formats.Small.URL
	if path == "" {
		path = d.Image.URL
	}
	if path == "" || strings.HasPrefix(path, "http") {
		return path
	}
	host := strings.TrimSuffix(baseURL, "/api")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return host + path
}

func (d cartItemDTO) toDomain(baseURL string) (domain.CartItem, error) {
	quantity, err := decimal.NewFromString(d.Quantity.String())
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("bad quantity %q: %w", d.Quantity, err)
	}

	item := domain.CartItem{
		ID:       d.DocumentID,
		Quantity: quantity,
	}
	// A nil product means the relation failed to populate; the item is
	// kept with a zero product and excluded from display downstream.
	if d.Product != nil {
		product, err := d.Product.toDomain(baseURL)
		if err != nil {
			return domain.CartItem{}, err
		}
		item.Product = product
	}
	return item, nil
}

func (d cartDTO) toDomain(baseURL string) (*domain.Cart, error) {
	cart := &domain.Cart{
		ID:      d.DocumentID,
		OwnerID: d.OwnerKey,
		Items:   make([]domain.CartItem, 0, len(d.Items)),
	}
	for _, itemDTO := range d.Items {
		item, err := itemDTO.toDomain(baseURL)
		if err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, item)
	}
	return cart, nil
}
