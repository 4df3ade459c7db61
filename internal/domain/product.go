package domain

type Product struct {
	ID          string // store document id, stable across reads
	Title       string
	Description string
	Price       Money // per kilogram
	ImageURL    string
}

// CatalogSnapshot is a per-session, read-only copy of the product list
// captured at the last menu refresh. Lookups go against this copy only,
// never against the live store.
type CatalogSnapshot struct {
	products []Product
}

func NewCatalogSnapshot(products []Product) CatalogSnapshot {
	copied := make([]Product, len(products))
	copy(copied, products)
	return CatalogSnapshot{products: copied}
}

func (s CatalogSnapshot) Products() []Product {
	return s.products
}

func (s CatalogSnapshot) Empty() bool {
	return len(s.products) == 0
}

// Resolve looks up a product by the id seen in the last refresh. A product
// removed from the store after that refresh still resolves here; acting on
// it fails later at the cart layer.
func (s CatalogSnapshot) Resolve(id string) (Product, bool) {
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}
