package service

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/yelena0000/fish-store/internal/domain"
	"github.com/yelena0000/fish-store/internal/repository"
)

// CatalogService fetches the product list for session snapshots.
type CatalogService struct {
	repo repository.CatalogRepository
	sfg  singleflight.Group // Collapses concurrent refreshes into one fetch
}

func NewCatalogService(repo repository.CatalogRepository) *CatalogService {
	return &CatalogService{repo: repo}
}

// Refresh issues one fetch of all products and returns a snapshot the
// caller owns. Sessions refreshing at the same moment share a single
// store call but each gets its own copy.
func (s *CatalogService) Refresh(ctx context.Context) (domain.CatalogSnapshot, error) {
	v, err, _ := s.sfg.Do("products", func() (interface{}, error) {
		return s.repo.GetProducts(ctx)
	})
	if err != nil {
		return domain.CatalogSnapshot{}, err
	}

	return domain.NewCatalogSnapshot(v.([]domain.Product)), nil
}
