package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pricetrack/tracker-service/internal/app/tracker/entity"
	"pricetrack/tracker-service/internal/app/tracker/repository"

	"github.com/go-playground/validator/v10"
)

var (
	ErrValidation      = errors.New("invalid record")
	ErrProductNotFound = repository.ErrProductNotFound
	ErrGroupNotFound   = repository.ErrGroupNotFound
)

// CatalogService owns ingestion of normalized records and the read side
// of the catalog: products, price history, stats and favorites.
type CatalogService struct {
	catalogRepo  repository.CatalogRepository
	favoriteRepo repository.FavoriteRepository
	validate     *validator.Validate

	// one mutex per (source_id, external_id), so concurrent sources can
	// never interleave upsert+append for the same product
	keyLocks sync.Map
}

// NewCatalogService creates the catalog service with injected repositories.
func NewCatalogService(catalogRepo repository.CatalogRepository, favoriteRepo repository.FavoriteRepository) *CatalogService {
	return &CatalogService{
		catalogRepo:  catalogRepo,
		favoriteRepo: favoriteRepo,
		validate:     validator.New(),
	}
}

// IngestRecord applies one normalized record: upsert the product row and
// append one observation stamped with the run's capture time, atomically.
// Returns the stable product and whether a new row was created.
func (s *CatalogService) IngestRecord(ctx context.Context, rec entity.NormalizedRecord, capturedAt time.Time) (*entity.Product, bool, error) {
	if err := s.validate.Struct(rec); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	key := rec.SourceID + "|" + rec.ExternalID
	lockIface, _ := s.keyLocks.LoadOrStore(key, &sync.Mutex{})
	lock := lockIface.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	product := &entity.Product{
		SourceID:   rec.SourceID,
		ExternalID: rec.ExternalID,
		Name:       rec.Name,
		Category:   rec.Category,
		Format:     rec.Format,
		URL:        rec.URL,
		ImageURL:   rec.ImageURL,
	}
	obs := &entity.PriceObservation{
		Price:        rec.Price,
		PricePerUnit: rec.PricePerUnit,
		CapturedAt:   capturedAt,
	}

	created, err := s.catalogRepo.RecordObservation(ctx, product, obs)
	if err != nil {
		return nil, false, err
	}
	return product, created, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id uint) (*entity.Product, error) {
	return s.catalogRepo.GetProduct(ctx, id)
}

func (s *CatalogService) SearchProducts(ctx context.Context, name, sourceID, category string, limit int) ([]entity.Product, error) {
	return s.catalogRepo.SearchProducts(ctx, name, sourceID, category, limit)
}

// ListProducts returns products with their latest observed price,
// optionally filtered to one source.
func (s *CatalogService) ListProducts(ctx context.Context, sourceID string) ([]entity.ProductWithPrice, error) {
	return s.catalogRepo.ProductsWithLatestPrice(ctx, sourceID, nil)
}

// SearchProductsWithPrices filters the catalog and joins latest prices.
func (s *CatalogService) SearchProductsWithPrices(ctx context.Context, name, sourceID, category string, limit int) ([]entity.ProductWithPrice, error) {
	products, err := s.catalogRepo.SearchProducts(ctx, name, sourceID, category, limit)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return s.catalogRepo.ProductsWithLatestPrice(ctx, "", ids)
}

// ProductWithLatestPrice returns one product joined with its most recent
// observation, or ErrProductNotFound.
func (s *CatalogService) ProductWithLatestPrice(ctx context.Context, id uint) (*entity.ProductWithPrice, error) {
	rows, err := s.catalogRepo.ProductsWithLatestPrice(ctx, "", []uint{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrProductNotFound
	}
	return &rows[0], nil
}

// PriceHistory returns the product's observation timeline, oldest first.
// The product must exist; an existing product with no observations gets
// an empty timeline, not an error.
func (s *CatalogService) PriceHistory(ctx context.Context, productID uint, since, until *time.Time) ([]entity.PriceObservation, error) {
	if _, err := s.catalogRepo.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.catalogRepo.PriceHistory(ctx, productID, since, until)
}

// LatestPrice returns the most recent observation, or (nil, nil) when
// the product exists but was never priced.
func (s *CatalogService) LatestPrice(ctx context.Context, productID uint) (*entity.PriceObservation, error) {
	if _, err := s.catalogRepo.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	obs, err := s.catalogRepo.LatestPrice(ctx, productID)
	if errors.Is(err, repository.ErrObservationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return obs, nil
}

func (s *CatalogService) Stats(ctx context.Context) (*entity.Stats, error) {
	return s.catalogRepo.Stats(ctx)
}

func (s *CatalogService) AddFavorite(ctx context.Context, productID uint) error {
	if _, err := s.catalogRepo.GetProduct(ctx, productID); err != nil {
		return err
	}
	return s.favoriteRepo.Add(ctx, productID)
}

func (s *CatalogService) RemoveFavorite(ctx context.Context, productID uint) error {
	return s.favoriteRepo.Remove(ctx, productID)
}

// ListFavorites returns favorited products with their latest prices.
func (s *CatalogService) ListFavorites(ctx context.Context) ([]entity.ProductWithPrice, error) {
	favorites, err := s.favoriteRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(favorites) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(favorites))
	for _, f := range favorites {
		ids = append(ids, f.ProductID)
	}
	return s.catalogRepo.ProductsWithLatestPrice(ctx, "", ids)
}
