package repository

import (
	"context"
	"errors"
	"time"

	"pricetrack/tracker-service/internal/app/tracker/entity"

	"gorm.io/gorm"
)

type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository creates the gorm-backed catalog repository.
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

// RecordObservation runs the upsert and the append in one transaction so
// a cancelled run never leaves a price row without its product row.
func (r *catalogRepository) RecordObservation(ctx context.Context, product *entity.Product, obs *entity.PriceObservation) (bool, error) {
	var created bool

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = upsertProduct(tx, product)
		if err != nil {
			return err
		}

		if obs == nil {
			return nil
		}

		obs.ProductID = product.ID
		return tx.Create(obs).Error
	})

	return created, err
}

func (r *catalogRepository) UpsertProduct(ctx context.Context, product *entity.Product) (bool, error) {
	return upsertProduct(r.db.WithContext(ctx), product)
}

// upsertProduct looks the product up by (source_id, external_id).
// A hit overwrites the descriptive fields and bumps updated_at; internal
// id and created_at are preserved. A miss creates the row. Callers
// serialize same-key calls (per-key lock in the service), so the
// find-then-write pair is race-free.
func upsertProduct(tx *gorm.DB, product *entity.Product) (bool, error) {
	now := time.Now()

	var existing entity.Product
	err := tx.
		Where("source_id = ? AND external_id = ?", product.SourceID, product.ExternalID).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		product.CreatedAt = now
		product.UpdatedAt = now
		if err := tx.Create(product).Error; err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	updates := map[string]interface{}{
		"name":       product.Name,
		"category":   product.Category,
		"format":     product.Format,
		"url":        product.URL,
		"image_url":  product.ImageURL,
		"updated_at": now,
	}
	if err := tx.Model(&entity.Product{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
		return false, err
	}

	product.ID = existing.ID
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = now
	return false, nil
}

func (r *catalogRepository) AppendPrice(ctx context.Context, obs *entity.PriceObservation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entity.Product{}).Where("id = ?", obs.ProductID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrProductNotFound
		}
		return tx.Create(obs).Error
	})
}

func (r *catalogRepository) GetProduct(ctx context.Context, id uint) (*entity.Product, error) {
	var product entity.Product
	err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *catalogRepository) GetBySourceExternal(ctx context.Context, sourceID, externalID string) (*entity.Product, error) {
	var product entity.Product
	err := r.db.WithContext(ctx).
		Where("source_id = ? AND external_id = ?", sourceID, externalID).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *catalogRepository) SearchProducts(ctx context.Context, name, sourceID, category string, limit int) ([]entity.Product, error) {
	query := r.db.WithContext(ctx).Model(&entity.Product{})

	if name != "" {
		query = query.Where("name LIKE ?", "%"+name+"%")
	}
	if sourceID != "" {
		query = query.Where("source_id = ?", sourceID)
	}
	if category != "" {
		query = query.Where("category LIKE ?", "%"+category+"%")
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var products []entity.Product
	if err := query.Order("name").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *catalogRepository) ProductsByIDs(ctx context.Context, ids []uint) ([]entity.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []entity.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// ProductsWithLatestPrice resolves "latest" as the highest observation id
// per product: captured_at is non-decreasing across runs, so the last
// insert is the newest capture and the tie on equal timestamps breaks
// deterministically.
func (r *catalogRepository) ProductsWithLatestPrice(ctx context.Context, sourceID string, ids []uint) ([]entity.ProductWithPrice, error) {
	query := r.db.WithContext(ctx).Model(&entity.Product{})
	if sourceID != "" {
		query = query.Where("source_id = ?", sourceID)
	}
	if ids != nil {
		if len(ids) == 0 {
			return nil, nil
		}
		query = query.Where("id IN ?", ids)
	}

	var products []entity.Product
	if err := query.Order("id").Find(&products).Error; err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}

	productIDs := make([]uint, 0, len(products))
	for _, p := range products {
		productIDs = append(productIDs, p.ID)
	}

	var latest []entity.PriceObservation
	sub := r.db.Model(&entity.PriceObservation{}).
		Select("MAX(id)").
		Where("product_id IN ?", productIDs).
		Group("product_id")
	if err := r.db.WithContext(ctx).Where("id IN (?)", sub).Find(&latest).Error; err != nil {
		return nil, err
	}

	latestByProduct := make(map[uint]entity.PriceObservation, len(latest))
	for _, obs := range latest {
		latestByProduct[obs.ProductID] = obs
	}

	result := make([]entity.ProductWithPrice, 0, len(products))
	for _, p := range products {
		row := entity.ProductWithPrice{Product: p}
		if obs, ok := latestByProduct[p.ID]; ok {
			price := obs.Price
			captured := obs.CapturedAt
			row.Price = &price
			row.PricePerUnit = obs.PricePerUnit
			row.CapturedAt = &captured
		}
		result = append(result, row)
	}
	return result, nil
}

func (r *catalogRepository) PriceHistory(ctx context.Context, productID uint, since, until *time.Time) ([]entity.PriceObservation, error) {
	query := r.db.WithContext(ctx).Where("product_id = ?", productID)
	if since != nil {
		query = query.Where("captured_at >= ?", *since)
	}
	if until != nil {
		query = query.Where("captured_at <= ?", *until)
	}

	var observations []entity.PriceObservation
	if err := query.Order("captured_at ASC, id ASC").Find(&observations).Error; err != nil {
		return nil, err
	}
	return observations, nil
}

func (r *catalogRepository) LatestPrice(ctx context.Context, productID uint) (*entity.PriceObservation, error) {
	var obs entity.PriceObservation
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("captured_at DESC, id DESC").
		First(&obs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrObservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &obs, nil
}

func (r *catalogRepository) Stats(ctx context.Context) (*entity.Stats, error) {
	db := r.db.WithContext(ctx)
	stats := &entity.Stats{ProductsPerSource: map[string]int64{}}

	if err := db.Model(&entity.Product{}).Count(&stats.TotalProducts).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&entity.PriceObservation{}).Count(&stats.TotalObservations).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&entity.Product{}).Distinct("source_id").Count(&stats.TotalSources).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&entity.EquivalenceGroup{}).Count(&stats.TotalGroups).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&entity.Favorite{}).Count(&stats.TotalFavorites).Error; err != nil {
		return nil, err
	}

	if stats.TotalObservations > 0 {
		var first, last entity.PriceObservation
		if err := db.Order("captured_at ASC, id ASC").First(&first).Error; err != nil {
			return nil, err
		}
		if err := db.Order("captured_at DESC, id DESC").First(&last).Error; err != nil {
			return nil, err
		}
		stats.FirstCapture = &first.CapturedAt
		stats.LastCapture = &last.CapturedAt
	}

	var perSource []struct {
		SourceID string
		Total    int64
	}
	err := db.Model(&entity.Product{}).
		Select("source_id, COUNT(*) AS total").
		Group("source_id").
		Scan(&perSource).Error
	if err != nil {
		return nil, err
	}
	for _, row := range perSource {
		stats.ProductsPerSource[row.SourceID] = row.Total
	}

	return stats, nil
}
