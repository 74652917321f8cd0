package repository

import (
	"context"

	"pricetrack/tracker-service/internal/app/tracker/entity"

	"gorm.io/gorm"
)

type favoriteRepository struct {
	db *gorm.DB
}

// NewFavoriteRepository creates the gorm-backed favorites repository.
func NewFavoriteRepository(db *gorm.DB) FavoriteRepository {
	return &favoriteRepository{db: db}
}

func (r *favoriteRepository) Add(ctx context.Context, productID uint) error {
	favorite := entity.Favorite{ProductID: productID}
	return r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		FirstOrCreate(&favorite).Error
}

func (r *favoriteRepository) Remove(ctx context.Context, productID uint) error {
	result := r.db.WithContext(ctx).Where("product_id = ?", productID).Delete(&entity.Favorite{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrFavoriteNotFound
	}
	return nil
}

func (r *favoriteRepository) List(ctx context.Context) ([]entity.Favorite, error) {
	var favorites []entity.Favorite
	if err := r.db.WithContext(ctx).Order("created_at").Find(&favorites).Error; err != nil {
		return nil, err
	}
	return favorites, nil
}
