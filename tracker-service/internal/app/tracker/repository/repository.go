package repository

import (
	"context"
	"errors"
	"time"

	"pricetrack/tracker-service/internal/app/tracker/entity"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrGroupNotFound       = errors.New("group not found")
	ErrObservationNotFound = errors.New("observation not found")
	ErrFavoriteNotFound    = errors.New("favorite not found")
)

// CatalogRepository owns Product and PriceObservation persistence.
type CatalogRepository interface {
	// RecordObservation applies one upsert-then-append pair atomically:
	// either both the product row and the observation are committed or
	// neither is. obs may be nil for metadata-only records.
	// Returns true when a new product row was created.
	RecordObservation(ctx context.Context, product *entity.Product, obs *entity.PriceObservation) (bool, error)

	// UpsertProduct creates the product or refreshes its descriptive
	// fields in place, preserving the internal id and created_at.
	// The stable internal id is left in product.ID.
	UpsertProduct(ctx context.Context, product *entity.Product) (bool, error)

	// AppendPrice inserts one observation row. It never collapses
	// duplicates. Fails with ErrProductNotFound when the product id
	// does not exist.
	AppendPrice(ctx context.Context, obs *entity.PriceObservation) error

	GetProduct(ctx context.Context, id uint) (*entity.Product, error)
	GetBySourceExternal(ctx context.Context, sourceID, externalID string) (*entity.Product, error)
	SearchProducts(ctx context.Context, name, sourceID, category string, limit int) ([]entity.Product, error)
	ProductsByIDs(ctx context.Context, ids []uint) ([]entity.Product, error)

	// ProductsWithLatestPrice joins each product with its most recent
	// observation. Both filters are optional: empty sourceID means all
	// sources, nil ids means all products.
	ProductsWithLatestPrice(ctx context.Context, sourceID string, ids []uint) ([]entity.ProductWithPrice, error)

	// PriceHistory returns observations ordered by captured_at ascending;
	// empty when the product has none.
	PriceHistory(ctx context.Context, productID uint, since, until *time.Time) ([]entity.PriceObservation, error)

	// LatestPrice returns the observation with the maximum captured_at,
	// or ErrObservationNotFound when the product was never priced.
	LatestPrice(ctx context.Context, productID uint) (*entity.PriceObservation, error)

	Stats(ctx context.Context) (*entity.Stats, error)
}

// GroupRepository owns EquivalenceGroup and membership persistence.
type GroupRepository interface {
	CreateGroup(ctx context.Context, group *entity.EquivalenceGroup) error
	GetGroup(ctx context.Context, id uint) (*entity.EquivalenceGroup, error)
	ListGroups(ctx context.Context) ([]entity.GroupSummary, error)
	ListGroupsWithMembers(ctx context.Context) ([]entity.EquivalenceGroup, error)
	UpdateGroupOrigin(ctx context.Context, id uint, origin string) error

	// GetMembership returns the product's membership or ErrGroupNotFound
	// when the product is unmatched.
	GetMembership(ctx context.Context, productID uint) (*entity.GroupMember, error)
	ListMemberships(ctx context.Context) ([]entity.GroupMember, error)

	// ReplaceMembership removes any prior membership of the product and
	// inserts the new one, as a single transaction: a product belongs to
	// at most one group at a time.
	ReplaceMembership(ctx context.Context, member *entity.GroupMember) error
	RemoveMembership(ctx context.Context, productID uint) error
}

// FavoriteRepository owns Favorite persistence.
type FavoriteRepository interface {
	// Add is idempotent: favoriting twice keeps one row.
	Add(ctx context.Context, productID uint) error
	Remove(ctx context.Context, productID uint) error
	List(ctx context.Context) ([]entity.Favorite, error)
}
