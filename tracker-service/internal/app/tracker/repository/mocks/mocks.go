package mocks

import (
	"context"
	"time"

	"pricetrack/tracker-service/internal/app/tracker/entity"

	"github.com/stretchr/testify/mock"
)

// MockCatalogRepository is a testify mock for CatalogRepository.
type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) RecordObservation(ctx context.Context, product *entity.Product, obs *entity.PriceObservation) (bool, error) {
	args := m.Called(ctx, product, obs)
	return args.Bool(0), args.Error(1)
}

func (m *MockCatalogRepository) UpsertProduct(ctx context.Context, product *entity.Product) (bool, error) {
	args := m.Called(ctx, product)
	return args.Bool(0), args.Error(1)
}

func (m *MockCatalogRepository) AppendPrice(ctx context.Context, obs *entity.PriceObservation) error {
	args := m.Called(ctx, obs)
	return args.Error(0)
}

func (m *MockCatalogRepository) GetProduct(ctx context.Context, id uint) (*entity.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Product), args.Error(1)
}

func (m *MockCatalogRepository) GetBySourceExternal(ctx context.Context, sourceID, externalID string) (*entity.Product, error) {
	args := m.Called(ctx, sourceID, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Product), args.Error(1)
}

func (m *MockCatalogRepository) SearchProducts(ctx context.Context, name, sourceID, category string, limit int) ([]entity.Product, error) {
	args := m.Called(ctx, name, sourceID, category, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Product), args.Error(1)
}

func (m *MockCatalogRepository) ProductsByIDs(ctx context.Context, ids []uint) ([]entity.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Product), args.Error(1)
}

func (m *MockCatalogRepository) ProductsWithLatestPrice(ctx context.Context, sourceID string, ids []uint) ([]entity.ProductWithPrice, error) {
	args := m.Called(ctx, sourceID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.ProductWithPrice), args.Error(1)
}

func (m *MockCatalogRepository) PriceHistory(ctx context.Context, productID uint, since, until *time.Time) ([]entity.PriceObservation, error) {
	args := m.Called(ctx, productID, since, until)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.PriceObservation), args.Error(1)
}

func (m *MockCatalogRepository) LatestPrice(ctx context.Context, productID uint) (*entity.PriceObservation, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.PriceObservation), args.Error(1)
}

func (m *MockCatalogRepository) Stats(ctx context.Context) (*entity.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Stats), args.Error(1)
}

// MockGroupRepository is a testify mock for GroupRepository.
type MockGroupRepository struct {
	mock.Mock
}

func (m *MockGroupRepository) CreateGroup(ctx context.Context, group *entity.EquivalenceGroup) error {
	args := m.Called(ctx, group)
	return args.Error(0)
}

func (m *MockGroupRepository) GetGroup(ctx context.Context, id uint) (*entity.EquivalenceGroup, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.EquivalenceGroup), args.Error(1)
}

func (m *MockGroupRepository) ListGroups(ctx context.Context) ([]entity.GroupSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.GroupSummary), args.Error(1)
}

func (m *MockGroupRepository) ListGroupsWithMembers(ctx context.Context) ([]entity.EquivalenceGroup, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.EquivalenceGroup), args.Error(1)
}

func (m *MockGroupRepository) UpdateGroupOrigin(ctx context.Context, id uint, origin string) error {
	args := m.Called(ctx, id, origin)
	return args.Error(0)
}

func (m *MockGroupRepository) GetMembership(ctx context.Context, productID uint) (*entity.GroupMember, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.GroupMember), args.Error(1)
}

func (m *MockGroupRepository) ListMemberships(ctx context.Context) ([]entity.GroupMember, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.GroupMember), args.Error(1)
}

func (m *MockGroupRepository) ReplaceMembership(ctx context.Context, member *entity.GroupMember) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MockGroupRepository) RemoveMembership(ctx context.Context, productID uint) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

// MockFavoriteRepository is a testify mock for FavoriteRepository.
type MockFavoriteRepository struct {
	mock.Mock
}

func (m *MockFavoriteRepository) Add(ctx context.Context, productID uint) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

func (m *MockFavoriteRepository) Remove(ctx context.Context, productID uint) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

func (m *MockFavoriteRepository) List(ctx context.Context) ([]entity.Favorite, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Favorite), args.Error(1)
}

// MockMessagePublisher is a testify mock for the Kafka publisher.
type MockMessagePublisher struct {
	mock.Mock
}

func (m *MockMessagePublisher) PublishMessage(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockMessagePublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockGroupCache is a testify mock for the group-listing cache.
type MockGroupCache struct {
	mock.Mock
}

func (m *MockGroupCache) GetGroups(ctx context.Context) ([]entity.GroupSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.GroupSummary), args.Error(1)
}

func (m *MockGroupCache) SetGroups(ctx context.Context, groups []entity.GroupSummary, ttl time.Duration) error {
	args := m.Called(ctx, groups, ttl)
	return args.Error(0)
}

func (m *MockGroupCache) DeleteGroups(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockGroupCache) Close() error {
	args := m.Called()
	return args.Error(0)
}
