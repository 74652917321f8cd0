package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"pricetrack/pkg/logger"
	"pricetrack/tracker-service/internal/app/tracker/entity"
	"pricetrack/tracker-service/internal/app/tracker/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.InitWithWriter("tracker-test", "error", io.Discard)
	os.Exit(m.Run())
}

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) ListProducts(ctx context.Context, sourceID string) ([]entity.ProductWithPrice, error) {
	args := m.Called(ctx, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.ProductWithPrice), args.Error(1)
}

func (m *MockCatalogService) SearchProductsWithPrices(ctx context.Context, name, sourceID, category string, limit int) ([]entity.ProductWithPrice, error) {
	args := m.Called(ctx, name, sourceID, category, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.ProductWithPrice), args.Error(1)
}

func (m *MockCatalogService) ProductWithLatestPrice(ctx context.Context, id uint) (*entity.ProductWithPrice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ProductWithPrice), args.Error(1)
}

func (m *MockCatalogService) PriceHistory(ctx context.Context, productID uint, since, until *time.Time) ([]entity.PriceObservation, error) {
	args := m.Called(ctx, productID, since, until)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.PriceObservation), args.Error(1)
}

func (m *MockCatalogService) LatestPrice(ctx context.Context, productID uint) (*entity.PriceObservation, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.PriceObservation), args.Error(1)
}

func (m *MockCatalogService) Stats(ctx context.Context) (*entity.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Stats), args.Error(1)
}

func (m *MockCatalogService) AddFavorite(ctx context.Context, productID uint) error {
	return m.Called(ctx, productID).Error(0)
}

func (m *MockCatalogService) RemoveFavorite(ctx context.Context, productID uint) error {
	return m.Called(ctx, productID).Error(0)
}

func (m *MockCatalogService) ListFavorites(ctx context.Context) ([]entity.ProductWithPrice, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.ProductWithPrice), args.Error(1)
}

type MockMatcherService struct {
	mock.Mock
}

func (m *MockMatcherService) ListGroups(ctx context.Context) ([]entity.GroupSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.GroupSummary), args.Error(1)
}

func (m *MockMatcherService) GroupMembers(ctx context.Context, groupID uint) (*entity.GroupMembersResponse, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.GroupMembersResponse), args.Error(1)
}

func (m *MockMatcherService) AssignManual(ctx context.Context, req entity.AssignManualRequest) (*entity.EquivalenceGroup, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.EquivalenceGroup), args.Error(1)
}

func (m *MockMatcherService) Unassign(ctx context.Context, productID uint) error {
	return m.Called(ctx, productID).Error(0)
}

func (m *MockMatcherService) SuggestMatches(ctx context.Context, productID uint, limit int) ([]entity.MatchSuggestion, error) {
	args := m.Called(ctx, productID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.MatchSuggestion), args.Error(1)
}

type MockIngestService struct {
	mock.Mock
}

func (m *MockIngestService) Run(ctx context.Context) (*entity.RunReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.RunReport), args.Error(1)
}

func (m *MockIngestService) LastReport() *entity.RunReport {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*entity.RunReport)
}

type handlerMocks struct {
	catalog *MockCatalogService
	matcher *MockMatcherService
	ingest  *MockIngestService
}

func newTestRouter() (*gin.Engine, handlerMocks) {
	m := handlerMocks{
		catalog: new(MockCatalogService),
		matcher: new(MockMatcherService),
		ingest:  new(MockIngestService),
	}
	router := SetupRoutes(NewTrackerHandler(m.catalog, m.matcher, m.ingest))
	return router, m
}

func doRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetProducts(t *testing.T) {
	router, m := newTestRouter()
	price := 4.85
	m.catalog.On("ListProducts", mock.Anything, "mercadona").Return([]entity.ProductWithPrice{
		{Product: entity.Product{ID: 1, SourceID: "mercadona", Name: "Aceite"}, Price: &price},
	}, nil)

	w := doRequest(router, http.MethodGet, "/products?source=mercadona", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp entity.ProductListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "Aceite", resp.Products[0].Name)
}

func TestGetProducts_SearchPath(t *testing.T) {
	router, m := newTestRouter()
	m.catalog.On("SearchProductsWithPrices", mock.Anything, "aceite", "", "", 5).
		Return([]entity.ProductWithPrice{}, nil)

	w := doRequest(router, http.MethodGet, "/products?q=aceite&limit=5", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	m.catalog.AssertExpectations(t)
}

func TestGetProduct_NotFound(t *testing.T) {
	router, m := newTestRouter()
	m.catalog.On("ProductWithLatestPrice", mock.Anything, uint(42)).
		Return(nil, service.ErrProductNotFound)

	w := doRequest(router, http.MethodGet, "/products/42", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetProduct_InvalidID(t *testing.T) {
	router, _ := newTestRouter()
	w := doRequest(router, http.MethodGet, "/products/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPriceHistory_WithWindow(t *testing.T) {
	router, m := newTestRouter()
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	m.catalog.On("PriceHistory", mock.Anything, uint(7), &since, (*time.Time)(nil)).
		Return([]entity.PriceObservation{{ID: 1, ProductID: 7, Price: 1.05}}, nil)

	w := doRequest(router, http.MethodGet, "/products/7/prices?since=2026-08-01T00:00:00Z", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp entity.PriceHistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
}

func TestGetPriceHistory_InvalidSince(t *testing.T) {
	router, _ := newTestRouter()
	w := doRequest(router, http.MethodGet, "/products/7/prices?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetLatestPrice_NeverPriced(t *testing.T) {
	router, m := newTestRouter()
	m.catalog.On("LatestPrice", mock.Anything, uint(7)).Return(nil, nil)

	w := doRequest(router, http.MethodGet, "/products/7/prices/latest", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Observation *entity.PriceObservation `json:"observation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.Observation)
}

func TestGetGroups(t *testing.T) {
	router, m := newTestRouter()
	m.matcher.On("ListGroups", mock.Anything).Return([]entity.GroupSummary{
		{ID: 1, CanonicalName: "Aceite de oliva", MemberCount: 2},
	}, nil)

	w := doRequest(router, http.MethodGet, "/groups", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp entity.GroupListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
}

func TestAssignToGroup(t *testing.T) {
	router, m := newTestRouter()
	req := entity.AssignManualRequest{ProductID: 3, GroupID: 1}
	m.matcher.On("AssignManual", mock.Anything, req).
		Return(&entity.EquivalenceGroup{ID: 1, CanonicalName: "Aceite", Origin: entity.OriginManual}, nil)

	w := doRequest(router, http.MethodPost, "/groups/assign", req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAssignToGroup_SourceConflict(t *testing.T) {
	router, m := newTestRouter()
	m.matcher.On("AssignManual", mock.Anything, mock.Anything).
		Return(nil, service.ErrSourceConflict)

	w := doRequest(router, http.MethodPost, "/groups/assign", entity.AssignManualRequest{ProductID: 3, GroupID: 1})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAssignToGroup_MissingProductID(t *testing.T) {
	router, _ := newTestRouter()
	w := doRequest(router, http.MethodPost, "/groups/assign", map[string]interface{}{"group_id": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRemoveFromGroup_NotGrouped(t *testing.T) {
	router, m := newTestRouter()
	m.matcher.On("Unassign", mock.Anything, uint(9)).Return(service.ErrGroupNotFound)

	w := doRequest(router, http.MethodDelete, "/groups/members/9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFavorites(t *testing.T) {
	router, m := newTestRouter()
	m.catalog.On("AddFavorite", mock.Anything, uint(5)).Return(nil)
	m.catalog.On("RemoveFavorite", mock.Anything, uint(5)).Return(nil)

	w := doRequest(router, http.MethodPost, "/favorites", entity.FavoriteRequest{ProductID: 5})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(router, http.MethodDelete, "/favorites/5", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAddFavorite_UnknownProduct(t *testing.T) {
	router, m := newTestRouter()
	m.catalog.On("AddFavorite", mock.Anything, uint(5)).Return(service.ErrProductNotFound)

	w := doRequest(router, http.MethodPost, "/favorites", entity.FavoriteRequest{ProductID: 5})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSuggestions(t *testing.T) {
	router, m := newTestRouter()
	m.matcher.On("SuggestMatches", mock.Anything, uint(3), 10).Return([]entity.MatchSuggestion{
		{Product: entity.ProductWithPrice{Product: entity.Product{ID: 8, Name: "Aceite Dia"}}, Score: 91},
	}, nil)

	w := doRequest(router, http.MethodGet, "/products/3/suggestions", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"score":91`)
}

func TestTriggerRun_WaitConflict(t *testing.T) {
	router, m := newTestRouter()
	m.ingest.On("Run", mock.Anything).Return(nil, service.ErrRunInProgress)

	w := doRequest(router, http.MethodPost, "/runs?wait=true", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTriggerRun_WaitSuccess(t *testing.T) {
	router, m := newTestRouter()
	report := &entity.RunReport{Sources: map[string]entity.SourceReport{}}
	m.ingest.On("Run", mock.Anything).Return(report, nil)

	w := doRequest(router, http.MethodPost, "/runs?wait=true", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetLastRun(t *testing.T) {
	router, m := newTestRouter()
	m.ingest.On("LastReport").Return(nil).Once()

	w := doRequest(router, http.MethodGet, "/runs/last", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	m.ingest.On("LastReport").Return(&entity.RunReport{}).Once()
	w = doRequest(router, http.MethodGet, "/runs/last", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetStats(t *testing.T) {
	router, m := newTestRouter()
	m.catalog.On("Stats", mock.Anything).Return(&entity.Stats{TotalProducts: 12}, nil)

	w := doRequest(router, http.MethodGet, "/stats", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_products":12`)
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter()
	w := doRequest(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
