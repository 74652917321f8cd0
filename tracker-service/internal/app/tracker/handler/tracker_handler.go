package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"pricetrack/pkg/logger"
	"pricetrack/tracker-service/internal/app/tracker/entity"
	"pricetrack/tracker-service/internal/app/tracker/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type CatalogServiceInterface interface {
	ListProducts(ctx context.Context, sourceID string) ([]entity.ProductWithPrice, error)
	SearchProductsWithPrices(ctx context.Context, name, sourceID, category string, limit int) ([]entity.ProductWithPrice, error)
	ProductWithLatestPrice(ctx context.Context, id uint) (*entity.ProductWithPrice, error)
	PriceHistory(ctx context.Context, productID uint, since, until *time.Time) ([]entity.PriceObservation, error)
	LatestPrice(ctx context.Context, productID uint) (*entity.PriceObservation, error)
	Stats(ctx context.Context) (*entity.Stats, error)
	AddFavorite(ctx context.Context, productID uint) error
	RemoveFavorite(ctx context.Context, productID uint) error
	ListFavorites(ctx context.Context) ([]entity.ProductWithPrice, error)
}

type MatcherServiceInterface interface {
	ListGroups(ctx context.Context) ([]entity.GroupSummary, error)
	GroupMembers(ctx context.Context, groupID uint) (*entity.GroupMembersResponse, error)
	AssignManual(ctx context.Context, req entity.AssignManualRequest) (*entity.EquivalenceGroup, error)
	Unassign(ctx context.Context, productID uint) error
	SuggestMatches(ctx context.Context, productID uint, limit int) ([]entity.MatchSuggestion, error)
}

type IngestServiceInterface interface {
	Run(ctx context.Context) (*entity.RunReport, error)
	LastReport() *entity.RunReport
}

// TrackerHandler serves the query and curation API.
type TrackerHandler struct {
	catalogService CatalogServiceInterface
	matcherService MatcherServiceInterface
	ingestService  IngestServiceInterface
	validator      *validator.Validate
}

func NewTrackerHandler(catalog CatalogServiceInterface, matcher MatcherServiceInterface, ingest IngestServiceInterface) *TrackerHandler {
	return &TrackerHandler{
		catalogService: catalog,
		matcherService: matcher,
		ingestService:  ingest,
		validator:      validator.New(),
	}
}

// GetProducts handles GET /products. Optional filters: q (name), source,
// category, limit.
func (h *TrackerHandler) GetProducts(c *gin.Context) {
	sourceID := c.Query("source")
	name := c.Query("q")
	category := c.Query("category")

	var (
		products []entity.ProductWithPrice
		err      error
	)
	if name == "" && category == "" {
		products, err = h.catalogService.ListProducts(c.Request.Context(), sourceID)
	} else {
		limit := intQuery(c, "limit", 0)
		products, err = h.catalogService.SearchProductsWithPrices(c.Request.Context(), name, sourceID, category, limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list products"})
		return
	}

	c.JSON(http.StatusOK, entity.ProductListResponse{Products: products, Total: len(products)})
}

// GetProduct handles GET /products/:id.
func (h *TrackerHandler) GetProduct(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	product, err := h.catalogService.ProductWithLatestPrice(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get product"})
		return
	}

	c.JSON(http.StatusOK, product)
}

// GetPriceHistory handles GET /products/:id/prices with optional RFC3339
// since/until bounds.
func (h *TrackerHandler) GetPriceHistory(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	since, ok := timeQuery(c, "since")
	if !ok {
		return
	}
	until, ok := timeQuery(c, "until")
	if !ok {
		return
	}

	history, err := h.catalogService.PriceHistory(c.Request.Context(), id, since, until)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get price history"})
		return
	}

	c.JSON(http.StatusOK, entity.PriceHistoryResponse{
		ProductID:    id,
		Observations: history,
		Total:        len(history),
	})
}

// GetLatestPrice handles GET /products/:id/prices/latest. A product that
// was never priced answers with a null observation, not an error.
func (h *TrackerHandler) GetLatestPrice(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	obs, err := h.catalogService.LatestPrice(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get latest price"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"product_id": id, "observation": obs})
}

// GetSuggestions handles GET /products/:id/suggestions.
func (h *TrackerHandler) GetSuggestions(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	limit := intQuery(c, "limit", 10)

	suggestions, err := h.matcherService.SuggestMatches(c.Request.Context(), id, limit)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProductNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Product name cannot be scored"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get suggestions"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"product_id": id, "suggestions": suggestions, "total": len(suggestions)})
}

// GetGroups handles GET /groups.
func (h *TrackerHandler) GetGroups(c *gin.Context) {
	groups, err := h.matcherService.ListGroups(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list groups"})
		return
	}

	c.JSON(http.StatusOK, entity.GroupListResponse{Groups: groups, Total: len(groups)})
}

// GetGroup handles GET /groups/:id.
func (h *TrackerHandler) GetGroup(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	group, err := h.matcherService.GroupMembers(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get group"})
		return
	}

	c.JSON(http.StatusOK, group)
}

// AssignToGroup handles POST /groups/assign.
func (h *TrackerHandler) AssignToGroup(c *gin.Context) {
	var req entity.AssignManualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": formatValidationError(err)})
		return
	}

	group, err := h.matcherService.AssignManual(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrProductNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		case errors.Is(err, service.ErrGroupNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		case errors.Is(err, service.ErrSourceConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Group already has a product from this source"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assign product"})
		}
		return
	}

	c.JSON(http.StatusOK, group)
}

// RemoveFromGroup handles DELETE /groups/members/:product_id.
func (h *TrackerHandler) RemoveFromGroup(c *gin.Context) {
	id, ok := uintParam(c, "product_id")
	if !ok {
		return
	}

	if err := h.matcherService.Unassign(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product is not in a group"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove membership"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// AddFavorite handles POST /favorites.
func (h *TrackerHandler) AddFavorite(c *gin.Context) {
	var req entity.FavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": formatValidationError(err)})
		return
	}

	if err := h.catalogService.AddFavorite(c.Request.Context(), req.ProductID); err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add favorite"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "added"})
}

// RemoveFavorite handles DELETE /favorites/:product_id.
func (h *TrackerHandler) RemoveFavorite(c *gin.Context) {
	id, ok := uintParam(c, "product_id")
	if !ok {
		return
	}

	if err := h.catalogService.RemoveFavorite(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Favorite not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// GetFavorites handles GET /favorites.
func (h *TrackerHandler) GetFavorites(c *gin.Context) {
	favorites, err := h.catalogService.ListFavorites(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list favorites"})
		return
	}

	c.JSON(http.StatusOK, entity.ProductListResponse{Products: favorites, Total: len(favorites)})
}

// GetStats handles GET /stats.
func (h *TrackerHandler) GetStats(c *gin.Context) {
	stats, err := h.catalogService.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// TriggerRun handles POST /runs. The run executes in the background;
// ?wait=true blocks and returns the full report instead.
func (h *TrackerHandler) TriggerRun(c *gin.Context) {
	if c.Query("wait") == "true" {
		report, err := h.ingestService.Run(c.Request.Context())
		if err != nil {
			if errors.Is(err, service.ErrRunInProgress) {
				c.JSON(http.StatusConflict, gin.H{"error": "A run is already in progress"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Run failed"})
			return
		}
		c.JSON(http.StatusOK, report)
		return
	}

	go func() {
		if _, err := h.ingestService.Run(context.Background()); err != nil {
			logger.Error().Err(err).Msg("background ingestion run failed")
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// GetLastRun handles GET /runs/last.
func (h *TrackerHandler) GetLastRun(c *gin.Context) {
	report := h.ingestService.LastReport()
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No run has completed yet"})
		return
	}

	c.JSON(http.StatusOK, report)
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	value, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || value == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(value), true
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func timeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + ", expected RFC3339"})
		return nil, false
	}
	return &parsed, true
}
