package service

import (
	"context"
	"testing"
	"time"

	"pricetrack/tracker-service/internal/app/tracker/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalogService(t *testing.T) (*CatalogService, testRepos) {
	repos := newTestRepos(t)
	return NewCatalogService(repos.catalog, repos.favorite), repos
}

func validRecord() entity.NormalizedRecord {
	return entity.NormalizedRecord{
		SourceID:   "mercadona",
		ExternalID: "4240",
		Name:       "Aceite de oliva virgen extra",
		Price:      4.85,
		Category:   "Aceites",
		Format:     "1 L",
	}
}

func TestIngestRecord_CreatesThenRefreshes(t *testing.T) {
	svc, _ := newCatalogService(t)
	ctx := context.Background()
	run1 := time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC)
	run2 := run1.Add(24 * time.Hour)

	product, created, err := svc.IngestRecord(ctx, validRecord(), run1)
	require.NoError(t, err)
	assert.True(t, created)
	require.NotZero(t, product.ID)

	rec := validRecord()
	rec.Price = 4.95
	again, created, err := svc.IngestRecord(ctx, rec, run2)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, product.ID, again.ID, "same (source, external) keeps its internal id")

	history, err := svc.PriceHistory(ctx, product.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 4.85, history[0].Price)
	assert.Equal(t, 4.95, history[1].Price)
	assert.True(t, history[0].CapturedAt.Before(history[1].CapturedAt))
}

func TestIngestRecord_UnchangedPriceStillAppends(t *testing.T) {
	svc, _ := newCatalogService(t)
	ctx := context.Background()
	run1 := time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC)

	_, _, err := svc.IngestRecord(ctx, validRecord(), run1)
	require.NoError(t, err)
	product, _, err := svc.IngestRecord(ctx, validRecord(), run1.Add(24*time.Hour))
	require.NoError(t, err)

	history, err := svc.PriceHistory(ctx, product.ID, nil, nil)
	require.NoError(t, err)
	assert.Len(t, history, 2, "a confirmed stable price is still an observation")
}

func TestIngestRecord_Validation(t *testing.T) {
	svc, _ := newCatalogService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	missingSource := validRecord()
	missingSource.SourceID = ""
	_, _, err := svc.IngestRecord(ctx, missingSource, now)
	assert.ErrorIs(t, err, ErrValidation)

	missingExternal := validRecord()
	missingExternal.ExternalID = ""
	_, _, err = svc.IngestRecord(ctx, missingExternal, now)
	assert.ErrorIs(t, err, ErrValidation)

	negativePrice := validRecord()
	negativePrice.Price = -1
	_, _, err = svc.IngestRecord(ctx, negativePrice, now)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPriceHistory_UnknownProduct(t *testing.T) {
	svc, _ := newCatalogService(t)
	_, err := svc.PriceHistory(context.Background(), 999, nil, nil)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestLatestPrice_NeverPriced(t *testing.T) {
	svc, repos := newCatalogService(t)
	ctx := context.Background()

	product := &entity.Product{SourceID: "dia", ExternalID: "d9", Name: "Sal fina"}
	_, err := repos.catalog.RecordObservation(ctx, product, nil)
	require.NoError(t, err)

	obs, err := svc.LatestPrice(ctx, product.ID)
	require.NoError(t, err)
	assert.Nil(t, obs, "an existing but never-priced product is not an error")

	_, err = svc.LatestPrice(ctx, 999)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestFavorites_Flow(t *testing.T) {
	svc, _ := newCatalogService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	product, _, err := svc.IngestRecord(ctx, validRecord(), now)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.AddFavorite(ctx, 999), ErrProductNotFound)

	require.NoError(t, svc.AddFavorite(ctx, product.ID))
	require.NoError(t, svc.AddFavorite(ctx, product.ID), "favoriting twice is a no-op")

	favorites, err := svc.ListFavorites(ctx)
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	assert.Equal(t, product.ID, favorites[0].ID)
	require.NotNil(t, favorites[0].Price)
	assert.Equal(t, 4.85, *favorites[0].Price)

	require.NoError(t, svc.RemoveFavorite(ctx, product.ID))
	favorites, err = svc.ListFavorites(ctx)
	require.NoError(t, err)
	assert.Empty(t, favorites)
}

func TestListProducts_FiltersBySource(t *testing.T) {
	svc, _ := newCatalogService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, _, err := svc.IngestRecord(ctx, validRecord(), now)
	require.NoError(t, err)
	diaRec := validRecord()
	diaRec.SourceID = "dia"
	diaRec.ExternalID = "d1"
	_, _, err = svc.IngestRecord(ctx, diaRec, now)
	require.NoError(t, err)

	all, err := svc.ListProducts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	dia, err := svc.ListProducts(ctx, "dia")
	require.NoError(t, err)
	require.Len(t, dia, 1)
	assert.Equal(t, "dia", dia[0].SourceID)
}
