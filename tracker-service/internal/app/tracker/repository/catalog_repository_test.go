package repository

import (
	"context"
	"testing"
	"time"

	"pricetrack/tracker-service/internal/app/tracker/entity"

	"github.com/stretchr/testify/suite"
)

type CatalogRepositoryTestSuite struct {
	suite.Suite
	repo CatalogRepository
	ctx  context.Context
}

func (s *CatalogRepositoryTestSuite) SetupTest() {
	s.repo = NewCatalogRepository(newTestDB(s.T()))
	s.ctx = context.Background()
}

func (s *CatalogRepositoryTestSuite) record(sourceID, externalID, name string, price float64, capturedAt time.Time) *entity.Product {
	product := &entity.Product{
		SourceID:   sourceID,
		ExternalID: externalID,
		Name:       name,
		Category:   "Despensa",
	}
	obs := &entity.PriceObservation{Price: price, CapturedAt: capturedAt}
	_, err := s.repo.RecordObservation(s.ctx, product, obs)
	s.Require().NoError(err)
	return product
}

func (s *CatalogRepositoryTestSuite) TestRecordObservation_CreatesProductAndObservation() {
	now := time.Now().UTC()
	product := &entity.Product{SourceID: "mercadona", ExternalID: "4240", Name: "Aceite de oliva"}
	obs := &entity.PriceObservation{Price: 4.85, CapturedAt: now}

	created, err := s.repo.RecordObservation(s.ctx, product, obs)

	s.Require().NoError(err)
	s.True(created)
	s.NotZero(product.ID)
	s.Equal(product.ID, obs.ProductID)

	history, err := s.repo.PriceHistory(s.ctx, product.ID, nil, nil)
	s.Require().NoError(err)
	s.Len(history, 1)
	s.Equal(4.85, history[0].Price)
}

func (s *CatalogRepositoryTestSuite) TestRecordObservation_SameKeyKeepsIdentity() {
	day1 := time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	first := s.record("mercadona", "4240", "Aceite de oliva", 4.85, day1)

	second := &entity.Product{SourceID: "mercadona", ExternalID: "4240", Name: "Aceite de oliva virgen"}
	created, err := s.repo.RecordObservation(s.ctx, second, &entity.PriceObservation{Price: 4.95, CapturedAt: day2})
	s.Require().NoError(err)

	s.False(created, "same (source, external) must reuse the existing row")
	s.Equal(first.ID, second.ID)

	stored, err := s.repo.GetProduct(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Equal("Aceite de oliva virgen", stored.Name, "descriptive fields follow the latest record")
	s.WithinDuration(first.CreatedAt, stored.CreatedAt, time.Second, "created_at is preserved across upserts")

	history, err := s.repo.PriceHistory(s.ctx, first.ID, nil, nil)
	s.Require().NoError(err)
	s.Len(history, 2, "history only ever grows")
}

func (s *CatalogRepositoryTestSuite) TestRecordObservation_NilObservationUpsertsOnly() {
	product := &entity.Product{SourceID: "dia", ExternalID: "d9", Name: "Pan de molde"}
	created, err := s.repo.RecordObservation(s.ctx, product, nil)
	s.Require().NoError(err)
	s.True(created)

	history, err := s.repo.PriceHistory(s.ctx, product.ID, nil, nil)
	s.Require().NoError(err)
	s.Empty(history)
}

func (s *CatalogRepositoryTestSuite) TestAppendPrice_UnknownProduct() {
	err := s.repo.AppendPrice(s.ctx, &entity.PriceObservation{ProductID: 999, Price: 1, CapturedAt: time.Now()})
	s.ErrorIs(err, ErrProductNotFound)
}

func (s *CatalogRepositoryTestSuite) TestPriceHistory_OrderedAndFiltered() {
	day := func(d int) time.Time { return time.Date(2026, 8, d, 7, 0, 0, 0, time.UTC) }
	product := s.record("mercadona", "100", "Leche entera", 0.98, day(3))
	// out of insertion order on purpose
	s.Require().NoError(s.repo.AppendPrice(s.ctx, &entity.PriceObservation{ProductID: product.ID, Price: 1.05, CapturedAt: day(1)}))
	s.Require().NoError(s.repo.AppendPrice(s.ctx, &entity.PriceObservation{ProductID: product.ID, Price: 0.99, CapturedAt: day(5)}))

	history, err := s.repo.PriceHistory(s.ctx, product.ID, nil, nil)
	s.Require().NoError(err)
	s.Require().Len(history, 3)
	s.Equal([]float64{1.05, 0.98, 0.99}, []float64{history[0].Price, history[1].Price, history[2].Price})

	since, until := day(2), day(4)
	windowed, err := s.repo.PriceHistory(s.ctx, product.ID, &since, &until)
	s.Require().NoError(err)
	s.Require().Len(windowed, 1)
	s.Equal(0.98, windowed[0].Price)
}

func (s *CatalogRepositoryTestSuite) TestLatestPrice() {
	day := func(d int) time.Time { return time.Date(2026, 8, d, 7, 0, 0, 0, time.UTC) }
	product := s.record("dia", "d1", "Huevos M", 2.10, day(1))
	s.Require().NoError(s.repo.AppendPrice(s.ctx, &entity.PriceObservation{ProductID: product.ID, Price: 2.25, CapturedAt: day(2)}))

	latest, err := s.repo.LatestPrice(s.ctx, product.ID)
	s.Require().NoError(err)
	s.Equal(2.25, latest.Price)

	unpriced := &entity.Product{SourceID: "dia", ExternalID: "d2", Name: "Sal fina"}
	_, err = s.repo.RecordObservation(s.ctx, unpriced, nil)
	s.Require().NoError(err)

	_, err = s.repo.LatestPrice(s.ctx, unpriced.ID)
	s.ErrorIs(err, ErrObservationNotFound)
}

func (s *CatalogRepositoryTestSuite) TestProductsWithLatestPrice() {
	day := func(d int) time.Time { return time.Date(2026, 8, d, 7, 0, 0, 0, time.UTC) }
	oil := s.record("mercadona", "4240", "Aceite de oliva", 4.85, day(1))
	s.Require().NoError(s.repo.AppendPrice(s.ctx, &entity.PriceObservation{ProductID: oil.ID, Price: 4.95, CapturedAt: day(2)}))
	milk := s.record("dia", "d1", "Leche entera", 0.89, day(1))

	unpriced := &entity.Product{SourceID: "dia", ExternalID: "d2", Name: "Sal fina"}
	_, err := s.repo.RecordObservation(s.ctx, unpriced, nil)
	s.Require().NoError(err)

	rows, err := s.repo.ProductsWithLatestPrice(s.ctx, "", nil)
	s.Require().NoError(err)
	s.Require().Len(rows, 3)

	byID := make(map[uint]entity.ProductWithPrice, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	s.Require().NotNil(byID[oil.ID].Price)
	s.Equal(4.95, *byID[oil.ID].Price, "latest observation wins")
	s.Require().NotNil(byID[milk.ID].Price)
	s.Equal(0.89, *byID[milk.ID].Price)
	s.Nil(byID[unpriced.ID].Price, "never-priced products still appear")

	diaOnly, err := s.repo.ProductsWithLatestPrice(s.ctx, "dia", nil)
	s.Require().NoError(err)
	s.Len(diaOnly, 2)

	subset, err := s.repo.ProductsWithLatestPrice(s.ctx, "", []uint{milk.ID})
	s.Require().NoError(err)
	s.Require().Len(subset, 1)
	s.Equal(milk.ID, subset[0].ID)

	none, err := s.repo.ProductsWithLatestPrice(s.ctx, "", []uint{})
	s.Require().NoError(err)
	s.Nil(none)
}

func (s *CatalogRepositoryTestSuite) TestGetBySourceExternal() {
	product := s.record("mercadona", "4240", "Aceite de oliva", 4.85, time.Now().UTC())

	found, err := s.repo.GetBySourceExternal(s.ctx, "mercadona", "4240")
	s.Require().NoError(err)
	s.Equal(product.ID, found.ID)

	_, err = s.repo.GetBySourceExternal(s.ctx, "dia", "4240")
	s.ErrorIs(err, ErrProductNotFound)
}

func (s *CatalogRepositoryTestSuite) TestSearchProducts() {
	now := time.Now().UTC()
	s.record("mercadona", "1", "Aceite de oliva virgen", 4.85, now)
	s.record("dia", "2", "Aceite de girasol", 2.10, now)
	s.record("dia", "3", "Leche entera", 0.89, now)

	matches, err := s.repo.SearchProducts(s.ctx, "aceite", "", "", 0)
	s.Require().NoError(err)
	s.Len(matches, 2)

	diaMatches, err := s.repo.SearchProducts(s.ctx, "aceite", "dia", "", 0)
	s.Require().NoError(err)
	s.Require().Len(diaMatches, 1)
	s.Equal("Aceite de girasol", diaMatches[0].Name)

	limited, err := s.repo.SearchProducts(s.ctx, "", "", "", 2)
	s.Require().NoError(err)
	s.Len(limited, 2)
}

func (s *CatalogRepositoryTestSuite) TestStats() {
	day := func(d int) time.Time { return time.Date(2026, 8, d, 7, 0, 0, 0, time.UTC) }
	oil := s.record("mercadona", "1", "Aceite de oliva", 4.85, day(1))
	s.record("dia", "2", "Leche entera", 0.89, day(3))
	s.Require().NoError(s.repo.AppendPrice(s.ctx, &entity.PriceObservation{ProductID: oil.ID, Price: 4.95, CapturedAt: day(5)}))

	stats, err := s.repo.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), stats.TotalProducts)
	s.Equal(int64(3), stats.TotalObservations)
	s.Equal(int64(2), stats.TotalSources)
	s.Equal(int64(1), stats.ProductsPerSource["mercadona"])
	s.Equal(int64(1), stats.ProductsPerSource["dia"])
	s.Require().NotNil(stats.FirstCapture)
	s.Require().NotNil(stats.LastCapture)
	s.WithinDuration(day(1), *stats.FirstCapture, time.Second)
	s.WithinDuration(day(5), *stats.LastCapture, time.Second)
}

func TestCatalogRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(CatalogRepositoryTestSuite))
}
