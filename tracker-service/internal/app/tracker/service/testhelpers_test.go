package service

import (
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"pricetrack/pkg/logger"
	"pricetrack/pkg/similarity"
	"pricetrack/tracker-service/internal/app/tracker/entity"
	"pricetrack/tracker-service/internal/app/tracker/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	logger.InitWithWriter("tracker-test", "error", io.Discard)
	os.Exit(m.Run())
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&entity.Product{},
		&entity.PriceObservation{},
		&entity.EquivalenceGroup{},
		&entity.GroupMember{},
		&entity.Favorite{},
	))
	return db
}

type testRepos struct {
	catalog  repository.CatalogRepository
	group    repository.GroupRepository
	favorite repository.FavoriteRepository
}

func newTestRepos(t *testing.T) testRepos {
	db := newTestDB(t)
	return testRepos{
		catalog:  repository.NewCatalogRepository(db),
		group:    repository.NewGroupRepository(db),
		favorite: repository.NewFavoriteRepository(db),
	}
}

// stubScorer rates name pairs from a fixed table: identical names score
// 100, unknown pairs 0, blank names are unscorable.
type stubScorer struct {
	scores map[[2]string]int
}

func (s *stubScorer) Score(a, b string) (int, error) {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0, similarity.ErrEmptyName
	}
	if a == b {
		return 100, nil
	}
	if v, ok := s.scores[[2]string{a, b}]; ok {
		return v, nil
	}
	if v, ok := s.scores[[2]string{b, a}]; ok {
		return v, nil
	}
	return 0, nil
}
