package catalog

import (
	"context"
	"fmt"
	"testing"

	"hookah_delivery/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

func TestSeedDefaults_Idempotent(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.SeedDefaults(ctx, 70))
	require.NoError(t, repo.SeedDefaults(ctx, 70))

	mixes, err := repo.Mixes(ctx)
	require.NoError(t, err)
	assert.Len(t, mixes, 4)
	assert.Equal(t, "Lemon Mint", mixes[0].Name)
	for _, m := range mixes {
		assert.Equal(t, int64(70), m.Price)
	}

	drinks, err := repo.Drinks(ctx)
	require.NoError(t, err)
	assert.Len(t, drinks, 3)
}

func TestFeatured(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	m, err := repo.Featured(ctx)
	require.NoError(t, err)
	assert.Nil(t, m)

	require.NoError(t, repo.SeedDefaults(ctx, 70))
	m, err = repo.Featured(ctx)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "mix-lemon-mint", m.ID)
}

func TestMixesByID_SkipsInactiveAndUnknown(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.SeedDefaults(ctx, 70))
	require.NoError(t, db.Model(&model.Mix{}).Where("id = ?", "mix-tropic").Update("active", false).Error)

	got, err := repo.MixesByID(ctx, []string{"mix-berry-ice", "mix-tropic", "nope"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "mix-berry-ice")

	drinks, err := repo.DrinksByID(ctx, []string{"drink-cola"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), drinks["drink-cola"].Price)

	empty, err := repo.MixesByID(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
