package database

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-floor-sync/models"
	"github.com/yeremiapane/restaurant-floor-sync/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	return db
}

func TestMigrateSeedsRestaurantOnce(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB(t)

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	var count int64
	db.Model(&models.Restaurant{}).Count(&count)
	assert.Equal(t, int64(1), count)

	for _, m := range Models {
		assert.True(t, db.Migrator().HasTable(m))
	}
}
