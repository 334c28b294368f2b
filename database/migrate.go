package database

import (
	"errors"
	"fmt"

	"github.com/yeremiapane/restaurant-floor-sync/models"
	"github.com/yeremiapane/restaurant-floor-sync/utils"
	"gorm.io/gorm"
)

// Models -> semua tabel yang dikelola AutoMigrate, urutan mengikuti foreign key
var Models = []interface{}{
	&models.User{},
	&models.Restaurant{},
	&models.Table{},
	&models.TableActivation{},
	&models.Menu{},
	&models.Order{},
	&models.Workday{},
	&models.WorkdayWorker{},
	&models.DBChange{},
}

const defaultRestaurantName = "Restaurant"

// Migrate -> AutoMigrate seluruh model lalu memastikan baris restoran tunggal ada
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")

	if err := seedRestaurant(db); err != nil {
		return fmt.Errorf("seed restaurant: %w", err)
	}

	// Sisa outbox yang belum diproses akan dikirim ChangeMonitor setelah start
	var pending int64
	if err := db.Model(&models.DBChange{}).Where("processed = ?", false).Count(&pending).Error; err != nil {
		return fmt.Errorf("count pending changes: %w", err)
	}
	if pending > 0 {
		utils.InfoLogger.Printf("Found %d unprocessed changes from previous run", pending)
	}
	return nil
}

func seedRestaurant(db *gorm.DB) error {
	var restaurant models.Restaurant
	err := db.First(&restaurant).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	restaurant = models.Restaurant{Name: defaultRestaurantName}
	if err := db.Create(&restaurant).Error; err != nil {
		return err
	}
	utils.InfoLogger.Printf("Seeded default restaurant (id=%d)", restaurant.ID)
	return nil
}
