package controllers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-floor-sync/models"
	"github.com/yeremiapane/restaurant-floor-sync/protocol"
	"gorm.io/gorm"
)

type CustomError struct {
	Message string
}

func (e *CustomError) Error() string {
	return e.Message
}

var (
	ErrInvalidID          = &CustomError{"Invalid id"}
	ErrTableNotActive     = &CustomError{"Table is not active"}
	ErrTableAlreadyActive = &CustomError{"Table is already active"}
	ErrOrderCompleted     = &CustomError{"Order is already completed"}
	ErrOrderNotCompleted  = &CustomError{"Order is not completed"}
	ErrNoActiveWorkday    = &CustomError{"No active workday"}
	ErrWorkdayActive      = &CustomError{"A workday is already running"}
	ErrInvalidRole        = &CustomError{"Role must be admin, staff or chef"}
)

// recordChange -> tulis event ke outbox di transaksi yang sama dengan perubahan data
func recordChange(tx *gorm.DB, p protocol.Payload) error {
	change, err := models.NewDBChange(p, time.Now().UTC())
	if err != nil {
		return err
	}
	return tx.Create(&change).Error
}

func paramID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidID
	}
	return uint(id), nil
}

// sinceQuery -> filter ?since=RFC3339 opsional
func sinceQuery(c *gin.Context, db *gorm.DB, column string) (*gorm.DB, error) {
	since := c.Query("since")
	if since == "" {
		return db, nil
	}
	t, err := time.Parse(time.RFC3339, since)
	if err != nil {
		return nil, err
	}
	return db.Where(column+" >= ?", t), nil
}

// activeActivation -> periode aktif meja, gorm.ErrRecordNotFound bila meja sedang tutup
func activeActivation(tx *gorm.DB, tableID uint) (models.TableActivation, error) {
	var activation models.TableActivation
	err := tx.Preload("Table").
		Where("table_id = ? AND deactivated_at IS NULL", tableID).
		Order("id DESC").
		First(&activation).Error
	return activation, err
}
