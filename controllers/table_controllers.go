package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-floor-sync/models"
	"github.com/yeremiapane/restaurant-floor-sync/protocol"
	"github.com/yeremiapane/restaurant-floor-sync/utils"
	"gorm.io/gorm"
)

type TableController struct {
	DB *gorm.DB
}

func NewTableController(db *gorm.DB) *TableController {
	return &TableController{DB: db}
}

// CreateTable -> menambahkan meja baru (status awal available)
func (tc *TableController) CreateTable(c *gin.Context) {
	var req struct {
		TableNumber string `json:"table_number" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table := models.Table{
		TableNumber: req.TableNumber,
		Status:      models.TableAvailable,
	}
	if err := tc.DB.Create(&table).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("New table created: %s", table.TableNumber)
	utils.RespondJSON(c, http.StatusCreated, "Table created successfully", table)
}

// GetAllTables -> menampilkan seluruh meja
func (tc *TableController) GetAllTables(c *gin.Context) {
	var tables []models.Table
	if err := tc.DB.Order("id ASC").Find(&tables).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", tables)
}

// GetTableActivity -> riwayat buka/tutup meja, opsional ?since=
func (tc *TableController) GetTableActivity(c *gin.Context) {
	query, err := sinceQuery(c, tc.DB, "activated_at")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var activations []models.TableActivation
	if err := query.Preload("Table").Order("activated_at ASC, id ASC").Find(&activations).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table activity", activations)
}

// ActivateTable -> buka meja untuk tamu baru
func (tc *TableController) ActivateTable(c *gin.Context) {
	tableID, err := paramID(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var activation models.TableActivation
	err = tc.DB.Transaction(func(tx *gorm.DB) error {
		var table models.Table
		if err := tx.First(&table, tableID).Error; err != nil {
			return err
		}
		if _, err := activeActivation(tx, tableID); err == nil {
			return ErrTableAlreadyActive
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		activation = models.TableActivation{
			TableID:     table.ID,
			ActivatedAt: time.Now().UTC(),
		}
		if err := tx.Create(&activation).Error; err != nil {
			return err
		}
		if err := tx.Model(&table).Update("status", models.TableOccupied).Error; err != nil {
			return err
		}
		activation.Table = table

		return recordChange(tx, protocol.TableActivated{
			TableID:      table.ID,
			TableNumber:  table.TableNumber,
			ActivationID: activation.ID,
			ActivatedAt:  activation.ActivatedAt,
		})
	})
	if !tc.respondTxError(c, err) {
		return
	}

	utils.InfoLogger.Printf("Table %s activated", activation.Table.TableNumber)
	utils.RespondJSON(c, http.StatusOK, "Table activated", activation)
}

// DeactivateTable -> tutup periode aktif meja
func (tc *TableController) DeactivateTable(c *gin.Context) {
	tableID, err := paramID(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var activation models.TableActivation
	err = tc.DB.Transaction(func(tx *gorm.DB) error {
		var table models.Table
		if err := tx.First(&table, tableID).Error; err != nil {
			return err
		}
		active, err := activeActivation(tx, tableID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTableNotActive
		}
		if err != nil {
			return err
		}
		activation = active

		now := time.Now().UTC()
		activation.DeactivatedAt = &now
		if err := tx.Model(&activation).Update("deactivated_at", now).Error; err != nil {
			return err
		}
		if err := tx.Model(&table).Update("status", models.TableAvailable).Error; err != nil {
			return err
		}

		return recordChange(tx, protocol.TableDeactivated{
			TableID:       table.ID,
			TableNumber:   table.TableNumber,
			ActivationID:  activation.ID,
			DeactivatedAt: now,
		})
	})
	if !tc.respondTxError(c, err) {
		return
	}

	utils.InfoLogger.Printf("Table %s deactivated", activation.Table.TableNumber)
	utils.RespondJSON(c, http.StatusOK, "Table deactivated", activation)
}

// respondTxError -> true bila tidak ada error
func (tc *TableController) respondTxError(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, gorm.ErrRecordNotFound):
		utils.RespondError(c, http.StatusNotFound, err)
	case errors.Is(err, ErrTableAlreadyActive), errors.Is(err, ErrTableNotActive):
		utils.RespondError(c, http.StatusConflict, err)
	default:
		utils.RespondError(c, http.StatusInternalServerError, err)
	}
	return false
}
