package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-floor-sync/aggregator"
	"github.com/yeremiapane/restaurant-floor-sync/models"
	"github.com/yeremiapane/restaurant-floor-sync/utils"
	"gorm.io/gorm"
)

// ReportController -> menjalankan aggregator di server atas data store,
// hasilnya sama dengan yang dihitung terminal
type ReportController struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewReportController(db *gorm.DB) *ReportController {
	return &ReportController{DB: db, Now: time.Now}
}

func (rc *ReportController) loadShiftInput() (aggregator.ShiftInput, error) {
	var workdays []models.Workday
	if err := rc.DB.Preload("Workers.User").Order("started_at ASC").Find(&workdays).Error; err != nil {
		return aggregator.ShiftInput{}, err
	}
	orders, err := rc.loadOrders(rc.DB)
	if err != nil {
		return aggregator.ShiftInput{}, err
	}
	var activations []models.TableActivation
	if err := rc.DB.Preload("Table").Order("activated_at ASC").Find(&activations).Error; err != nil {
		return aggregator.ShiftInput{}, err
	}
	return models.ShiftInput(workdays, orders, activations), nil
}

func (rc *ReportController) loadOrders(query *gorm.DB) ([]models.Order, error) {
	var orders []models.Order
	err := query.Preload("Table").Order("created_at ASC, id ASC").Find(&orders).Error
	return orders, err
}

// GetShifts -> semua shift, kronologis
func (rc *ReportController) GetShifts(c *gin.Context) {
	in, err := rc.loadShiftInput()
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of shifts", aggregator.BuildShifts(in, rc.Now()))
}

// GetActiveShift -> shift yang sedang berjalan, data null bila tidak ada
func (rc *ReportController) GetActiveShift(c *gin.Context) {
	in, err := rc.loadShiftInput()
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	shift, ok := aggregator.ActiveShift(aggregator.BuildShifts(in, rc.Now()))
	if !ok {
		utils.RespondJSON(c, http.StatusOK, "No active shift", nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Active shift", shift)
}

// GetSessions -> sesi semua meja, terbaru dulu
func (rc *ReportController) GetSessions(c *gin.Context) {
	orders, err := rc.loadOrders(rc.DB)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of sessions", aggregator.GroupSessions(models.OrderRecords(orders)))
}

// GetTableSessions -> sesi satu meja, terbaru dulu
func (rc *ReportController) GetTableSessions(c *gin.Context) {
	tableID, err := paramID(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	orders, err := rc.loadOrders(rc.DB.Where("table_id = ?", tableID))
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table sessions", aggregator.TableSessions(models.OrderRecords(orders), tableID))
}
