package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-floor-sync/models"
	"github.com/yeremiapane/restaurant-floor-sync/protocol"
	"github.com/yeremiapane/restaurant-floor-sync/utils"
)

type OrderController struct {
	DB *gorm.DB
}

func NewOrderController(db *gorm.DB) *OrderController {
	return &OrderController{DB: db}
}

// GetAllOrders -> list orders, opsional ?since= dan ?table_id=
func (oc *OrderController) GetAllOrders(c *gin.Context) {
	query, err := sinceQuery(c, oc.DB, "orders.created_at")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if tableID := c.Query("table_id"); tableID != "" {
		query = query.Where("table_id = ?", tableID)
	}

	var orders []models.Order
	if err := query.Preload("Table").Preload("Menu").Order("created_at ASC, id ASC").Find(&orders).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

// CreateOrder -> order baru untuk meja yang sedang aktif; harga diambil dari menu
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var body struct {
		TableID    uint `json:"table_id" binding:"required"`
		MenuID     uint `json:"menu_id" binding:"required"`
		CustomerID uint `json:"customer_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var order models.Order
	err := oc.DB.Transaction(func(tx *gorm.DB) error {
		activation, err := activeActivation(tx, body.TableID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTableNotActive
		}
		if err != nil {
			return err
		}

		var menu models.Menu
		if err := tx.First(&menu, body.MenuID).Error; err != nil {
			return err
		}

		order = models.Order{
			TableID:      body.TableID,
			ActivationID: activation.ID,
			CustomerID:   body.CustomerID,
			MenuID:       menu.ID,
			Price:        menu.Price,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		order.Table = activation.Table
		order.Menu = menu

		return recordChange(tx, protocol.NewOrder{
			OrderID:      order.ID,
			TableID:      order.TableID,
			TableNumber:  activation.Table.TableNumber,
			ActivationID: activation.ID,
			CreatedAt:    order.CreatedAt,
		})
	})
	switch {
	case errors.Is(err, ErrTableNotActive):
		utils.RespondError(c, http.StatusConflict, err)
		return
	case errors.Is(err, gorm.ErrRecordNotFound):
		utils.RespondError(c, http.StatusNotFound, err)
		return
	case err != nil:
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("New order %d on table %s", order.ID, order.Table.TableNumber)
	utils.RespondJSON(c, http.StatusCreated, "Order created", order)
}

// CompleteOrder -> tandai order selesai (dapur sudah menyajikan)
func (oc *OrderController) CompleteOrder(c *gin.Context) {
	oc.setCompleted(c, true)
}

// ReopenOrder -> batalkan status selesai
func (oc *OrderController) ReopenOrder(c *gin.Context) {
	oc.setCompleted(c, false)
}

func (oc *OrderController) setCompleted(c *gin.Context, completed bool) {
	id, err := paramID(c, "order_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var order models.Order
	err = oc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Table").Preload("Menu").First(&order, id).Error; err != nil {
			return err
		}
		if completed && order.Completed {
			return ErrOrderCompleted
		}
		if !completed && !order.Completed {
			return ErrOrderNotCompleted
		}

		order.Completed = completed
		var event protocol.Payload
		if completed {
			now := time.Now().UTC()
			order.CompletedAt = &now
			event = protocol.OrderCompleted{
				OrderID:     order.ID,
				TableID:     order.TableID,
				TableNumber: order.Table.TableNumber,
				CompletedAt: now,
			}
		} else {
			order.CompletedAt = nil
			event = protocol.OrderReopened{
				OrderID:     order.ID,
				TableID:     order.TableID,
				TableNumber: order.Table.TableNumber,
			}
		}

		if err := tx.Model(&order).Select("completed", "completed_at").Updates(&order).Error; err != nil {
			return err
		}
		return recordChange(tx, event)
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		utils.RespondError(c, http.StatusNotFound, err)
		return
	case errors.Is(err, ErrOrderCompleted), errors.Is(err, ErrOrderNotCompleted):
		utils.RespondError(c, http.StatusConflict, err)
		return
	case err != nil:
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if completed {
		utils.RespondJSON(c, http.StatusOK, "Order completed", order)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order reopened", order)
}
