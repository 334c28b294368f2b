package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-floor-sync/protocol"
	"github.com/yeremiapane/restaurant-floor-sync/utils"
	"gorm.io/gorm"
)

type KitchenController struct {
	DB *gorm.DB
}

func NewKitchenController(db *gorm.DB) *KitchenController {
	return &KitchenController{DB: db}
}

// SendAlert -> panggilan dari dapur ke terminal lantai (bunyi/visual saja)
func (kc *KitchenController) SendAlert(c *gin.Context) {
	var body struct {
		TableNumber string `json:"table_number" binding:"required"`
		OrderID     uint   `json:"order_id"`
		Message     string `json:"message"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	alert := protocol.KitchenAlert{
		TableNumber: body.TableNumber,
		OrderID:     body.OrderID,
		Message:     body.Message,
	}
	if err := recordChange(kc.DB, alert); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusAccepted, "Kitchen alert queued", alert)
}
