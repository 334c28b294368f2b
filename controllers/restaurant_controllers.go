package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-floor-sync/models"
	"github.com/yeremiapane/restaurant-floor-sync/protocol"
	"github.com/yeremiapane/restaurant-floor-sync/utils"
	"gorm.io/gorm"
)

type RestaurantController struct {
	DB *gorm.DB
}

func NewRestaurantController(db *gorm.DB) *RestaurantController {
	return &RestaurantController{DB: db}
}

// GetRestaurant -> profil restoran (satu baris)
func (rc *RestaurantController) GetRestaurant(c *gin.Context) {
	var restaurant models.Restaurant
	if err := rc.DB.Order("id ASC").First(&restaurant).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Restaurant profile", restaurant)
}

// UpdateRestaurant -> PATCH sebagian field
func (rc *RestaurantController) UpdateRestaurant(c *gin.Context) {
	var body struct {
		Name     *string `json:"name"`
		Address  *string `json:"address"`
		Phone    *string `json:"phone"`
		OpensAt  *string `json:"opens_at"`
		ClosesAt *string `json:"closes_at"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	updates := map[string]interface{}{}
	if body.Name != nil {
		if *body.Name == "" {
			utils.RespondError(c, http.StatusBadRequest, errors.New("name must not be empty"))
			return
		}
		updates["name"] = *body.Name
	}
	if body.Address != nil {
		updates["address"] = *body.Address
	}
	if body.Phone != nil {
		updates["phone"] = *body.Phone
	}
	if body.OpensAt != nil {
		updates["opens_at"] = *body.OpensAt
	}
	if body.ClosesAt != nil {
		updates["closes_at"] = *body.ClosesAt
	}

	var restaurant models.Restaurant
	err := rc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Order("id ASC").First(&restaurant).Error; err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&restaurant).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.First(&restaurant, restaurant.ID).Error; err != nil {
			return err
		}
		return recordChange(tx, protocol.RestaurantUpdated{RestaurantID: restaurant.ID})
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		utils.RespondError(c, http.StatusNotFound, err)
		return
	case err != nil:
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Restaurant updated", restaurant)
}
