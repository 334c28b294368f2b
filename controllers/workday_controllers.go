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

type WorkdayController struct {
	DB *gorm.DB
}

func NewWorkdayController(db *gorm.DB) *WorkdayController {
	return &WorkdayController{DB: db}
}

// GetWorkdays -> semua hari kerja beserta worker yang bergabung
func (wc *WorkdayController) GetWorkdays(c *gin.Context) {
	query, err := sinceQuery(c, wc.DB, "started_at")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var workdays []models.Workday
	if err := query.Preload("Workers.User").Order("started_at ASC, id ASC").Find(&workdays).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of workdays", workdays)
}

func activeWorkday(tx *gorm.DB) (models.Workday, error) {
	var workday models.Workday
	err := tx.Where("ended_at IS NULL").Order("started_at DESC").First(&workday).Error
	return workday, err
}

// StartWorkday -> membuka hari kerja; hanya boleh satu yang berjalan
func (wc *WorkdayController) StartWorkday(c *gin.Context) {
	var workday models.Workday
	err := wc.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := activeWorkday(tx); err == nil {
			return ErrWorkdayActive
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		workday = models.Workday{StartedAt: time.Now().UTC()}
		if err := tx.Omit("Workers").Create(&workday).Error; err != nil {
			return err
		}
		return recordChange(tx, protocol.WorkdayStarted{
			WorkdayID: workday.ID,
			StartedAt: workday.StartedAt,
		})
	})
	switch {
	case errors.Is(err, ErrWorkdayActive):
		utils.RespondError(c, http.StatusConflict, err)
		return
	case err != nil:
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("Workday %d started", workday.ID)
	utils.RespondJSON(c, http.StatusCreated, "Workday started", workday)
}

// EndWorkday -> menutup hari kerja yang sedang berjalan
func (wc *WorkdayController) EndWorkday(c *gin.Context) {
	var workday models.Workday
	err := wc.DB.Transaction(func(tx *gorm.DB) error {
		active, err := activeWorkday(tx)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoActiveWorkday
		}
		if err != nil {
			return err
		}
		workday = active

		now := time.Now().UTC()
		workday.EndedAt = &now
		if err := tx.Model(&workday).Update("ended_at", now).Error; err != nil {
			return err
		}
		return recordChange(tx, protocol.WorkdayEnded{
			WorkdayID: workday.ID,
			EndedAt:   now,
		})
	})
	switch {
	case errors.Is(err, ErrNoActiveWorkday):
		utils.RespondError(c, http.StatusConflict, err)
		return
	case err != nil:
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("Workday %d ended", workday.ID)
	utils.RespondJSON(c, http.StatusOK, "Workday ended", workday)
}

// JoinWorkday -> worker clock-in ke hari kerja yang sedang berjalan
func (wc *WorkdayController) JoinWorkday(c *gin.Context) {
	var body struct {
		UserID uint `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var worker models.WorkdayWorker
	err := wc.DB.Transaction(func(tx *gorm.DB) error {
		workday, err := activeWorkday(tx)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoActiveWorkday
		}
		if err != nil {
			return err
		}

		var user models.User
		if err := tx.First(&user, body.UserID).Error; err != nil {
			return err
		}

		// join kedua kali mengembalikan catatan yang sudah ada
		err = tx.Where("workday_id = ? AND user_id = ?", workday.ID, user.ID).First(&worker).Error
		if err == nil {
			worker.User = user
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		worker = models.WorkdayWorker{
			WorkdayID: workday.ID,
			UserID:    user.ID,
			JoinedAt:  time.Now().UTC(),
		}
		if err := tx.Create(&worker).Error; err != nil {
			return err
		}
		worker.User = user

		// roster shift ikut berubah, terminal perlu refetch workdays
		return recordChange(tx, protocol.RoleChanged{UserID: user.ID, Role: user.Role})
	})
	switch {
	case errors.Is(err, ErrNoActiveWorkday):
		utils.RespondError(c, http.StatusConflict, err)
		return
	case errors.Is(err, gorm.ErrRecordNotFound):
		utils.RespondError(c, http.StatusNotFound, err)
		return
	case err != nil:
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Joined workday", worker)
}
