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

type UserController struct {
	DB *gorm.DB
}

func NewUserController(db *gorm.DB) *UserController {
	return &UserController{DB: db}
}

// CreateUser -> mendaftarkan staff (admin, staff, chef)
func (uc *UserController) CreateUser(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Role     string `json:"role" binding:"required"`
		PhotoURL string `json:"photo_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if !models.ValidRole(req.Role) {
		utils.RespondError(c, http.StatusBadRequest, ErrInvalidRole)
		return
	}

	user := models.User{
		Name:     req.Name,
		Email:    req.Email,
		Role:     req.Role,
		PhotoURL: req.PhotoURL,
	}
	if err := uc.DB.Create(&user).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("New user registered: %s (role=%s)", user.Email, user.Role)
	utils.RespondJSON(c, http.StatusCreated, "User registered", user)
}

// GetAllUsers -> daftar user
func (uc *UserController) GetAllUsers(c *gin.Context) {
	var users []models.User
	if err := uc.DB.Order("id ASC").Find(&users).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "All users", users)
}

// UpdateRole -> ganti role user, terminal lain diberi tahu lewat role-changed
func (uc *UserController) UpdateRole(c *gin.Context) {
	id, err := paramID(c, "user_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	var body struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if !models.ValidRole(body.Role) {
		utils.RespondError(c, http.StatusBadRequest, ErrInvalidRole)
		return
	}

	var user models.User
	err = uc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			return err
		}
		user.Role = body.Role
		if err := tx.Model(&user).Update("role", body.Role).Error; err != nil {
			return err
		}
		return recordChange(tx, protocol.RoleChanged{UserID: user.ID, Role: user.Role})
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		utils.RespondError(c, http.StatusNotFound, err)
		return
	case err != nil:
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("User %d role changed to %s", user.ID, user.Role)
	utils.RespondJSON(c, http.StatusOK, "Role updated", user)
}

// IssueTerminalToken -> token untuk membuka koneksi /kds/ws atas nama user ini
func (uc *UserController) IssueTerminalToken(c *gin.Context) {
	id, err := paramID(c, "user_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var user models.User
	if err := uc.DB.First(&user, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Name, user.Role, user.PhotoURL)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Terminal token issued", gin.H{
		"token": token,
		"role":  user.Role,
	})
}
