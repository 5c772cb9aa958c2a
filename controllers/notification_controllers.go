package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/onpointkonceptz/goldbond/live"
	"github.com/onpointkonceptz/goldbond/models"
	"github.com/onpointkonceptz/goldbond/utils"
	"gorm.io/gorm"
)

type NotificationController struct {
	DB *gorm.DB
}

func NewNotificationController(db *gorm.DB) *NotificationController {
	return &NotificationController{DB: db}
}

// GetMyNotifications lists the authenticated user's notifications plus
// broadcast ones (user_id IS NULL).
func (nc *NotificationController) GetMyNotifications(c *gin.Context) {
	userIDValue, _ := c.Get("user_id")
	userID, ok := userIDValue.(uint)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	query := nc.DB.Where("user_id = ? OR user_id IS NULL", userID).
		Order("created_at DESC").Limit(100)
	if c.Query("unread") == "true" {
		query = query.Where("is_read = ?", false)
	}

	var notifs []models.Notification
	if err := query.Find(&notifs).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Notifications", notifs)
}

// CreateNotification -> broadcast or a specific user. Staff/admin.
func (nc *NotificationController) CreateNotification(c *gin.Context) {
	type reqBody struct {
		UserID  *uint  `json:"user_id"`
		Title   string `json:"title"`
		Message string `json:"message" binding:"required"`
	}
	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	notif := models.Notification{
		Message: body.Message,
		UserID:  body.UserID,
	}
	if body.Title != "" {
		notif.Title = &body.Title
	}

	if err := nc.DB.Create(&notif).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if notif.UserID == nil {
		live.BroadcastStaffNotification(notif.Message)
	}

	utils.RespondJSON(c, http.StatusCreated, "Notification created", notif)
}

// GetNotificationByID
func (nc *NotificationController) GetNotificationByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("notif_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid notif_id"))
		return
	}

	var notif models.Notification
	if err := nc.DB.First(&notif, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("notification not found"))
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Notification detail", notif)
}

// MarkNotificationRead flags one of the user's notifications as read.
func (nc *NotificationController) MarkNotificationRead(c *gin.Context) {
	userIDValue, _ := c.Get("user_id")
	userID, ok := userIDValue.(uint)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	result := nc.DB.Model(&models.Notification{}).
		Where("id = ? AND (user_id = ? OR user_id IS NULL)", c.Param("notif_id"), userID).
		Update("is_read", true)
	if result.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondError(c, http.StatusNotFound, errors.New("notification not found"))
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Notification marked as read", nil)
}

// DeleteNotification removes a notification. Staff/admin.
func (nc *NotificationController) DeleteNotification(c *gin.Context) {
	result := nc.DB.Delete(&models.Notification{}, c.Param("notif_id"))
	if result.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondError(c, http.StatusNotFound, errors.New("notification not found"))
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Notification deleted", nil)
}
