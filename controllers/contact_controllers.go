package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/onpointkonceptz/goldbond/live"
	"github.com/onpointkonceptz/goldbond/models"
	"github.com/onpointkonceptz/goldbond/utils"
)

// SubmitContactMessage stores an enquiry from the public website.
func SubmitContactMessage(c *gin.Context) {
	var input struct {
		Name    string `json:"name" binding:"required"`
		Email   string `json:"email" binding:"required,email"`
		Phone   string `json:"phone"`
		Subject string `json:"subject"`
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	db := utils.GetDB()
	message := models.ContactMessage{
		Name:    input.Name,
		Email:   input.Email,
		Phone:   input.Phone,
		Subject: input.Subject,
		Message: input.Message,
	}
	if err := db.Create(&message).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	live.BroadcastStaffNotification("New enquiry from " + input.Name)
	utils.InfoLogger.Printf("Contact message received from %s", input.Email)

	utils.RespondJSON(c, http.StatusCreated, "Message received, we will get back to you shortly", gin.H{
		"message_id": message.ID,
	})
}

// GetContactMessages lists enquiries for the back office. Staff/admin.
func GetContactMessages(c *gin.Context) {
	db := utils.GetDB()

	query := db.Order("created_at DESC")
	if c.Query("resolved") == "false" {
		query = query.Where("resolved = ?", false)
	}

	var messages []models.ContactMessage
	if err := query.Find(&messages).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Contact messages", messages)
}

// ResolveContactMessage marks an enquiry handled. Staff/admin.
func ResolveContactMessage(c *gin.Context) {
	db := utils.GetDB()

	result := db.Model(&models.ContactMessage{}).
		Where("id = ?", c.Param("message_id")).
		Update("resolved", true)
	if result.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondError(c, http.StatusNotFound, errors.New("message not found"))
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Message resolved", nil)
}
