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

type CleaningLogController struct {
	DB *gorm.DB
}

func NewCleaningLogController(db *gorm.DB) *CleaningLogController {
	return &CleaningLogController{DB: db}
}

// GetAllCleaningLogs
func (clc *CleaningLogController) GetAllCleaningLogs(c *gin.Context) {
	query := clc.DB.Preload("Cleaner").Preload("Station").Order("created_at DESC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var logs []models.CleaningLog
	if err := query.Find(&logs).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "All cleaning logs", logs)
}

// CreateCleaningLog
func (clc *CleaningLogController) CreateCleaningLog(c *gin.Context) {
	type reqBody struct {
		CleanerID uint   `json:"cleaner_id" binding:"required"`
		StationID uint   `json:"station_id" binding:"required"`
		Status    string `json:"status"` // pending, in_progress, done
	}
	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var station models.CollectionStation
	if err := clc.DB.First(&station, body.StationID).Error; err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("station not found"))
		return
	}

	logEntry := models.CleaningLog{
		CleanerID: body.CleanerID,
		StationID: body.StationID,
		Status:    "pending",
	}
	if body.Status != "" {
		logEntry.Status = body.Status
	}

	if err := clc.DB.Create(&logEntry).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Cleaning log created", logEntry)
}

// GetCleaningLogByID
func (clc *CleaningLogController) GetCleaningLogByID(c *gin.Context) {
	idStr := c.Param("clean_id")
	id, _ := strconv.Atoi(idStr)

	var logEntry models.CleaningLog
	if err := clc.DB.Preload("Cleaner").Preload("Station").First(&logEntry, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Cleaning log detail", logEntry)
}

// UpdateCleaningLog moves a log through pending -> in_progress -> done.
// Completing it releases the station for the next patient.
func (clc *CleaningLogController) UpdateCleaningLog(c *gin.Context) {
	idStr := c.Param("clean_id")
	id, _ := strconv.Atoi(idStr)

	type reqBody struct {
		Status string `json:"status" binding:"required,oneof=pending in_progress done"`
	}
	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var logEntry models.CleaningLog
	if err := clc.DB.First(&logEntry, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	logEntry.Status = body.Status
	if err := clc.DB.Save(&logEntry).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if body.Status == "done" {
		var station models.CollectionStation
		if err := clc.DB.First(&station, logEntry.StationID).Error; err == nil && station.Status == "cleaning" {
			station.Status = "available"
			clc.DB.Save(&station)
			live.BroadcastStationUpdate(station)
		}
	}

	utils.RespondJSON(c, http.StatusOK, "Cleaning log updated", logEntry)
}

// DeleteCleaningLog
func (clc *CleaningLogController) DeleteCleaningLog(c *gin.Context) {
	result := clc.DB.Delete(&models.CleaningLog{}, c.Param("clean_id"))
	if result.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondError(c, http.StatusNotFound, errors.New("cleaning log not found"))
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Cleaning log deleted", nil)
}
