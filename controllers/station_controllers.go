package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/onpointkonceptz/goldbond/live"
	"github.com/onpointkonceptz/goldbond/models"
	"github.com/onpointkonceptz/goldbond/utils"
	"gorm.io/gorm"
)

type StationController struct {
	DB *gorm.DB
}

func NewStationController(db *gorm.DB) *StationController {
	return &StationController{DB: db}
}

// CreateStation -> adds a new sample-collection station
func (sc *StationController) CreateStation(c *gin.Context) {
	var req struct {
		StationNumber string `json:"station_number" binding:"required"`
		Status        string `json:"status"` // optional, default "available"
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	station := models.CollectionStation{
		StationNumber: req.StationNumber,
		Status:        "available",
	}
	if req.Status != "" {
		station.Status = req.Status
	}

	if err := sc.DB.Create(&station).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	live.BroadcastStationUpdate(station)

	utils.InfoLogger.Printf("New station created: %s (status=%s)", station.StationNumber, station.Status)
	utils.RespondJSON(c, http.StatusCreated, "Station created successfully", station)
}

// GetAllStations -> lists every station, optionally by status
func (sc *StationController) GetAllStations(c *gin.Context) {
	query := sc.DB.Order("station_number ASC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var stations []models.CollectionStation
	if err := query.Find(&stations).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of stations", stations)
}

// GetStationByID
func (sc *StationController) GetStationByID(c *gin.Context) {
	var station models.CollectionStation
	if err := sc.DB.First(&station, c.Param("station_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Station detail", station)
}

// UpdateStationStatus -> staff moves a station between available,
// occupied and cleaning
func (sc *StationController) UpdateStationStatus(c *gin.Context) {
	var body struct {
		Status string `json:"status" binding:"required,oneof=available occupied cleaning"`
	}

	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var station models.CollectionStation
	if err := sc.DB.First(&station, c.Param("station_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	station.Status = body.Status
	if err := sc.DB.Save(&station).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	live.BroadcastStationUpdate(station)

	utils.InfoLogger.Printf("Station %d status changed to %s", station.ID, station.Status)
	utils.RespondJSON(c, http.StatusOK, "Station status updated", station)
}

// MarkStationClean -> staff confirms sanitation is done and the station
// can take the next patient
func (sc *StationController) MarkStationClean(c *gin.Context) {
	var station models.CollectionStation
	if err := sc.DB.First(&station, c.Param("station_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	if station.Status != "cleaning" {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("station is not being cleaned"))
		return
	}

	station.Status = "available"
	if err := sc.DB.Save(&station).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	live.BroadcastStationUpdate(station)

	utils.RespondJSON(c, http.StatusOK, "Station marked as clean", station)
}

// DeleteStation
func (sc *StationController) DeleteStation(c *gin.Context) {
	var station models.CollectionStation
	if err := sc.DB.First(&station, c.Param("station_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	if station.Status == "occupied" {
		utils.RespondError(c, http.StatusConflict, errors.New("station is occupied"))
		return
	}

	if err := sc.DB.Delete(&station).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("Station %d deleted", station.ID)
	utils.RespondJSON(c, http.StatusOK, "Station deleted", gin.H{
		"id": station.ID,
	})
}
