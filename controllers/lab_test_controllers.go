package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/onpointkonceptz/goldbond/models"
	"github.com/onpointkonceptz/goldbond/utils"
	"gorm.io/gorm"
)

type LabTestController struct {
	DB *gorm.DB
}

func NewLabTestController(db *gorm.DB) *LabTestController {
	return &LabTestController{DB: db}
}

// GetAllTests lists the public catalogue. Staff see inactive tests too
// with ?include_inactive=true.
func (lc *LabTestController) GetAllTests(c *gin.Context) {
	var tests []models.LabTest

	query := lc.DB.Preload("Category").Order("name ASC")

	role, _ := c.Get("role")
	includeInactive := c.Query("include_inactive") == "true" &&
		(role == models.RoleStaff || role == models.RoleAdmin)
	if !includeInactive {
		query = query.Where("active = ?", true)
	}

	if catID := c.Query("category_id"); catID != "" {
		query = query.Where("category_id = ?", catID)
	}
	if q := c.Query("q"); q != "" {
		like := "%" + q + "%"
		query = query.Where("name LIKE ? OR code LIKE ?", like, like)
	}

	result := query.Find(&tests)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  false,
			"message": result.Error.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  true,
		"message": "List of lab tests",
		"data":    tests,
	})
}

// GetTestByID
func (lc *LabTestController) GetTestByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("test_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid test_id"))
		return
	}

	var test models.LabTest
	if err := lc.DB.Preload("Category").First(&test, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("lab test not found"))
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Lab test detail", test)
}

// CreateTest adds a test to the catalogue. Staff/admin.
func (lc *LabTestController) CreateTest(c *gin.Context) {
	var input struct {
		CategoryID      uint    `json:"category_id" binding:"required"`
		Name            string  `json:"name" binding:"required"`
		Code            string  `json:"code" binding:"required"`
		Price           float64 `json:"price" binding:"required,gt=0"`
		SampleType      string  `json:"sample_type"`
		TurnaroundHours int     `json:"turnaround_hours"`
		Description     string  `json:"description"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var category models.TestCategory
	if err := lc.DB.First(&category, input.CategoryID).Error; err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("category not found"))
		return
	}

	test := models.LabTest{
		CategoryID:      input.CategoryID,
		Name:            input.Name,
		Code:            input.Code,
		Price:           input.Price,
		SampleType:      input.SampleType,
		TurnaroundHours: input.TurnaroundHours,
		Description:     input.Description,
		Active:          true,
	}
	if test.TurnaroundHours <= 0 {
		test.TurnaroundHours = 24
	}

	if err := lc.DB.Create(&test).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("Lab test created: %s (%s)", test.Name, test.Code)
	utils.RespondJSON(c, http.StatusCreated, "Lab test created", test)
}

// UpdateTest
func (lc *LabTestController) UpdateTest(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("test_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid test_id"))
		return
	}

	var test models.LabTest
	if err := lc.DB.First(&test, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("lab test not found"))
		return
	}

	var input struct {
		CategoryID      *uint    `json:"category_id"`
		Name            *string  `json:"name"`
		Price           *float64 `json:"price"`
		SampleType      *string  `json:"sample_type"`
		TurnaroundHours *int     `json:"turnaround_hours"`
		Description     *string  `json:"description"`
		Active          *bool    `json:"active"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	updates := map[string]interface{}{}
	if input.CategoryID != nil {
		updates["category_id"] = *input.CategoryID
	}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Price != nil {
		if *input.Price <= 0 {
			utils.RespondError(c, http.StatusBadRequest, errors.New("price must be positive"))
			return
		}
		updates["price"] = *input.Price
	}
	if input.SampleType != nil {
		updates["sample_type"] = *input.SampleType
	}
	if input.TurnaroundHours != nil {
		updates["turnaround_hours"] = *input.TurnaroundHours
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Active != nil {
		updates["active"] = *input.Active
	}

	if len(updates) == 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("nothing to update"))
		return
	}

	if err := lc.DB.Model(&test).Updates(updates).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Lab test updated", test)
}

// DeleteTest retires a test from the catalogue. Existing bookings keep
// their line items, so this is a soft delete.
func (lc *LabTestController) DeleteTest(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("test_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid test_id"))
		return
	}

	result := lc.DB.Model(&models.LabTest{}).Where("id = ?", id).Update("active", false)
	if result.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondError(c, http.StatusNotFound, errors.New("lab test not found"))
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Lab test retired", nil)
}
