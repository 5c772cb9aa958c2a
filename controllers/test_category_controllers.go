package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/onpointkonceptz/goldbond/models"
	"github.com/onpointkonceptz/goldbond/utils"
	"gorm.io/gorm"
)

type TestCategoryController struct {
	DB *gorm.DB
}

func NewTestCategoryController(db *gorm.DB) *TestCategoryController {
	return &TestCategoryController{DB: db}
}

func (tc *TestCategoryController) GetAllCategories(c *gin.Context) {
	var categories []models.TestCategory
	if err := tc.DB.Order("name ASC").Find(&categories).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of categories", categories)
}

func (tc *TestCategoryController) CreateCategory(c *gin.Context) {
	var input struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	category := models.TestCategory{Name: input.Name}
	if err := tc.DB.Create(&category).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Category created", category)
}

func (tc *TestCategoryController) GetCategoryByID(c *gin.Context) {
	var category models.TestCategory
	if err := tc.DB.First(&category, c.Param("cat_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("category not found"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Category detail", category)
}

func (tc *TestCategoryController) UpdateCategory(c *gin.Context) {
	var category models.TestCategory
	if err := tc.DB.First(&category, c.Param("cat_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("category not found"))
		return
	}

	var input struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	category.Name = input.Name
	if err := tc.DB.Save(&category).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Category updated", category)
}

func (tc *TestCategoryController) DeleteCategory(c *gin.Context) {
	var count int64
	tc.DB.Model(&models.LabTest{}).Where("category_id = ?", c.Param("cat_id")).Count(&count)
	if count > 0 {
		utils.RespondError(c, http.StatusConflict, errors.New("category still has lab tests"))
		return
	}

	result := tc.DB.Delete(&models.TestCategory{}, c.Param("cat_id"))
	if result.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondError(c, http.StatusNotFound, errors.New("category not found"))
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Category deleted", nil)
}
