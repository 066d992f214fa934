package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/repoviral/backend/internal/middleware"
	"github.com/repoviral/backend/internal/models"
	"github.com/repoviral/backend/internal/services"
	"gorm.io/gorm"
)

type HistoryHandler struct {
	db    *gorm.DB
	usage *services.UsageService
}

func NewHistoryHandler(db *gorm.DB, usage *services.UsageService) *HistoryHandler {
	return &HistoryHandler{db: db, usage: usage}
}

// List returns the caller's generated content, newest first.
func (h *HistoryHandler) List(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)

	var entries []models.ContentHistory
	if err := h.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&entries).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to load history",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    entries,
	})
}

// Profile returns the caller's usage record.
func (h *HistoryHandler) Profile(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)

	user, err := h.usage.Profile(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "User not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to load profile",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    user,
	})
}
