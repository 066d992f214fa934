package handlers

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/repoviral/backend/internal/ai"
	"github.com/repoviral/backend/internal/config"
	"github.com/repoviral/backend/internal/github"
	"github.com/repoviral/backend/internal/middleware"
	"github.com/repoviral/backend/internal/models"
	"github.com/repoviral/backend/internal/scanner"
	"github.com/repoviral/backend/internal/services"
	"gorm.io/gorm"
)

type GenerateHandler struct {
	cfg       *config.Config
	db        *gorm.DB
	usage     *services.UsageService
	generator *ai.Generator
}

func NewGenerateHandler(cfg *config.Config, db *gorm.DB, usage *services.UsageService, generator *ai.Generator) *GenerateHandler {
	return &GenerateHandler{
		cfg:       cfg,
		db:        db,
		usage:     usage,
		generator: generator,
	}
}

type generateRequest struct {
	URL  string `json:"url"`
	Tone string `json:"tone"`
	// Optional GitHub token; its presence selects the deep-scan path.
	GithubToken string `json:"github_token"`
}

// Generate runs the full pipeline: quota check, repository scan, content
// generation, best-effort history write.
func (h *GenerateHandler) Generate(c *fiber.Ctx) error {
	userID := middleware.GetCurrentUserID(c)
	email := middleware.GetCurrentEmail(c)

	var req generateRequest
	if err := c.BodyParser(&req); err != nil || req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body: url is required",
		})
	}
	if req.Tone == "" {
		req.Tone = ai.ToneEducator
	}

	if err := h.usage.CheckAndConsume(userID, email); err != nil {
		if errors.Is(err, services.ErrLimitReached) {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"success": false,
				"message": "Free limit reached. Upgrade to Pro.",
			})
		}
		log.Printf("usage check failed for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Usage check failed",
		})
	}

	sc := scanner.New(github.NewClient(req.GithubToken))
	deep := req.GithubToken != ""

	var repoContext string
	if deep {
		bundle, err := sc.Deep(c.UserContext(), req.URL)
		if err != nil {
			return scanError(c, err)
		}
		repoContext = ai.DeepPrompt(bundle)
	} else {
		var err error
		repoContext, err = sc.Shallow(c.UserContext(), req.URL)
		if err != nil {
			return scanError(c, err)
		}
	}

	content, err := h.generator.Generate(c.UserContext(), repoContext, req.Tone, deep)
	if err != nil {
		log.Printf("content generation failed for %s: %v", req.URL, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "AI generation failed",
		})
	}

	// History is best-effort and never delays the response.
	go h.saveHistory(userID, req.URL, req.Tone, content)

	return c.JSON(content)
}

func scanError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, github.ErrInvalidRepoURL):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid GitHub URL. format: https://github.com/owner/repo",
		})
	case errors.Is(err, github.ErrAuthExpired):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "GitHub token expired or invalid",
		})
	default:
		log.Printf("repository scan failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"message": "Failed to fetch repository data",
		})
	}
}

func (h *GenerateHandler) saveHistory(userID, repoURL, tone string, content *ai.GeneratedContent) {
	blob, err := json.Marshal(content)
	if err != nil {
		log.Printf("history marshal failed for %s: %v", userID, err)
		return
	}

	entry := models.ContentHistory{
		UserID:           userID,
		RepoURL:          repoURL,
		Platform:         "all",
		ToneUsed:         tone,
		GeneratedContent: string(blob),
	}
	if err := h.db.Create(&entry).Error; err != nil {
		log.Printf("history write failed for %s: %v", userID, err)
	}
}
