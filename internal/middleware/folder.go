package middleware

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const FolderKey = "folder"

type batchRequest struct {
	Folder string `json:"folder"`
}

// FolderValidator checks the batch request body names an existing
// directory and stores its absolute path under FolderKey.
func FolderValidator() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req batchRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}

		dir := strings.TrimSpace(req.Folder)
		if dir == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "please select a folder",
			})
		}

		abs, err := filepath.Abs(dir)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid folder path",
			})
		}
		fi, err := os.Stat(abs)
		if err != nil || !fi.IsDir() {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "folder not found",
			})
		}

		c.Locals(FolderKey, abs)
		return c.Next()
	}
}
