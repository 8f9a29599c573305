package handlers

import (
	"context"
	"io"
	"mime"
	"path/filepath"

	"github.com/arzan03/tourbook/internal/models"
	"github.com/gofiber/fiber/v2"
)

// PhotoSource opens stored user photos.
type PhotoSource interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// UserPhoto streams an uploaded photo from object storage. The default photo and anything the
// store cannot open fall through to the static files.
func UserPhoto(src PhotoSource) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := filepath.Base(c.Params("key"))
		if src == nil || key == models.DefaultPhoto {
			return c.Next()
		}
		obj, err := src.Get(c.UserContext(), key)
		if err != nil {
			return c.Next()
		}
		data, err := io.ReadAll(obj)
		_ = obj.Close()
		if err != nil || len(data) == 0 {
			return c.Next()
		}
		if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
			c.Set(fiber.HeaderContentType, ct)
		}
		c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
		return c.Send(data)
	}
}
