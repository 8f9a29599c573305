package middleware

import (
	"bytes"
	"html"
	"strings"

	"github.com/arzan03/tourbook/internal/apperror"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
)

const contentSecurityPolicy = "default-src 'self' data: blob:; " +
	"base-uri 'self'; " +
	"font-src 'self' https: data:; " +
	"script-src 'self' https://*.cloudflare.com https://*.stripe.com https://*.mapbox.com; " +
	"frame-src 'self' https://*.stripe.com; " +
	"object-src 'none'; " +
	"style-src 'self' https: 'unsafe-inline'; " +
	"worker-src 'self' data: blob:; " +
	"child-src 'self' blob:; " +
	"img-src 'self' data: blob:; " +
	"connect-src 'self' blob: https://*.mapbox.com; " +
	"upgrade-insecure-requests"

// SecurityHeaders sets the standard hardening headers with a CSP that allows the map and
// payment scripts.
func SecurityHeaders() fiber.Handler {
	return helmet.New(helmet.Config{
		ContentSecurityPolicy: contentSecurityPolicy,
	})
}

// BodyCap rejects JSON and form bodies larger than limit. Multipart uploads are bounded by the
// server-wide limit instead.
func BodyCap(limit int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ct := string(c.Request().Header.ContentType())
		if (strings.HasPrefix(ct, fiber.MIMEApplicationJSON) || strings.HasPrefix(ct, fiber.MIMEApplicationForm)) &&
			len(c.Body()) > limit {
			return apperror.New(apperror.KindPayloadTooLarge, fiber.StatusRequestEntityTooLarge,
				"Request body is too large.")
		}
		return c.Next()
	}
}

// passwordFields are left untouched by HTML escaping.
var passwordFields = map[string]bool{
	"password":        true,
	"passwordConfirm": true,
	"passwordCurrent": true,
}

// Sanitize strips operator keys from JSON bodies and the query string and HTML-escapes string
// values.
func Sanitize() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sanitizeQuery(c)

		ct := string(c.Request().Header.ContentType())
		if !strings.HasPrefix(ct, fiber.MIMEApplicationJSON) {
			return c.Next()
		}
		body := c.Body()
		if len(bytes.TrimSpace(body)) == 0 {
			return c.Next()
		}

		var payload any
		if err := json.Unmarshal(body, &payload); err != nil {
			return apperror.Validation("Invalid JSON body.")
		}
		clean, err := json.Marshal(sanitizeValue("", payload))
		if err != nil {
			return apperror.Internal(err)
		}
		c.Request().SetBody(clean)
		return c.Next()
	}
}

func sanitizeQuery(c *fiber.Ctx) {
	args := c.Request().URI().QueryArgs()
	var drop []string
	args.VisitAll(func(key, _ []byte) {
		if bytes.ContainsRune(key, '$') {
			drop = append(drop, string(key))
		}
	})
	for _, k := range drop {
		args.Del(k)
	}
}

func sanitizeValue(key string, v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if strings.HasPrefix(k, "$") || strings.Contains(k, ".") {
				continue
			}
			out[k] = sanitizeValue(k, val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = sanitizeValue(key, val)
		}
		return out
	case string:
		if passwordFields[key] {
			return t
		}
		return html.EscapeString(t)
	default:
		return v
	}
}
