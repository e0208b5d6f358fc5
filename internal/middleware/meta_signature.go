package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const metaSignaturePrefix = "sha256="

// ValidateMetaSignature checks X-Hub-Signature-256 against the raw body
func ValidateMetaSignature(appSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		signature := c.Get("X-Hub-Signature-256")
		if !strings.HasPrefix(signature, metaSignaturePrefix) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing signature",
			})
		}

		if appSecret == "" {
			slog.Error("APP_SECRET not set, rejecting webhook")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Server configuration error",
			})
		}

		got, err := hex.DecodeString(strings.TrimPrefix(signature, metaSignaturePrefix))
		if err != nil || !hmac.Equal(got, MetaSignature(appSecret, c.Body())) {
			slog.Warn("invalid Meta signature", "path", c.Path(), "ip", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}

		return c.Next()
	}
}

// MetaSignature is the HMAC-SHA256 of body keyed with the app secret
func MetaSignature(appSecret string, body []byte) []byte {
	h := hmac.New(sha256.New, []byte(appSecret))
	h.Write(body)
	return h.Sum(nil)
}
