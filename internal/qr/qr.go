package qr

import (
	"github.com/gofiber/fiber/v2"
	qrCode "github.com/skip2/go-qrcode"

	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/router"
)

const imageSize = 256

// Generate
// @Summary     Render a QR code PNG
// @Description Renders the given data, typically a group invite link, as a QR image
// @Tags        Root
// @Produce     png
// @Param       data query string true "Data to encode"
// @Success     200
// @Router      /local-api/qr [get]
func Generate(c *fiber.Ctx) error {
	data := c.Query("data")
	if data == "" {
		return router.ResponseBadRequest(c, "data parameter is required")
	}

	png, err := qrCode.Encode(data, qrCode.Medium, imageSize)
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	return c.Send(png)
}
