package status

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/router"
)

// Controller reports the health of the realtime link.
type Controller struct {
	connected func() bool
}

func NewController(connected func() bool) *Controller {
	if connected == nil {
		connected = func() bool { return false }
	}
	return &Controller{connected: connected}
}

// Realtime
// @Summary     Realtime connection status
// @Tags        Root
// @Produce     json
// @Success     200
// @Router      /local-api/realtime/status [get]
func (ctl *Controller) Realtime(c *fiber.Ctx) error {
	return router.ResponseSuccessWithData(c, "Success get realtime status", fiber.Map{
		"connected": ctl.connected(),
	})
}
