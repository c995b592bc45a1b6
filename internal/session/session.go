package session

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/auth"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/log"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/router"
)

type requestLogin struct {
	Operator string `json:"operator"`
}

// Login
// @Summary     Issue an operator token
// @Description Exchanges the admin secret for a bearer token the console uses on later calls
// @Tags        Session
// @Accept      json
// @Produce     json
// @Success     200
// @Router      /local-api/session [post]
func Login(c *fiber.Ctx) error {
	var req requestLogin
	// Body is optional; an empty operator gets a default label.
	_ = c.BodyParser(&req)
	if req.Operator == "" {
		req.Operator = "operator"
	}

	token, err := auth.GenerateOperatorToken(req.Operator)
	if err != nil {
		log.Print(c).WithError(err).Error("Failed to issue operator token")
		return router.ResponseInternalError(c, err.Error())
	}

	log.Print(c).WithField("operator", req.Operator).Info("Operator session issued")
	return router.ResponseSuccessWithData(c, "Success create session", fiber.Map{
		"token": token,
	})
}
