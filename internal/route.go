package internal

import (
	"github.com/gofiber/fiber/v2"
	swagger "github.com/gofiber/swagger"

	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/auth"
	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/router"

	ctlIndex "github.com/dotanrosenberg-oss/ImagineAgentClient/internal/index"
	ctlQR "github.com/dotanrosenberg-oss/ImagineAgentClient/internal/qr"
	ctlSession "github.com/dotanrosenberg-oss/ImagineAgentClient/internal/session"
)

func (a *App) Routes(app *fiber.App) {
	// Configure OpenAPI / Swagger
	specURL := router.BaseURL + "/docs/swagger.json"
	swaggerHandler := swagger.New(swagger.Config{
		URL: specURL,
	})

	// Route for Index
	// ---------------------------------------------
	if router.BaseURL == "" {
		app.Get("/", ctlIndex.Index)
	} else {
		app.Get(router.BaseURL, ctlIndex.Index)
		app.Get(router.BaseURL+"/", ctlIndex.Index)
	}

	// Route for OpenAPI / Swagger
	// ---------------------------------------------
	app.Get(router.BaseURL+"/docs/swagger.json", func(c *fiber.Ctx) error {
		return c.SendFile("docs/swagger.json")
	})
	app.Get(router.BaseURL+"/docs/*", swaggerHandler)

	base := router.BaseURL + "/local-api"

	// Session issuance is guarded by the admin secret; everything else on
	// /local-api takes the resulting bearer token or the static API key.
	app.Post(base+"/session", auth.AdminAuth(), ctlSession.Login)

	api := app.Group(base, auth.OperatorAuth())

	// Action registry
	// ---------------------------------------------
	api.Post("/actions/execute", a.actions.Execute)
	api.Get("/actions/:type", a.actions.List)
	api.Post("/actions/:type", a.actions.Upsert)
	api.Delete("/actions/:type/:id", a.actions.Delete)

	// Chat task cache
	// ---------------------------------------------
	api.Post("/chat-tasks", a.tasks.Upsert)
	api.Get("/chat-tasks/:chat_id", a.tasks.List)
	api.Post("/chat-tasks/:chat_id/refresh", a.tasks.Refresh)

	// Dashboard + realtime health
	// ---------------------------------------------
	api.Get("/dashboard", a.dashboard.Summary)
	api.Get("/realtime/status", a.status.Realtime)

	// Automation server relays
	// ---------------------------------------------
	api.Post("/forward", a.proxy.Forward)
	api.Post("/groups/set-image", a.proxy.SetGroupImage)
	api.Get("/image-proxy", a.proxy.ImageProxy)
	api.Get("/qr", ctlQR.Generate)
}
