package invoicerouter

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
)

// DefaultBodyLimit caps POSTed invoice payloads.
const DefaultBodyLimit = 4 * 1024 * 1024

// NewFiberServer builds a Fiber-backed go-router server with the invoice
// routes registered.
func NewFiberServer(cfg Config, appName string) router.Server[*fiber.App] {
	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		return fiber.New(fiber.Config{
			AppName:   appName,
			BodyLimit: DefaultBodyLimit,
		})
	})
	NewHandler(cfg).RegisterRoutes(srv.Router())
	return srv
}
