package handler

import (
	"database/sql"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"

	"docflow/internal/auth"
	"docflow/internal/http/middleware"
	"docflow/internal/service"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	DB       *sql.DB
	Docs     service.DocumentService
	Verifier auth.Verifier
	// CallbackToken guards the worker callback. Empty disables it.
	CallbackToken string
	// Gatherer backs /metrics. Nil skips the route.
	Gatherer prometheus.Gatherer
	// SwaggerInfo is updated per request with the caller's host and scheme. Nil skips /swagger.
	SwaggerInfo *swag.Spec
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())

	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	if d.SwaggerInfo != nil {
		info := d.SwaggerInfo
		var mu sync.Mutex
		app.Get("/swagger/*", func(c *fiber.Ctx) error {
			mu.Lock()
			defer mu.Unlock()

			scheme := c.Protocol()
			if proto := c.Get("X-Forwarded-Proto"); proto != "" {
				scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
			}
			info.Host = c.Get("Host")
			info.Schemes = []string{scheme}
			return swagger.HandlerDefault(c)
		})
	}

	api := app.Group("/api")

	docs := api.Group("/documents", middleware.Auth(d.Verifier))
	docs.Post("/", UploadDocument(d.Docs))
	docs.Post("/batch", UploadDocuments(d.Docs))
	docs.Get("/", ListDocuments(d.Docs))
	docs.Get("/:id", GetDocument(d.Docs))
	docs.Delete("/:id", DeleteDocument(d.Docs))
	docs.Get("/:id/url", GetDocumentURL(d.Docs))
	docs.Get("/:id/content", DownloadDocument(d.Docs))

	callbacks := api.Group("/callbacks", middleware.CallbackAuth(d.CallbackToken))
	callbacks.Patch("/documents/:id/status", UpdateDocumentStatus(d.Docs))
}
