package app

import (
	"log/slog"

	"github.com/empirewand/wandcore/internal/command"
	"github.com/empirewand/wandcore/internal/handler"
	"github.com/empirewand/wandcore/internal/infra"
	"github.com/empirewand/wandcore/internal/service"
	"github.com/go-chi/chi/v5"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Service     *service.WandService
	Dispatcher  *command.Dispatcher
	Ping        infra.PingFunc
	CORSOrigins string
	Logger      *slog.Logger
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	commands := handler.NewCommandHandler(deps.Dispatcher)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(deps.Logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(deps.Logger))
	r.Use(handler.CORSWithOrigins(deps.CORSOrigins))
	r.Use(handler.JSONContentType)

	r.Get("/health", handler.HealthHandler(deps.Service, deps.Ping))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/{namespace}/{subcommand}", commands.Execute)
	})

	return r
}
