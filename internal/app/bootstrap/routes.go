// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	auditfeature "github.com/dalemusser/labflow/internal/app/features/auditlog"
	chatfeature "github.com/dalemusser/labflow/internal/app/features/chat"
	healthfeature "github.com/dalemusser/labflow/internal/app/features/health"
	presencefeature "github.com/dalemusser/labflow/internal/app/features/presence"
	socketfeature "github.com/dalemusser/labflow/internal/app/features/socket"
	statusfeature "github.com/dalemusser/labflow/internal/app/features/status"
	stepsfeature "github.com/dalemusser/labflow/internal/app/features/steps"
	todosfeature "github.com/dalemusser/labflow/internal/app/features/todomessages"
	userinfofeature "github.com/dalemusser/labflow/internal/app/features/userinfo"
	"github.com/dalemusser/labflow/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed. labflow serves:
//   - /health and /metrics for operators
//   - /ws, the authenticated websocket endpoint
//   - /api/*, the bearer-token REST surface over the same stores
//   - /api/admin/*, audit and socket status views for admins
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if svc == nil {
		return nil, errNotStarted
	}
	return newRouter(svc, appCfg, deps, logger), nil
}

func newRouter(s *services, appCfg AppConfig, deps DBDeps, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, s.registry, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Handle("/metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))

	// WebSocket endpoint. The token travels in the query string, so it is
	// checked inside the handler rather than by LoadUser.
	socketHandler := socketfeature.NewHandler(
		s.verifier, s.registry, s.router, s.presence, s.dispatcher,
		s.limiter, s.audit, s.metrics, logger,
		socketfeature.Options{
			AllowedOrigins: appCfg.WSAllowedOrigins,
			SendBuffer:     appCfg.WSSendBuffer,
			PongWait:       appCfg.WSPongWait,
		})
	r.Mount("/ws", socketfeature.Routes(socketHandler))

	r.Group(func(api chi.Router) {
		// Loads the bearer identity when present; /api/me answers anonymous callers too.
		api.Use(auth.LoadUser(s.verifier, logger))

		userinfofeature.MountRoutes(api, userinfofeature.NewHandler(s.registry))

		api.Route("/api", func(pr chi.Router) {
			pr.Use(auth.RequireSignedIn)

			todosHandler := todosfeature.NewHandler(s.todos, s.dispatcher, logger)
			pr.Mount("/todo-messages", todosfeature.Routes(todosHandler))

			chatHandler := chatfeature.NewHandler(s.chats, logger)
			pr.Mount("/chat", chatfeature.Routes(chatHandler))

			stepsHandler := stepsfeature.NewHandler(s.steps, s.notifier, logger)
			pr.Mount("/steps", stepsfeature.Routes(stepsHandler))

			presenceHandler := presencefeature.NewHandler(s.registry)
			pr.Mount("/presence", presencefeature.Routes(presenceHandler))

			// Operator views; each subrouter enforces the admin role.
			auditHandler := auditfeature.NewHandler(s.auditStore, s.users, logger)
			pr.Mount("/admin/audit", auditfeature.Routes(auditHandler))

			statusHandler := statusfeature.NewHandler(s.registry, appCfg.MongoDatabase, s.started, logger)
			pr.Mount("/admin/status", statusfeature.Routes(statusHandler))
		})
	})

	return r
}
