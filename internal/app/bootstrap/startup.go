// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/labflow/internal/app/store/audit"
	"github.com/dalemusser/labflow/internal/app/store/chatmessages"
	stepstore "github.com/dalemusser/labflow/internal/app/store/steps"
	"github.com/dalemusser/labflow/internal/app/store/tasks"
	"github.com/dalemusser/labflow/internal/app/store/todomessages"
	userstore "github.com/dalemusser/labflow/internal/app/store/users"
	"github.com/dalemusser/labflow/internal/app/system/auditlog"
	"github.com/dalemusser/labflow/internal/app/system/auth"
	"github.com/dalemusser/labflow/internal/app/system/metrics"
	"github.com/dalemusser/labflow/internal/app/system/ratelimit"
	"github.com/dalemusser/labflow/internal/app/system/realtime"
	"github.com/dalemusser/labflow/internal/app/system/stepnotify"
	"github.com/dalemusser/labflow/internal/app/system/timeouts"
	"github.com/dalemusser/labflow/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// services is the composition root: every long-lived component of the
// realtime core, built once in Startup and shared by BuildHandler and
// Shutdown.
type services struct {
	started time.Time

	promReg *prometheus.Registry
	metrics *metrics.Metrics

	verifier auth.Verifier
	limiter  *ratelimit.HandshakeLimiter
	audit    *auditlog.Logger

	registry   *realtime.Registry
	router     *realtime.Router
	presence   *realtime.Presence
	dispatcher *realtime.Dispatcher
	notifier   *stepnotify.Notifier
	sweep      *workers.ConnectionSweep

	chats *chatmessages.Store
	todos *todomessages.Store
	steps *stepstore.Store
	users *userstore.Store

	auditStore *audit.Store
}

// svc holds the services built by Startup. WAFFLE passes only config and
// DBDeps between hooks, so the later hooks read it from here.
var svc *services

var errNotStarted = errors.New("bootstrap: Startup has not run")

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It builds
// the connection registry and everything that hangs off it, then starts the
// dead-connection sweep.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Handshake: appCfg.WSHandshakeTimeout,
		Write:     appCfg.WSWriteWait,
	})

	svc = newServices(appCfg, deps.MongoDatabase, logger)
	svc.sweep.Start()

	logger.Info("realtime core started",
		zap.Duration("handshake_timeout", appCfg.WSHandshakeTimeout),
		zap.Duration("pong_wait", appCfg.WSPongWait),
		zap.Int("send_buffer", appCfg.WSSendBuffer),
		zap.Strings("allowed_origins", appCfg.WSAllowedOrigins))
	return nil
}

// newServices wires the realtime core against db. It starts nothing.
func newServices(appCfg AppConfig, db *mongo.Database, logger *zap.Logger) *services {
	s := &services{started: time.Now(), promReg: prometheus.NewRegistry()}
	s.promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metrics = metrics.New(s.promReg)

	s.chats = chatmessages.New(db)
	s.todos = todomessages.New(db)
	s.steps = stepstore.New(db)
	s.users = userstore.New(db)
	s.auditStore = audit.New(db)

	s.audit = auditlog.New(s.auditStore, logger, auditlog.Config{
		Socket:   appCfg.AuditLogSocket,
		Workflow: appCfg.AuditLogWorkflow,
	})
	s.verifier = auth.NewJWTVerifier(appCfg.TokenSecret, appCfg.TokenIssuer)
	s.limiter = ratelimit.NewHandshakeLimiter(appCfg.WSHandshakeLimit, appCfg.WSHandshakeWindow)

	s.registry = realtime.NewRegistry(s.metrics)
	s.router = realtime.NewRouter(s.registry, logger, s.metrics, appCfg.WSWriteWait)
	s.presence = realtime.NewPresence(s.router, logger)
	s.dispatcher = realtime.NewDispatcher(s.router, s.chats, s.todos, s.users, logger, s.metrics)
	s.notifier = &stepnotify.Notifier{
		Steps:    s.steps,
		Tasks:    tasks.New(db),
		Todos:    s.todos,
		Live:     s.router,
		Audit:    s.audit,
		Metrics:  s.metrics,
		Logger:   logger,
		DueAfter: appCfg.StepNotificationDue,
	}
	s.sweep = workers.NewConnectionSweep(s.registry, s.presence, logger, appCfg.WSSweepInterval)
	return s
}
