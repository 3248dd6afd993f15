// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for labflow.
//
// Values come from config files, LABFLOW_* environment variables, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, logging, CORS); everything below is
// specific to the realtime core.
//
// The realtime packages never read configuration themselves. Startup passes
// these values into their constructors.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Bearer token verification (tokens are issued elsewhere)
	TokenSecret string // HMAC secret shared with the token issuer
	TokenIssuer string // Expected "iss" claim; blank skips the check

	// WebSocket endpoint
	WSAllowedOrigins   []string      // Accepted Origin headers; empty accepts any
	WSHandshakeTimeout time.Duration // Upgrade plus token verification
	WSWriteWait        time.Duration // Deadline for a single outbound frame
	WSPongWait         time.Duration // Silence allowed before a socket is dropped
	WSSendBuffer       int           // Outbound frames queued per connection
	WSSweepInterval    time.Duration // How often dead connections are reclaimed
	WSHandshakeLimit   int           // Handshakes allowed per IP per window; 0 disables
	WSHandshakeWindow  time.Duration

	// Step workflow
	StepNotificationDue time.Duration // Due date offset for step notifications

	// Audit logging: "all", "db", "log" or "off"
	AuditLogSocket   string
	AuditLogWorkflow string
}
