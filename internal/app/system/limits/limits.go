// internal/app/system/limits/limits.go
package limits

// Size limits for request bodies and socket frames.
// These limits help prevent memory exhaustion from oversized input.
const (
	// MaxJSONBodySize is the maximum size for REST request bodies.
	MaxJSONBodySize = 16 << 10 // 16 KB

	// MaxSocketFrameSize is the maximum size of one inbound websocket frame.
	MaxSocketFrameSize = 64 << 10 // 64 KB
)
