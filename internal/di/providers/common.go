// Package providers contains dependency injection providers for the agent.
package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown
	// of the HTTP server.
	shutdownTimeout = 10 * time.Second
)
