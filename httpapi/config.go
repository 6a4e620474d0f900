package httpapi

import "time"

// Config defines the command surface listener.
type Config struct {
	Addr string
	// ShutdownTimeout bounds graceful shutdown; zero uses a default.
	ShutdownTimeout time.Duration
}
