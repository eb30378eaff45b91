package adapter

import (
	"context"
)

// Adapter exposes the VFS to the host through some protocol and can be
// managed alongside other long-running services.
//
// Lifecycle:
//  1. Creation: the adapter is built with its configuration and the VFS.
//  2. Startup: Serve starts the protocol server and blocks until shutdown.
//  3. Shutdown: Stop unmounts or closes the listener.
//
// Stop may be called concurrently with Serve and more than once.
type Adapter interface {
	// Serve starts the protocol server and blocks until the context is
	// cancelled or an unrecoverable error occurs. It returns nil on a
	// graceful shutdown.
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown. It must be idempotent.
	Stop(ctx context.Context) error

	// Protocol returns the human-readable protocol name, e.g. "FUSE".
	Protocol() string

	// Endpoint describes where the adapter is reachable, such as a host
	// mountpoint. Used for logging.
	Endpoint() string
}
