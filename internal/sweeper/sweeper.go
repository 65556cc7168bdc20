package sweeper

import (
	"context"
)

// Sweeper is a background loop the API process runs next to the HTTP server,
// such as the cache refresher keeping configured classes warm.
type Sweeper interface {
	// Start blocks, running cycles until ctx is canceled or Stop is called.
	// Calling it on a sweeper that is already running is an error.
	Start(ctx context.Context) error

	// Stop signals the loop and waits for the in-flight cycle, or for ctx
	Stop(ctx context.Context) error

	Name() string
}
