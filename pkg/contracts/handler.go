package contracts

import (
	"context"

	"github.com/julienschmidt/httprouter"
)

// Handler mounts a group of routes on the shared router.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// Pinger is a dependency the service cannot serve without. Readiness
// fails while any registered Pinger errors.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }
