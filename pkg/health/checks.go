package health

import (
	"context"
	"fmt"
)

// Pinger is any dependency with a liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck probes p. Failure of a required dependency marks the component
// down; an optional one only degrades it.
func PingCheck(p Pinger, required bool) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := p.Ping(ctx); err != nil {
			status := StatusDegraded
			if required {
				status = StatusDown
			}
			return ComponentHealth{Status: status, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// BreakerCheck reports a provider as degraded while its circuit breaker is
// not closed.
func BreakerCheck(state func() string) Check {
	return func(ctx context.Context) ComponentHealth {
		s := state()
		if s == "closed" {
			return ComponentHealth{Status: StatusUp}
		}
		return ComponentHealth{Status: StatusDegraded, Message: "circuit " + s}
	}
}

// IndexCheck reports the exact-match index as degraded while it is empty.
func IndexCheck(documents func() int) Check {
	return func(ctx context.Context) ComponentHealth {
		n := documents()
		if n == 0 {
			return ComponentHealth{Status: StatusDegraded, Message: "index is empty"}
		}
		return ComponentHealth{Status: StatusUp, Message: fmt.Sprintf("%d documents", n)}
	}
}
