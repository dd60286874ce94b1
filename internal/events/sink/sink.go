// Package sink mirrors progress events to external brokers.
package sink

import (
	"context"
	"encoding/json"

	"github.com/cuihairu/arcade/internal/ports"
)

// Sink publishes events outside the process. Implementations must be safe for
// use from one goroutine at a time.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev ports.Event) error
	Close() error
}

func encode(ev ports.Event) ([]byte, error) { return json.Marshal(ev) }

// Noop discards events.
type Noop struct{}

func NewNoop() *Noop                                  { return &Noop{} }
func (*Noop) Name() string                            { return "noop" }
func (*Noop) Send(context.Context, ports.Event) error { return nil }
func (*Noop) Close() error                            { return nil }
