// Package router parses raw push frames and dispatches typed messages to
// topic handlers.
//
// Dispatch is synchronous and in registration order. A panicking handler is
// isolated: it is logged and counted, and the remaining handlers for the
// same message still run. A malformed frame is logged and dropped; it is
// never escalated to a connection-level error.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tutorbase/realtime/internal/metrics"
	"github.com/tutorbase/realtime/internal/model"
	"github.com/tutorbase/realtime/internal/subscription"
)

// ErrMissingType marks a frame whose envelope has no "type" field.
var ErrMissingType = errors.New("message has no type field")

// Parse decodes a raw frame into a Message. A frame that is not a JSON
// object, or lacks a "type" field, is a parse error.
func Parse(raw []byte) (model.Message, error) {
	var msg model.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return model.Message{}, fmt.Errorf("decode frame: %w", err)
	}
	if msg.Type == "" {
		return model.Message{}, ErrMissingType
	}
	return msg, nil
}

// Stats contains runtime routing statistics.
type Stats struct {
	Received      int64
	Dispatched    int64
	ParseErrors   int64
	HandlerPanics int64
	Unrouted      int64
}

// Router dispatches parsed messages to the subscription registry's handlers.
type Router struct {
	registry *subscription.Registry
	logger   *slog.Logger
	met      *metrics.Set

	mu            sync.Mutex
	received      int64
	dispatched    int64
	parseErrors   int64
	handlerPanics int64
	unrouted      int64
}

// New creates a Router over the given registry. met may be nil.
func New(registry *subscription.Registry, logger *slog.Logger, met *metrics.Set) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		registry: registry,
		logger:   logger,
		met:      met,
	}
}

// Route parses a raw frame and dispatches it. Parse failures are logged,
// counted, and returned so the caller can observe them; they carry no other
// consequence.
func (r *Router) Route(raw []byte) error {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	msg, err := Parse(raw)
	if err != nil {
		r.logger.Warn("dropping malformed frame", "error", err)
		r.met.IncParseErrors()
		r.mu.Lock()
		r.parseErrors++
		r.mu.Unlock()
		return err
	}

	r.Dispatch(msg)
	return nil
}

// Dispatch invokes every handler registered for the message's topic, in
// registration order. Handlers for other topics never see the message.
func (r *Router) Dispatch(msg model.Message) {
	handlers := r.registry.Handlers(msg.Type)
	if len(handlers) == 0 {
		r.logger.Debug("no handlers for topic", "type", msg.Type)
		r.mu.Lock()
		r.unrouted++
		r.mu.Unlock()
		return
	}

	for _, h := range handlers {
		r.invoke(h, msg)
	}

	r.met.IncRouted(msg.Type)
	r.mu.Lock()
	r.dispatched++
	r.mu.Unlock()
}

// invoke runs one handler with panic isolation.
func (r *Router) invoke(h subscription.Handler, msg model.Message) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panic", "type", msg.Type, "panic", rec)
			r.met.IncHandlerPanics()
			r.mu.Lock()
			r.handlerPanics++
			r.mu.Unlock()
		}
	}()

	h(msg)
}

// Stats returns current routing statistics.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		Received:      r.received,
		Dispatched:    r.dispatched,
		ParseErrors:   r.parseErrors,
		HandlerPanics: r.handlerPanics,
		Unrouted:      r.unrouted,
	}
}
