package webhooks

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"appgate/pkg/logger"
)

// Event is one verified delivery. Deliveries are at-least-once, so handlers must be idempotent.
type Event struct {
	Topic      string
	TenantID   string
	DeliveryID string
	Payload    []byte
	Signature  string
}

type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

type HandlerFunc func(ctx context.Context, ev Event) error

func (f HandlerFunc) Handle(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Dispatcher maps topics to handlers. Registration normally happens at startup, but the
// registry is safe for concurrent use.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	log      *zap.SugaredLogger
}

func NewDispatcher(log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{handlers: map[string]Handler{}, log: logger.OrNop(log)}
}

func normTopic(t string) string { return strings.ToLower(strings.TrimSpace(t)) }

// Register binds h to topic, replacing any previous handler.
func (d *Dispatcher) Register(topic string, h Handler) {
	d.mu.Lock()
	d.handlers[normTopic(topic)] = h
	d.mu.Unlock()
}

func (d *Dispatcher) Handles(topic string) bool {
	d.mu.RLock()
	_, ok := d.handlers[normTopic(topic)]
	d.mu.RUnlock()
	return ok
}

func (d *Dispatcher) Topics() []string {
	d.mu.RLock()
	out := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		out = append(out, t)
	}
	d.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Dispatch runs the handler for ev.Topic. Unknown topics are dropped and return nil.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	d.mu.RLock()
	h, ok := d.handlers[normTopic(ev.Topic)]
	d.mu.RUnlock()
	if !ok {
		d.log.Infow("webhook topic not handled", "topic", ev.Topic, "shop", ev.TenantID, "delivery", ev.DeliveryID)
		return nil
	}
	return h.Handle(ctx, ev)
}
