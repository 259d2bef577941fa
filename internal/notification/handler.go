package notification

import (
	"context"
	"fmt"
	"sort"

	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/fystack/payment-gateway/pkg/common/types"
)

// Result tells the dispatcher what to do with a record.
type Result int

const (
	// Deferred leaves the record for the next poll until its TTL runs out.
	Deferred Result = iota
	// Handled deletes the record.
	Handled
	// NotMine is returned for records of another type.
	NotMine
)

func (r Result) String() string {
	switch r {
	case Handled:
		return "handled"
	case NotMine:
		return "not_mine"
	default:
		return "deferred"
	}
}

type Handler interface {
	Type() enum.NotificationType
	Handle(ctx context.Context, record types.NotificationRecord) (Result, error)
}

// Registry maps each notification type to its handler.
type Registry struct {
	handlers map[enum.NotificationType]Handler
}

func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[enum.NotificationType]Handler, len(handlers))}
	for _, h := range handlers {
		if _, dup := r.handlers[h.Type()]; dup {
			return nil, fmt.Errorf("duplicate handler for %s notifications", h.Type())
		}
		r.handlers[h.Type()] = h
	}
	return r, nil
}

func (r *Registry) Get(t enum.NotificationType) (Handler, bool) {
	h, ok := r.handlers[t]
	return h, ok
}

// Types returns the registered types in a stable order.
func (r *Registry) Types() []enum.NotificationType {
	out := make([]enum.NotificationType, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
