package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Attribute keys stamped by ContextHandler.
const (
	TickKey    = "tick"
	VehicleKey = "vehicle"
)

type vehicleKey struct{}

// WithVehicle tags ctx so that records logged through it carry the vehicle id.
func WithVehicle(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, vehicleKey{}, id)
}

// VehicleFrom returns the vehicle id stored by WithVehicle.
func VehicleFrom(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(vehicleKey{}).(string)
	return id, ok && id != ""
}

// ContextHandler stamps records with the world tick and, for records logged
// with a WithVehicle context, the vehicle id. Tick 0 (nothing stepped yet)
// is left off.
type ContextHandler struct {
	inner slog.Handler
	tick  *atomic.Uint64
}

// NewContextHandler wraps inner. tick may be nil.
func NewContextHandler(inner slog.Handler, tick *atomic.Uint64) *ContextHandler {
	return &ContextHandler{inner: inner, tick: tick}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.tick != nil {
		if n := h.tick.Load(); n > 0 {
			r.AddAttrs(slog.Uint64(TickKey, n))
		}
	}
	if id, ok := VehicleFrom(ctx); ok {
		r.AddAttrs(slog.String(VehicleKey, id))
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), tick: h.tick}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{inner: h.inner.WithGroup(name), tick: h.tick}
}
