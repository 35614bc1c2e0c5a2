package logging

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

// maxSinkFailures is the number of consecutive write failures after which a
// sink is muted for the rest of the run.
const maxSinkFailures = 3

// Sink is a named log destination.
type Sink struct {
	Name    string
	Handler slog.Handler
}

// sinkState is shared by every clone of a MultiHandler so that WithAttrs
// loggers see the same failure count.
type sinkState struct {
	name     string
	failures atomic.Int32
	muted    atomic.Bool
}

// MultiHandler fans out records to several sinks, typically the log file and
// Graylog. A sink that keeps failing is muted so a dead Graylog connection
// does not cost a network write per record. Handle only reports an error when
// no sink accepted the record.
type MultiHandler struct {
	handlers []slog.Handler
	states   []*sinkState
}

// NewMultiHandler creates a handler over sinks. Sinks with a nil handler are
// dropped.
func NewMultiHandler(sinks ...Sink) *MultiHandler {
	m := &MultiHandler{}
	for _, s := range sinks {
		if s.Handler == nil {
			continue
		}
		m.handlers = append(m.handlers, s.Handler)
		m.states = append(m.states, &sinkState{name: s.Name})
	}
	return m
}

// Muted lists the sinks that have been switched off.
func (m *MultiHandler) Muted() []string {
	var names []string
	for _, s := range m.states {
		if s.muted.Load() {
			names = append(names, s.name)
		}
	}
	return names
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for i, h := range m.handlers {
		if !m.states[i].muted.Load() && h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	delivered := false
	for i, h := range m.handlers {
		st := m.states[i]
		if st.muted.Load() || !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
			if st.failures.Add(1) >= maxSinkFailures && st.muted.CompareAndSwap(false, true) {
				m.announceMuted(ctx, st.name, err)
			}
			continue
		}
		st.failures.Store(0)
		delivered = true
	}
	if delivered {
		return nil
	}
	return errors.Join(errs...)
}

// announceMuted tells the remaining sinks that name went quiet.
func (m *MultiHandler) announceMuted(ctx context.Context, name string, cause error) {
	r := slog.NewRecord(timeNow(), slog.LevelWarn, "Log sink muted after repeated failures", 0)
	r.AddAttrs(slog.String("sink", name), slog.String("error", cause.Error()))
	for i, h := range m.handlers {
		if m.states[i].muted.Load() || !h.Enabled(ctx, r.Level) {
			continue
		}
		_ = h.Handle(ctx, r.Clone())
	}
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: handlers, states: m.states}
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &MultiHandler{handlers: handlers, states: m.states}
}
