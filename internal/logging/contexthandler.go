package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	sessionKey ctxKey = iota
	turnKey
)

// WithSession tags ctx so records logged with it carry the session id.
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey, id)
}

// WithTurn tags ctx so records logged with it carry the turn number.
func WithTurn(ctx context.Context, turn uint32) context.Context {
	return context.WithValue(ctx, turnKey, turn)
}

// ContextProvider returns attributes to add to a record, typically read from live state.
type ContextProvider func(ctx context.Context) []slog.Attr

// FromContext is a ContextProvider that reads the session and turn set by WithSession
// and WithTurn.
func FromContext(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	if id, ok := ctx.Value(sessionKey).(string); ok {
		attrs = append(attrs, slog.String("session", id))
	}
	if turn, ok := ctx.Value(turnKey).(uint32); ok {
		attrs = append(attrs, slog.Any("turn", turn))
	}
	return attrs
}

// ContextHandler wraps another handler and injects dynamic attributes on every record.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
}

func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{inner: inner, provider: provider}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		r.AddAttrs(h.provider(ctx)...)
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), provider: h.provider}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{inner: h.inner.WithGroup(name), provider: h.provider}
}
