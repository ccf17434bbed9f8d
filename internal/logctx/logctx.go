// Package logctx enriches slog records with request and conversation data
// carried in the context, so every log line emitted during a webhook turn
// identifies its request, session and intent without threading loggers
// through call chains.
package logctx

import (
	"context"
	"log/slog"
)

// Handler wraps another slog.Handler and appends grouped attributes from the
// context to every record.
type Handler struct {
	slog.Handler
}

// Wrap returns h wrapped in a Handler. Handlers that already carry the
// context enrichment are returned unchanged so that layered components can
// each wrap the logger they are handed without duplicating attributes.
func Wrap(h slog.Handler) slog.Handler {
	if _, ok := h.(Handler); ok {
		return h
	}
	return Handler{Handler: h}
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		r.AddAttrs(slog.Group("req",
			slog.String("id", rd.RequestID),
			slog.String("user_agent", rd.UserAgent),
			slog.String("remote_addr", rd.RemoteAddr),
			slog.String("path", rd.Path),
		))
	}

	if td, ok := ctx.Value(turnDataKey{}).(*TurnData); ok {
		r.AddAttrs(slog.Group("turn",
			slog.String("session", td.Session),
			slog.String("intent", td.Intent),
			slog.String("source", td.Source),
			slog.String("response_id", td.ResponseID),
		))
	}

	return h.Handler.Handle(ctx, r)
}

type requestDataKey struct{}

// RequestData identifies one HTTP webhook request.
type RequestData struct {
	RequestID  string
	UserAgent  string
	RemoteAddr string
	Path       string
}

func WithRequestData(ctx context.Context, data *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, data)
}

type turnDataKey struct{}

// TurnData identifies one conversational turn inside a webhook request.
type TurnData struct {
	Session    string
	Intent     string
	Source     string
	ResponseID string
}

func WithTurnData(ctx context.Context, data *TurnData) context.Context {
	return context.WithValue(ctx, turnDataKey{}, data)
}
