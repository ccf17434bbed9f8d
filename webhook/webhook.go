// Package webhook serves intent fulfillment over HTTP. It decodes webhook
// requests from the request body, dispatches them to a RequestHandler and
// writes the webhook response back, taking care of method and content-type
// enforcement, caller authentication and request-scoped logging so that the
// fulfillment logic itself stays transport-free.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/ggoodman/dialogflow-agent-go/dialogflow"
	"github.com/ggoodman/dialogflow-agent-go/internal/logctx"
)

const (
	authorizationHeader   = "Authorization"
	wwwAuthenticateHeader = "WWW-Authenticate"
)

var jsonMediaType = contenttype.NewMediaType("application/json")

// RequestHandler turns one decoded webhook request into a response. The
// root package's Agent is the canonical implementation; anything with the
// same shape can be served.
type RequestHandler interface {
	HandleRequest(ctx context.Context, req *dialogflow.WebhookRequest) (*dialogflow.WebhookResponse, error)
}

// Option configures the Handler.
type Option func(*newConfig)

type newConfig struct {
	logger     *slog.Logger
	auth       Authenticator
	authHeader string
	timeout    time.Duration
}

// WithLogger sets the logger used by the handler. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(c *newConfig) { c.logger = log }
}

// WithAuthenticator requires every request to present a credential accepted
// by the given Authenticator. Without this option requests are served
// unauthenticated, which suits endpoints protected by other means such as
// private networking or a fronting gateway.
func WithAuthenticator(a Authenticator) Option {
	return func(c *newConfig) { c.auth = a }
}

// WithAuthHeader names the request header carrying the credential. The
// default is the Authorization header with a mandatory Bearer prefix; any
// other header is read verbatim, matching the custom header name and value
// pairs the Dialogflow console can attach to fulfillment calls.
func WithAuthHeader(name string) Option {
	return func(c *newConfig) { c.authHeader = name }
}

// WithRequestTimeout bounds the time spent fulfilling one request. The
// platform abandons webhook calls after a few seconds, so capping
// server-side work avoids computing responses nobody will read.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *newConfig) { c.timeout = d }
}

// Handler serves fulfillment requests over HTTP. It accepts POST requests
// with an application/json body at whatever path it is mounted on.
type Handler struct {
	log        *slog.Logger
	handler    RequestHandler
	auth       Authenticator
	authHeader string
	timeout    time.Duration
}

// NewHandler wraps a RequestHandler for serving. Mount the result wherever
// the agent's fulfillment URL points, e.g. mux.Handle("/webhook", h).
func NewHandler(rh RequestHandler, opts ...Option) *Handler {
	cfg := &newConfig{logger: slog.Default(), authHeader: authorizationHeader}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Handler{
		log:        slog.New(logctx.Wrap(cfg.logger.Handler())),
		handler:    rh,
		auth:       cfg.auth,
		authHeader: cfg.authHeader,
		timeout:    cfg.timeout,
	}
}

// writeJSONError emits a minimal JSON body for HTTP-layer rejections. Shape:
// {"error":{"code":<httpStatus>,"message":"<reason>"}}
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		h.log.WarnContext(ctx, "method.not_allowed", slog.String("method", r.Method))
		return
	}

	h.handlePost(ctx, w, r)
}

func (h *Handler) handlePost(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	h.log.InfoContext(ctx, "http.post.start")

	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		writeJSONError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		h.log.WarnContext(ctx, "content_type.unsupported")
		return
	}

	if h.auth != nil {
		caller := h.checkAuthentication(ctx, r, w)
		if caller == nil {
			h.log.InfoContext(ctx, "auth.fail")
			return
		}
		h.log.InfoContext(ctx, "auth.ok", slog.String("sub", caller.Subject()))
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "reading request body failed")
		h.log.WarnContext(ctx, "body.read.fail", slog.String("err", err.Error()))
		return
	}

	req, err := dialogflow.ParseWebhookRequest(body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid webhook request: "+err.Error())
		h.log.WarnContext(ctx, "request.parse.fail", slog.String("err", err.Error()))
		return
	}

	var intent, source string
	if it := req.QueryResult.Intent; it != nil {
		intent = it.DisplayName
	}
	if odir := req.OriginalDetectIntentRequest; odir != nil {
		source = odir.Source
	}
	ctx = logctx.WithTurnData(ctx, &logctx.TurnData{
		Session:    req.Session,
		Intent:     intent,
		Source:     source,
		ResponseID: req.ResponseID,
	})

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	resp, err := h.handler.HandleRequest(ctx, req)
	if err != nil {
		if errors.Is(err, dialogflow.ErrMalformedRequest) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			h.log.WarnContext(ctx, "request.invalid", slog.String("err", err.Error()))
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "fulfillment failed")
		h.log.ErrorContext(ctx, "fulfillment.fail", slog.String("err", err.Error()))
		return
	}

	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.ErrorContext(ctx, "response.write.fail", slog.String("err", err.Error()))
		return
	}
	h.log.InfoContext(ctx, "http.post.ok", slog.Duration("dur", time.Since(start)))
}

// checkAuthentication extracts the credential from the configured header and
// verifies it. On failure it writes the HTTP rejection itself and returns
// nil. Bearer challenges are only emitted for the Authorization header;
// custom credential headers get plain status codes.
func (h *Handler) checkAuthentication(ctx context.Context, r *http.Request, w http.ResponseWriter) Caller {
	raw := r.Header.Get(h.authHeader)

	credential := raw
	if h.authHeader == authorizationHeader {
		if raw == "" {
			// No credentials at all. Per RFC 6750 no error code is included,
			// just the bare challenge.
			h.log.InfoContext(ctx, "auth.check.missing", slog.String("err", "no authorization header"))
			w.Header().Add(wwwAuthenticateHeader, "Bearer")
			w.WriteHeader(http.StatusUnauthorized)
			return nil
		}
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(raw, bearerPrefix) || len(raw) <= len(bearerPrefix) {
			h.log.InfoContext(ctx, "auth.check.invalid", slog.String("err", "malformed bearer authorization header"))
			w.Header().Add(wwwAuthenticateHeader, `Bearer error="invalid_request", error_description="malformed bearer authorization header"`)
			w.WriteHeader(http.StatusBadRequest)
			return nil
		}
		credential = strings.TrimSpace(raw[len(bearerPrefix):])
	}
	if credential == "" {
		h.log.InfoContext(ctx, "auth.check.missing", slog.String("err", "no credential header"))
		w.WriteHeader(http.StatusUnauthorized)
		return nil
	}

	caller, err := h.auth.CheckAuthentication(ctx, credential)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			h.log.InfoContext(ctx, "auth.check.fail", slog.String("err", err.Error()))
			if h.authHeader == authorizationHeader {
				w.Header().Add(wwwAuthenticateHeader, `Bearer error="invalid_token"`)
			}
			w.WriteHeader(http.StatusUnauthorized)
			return nil
		}
		h.log.ErrorContext(ctx, "auth.check.error", slog.String("err", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return nil
	}
	return caller
}

var _ http.Handler = (*Handler)(nil)
