// Package handlers provides the HTTP handlers of the reprompt service.
// Each handler decodes and validates a JSON body, delegates to the
// transformation orchestrator or one of the supporting packages, and
// answers with JSON.
//
// The package follows these design principles:
// 1. Consistent error handling using the errors package
// 2. Structured logging with request IDs
// 3. Request validation kept apart from processing
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/teilomillet/reprompt/errors"
	"github.com/teilomillet/reprompt/rules"
	"github.com/teilomillet/reprompt/server/middleware"
	"github.com/teilomillet/reprompt/server/validation"
	"github.com/teilomillet/reprompt/stack"
	"github.com/teilomillet/reprompt/transform"
)

// Operations is the part of the orchestrator the handlers call.
type Operations interface {
	Transform(ctx context.Context, req transform.TransformRequest) (*transform.Result, error)
	GenerateExamples(ctx context.Context, req transform.ExamplesRequest) (*transform.ExamplesResult, error)
	Run(ctx context.Context, req transform.RunRequest) (*transform.RunResult, error)
}

// RulesSource serves house rules snapshots.
type RulesSource interface {
	Snapshot() *rules.Snapshot
	Reload() *rules.Snapshot
}

// Inspector produces the detailed stack report.
type Inspector interface {
	Inspect(root string) stack.Report
}

// Handlers holds the dependencies shared by every endpoint.
type Handlers struct {
	ops        Operations
	rules      RulesSource
	inspector  Inspector
	validator  *validation.Validator
	logger     *zap.Logger
	root       string
	inferStack bool
	version    string
	started    time.Time
}

// Option configures Handlers.
type Option func(*Handlers)

// WithValidator sets the body validator.
func WithValidator(v *validation.Validator) Option {
	return func(h *Handlers) {
		if v != nil {
			h.validator = v
		}
	}
}

// WithInspector sets the stack inspector used by the stack endpoint.
func WithInspector(i Inspector) Option {
	return func(h *Handlers) {
		h.inspector = i
	}
}

// WithWorkspace sets the workspace root and whether transformations infer the
// project stack when a request does not say.
func WithWorkspace(root string, inferStack bool) Option {
	return func(h *Handlers) {
		h.root = root
		h.inferStack = inferStack
	}
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) Option {
	return func(h *Handlers) {
		h.version = v
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Handlers) {
		if l != nil {
			h.logger = l
		}
	}
}

// New creates the handlers. rulesSrc may be nil, in which case no house rules
// are applied.
func New(ops Operations, rulesSrc RulesSource, opts ...Option) *Handlers {
	h := &Handlers{
		ops:       ops,
		rules:     rulesSrc,
		validator: validation.NewValidator(),
		logger:    zap.NewNop(),
		root:      ".",
		started:   time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.inspector == nil {
		h.inspector = stack.NewFileSystemDetector(h.logger)
	}
	return h
}

func (h *Handlers) snapshot() *rules.Snapshot {
	if h.rules == nil {
		return nil
	}
	return h.rules.Snapshot()
}

// decode validates the body into dst and writes the error response on
// failure.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if rerr := h.validator.DecodeAndValidate(r, dst); rerr != nil {
		h.logger.Debug("Request rejected",
			zap.String("request_id", rerr.RequestID),
			zap.String("path", r.URL.Path),
			zap.String("message", rerr.Message),
			zap.Any("details", rerr.Details),
		)
		errors.WriteError(w, rerr)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}
