package validation

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/teilomillet/reprompt/errors"
	"github.com/teilomillet/reprompt/server/middleware"
)

// MaxBodyBytes bounds a request body.
const MaxBodyBytes = 4 << 20

// prompter is implemented by bodies that carry prompt text.
type prompter interface {
	PromptText() string
}

// Validator decodes and validates JSON request bodies.
type Validator struct {
	validate  *validator.Validate
	maxTokens int
	model     string
	logger    *zap.Logger

	once    sync.Once
	counter *TokenCounter
	initErr error
}

// Option configures a Validator.
type Option func(*Validator)

// WithTokenLimit rejects prompts longer than maxTokens tokens, counted with
// the encoding for model. A non-positive limit disables the check.
func WithTokenLimit(maxTokens int, model string) Option {
	return func(v *Validator) {
		v.maxTokens = maxTokens
		v.model = model
	}
}

// WithCounter sets the token counter instead of building one from the model.
func WithCounter(tc *TokenCounter) Option {
	return func(v *Validator) {
		v.once.Do(func() {})
		v.counter = tc
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// NewValidator creates a Validator. Validation details are keyed by JSON
// field name.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		validate: validator.New(),
		logger:   zap.NewNop(),
	}
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Validator) tokenCounter() (*TokenCounter, error) {
	v.once.Do(func() {
		v.counter, v.initErr = NewTokenCounter(v.model)
	})
	return v.counter, v.initErr
}

// DecodeAndValidate decodes r's JSON body into dst and validates it.
//
// A wrong Content-Type or malformed JSON is a 400; a body that decodes but
// fails validation or the token limit is a 422 with per-field details.
func (v *Validator) DecodeAndValidate(r *http.Request, dst interface{}) *errors.RepromptError {
	requestID := middleware.GetRequestID(r.Context())

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return errors.NewValidationError(requestID, "Invalid or missing Content-Type header", map[string]interface{}{
			"header:Content-Type": "must be application/json",
		})
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.NewValidationError(requestID, "Invalid request format", map[string]interface{}{
			"body": err.Error(),
		})
	}

	if err := v.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !stderrors.As(err, &verrs) {
			return errors.NewInternalError(requestID, err)
		}
		details := make(map[string]interface{}, len(verrs))
		for _, fe := range verrs {
			details[fieldPath(fe)] = describe(fe)
		}
		return unprocessable(requestID, "Request validation failed", details)
	}

	p, ok := dst.(prompter)
	if !ok || v.maxTokens <= 0 {
		return nil
	}
	tc, err := v.tokenCounter()
	if err != nil {
		v.logger.Warn("Token counter unavailable, skipping token limit", zap.Error(err))
		return nil
	}
	if err := tc.ValidateTokens(p.PromptText(), v.maxTokens); err != nil {
		return unprocessable(requestID, "Token limit exceeded", map[string]interface{}{
			"prompt": err.Error(),
			"limit":  v.maxTokens,
		})
	}
	return nil
}

func unprocessable(requestID, message string, details map[string]interface{}) *errors.RepromptError {
	e := errors.NewValidationError(requestID, message, details)
	e.Code = http.StatusUnprocessableEntity
	return e
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return fmt.Sprintf("is required when %s is empty", strings.ToLower(fe.Param()))
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
