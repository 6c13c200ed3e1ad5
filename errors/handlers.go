package errors

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// ErrorHandler wraps an http.Handler and turns panics into JSON internal errors.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					stack := debug.Stack()
					requestID := w.Header().Get("X-Request-ID")
					logger.Error("panic recovered",
						zap.Any("error", err),
						zap.ByteString("stacktrace", stack),
						zap.String("request_id", requestID),
					)

					WriteError(w, NewInternalError(requestID, nil))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// LogError logs an error with its context
func LogError(logger *zap.Logger, err error, requestID string) {
	if re, ok := err.(*RepromptError); ok {
		logger.Error("request error",
			zap.String("error_type", string(re.Type)),
			zap.String("message", re.Message),
			zap.Int("code", re.Code),
			zap.String("request_id", requestID),
			zap.Any("details", re.Details),
			zap.NamedError("cause", re.err),
		)
	} else {
		logger.Error("unexpected error",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
	}
}

// Respond writes err as a JSON error response. Errors that are not
// RepromptErrors are classified first so callers never leak raw transport
// failures with a generic status.
func Respond(w http.ResponseWriter, requestID string, err error) {
	classified := Classify(requestID, err)
	var re *RepromptError
	if !As(classified, &re) {
		re = NewInternalError(requestID, classified)
	}
	if re.RequestID == "" {
		re.RequestID = requestID
	}
	if re.Code == 0 {
		re.Code = http.StatusInternalServerError
	}
	WriteError(w, re)
}
