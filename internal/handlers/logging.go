package handlers

import (
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5/middleware"
)

// tokenQueryParam carries the websocket credential; see QueryTokenAuth.
const tokenQueryParam = "token"

// AccessLogFormatter writes chi access-log lines with query-string
// credentials masked.
type AccessLogFormatter struct {
	middleware.LogFormatter
}

// NewAccessLogFormatter wraps chi's default formatter around logger, or
// stdout when logger is nil.
func NewAccessLogFormatter(logger middleware.LoggerInterface) AccessLogFormatter {
	if logger == nil {
		logger = log.New(os.Stdout, "", log.LstdFlags)
	}
	return AccessLogFormatter{LogFormatter: &middleware.DefaultLogFormatter{Logger: logger, NoColor: true}}
}

// AccessLogger is a drop-in for middleware.Logger.
func AccessLogger(logger middleware.LoggerInterface) func(http.Handler) http.Handler {
	return middleware.RequestLogger(NewAccessLogFormatter(logger))
}

func (f AccessLogFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return f.LogFormatter.NewLogEntry(redactCredentials(r))
}

func redactCredentials(r *http.Request) *http.Request {
	q := r.URL.Query()
	if !q.Has(tokenQueryParam) {
		return r
	}
	q.Set(tokenQueryParam, "REDACTED")

	clone := r.Clone(r.Context())
	clone.URL.RawQuery = q.Encode()
	clone.RequestURI = clone.URL.RequestURI()
	return clone
}
