package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	chiMiddleware "github.com/go-chi/chi/middleware"
	"go.uber.org/zap"
)

const maxLoggedBody = 4 << 10

type responseRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

type prefixedBody struct {
	io.Reader
	io.Closer
}

// LogMiddleware writes one line per request. Bodies of /api/auth requests
// carry passwords and are never logged.
func LogMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			body := "-"
			if r.Body != nil && r.Body != http.NoBody && !strings.HasPrefix(r.URL.Path, "/api/auth") {
				// only the logged prefix is buffered, the rest streams to the handler
				head, err := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody))
				if err == nil {
					body = string(head)
				}
				r.Body = prefixedBody{Reader: io.MultiReader(bytes.NewReader(head), r.Body), Closer: r.Body}
			}

			rec := &responseRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			logger.Infof("request_id=%s method=%s uri=%s status=%d size=%d duration=%s body=%s outputheaders=%v",
				chiMiddleware.GetReqID(r.Context()), r.Method, r.RequestURI, rec.status, rec.size,
				time.Since(start), body, rec.Header())
		})
	}
}
