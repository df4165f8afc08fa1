package gateway

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jensneuse/abstractlogger"
)

const requestIDHeader = "X-Request-ID"

// requestID assigns a request identifier when the caller did not supply one
// and reflects it on the response.
func requestID() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
				r.Header.Set(requestIDHeader, id)
			}
			w.Header().Set(requestIDHeader, id)
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// accessLog logs one line per served request.
func accessLog(logger abstractlogger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			logger.Debug("request served",
				abstractlogger.String("method", r.Method),
				abstractlogger.String("path", r.URL.Path),
				abstractlogger.Int("status", recorder.status),
				abstractlogger.String("request_id", r.Header.Get(requestIDHeader)),
				abstractlogger.String("duration", time.Since(start).String()),
			)
		})
	}
}
