package chatapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// statusWriter remembers the status code written through it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// withLogging attaches a request-scoped logger and writes one line per
// request, e.g. "POST /chat -> 200 (812.4 ms)".
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := s.logger.With().Str("request_id", uuid.NewString()).Logger()
		r = r.WithContext(logger.WithContext(r.Context()))

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		if sw.status == 0 {
			sw.status = http.StatusOK
		}

		elapsed := time.Since(start)
		logger.Info().
			Int("status", sw.status).
			Dur("elapsed", elapsed).
			Msgf("%s %s -> %d (%.1f ms)", r.Method, r.URL.Path, sw.status, float64(elapsed.Microseconds())/1000)

		if s.recorder != nil {
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			s.recorder.ObserveRequest(route, sw.status, elapsed)
		}
	})
}

// withCORS allows any origin, method and header, answering preflights directly.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "*")
			h.Set("Access-Control-Allow-Headers", "*")
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
