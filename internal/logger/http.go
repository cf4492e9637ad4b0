package logger

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Middleware logs every request through LogAPI once it has been served.
// Server errors are logged at error level.
func (l *Logger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if status >= http.StatusInternalServerError {
			l.Error("API", r.Method+" "+r.URL.Path+" - "+http.StatusText(status))
		}
		l.LogAPI(r.Method, r.URL.Path, status, time.Since(start))
	})
}
