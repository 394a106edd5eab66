package middleware

import (
	"net/http"
	"time"

	"github.com/obyte-wallet/walletd/internal/walletlog"
)

// Logger mirrors the teacher's walletserver/middleware.Logger, routed
// through internal/walletlog so this server's access log shares the
// same logrus instance as the primary chi surface.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		walletlog.L().Infof("%s %s %s", r.Method, r.RequestURI, time.Since(start))
	})
}
