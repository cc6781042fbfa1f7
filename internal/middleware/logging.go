// internal/middleware/logging.go

package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// LogMiddleware logs the method, path and duration of each request.
func LogMiddleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}).Info("HTTP request")
		})
	}
}

// LogWebSocketConnect logs a chat connecting to the gateway.
func LogWebSocketConnect(logger *logrus.Logger, remoteAddr string, chatID int64) {
	logger.WithFields(logrus.Fields{
		"remote": remoteAddr,
		"chat":   chatID,
	}).Info("chat connected")
}

// LogWebSocketDisconnect logs a chat disconnecting from the gateway.
func LogWebSocketDisconnect(logger *logrus.Logger, remoteAddr string, chatID int64, err error) {
	fields := logrus.Fields{
		"remote": remoteAddr,
		"chat":   chatID,
	}
	if err != nil {
		fields["error"] = err
	}
	logger.WithFields(fields).Info("chat disconnected")
}
