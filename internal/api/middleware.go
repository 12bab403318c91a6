package api

import (
	"encoding/json"
	"net/http"
	"time"

	apperrors "quiz-funnels/internal/common/errors"
	"quiz-funnels/internal/common/logger"
)

// WithLogging wraps a handler with request logging.
func WithLogging(log logger.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		log.Debug("Request started", map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"remote": r.RemoteAddr,
		})

		next(w, r)

		log.Info("Request completed", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

// CORS allows the dashboard and quiz frontends to call the API from any
// origin.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// JSONResponse writes data as a JSON body.
func JSONResponse(w http.ResponseWriter, log logger.Logger, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("Failed to encode JSON response", nil)
	}
}

// ErrorResponse renders any error as the standard JSON error body.
func ErrorResponse(w http.ResponseWriter, log logger.Logger, err error) {
	status, body := apperrors.ToResponse(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("Request failed", map[string]interface{}{"code": string(body.Code)})
	}
	JSONResponse(w, log, status, body)
}

// ParseJSONBody decodes the request body into v. Decode failures are
// reported as FORMAT_ERROR.
func ParseJSONBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.NewFormatError("Invalid JSON", err.Error())
	}
	return nil
}

func confirmed(r *http.Request) bool {
	return r.URL.Query().Get("confirm") == "true"
}
