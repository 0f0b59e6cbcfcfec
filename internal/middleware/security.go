package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/meddiag-engine/internal/domain"
	"github.com/meddiag-engine/internal/logging"
)

// HeaderCorrelationID carries the request correlation id in and out.
const HeaderCorrelationID = "X-Correlation-ID"

// SecurityHeaders adds security headers to all responses
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		// Patient data must not be cached by intermediaries.
		c.Header("Cache-Control", "no-store")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

// CorrelationID reuses or generates the request correlation id and stores it
// on both the gin context and the request context.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(HeaderCorrelationID)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set(logging.FieldCorrelationID, correlationID)
		c.Header(HeaderCorrelationID, correlationID)
		c.Request = c.Request.WithContext(logging.WithCorrelationID(c.Request.Context(), correlationID))

		c.Next()
	}
}

// BodyLimit caps the request body size.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// AccessLog writes one structured entry per request. Bodies are never
// logged since they carry patient data.
func AccessLog(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			logging.FieldCorrelationID: c.GetString(logging.FieldCorrelationID),
			"method":                   c.Request.Method,
			"path":                     c.FullPath(),
			"status":                   c.Writer.Status(),
			"latency":                  time.Since(start).String(),
			"client_ip":                c.ClientIP(),
			"response_size":            c.Writer.Size(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request served")
		}
	}
}

// Recovery turns panics into a 500 carrying a string detail and an APIError.
func Recovery(logger *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		correlationID := c.GetString(logging.FieldCorrelationID)
		logger.WithFields(logrus.Fields{
			logging.FieldCorrelationID: correlationID,
			"panic":                    recovered,
		}).Error("Handler panicked")

		const msg = "internal server error"
		apiErr := domain.NewAPIError(domain.ErrInternalServer, http.StatusText(http.StatusInternalServerError), msg, correlationID)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": msg, "error": apiErr})
	})
}

// RequestRecorder receives one observation per served request.
type RequestRecorder interface {
	RecordRequest(route string, status int, duration time.Duration)
}

// Metrics records method, route template, status and latency. Unmatched
// routes are grouped under "unmatched".
func Metrics(recorder RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		recorder.RecordRequest(c.Request.Method+" "+route, c.Writer.Status(), time.Since(start))
	}
}
